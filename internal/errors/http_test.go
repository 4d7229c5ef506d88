package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		code     ErrorCode
		expected int
	}{
		{ErrCodeValidationFailed, http.StatusBadRequest},
		{ErrCodeMissingURLParameter, http.StatusBadRequest},
		{ErrCodeInvalidURLEncoding, http.StatusBadRequest},
		{ErrCodeMissingFile, http.StatusBadRequest},
		{ErrCodeUnauthorizedDomain, http.StatusForbidden},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeFileNotFound, http.StatusNotFound},
		{ErrCodeRequestTimeout, http.StatusRequestTimeout},
		{ErrCodeFacebookRequestFailed, http.StatusBadGateway},
		{ErrCodeNetworkError, http.StatusBadGateway},
		{ErrCodeMediaPermanence, http.StatusBadGateway},
		{ErrCodeWhatsAppAPI, http.StatusBadGateway},
		{ErrCodeDatabaseQuery, http.StatusServiceUnavailable},
		{ErrCodeStreamError, http.StatusInternalServerError},
		{ErrCodeUploadError, http.StatusInternalServerError},
		{ErrCodeServerError, http.StatusInternalServerError},
		{ErrCodeInternalError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.expected, HTTPStatusCode(New(tt.code, "x")))
		})
	}

	assert.Equal(t, http.StatusInternalServerError, HTTPStatusCode(errors.New("plain")))
}

func TestToHTTPResponse_AppError(t *testing.T) {
	err := NewValidationError("status", "must be one of pending in_progress ready delivered cancelled").
		WithContext("token", "secret-value")

	resp := ToHTTPResponse(err, "req-1")

	assert.False(t, resp.Success)
	assert.Equal(t, ErrCodeValidationFailed, resp.Error.Code)
	assert.Equal(t, "req-1", resp.RequestID)

	data, jerr := json.Marshal(resp)
	require.NoError(t, jerr)
	body := string(data)
	assert.Contains(t, body, `"success":false`)
	assert.Contains(t, body, `"code":"VALIDATION_FAILED"`)
	assert.Contains(t, body, `"field":"status"`)
	assert.NotContains(t, body, "secret-value")
}

func TestToHTTPResponse_PlainErrorIsHidden(t *testing.T) {
	resp := ToHTTPResponse(errors.New("open /var/data/x.db: permission denied"), "")

	assert.Equal(t, ErrCodeInternalError, resp.Error.Code)
	assert.Equal(t, "An internal error occurred", resp.Error.Message)
	assert.Nil(t, resp.Error.Context)
}

func TestToHTTPResponse_FetchTimeoutContext(t *testing.T) {
	err := Wrap(errors.New("deadline"), ErrCodeRequestTimeout, "media request timed out").
		WithContext("timeout", "10s").
		WithContext("url", "https://lookaside.fbsbx.com/x?token=1").
		WithUserMessage("Request timeout")

	resp := ToHTTPResponse(err, "req-2")

	assert.Equal(t, ErrCodeRequestTimeout, resp.Error.Code)
	assert.Equal(t, "Request timeout", resp.Error.Message)
	assert.Equal(t, map[string]interface{}{"timeout": "10s"}, resp.Error.Context)
}
