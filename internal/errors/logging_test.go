package errors

import (
	"bytes"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func newBufferedLogger() (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	base := logrus.New()
	base.SetFormatter(&logrus.JSONFormatter{})
	base.SetOutput(&buf)
	return WrapLogger(base), &buf
}

func TestWrapLogger(t *testing.T) {
	base := logrus.New()
	assert.Same(t, base, WrapLogger(base).Logger)

	fallback := WrapLogger(nil)
	_, ok := fallback.Formatter.(*logrus.JSONFormatter)
	assert.True(t, ok)
}

func TestLogger_LogError(t *testing.T) {
	tests := []struct {
		name             string
		err              error
		fields           []logrus.Fields
		expectedInOutput []string
	}{
		{
			name:   "AppError with context",
			err:    New(ErrCodeUnauthorizedDomain, "host rejected").WithContext("host", "evil.example"),
			fields: []logrus.Fields{{"operation": "proxy"}},
			expectedInOutput: []string{
				`"level":"error"`,
				`"error_code":"UNAUTHORIZED_DOMAIN"`,
				`"retryable":false`,
				`"host":"evil.example"`,
				`"operation":"proxy"`,
				`"msg":"Media proxy rejected URL"`,
			},
		},
		{
			name: "standard error",
			err:  errors.New("something went wrong"),
			expectedInOutput: []string{
				`"level":"error"`,
				`"error":"something went wrong"`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := newBufferedLogger()

			logger.LogError(tt.err, "Media proxy rejected URL", tt.fields...)

			for _, expected := range tt.expectedInOutput {
				assert.Contains(t, buf.String(), expected)
			}
		})
	}
}

func TestLogger_CallerFieldsWin(t *testing.T) {
	logger, buf := newBufferedLogger()

	logger.LogWarn(New(ErrCodeNotFound, "order not found").WithContext("path", "internal"),
		"Request failed", logrus.Fields{"path": "/api/orders/9"})

	assert.Contains(t, buf.String(), `"path":"/api/orders/9"`)
	assert.Contains(t, buf.String(), `"level":"warning"`)
}

func TestLogger_LogPicksLevelFromStatus(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		level string
	}{
		{"validation", NewValidationError("body", "required"), `"level":"warning"`},
		{"not found", NewNotFoundError("order", "7"), `"level":"warning"`},
		{"upstream", NewAPIError("/messages", 503, errors.New("unavailable")), `"level":"error"`},
		{"plain", errors.New("boom"), `"level":"error"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := newBufferedLogger()
			logger.Log(tt.err, "Request failed")
			assert.Contains(t, buf.String(), tt.level)
		})
	}
}
