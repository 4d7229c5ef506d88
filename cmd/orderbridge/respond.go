package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	apperrors "orderbridge/internal/errors"
	"orderbridge/internal/tracing"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// maxJSONBodyBytes bounds API request bodies; uploads have their own limit
const maxJSONBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(body)
}

// writeError logs err and writes the standard error body
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	requestInfo := tracing.GetRequestInfo(r.Context())

	s.errLogger.Log(err, "Request failed", logrus.Fields{
		"request_id":  requestInfo.RequestID,
		"trace_id":    requestInfo.TraceID,
		"path":        r.URL.Path,
		"status_code": status,
	})

	writeJSON(w, status, apperrors.ToHTTPResponse(err, requestInfo.RequestID))
}

// decodeJSON reads a single JSON object into dst. Unknown fields are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return apperrors.NewValidationError("body", "request body is required")
		case errors.As(err, &maxErr):
			return apperrors.NewValidationError("body", "request body is too large")
		default:
			return apperrors.NewValidationError("body", "malformed JSON")
		}
	}
	if decoder.More() {
		return apperrors.NewValidationError("body", "request body must contain a single JSON object")
	}
	return nil
}

// pathID parses a positive integer route variable
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError(name, "must be a positive integer")
	}
	return id, nil
}
