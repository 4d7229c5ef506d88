package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"

	"orderbridge/internal/privacy"
	"orderbridge/internal/service"
	"orderbridge/internal/tracing"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

const maskedValue = "***MASKED***"

// DetailedLoggingConfig controls the debug-level request dump enabled by --verbose
type DetailedLoggingConfig struct {
	LogRequestHeaders bool
	LogRequestBody    bool
	LogResponseBody   bool
	// MaxBodySize caps how many body bytes are decoded for a log entry
	MaxBodySize int
	// SensitiveHeaders are lower-case header names whose values are masked
	SensitiveHeaders []string
	// SkipPrefixes lists paths that serve binary or long-lived bodies
	SkipPrefixes []string
}

func DefaultDetailedLoggingConfig() DetailedLoggingConfig {
	return DetailedLoggingConfig{
		LogRequestHeaders: true,
		LogRequestBody:    true,
		MaxBodySize:       2048,
		SensitiveHeaders:  []string{"authorization", "cookie", "set-cookie", "x-api-key"},
		SkipPrefixes:      []string{"/metrics", "/health", "/uploads/", "/api/media/", "/api/proxy-fb-media"},
	}
}

func (c DetailedLoggingConfig) skips(path string) bool {
	if strings.HasSuffix(path, "/ws") {
		return true
	}
	return slices.ContainsFunc(c.SkipPrefixes, func(prefix string) bool {
		return strings.HasPrefix(path, prefix)
	})
}

// DetailedLogging dumps JSON request and response bodies at debug level with
// phone numbers, media IDs and URLs masked. It is a no-op above debug.
func DetailedLogging(logger *logrus.Logger, config DetailedLoggingConfig) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !logger.IsLevelEnabled(logrus.DebugLevel) || config.skips(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			requestID := tracing.GetRequestID(r.Context())
			logger.WithFields(config.requestFields(r, requestID)).Debug("Request detail")

			if !config.LogResponseBody {
				next.ServeHTTP(w, r)
				return
			}

			tap := &bodyTap{ResponseWriter: w, limit: config.MaxBodySize, status: http.StatusOK}
			next.ServeHTTP(tap, r)

			fields := logrus.Fields{
				service.LogFieldRequestID:  requestID,
				service.LogFieldStatusCode: tap.status,
			}
			switch {
			case tap.overflow:
				fields["response_body"] = fmt.Sprintf("(over %d bytes)", tap.limit)
			case tap.buf.Len() > 0:
				fields["response_body"] = maskedJSON(tap.buf.Bytes())
			}
			logger.WithFields(fields).Debug("Response detail")
		})
	}
}

func (c DetailedLoggingConfig) requestFields(r *http.Request, requestID string) logrus.Fields {
	fields := logrus.Fields{
		service.LogFieldRequestID: requestID,
		service.LogFieldMethod:    r.Method,
		service.LogFieldURL:       r.URL.Path,
		"content_length":          r.ContentLength,
	}

	if c.LogRequestHeaders {
		headers := make(map[string]string, len(r.Header))
		for name, values := range r.Header {
			value := strings.Join(values, ", ")
			if slices.Contains(c.SensitiveHeaders, strings.ToLower(name)) {
				value = maskedValue
			}
			headers[name] = value
		}
		fields["request_headers"] = headers
	}

	mediaType := strings.ToLower(strings.TrimSpace(r.Header.Get("Content-Type")))
	if c.LogRequestBody && strings.HasPrefix(mediaType, "application/json") &&
		r.ContentLength > 0 && r.ContentLength <= int64(c.MaxBodySize) {
		if body, err := io.ReadAll(r.Body); err == nil {
			r.Body = io.NopCloser(bytes.NewReader(body))
			fields["request_body"] = maskedJSON(body)
		}
	}
	return fields
}

// maskedJSON masks the top-level identifier fields of a JSON object. Other
// payloads are described by size only.
func maskedJSON(body []byte) interface{} {
	var object map[string]interface{}
	if json.Unmarshal(body, &object) != nil {
		return fmt.Sprintf("(%d bytes, not a JSON object)", len(body))
	}
	return privacy.MaskSensitiveFields(object)
}

// bodyTap copies up to limit response bytes aside for logging
type bodyTap struct {
	http.ResponseWriter
	buf      bytes.Buffer
	limit    int
	overflow bool
	status   int
}

func (t *bodyTap) WriteHeader(status int) {
	t.status = status
	t.ResponseWriter.WriteHeader(status)
}

func (t *bodyTap) Write(p []byte) (int, error) {
	n, err := t.ResponseWriter.Write(p)
	if t.overflow {
		return n, err
	}
	if t.buf.Len()+n > t.limit {
		t.overflow = true
		t.buf.Reset()
	} else {
		t.buf.Write(p[:n])
	}
	return n, err
}

func (t *bodyTap) Unwrap() http.ResponseWriter {
	return t.ResponseWriter
}
