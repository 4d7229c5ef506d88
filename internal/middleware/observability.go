package middleware

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"orderbridge/internal/httputil"
	"orderbridge/internal/metrics"
	"orderbridge/internal/service"
	"orderbridge/internal/tracing"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const activeRequestsGauge = "http_requests_active"

// Observability gives every request an ID, a server span, metrics and one
// access log line. A sane incoming X-Request-ID is kept; the ID in use is
// always echoed back.
func Observability(registry *metrics.Registry, clientIP *httputil.ClientIPResolver, logger *logrus.Logger) mux.MiddlewareFunc {
	if registry == nil {
		registry = metrics.GetRegistry()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := tracing.SanitizeRequestID(r.Header.Get(tracing.RequestIDHeader))

			ctx, span := tracing.StartSpan(tracing.ExtractHTTP(r.Context(), r.Header), "http_request")
			defer span.End()
			ctx = tracing.WithRequest(ctx, requestID, start)
			r = r.WithContext(ctx)
			w.Header().Set(tracing.RequestIDHeader, requestID)

			route := routeTemplate(r)
			remoteIP := clientIP.ClientIP(r)
			span.SetAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", route),
				attribute.String("client.address", remoteIP),
				attribute.String("user_agent.original", r.UserAgent()),
				attribute.String("request.id", requestID),
			)

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			registry.AddToGauge(activeRequestsGauge, 1, nil, "In-flight HTTP requests")
			next.ServeHTTP(rec, r)
			registry.AddToGauge(activeRequestsGauge, -1, nil, "In-flight HTTP requests")

			elapsed := time.Since(start)
			span.SetAttributes(
				attribute.Int("http.response.status_code", rec.status),
				attribute.Int64("http.response.size", rec.written),
			)
			if rec.status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, "HTTP "+strconv.Itoa(rec.status))
			}

			labels := map[string]string{
				"method":      r.Method,
				"endpoint":    route,
				"status_code": strconv.Itoa(rec.status),
			}
			registry.IncrementCounter("http_requests_total", labels, "HTTP requests by route and status")
			registry.RecordTimer("http_request_duration", elapsed, labels, "HTTP request duration")

			logger.WithFields(logrus.Fields{
				service.LogFieldRequestID:  requestID,
				service.LogFieldTraceID:    tracing.GetTraceID(ctx),
				service.LogFieldMethod:     r.Method,
				service.LogFieldEndpoint:   route,
				service.LogFieldStatusCode: rec.status,
				service.LogFieldDuration:   elapsed.Milliseconds(),
				service.LogFieldRemoteIP:   remoteIP,
				service.LogFieldSize:       rec.written,
			}).Log(accessLogLevel(r.URL.Path, rec.status), "HTTP request completed")
		})
	}
}

// accessLogLevel keeps probes and scrapes at debug and raises failures
func accessLogLevel(path string, status int) logrus.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return logrus.ErrorLevel
	case status >= http.StatusBadRequest:
		return logrus.WarnLevel
	case path == "/health" || path == "/metrics":
		return logrus.DebugLevel
	}
	return logrus.InfoLevel
}

// routeTemplate is the metrics label for r: the matched mux template so IDs
// and filenames stay out of label values
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	if strings.HasPrefix(r.URL.Path, "/uploads/") {
		return "/uploads/*"
	}
	return "unmatched"
}

// statusRecorder remembers the first status written and counts body bytes
type statusRecorder struct {
	http.ResponseWriter
	status      int
	written     int64
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(status int) {
	if !s.wroteHeader {
		s.status = status
		s.wroteHeader = true
	}
	s.ResponseWriter.WriteHeader(status)
}

func (s *statusRecorder) Write(p []byte) (int, error) {
	s.wroteHeader = true
	n, err := s.ResponseWriter.Write(p)
	s.written += int64(n)
	return n, err
}

// Flush lets proxied media stream through
func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack supports websocket upgrades
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	s.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}
