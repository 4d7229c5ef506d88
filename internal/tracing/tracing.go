package tracing

import (
	"context"
	"time"

	"github.com/google/uuid"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// RequestIDHeader is read from incoming requests and echoed on responses
const RequestIDHeader = "X-Request-ID"

const maxIncomingRequestIDLength = 128

type requestKey struct{}

// request is what the HTTP layer stores per request. Trace and span IDs are
// not stored; they come from the active span.
type request struct {
	id    string
	start time.Time
}

// RequestInfo identifies a request in logs and error bodies
type RequestInfo struct {
	RequestID string    `json:"request_id"`
	TraceID   string    `json:"trace_id,omitempty"`
	SpanID    string    `json:"span_id,omitempty"`
	StartTime time.Time `json:"start_time"`
}

// GenerateRequestID returns a fresh "req_" prefixed UUID
func GenerateRequestID() string {
	return "req_" + uuid.NewString()
}

// SanitizeRequestID keeps a caller supplied ID when it is short and printable
// ASCII. Anything else is replaced.
func SanitizeRequestID(id string) string {
	if id == "" || len(id) > maxIncomingRequestIDLength {
		return GenerateRequestID()
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return GenerateRequestID()
		}
	}
	return id
}

// WithRequest records the request ID and arrival time on ctx
func WithRequest(ctx context.Context, requestID string, start time.Time) context.Context {
	return context.WithValue(ctx, requestKey{}, request{id: requestID, start: start})
}

// WithRequestID is WithRequest stamped with the current time
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return WithRequest(ctx, requestID, time.Now())
}

func requestFrom(ctx context.Context) request {
	req, _ := ctx.Value(requestKey{}).(request)
	return req
}

func GetRequestID(ctx context.Context) string {
	return requestFrom(ctx).id
}

func GetStartTime(ctx context.Context) time.Time {
	return requestFrom(ctx).start
}

// GetTraceID returns the active span's trace ID, or "" outside a span
func GetTraceID(ctx context.Context) string {
	sc := oteltrace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

// GetSpanID returns the active span's ID, or "" outside a span
func GetSpanID(ctx context.Context) string {
	sc := oteltrace.SpanContextFromContext(ctx)
	if !sc.HasSpanID() {
		return ""
	}
	return sc.SpanID().String()
}

func GetRequestInfo(ctx context.Context) *RequestInfo {
	req := requestFrom(ctx)
	return &RequestInfo{
		RequestID: req.id,
		TraceID:   GetTraceID(ctx),
		SpanID:    GetSpanID(ctx),
		StartTime: req.start,
	}
}

// Elapsed is the time since the request arrived, zero when unknown
func Elapsed(ctx context.Context) time.Duration {
	start := GetStartTime(ctx)
	if start.IsZero() {
		return 0
	}
	return time.Since(start)
}
