package service

// Field names shared by service and middleware log entries. Levels: Warn for
// degraded-but-served outcomes (media fallback, a failed event publish after
// a forward was stored), Error for failed requests.
const (
	LogFieldMessageID  = "message_id"
	LogFieldOrderID    = "order_id"
	LogFieldMediaID    = "media_id"
	LogFieldRecipient  = "recipient"
	LogFieldEventID    = "event_id"
	LogFieldSenderType = "sender_type"
	LogFieldOutcome    = "outcome"

	LogFieldDuration = "duration_ms"
	LogFieldSize     = "size_bytes"

	LogFieldRequestID  = "request_id"
	LogFieldTraceID    = "trace_id"
	LogFieldMethod     = "method"
	LogFieldRemoteIP   = "remote_ip"
	LogFieldUserAgent  = "user_agent"
	LogFieldURL        = "url"
	LogFieldEndpoint   = "endpoint"
	LogFieldStatusCode = "status_code"

	LogFieldFileName  = "file_name"
	LogFieldMimeType  = "mime_type"
	LogFieldErrorCode = "error_code"
)
