package types

import (
	"encoding/json"
	"strconv"
)

// MediaDetailsResponse is the Graph API answer to GET /{media-id}
type MediaDetailsResponse struct {
	ID               string   `json:"id"`
	URL              string   `json:"url"`
	MimeType         string   `json:"mime_type"`
	SHA256           string   `json:"sha256"`
	FileSize         FileSize `json:"file_size"`
	MessagingProduct string   `json:"messaging_product"`
}

// FileSize accepts file_size as either a JSON number or a numeric string
type FileSize int64

func (f *FileSize) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}

	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FileSize(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*f = FileSize(n)
	return nil
}

// TextBody is the text object of an outbound text message
type TextBody struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

// SendMessageRequest is the body of POST /{phone-number-id}/messages
type SendMessageRequest struct {
	MessagingProduct string    `json:"messaging_product"`
	RecipientType    string    `json:"recipient_type"`
	To               string    `json:"to"`
	Type             string    `json:"type"`
	Text             *TextBody `json:"text,omitempty"`
}

// SendContact echoes the recipient as resolved by WhatsApp
type SendContact struct {
	Input string `json:"input"`
	WaID  string `json:"wa_id"`
}

// SentMessage identifies an accepted outbound message
type SentMessage struct {
	ID            string `json:"id"`
	MessageStatus string `json:"message_status,omitempty"`
}

// SendResponse is the Graph API answer to a send request
type SendResponse struct {
	MessagingProduct string        `json:"messaging_product"`
	Contacts         []SendContact `json:"contacts"`
	Messages         []SentMessage `json:"messages"`
}

// MessageID returns the ID of the first accepted message, if any
func (r *SendResponse) MessageID() string {
	if r == nil || len(r.Messages) == 0 {
		return ""
	}
	return r.Messages[0].ID
}

// APIError is the error object Graph API returns on failure
type APIError struct {
	Message      string `json:"message"`
	Type         string `json:"type"`
	Code         int    `json:"code"`
	ErrorSubcode int    `json:"error_subcode,omitempty"`
	FBTraceID    string `json:"fbtrace_id,omitempty"`
}

// ErrorResponse wraps APIError
type ErrorResponse struct {
	Error *APIError `json:"error"`
}
