package models

import (
	"time"
)

// SenderType identifies who authored a chat message
type SenderType string

const (
	SenderEnterprise SenderType = "enterprise"
	SenderClient     SenderType = "client"
	SenderWorker     SenderType = "worker"
)

// Valid reports whether s is one of the known sender types
func (s SenderType) Valid() bool {
	switch s {
	case SenderEnterprise, SenderClient, SenderWorker:
		return true
	}
	return false
}

// Message is a chat message attached to an order conversation.
// ForwardedFrom and OriginalMessageID are set only on forwards.
type Message struct {
	ID                int64       `json:"messageId"`
	OrderID           int64       `json:"orderId"`
	Content           string      `json:"content"`
	SenderType        SenderType  `json:"senderType"`
	MediaID           *string     `json:"mediaId,omitempty"`
	ForwardedFrom     *SenderType `json:"forwardedFrom,omitempty"`
	OriginalMessageID *int64      `json:"originalMessageId,omitempty"`
	CreatedAt         time.Time   `json:"createdAt"`
}

// IsForward reports whether the message was produced by forwarding another one
func (m *Message) IsForward() bool {
	return m.OriginalMessageID != nil
}

// HasMedia reports whether the message references a provider media attachment
func (m *Message) HasMedia() bool {
	return m.MediaID != nil && *m.MediaID != ""
}
