package events

import (
	"context"
	"time"

	"orderbridge/internal/tracing"

	"github.com/google/uuid"
)

// Event types, named <entity>.<verb>.v<version>. The type doubles as the
// routing key on the topic exchange.
const (
	MessageCreatedV1   = "message.created.v1"
	MessageForwardedV1 = "message.forwarded.v1"
	OrderStatusV1      = "order.status_changed.v1"
)

const producer = "orderbridge"

type Meta struct {
	// Request correlation ID
	CorrelationID *string `json:"correlation_id,omitempty"`
	// Unique event ID
	ID string `json:"id"`
	// Emitting service
	Producer *string `json:"producer,omitempty"`
	// Time the event was emitted
	Time time.Time `json:"time"`
	// Event name and version, e.g. message.forwarded.v1
	Type string `json:"type"`
}

type Envelope struct {
	Meta Meta `json:"meta"`
	Data any  `json:"data"`
}

// NewEnvelope stamps data with a fresh event ID and, when the context
// carries one, the request ID as correlation ID.
func NewEnvelope(ctx context.Context, eventType string, data any) Envelope {
	p := producer
	meta := Meta{
		ID:       uuid.NewString(),
		Producer: &p,
		Time:     time.Now().UTC(),
		Type:     eventType,
	}
	if requestID := tracing.GetRequestID(ctx); requestID != "" {
		meta.CorrelationID = &requestID
	}
	return Envelope{Meta: meta, Data: data}
}

// MessageForwarded is the payload of message.forwarded.v1
type MessageForwarded struct {
	MessageID         int64  `json:"messageId"`
	OrderID           int64  `json:"orderId"`
	OriginalMessageID int64  `json:"originalMessageId"`
	SourceOrderID     int64  `json:"sourceOrderId"`
	MediaURL          string `json:"mediaUrl,omitempty"`
	MediaPermanent    bool   `json:"mediaPermanent"`
	ProviderMessageID string `json:"providerMessageId,omitempty"`
}

// MessageCreated is the payload of message.created.v1
type MessageCreated struct {
	MessageID  int64  `json:"messageId"`
	OrderID    int64  `json:"orderId"`
	SenderType string `json:"senderType"`
	HasMedia   bool   `json:"hasMedia"`
}

// OrderStatusChanged is the payload of order.status_changed.v1
type OrderStatusChanged struct {
	OrderID int64  `json:"orderId"`
	Code    string `json:"code"`
	Status  string `json:"status"`
}
