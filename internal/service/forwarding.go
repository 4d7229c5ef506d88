package service

import (
	"context"
	"fmt"
	"time"

	apperrors "orderbridge/internal/errors"
	"orderbridge/internal/events"
	"orderbridge/internal/metrics"
	"orderbridge/internal/models"
	"orderbridge/internal/privacy"
	"orderbridge/internal/realtime"
	"orderbridge/internal/tracing"
	"orderbridge/internal/validation"
	"orderbridge/pkg/whatsapp/types"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// MessageStore is the persistence the messaging services need
type MessageStore interface {
	GetMessage(ctx context.Context, id int64) (*models.Message, error)
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	InsertMessage(ctx context.Context, msg *models.Message) (*models.Message, error)
}

// MessageSender delivers text to a recipient over the provider
type MessageSender interface {
	SendText(ctx context.Context, to, text string) (*types.SendResponse, error)
}

// MediaPermanence makes provider media permanent, see PermanenceService
type MediaPermanence interface {
	MakePermanent(ctx context.Context, mediaID string) (*models.PermanenceResult, error)
}

// EventPublisher emits domain events
type EventPublisher interface {
	Publish(ctx context.Context, key string, env events.Envelope) error
}

// Broadcaster pushes new messages to live subscribers of an order
type Broadcaster interface {
	Broadcast(eventType string, msg *models.Message)
}

type ForwardRequest struct {
	MessageID     int64
	TargetOrderID int64
	Recipient     string
	// SenderType is the actor performing the forward
	SenderType models.SenderType
}

type ForwardResult struct {
	Original  *models.Message          `json:"original"`
	Forwarded *models.Message          `json:"forwarded"`
	Send      *types.SendResponse      `json:"send"`
	Media     *models.PermanenceResult `json:"media,omitempty"`
}

// ForwardingService re-sends a stored message to a recipient and records
// the forward in the target order's conversation.
type ForwardingService struct {
	store     MessageStore
	sender    MessageSender
	media     MediaPermanence
	publisher EventPublisher
	hub       Broadcaster
	registry  *metrics.Registry
	logger    *logrus.Logger
}

func NewForwardingService(
	store MessageStore,
	sender MessageSender,
	media MediaPermanence,
	publisher EventPublisher,
	hub Broadcaster,
	registry *metrics.Registry,
	logger *logrus.Logger,
) *ForwardingService {
	if registry == nil {
		registry = metrics.GetRegistry()
	}
	return &ForwardingService{
		store:     store,
		sender:    sender,
		media:     media,
		publisher: publisher,
		hub:       hub,
		registry:  registry,
		logger:    logger,
	}
}

// Forward sends the source message's content, annotated with a media link
// when it carries media, and stores the forward. Media failures only change
// the annotation. Send and persistence failures are returned.
func (s *ForwardingService) Forward(ctx context.Context, req ForwardRequest) (*ForwardResult, error) {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "message.forward",
		attribute.Int64("message.id", req.MessageID),
		attribute.Int64("order.target_id", req.TargetOrderID))
	defer span.End()

	if err := s.validate(req); err != nil {
		return nil, err
	}

	original, err := s.store.GetMessage(ctx, req.MessageID)
	if err != nil {
		return nil, s.fail(ctx, "load", err)
	}
	// Nothing is stored or sent for a target order that does not exist
	if _, err := s.store.GetOrder(ctx, req.TargetOrderID); err != nil {
		return nil, s.fail(ctx, "target", err)
	}

	content := original.Content
	var mediaResult *models.PermanenceResult
	if original.HasMedia() {
		mediaID := *original.MediaID
		mediaResult, err = s.media.MakePermanent(ctx, mediaID)
		if err != nil {
			s.logger.WithFields(logrus.Fields{
				LogFieldMessageID: original.ID,
				LogFieldMediaID:   privacy.MaskMediaID(mediaID),
				LogFieldErrorCode: apperrors.GetCode(err),
			}).WithError(err).Warn("Forwarding without media")
			content = appendAnnotation(content, MediaFailureAnnotation(mediaID))
			mediaResult = nil
		} else {
			content = appendAnnotation(content, MediaAnnotation(mediaResult.MimeType, mediaResult.URL))
		}
	}

	LogForwardProcessing(ctx, s.logger, original.ID, req.TargetOrderID, req.Recipient, content)

	sendResp, err := s.sender.SendText(ctx, req.Recipient, content)
	if err != nil {
		return nil, s.fail(ctx, "send", err)
	}

	from := original.SenderType
	originalID := original.ID
	forwarded, err := s.store.InsertMessage(ctx, &models.Message{
		OrderID:           req.TargetOrderID,
		Content:           content,
		SenderType:        req.SenderType,
		ForwardedFrom:     &from,
		OriginalMessageID: &originalID,
	})
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			LogFieldMessageID:  original.ID,
			"provider_message": sendResp.MessageID(),
		}).WithError(err).Error("Message was sent but the forward could not be recorded")
		return nil, s.fail(ctx, "persist", err)
	}

	s.announce(ctx, original, forwarded, mediaResult, sendResp)

	s.registry.IncrementCounter("messages_forwarded_total", map[string]string{"status": "success"}, "Forwarded messages")
	s.registry.RecordTimer("message_forward_duration", time.Since(start), nil, "Forward latency")

	s.logger.WithFields(logrus.Fields{
		LogFieldMessageID: forwarded.ID,
		LogFieldOrderID:   forwarded.OrderID,
		"original_id":     original.ID,
		LogFieldDuration:  time.Since(start).Milliseconds(),
	}).Info("Forward completed")

	return &ForwardResult{
		Original:  original,
		Forwarded: forwarded,
		Send:      sendResp,
		Media:     mediaResult,
	}, nil
}

func (s *ForwardingService) validate(req ForwardRequest) error {
	if req.MessageID <= 0 {
		return apperrors.NewValidationError("messageId", "must be positive")
	}
	if req.TargetOrderID <= 0 {
		return apperrors.NewValidationError("targetOrderId", "must be positive")
	}
	if !req.SenderType.Valid() {
		return apperrors.NewValidationError("senderType", fmt.Sprintf("unknown sender type %q", req.SenderType))
	}
	if err := validation.ValidatePhoneNumber(req.Recipient); err != nil {
		return apperrors.NewValidationError("recipient", apperrors.GetUserMessage(err))
	}
	return nil
}

func (s *ForwardingService) fail(ctx context.Context, step string, err error) error {
	tracing.RecordError(ctx, err, attribute.String("forward.step", step))
	tracing.SetSpanStatus(ctx, codes.Error, "forward failed at "+step)
	s.registry.IncrementCounter("messages_forwarded_total", map[string]string{"status": "failed", "step": step}, "Forwarded messages")
	return err
}

// announce publishes the forward event and pushes it to live subscribers.
// Neither can fail the forward.
func (s *ForwardingService) announce(ctx context.Context, original, forwarded *models.Message, mediaResult *models.PermanenceResult, sendResp *types.SendResponse) {
	if s.hub != nil {
		s.hub.Broadcast(realtime.EventMessageForwarded, forwarded)
	}
	if s.publisher == nil {
		return
	}

	payload := events.MessageForwarded{
		MessageID:         forwarded.ID,
		OrderID:           forwarded.OrderID,
		OriginalMessageID: original.ID,
		SourceOrderID:     original.OrderID,
		ProviderMessageID: sendResp.MessageID(),
	}
	if mediaResult != nil {
		payload.MediaURL = mediaResult.URL
		payload.MediaPermanent = mediaResult.IsPermanent
	}

	env := events.NewEnvelope(ctx, events.MessageForwardedV1, payload)
	if err := s.publisher.Publish(ctx, events.MessageForwardedV1, env); err != nil {
		s.logger.WithFields(logrus.Fields{
			LogFieldMessageID: forwarded.ID,
			LogFieldEventID:   env.Meta.ID,
		}).WithError(err).Warn("Failed to publish forward event")
	}
}

// MediaAnnotation formats the media line appended to forwarded content
func MediaAnnotation(mimeType, url string) string {
	return fmt.Sprintf("[Media: %s] %s", mimeType, url)
}

// MediaFailureAnnotation formats the line appended when media could not be resolved at all
func MediaFailureAnnotation(mediaID string) string {
	return fmt.Sprintf("[Media processing failed - ID: %s]", mediaID)
}

func appendAnnotation(content, annotation string) string {
	if content == "" {
		return annotation
	}
	return content + "\n" + annotation
}
