package service

import (
	"context"

	apperrors "orderbridge/internal/errors"
	"orderbridge/internal/events"
	"orderbridge/internal/metrics"
	"orderbridge/internal/models"
	"orderbridge/internal/realtime"

	"github.com/sirupsen/logrus"
)

// MessageService records new chat messages and announces them
type MessageService struct {
	store     MessageStore
	publisher EventPublisher
	hub       Broadcaster
	registry  *metrics.Registry
	logger    *logrus.Logger
}

func NewMessageService(store MessageStore, publisher EventPublisher, hub Broadcaster, registry *metrics.Registry, logger *logrus.Logger) *MessageService {
	if registry == nil {
		registry = metrics.GetRegistry()
	}
	return &MessageService{
		store:     store,
		publisher: publisher,
		hub:       hub,
		registry:  registry,
		logger:    logger,
	}
}

// Create stores a message authored in an order conversation. Forward
// back-references are not accepted here; use ForwardingService.
func (s *MessageService) Create(ctx context.Context, msg *models.Message) (*models.Message, error) {
	if msg.ForwardedFrom != nil || msg.OriginalMessageID != nil {
		return nil, apperrors.NewValidationError("originalMessageId", "forwards must be created through the forward endpoint")
	}
	if msg.Content == "" && !msg.HasMedia() {
		return nil, apperrors.NewValidationError("content", "message needs content or media")
	}

	stored, err := s.store.InsertMessage(ctx, msg)
	if err != nil {
		return nil, err
	}

	s.registry.IncrementCounter("messages_created_total", map[string]string{"sender_type": string(stored.SenderType)}, "Chat messages created")

	if s.hub != nil {
		s.hub.Broadcast(realtime.EventMessageCreated, stored)
	}
	if s.publisher != nil {
		env := events.NewEnvelope(ctx, events.MessageCreatedV1, events.MessageCreated{
			MessageID:  stored.ID,
			OrderID:    stored.OrderID,
			SenderType: string(stored.SenderType),
			HasMedia:   stored.HasMedia(),
		})
		if err := s.publisher.Publish(ctx, events.MessageCreatedV1, env); err != nil {
			s.logger.WithFields(logrus.Fields{
				LogFieldMessageID: stored.ID,
				LogFieldEventID:   env.Meta.ID,
			}).WithError(err).Warn("Failed to publish message event")
		}
	}

	s.logger.WithFields(logrus.Fields{
		LogFieldMessageID:  stored.ID,
		LogFieldOrderID:    stored.OrderID,
		LogFieldSenderType: stored.SenderType,
	}).Debug("Message created")

	return stored, nil
}
