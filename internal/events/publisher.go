package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"orderbridge/internal/constants"
	"orderbridge/internal/models"
	"orderbridge/internal/retry"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// ErrPublishNacked is returned when the broker refuses a published event
var ErrPublishNacked = errors.New("event publish was nacked by broker")

type Publisher interface {
	Publish(ctx context.Context, key string, env Envelope) error
	Close() error
}

// AMQPPublisher publishes JSON envelopes to a durable topic exchange and
// waits for the broker confirm of each one.
type AMQPPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	logger   *logrus.Logger
}

// NewAMQPPublisher dials the broker with backoff, declares the exchange and
// puts the publishing channel in confirm mode.
func NewAMQPPublisher(ctx context.Context, cfg models.EventsConfig, retryCfg models.RetryConfig, logger *logrus.Logger) (*AMQPPublisher, error) {
	if cfg.AMQPURL == "" {
		return nil, fmt.Errorf("amqp url is required")
	}
	exchange := cfg.Exchange
	if exchange == "" {
		exchange = constants.DefaultEventsExchange
	}

	policy := retry.PolicyFromConfig(retryCfg, constants.DefaultEventsDialAttempts)
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		logger.WithFields(logrus.Fields{
			"attempt":  attempt,
			"delay_ms": delay.Milliseconds(),
		}).WithError(err).Warn("Retrying event broker connection")
	}

	var conn *amqp.Connection
	err := policy.Do(ctx, func(ctx context.Context) error {
		var err error
		conn, err = amqp.Dial(cfg.AMQPURL)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to event broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	if err := ch.Confirm(false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	logger.WithField("exchange", exchange).Info("Connected to event broker")

	return &AMQPPublisher{
		conn:     conn,
		ch:       ch,
		exchange: exchange,
		logger:   logger,
	}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, key string, env Envelope) error {
	if env.Meta.ID == "" {
		return fmt.Errorf("envelope meta ID is required")
	}
	if env.Meta.Time.IsZero() {
		env.Meta.Time = time.Now().UTC()
	}
	correlationID := env.Meta.ID
	if env.Meta.CorrelationID != nil {
		correlationID = *env.Meta.CorrelationID
	}

	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	p.mu.Lock()
	confirm, err := p.ch.PublishWithDeferredConfirmWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     env.Meta.ID,
		CorrelationId: correlationID,
		Type:          env.Meta.Type,
		Timestamp:     env.Meta.Time,
		AppId:         producer,
		Body:          body,
	})
	p.mu.Unlock()
	if err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("await confirm for %s: %w", key, err)
	}
	if !acked {
		return ErrPublishNacked
	}

	p.logger.WithFields(logrus.Fields{
		"key":      key,
		"exchange": p.exchange,
		"event_id": env.Meta.ID,
	}).Debug("Published event")
	return nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		p.logger.WithError(err).Warn("Failed to close event channel")
	}
	return p.conn.Close()
}

// NoopPublisher drops events. Used when no broker is configured.
type NoopPublisher struct {
	logger *logrus.Logger
}

func NewNoopPublisher(logger *logrus.Logger) *NoopPublisher {
	return &NoopPublisher{logger: logger}
}

func (p *NoopPublisher) Publish(ctx context.Context, key string, env Envelope) error {
	p.logger.WithField("key", key).Debug("Event broker disabled, skipped publish")
	return nil
}

func (p *NoopPublisher) Close() error {
	return nil
}

// NewPublisher returns an AMQP publisher when a broker URL is configured and
// a NoopPublisher otherwise.
func NewPublisher(ctx context.Context, cfg models.EventsConfig, retryCfg models.RetryConfig, logger *logrus.Logger) (Publisher, error) {
	if cfg.AMQPURL == "" {
		return NewNoopPublisher(logger), nil
	}
	return NewAMQPPublisher(ctx, cfg, retryCfg, logger)
}
