package service

import (
	"context"

	"orderbridge/internal/events"
	"orderbridge/internal/models"

	"github.com/sirupsen/logrus"
)

// OrderStatusStore updates an order's lifecycle status
type OrderStatusStore interface {
	UpdateOrderStatus(ctx context.Context, id int64, status models.OrderStatus) (*models.Order, error)
}

// OrderService applies status changes and emits order.status_changed.v1
type OrderService struct {
	store     OrderStatusStore
	publisher EventPublisher
	logger    *logrus.Logger
}

func NewOrderService(store OrderStatusStore, publisher EventPublisher, logger *logrus.Logger) *OrderService {
	return &OrderService{store: store, publisher: publisher, logger: logger}
}

func (s *OrderService) UpdateStatus(ctx context.Context, id int64, status models.OrderStatus) (*models.Order, error) {
	order, err := s.store.UpdateOrderStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}

	if s.publisher != nil {
		env := events.NewEnvelope(ctx, events.OrderStatusV1, events.OrderStatusChanged{
			OrderID: order.ID,
			Code:    order.Code,
			Status:  string(order.Status),
		})
		if err := s.publisher.Publish(ctx, events.OrderStatusV1, env); err != nil {
			s.logger.WithFields(logrus.Fields{
				LogFieldOrderID: order.ID,
				LogFieldEventID: env.Meta.ID,
			}).WithError(err).Warn("Failed to publish order status event")
		}
	}

	s.logger.WithFields(logrus.Fields{
		LogFieldOrderID: order.ID,
		"status":        order.Status,
	}).Info("Order status updated")

	return order, nil
}
