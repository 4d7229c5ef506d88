package realtime

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"orderbridge/internal/constants"
	"orderbridge/internal/metrics"
	"orderbridge/internal/models"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/sirupsen/logrus"
)

const (
	EventMessageCreated   = "message.created"
	EventMessageForwarded = "message.forwarded"

	writeTimeout = 5 * time.Second
)

// Event is pushed to every subscriber of an order conversation
type Event struct {
	Type    string          `json:"type"`
	OrderID int64           `json:"orderId"`
	Message *models.Message `json:"message"`
}

type subscriber struct {
	events    chan Event
	closeSlow func()
}

// Hub fans out new chat messages to websocket subscribers per order.
// Subscribers that fall behind by more than the queue size are disconnected.
type Hub struct {
	mu          sync.Mutex
	subscribers map[int64]map[*subscriber]struct{}
	total       int
	queueSize   int
	registry    *metrics.Registry
	logger      *logrus.Logger
}

func NewHub(queueSize int, registry *metrics.Registry, logger *logrus.Logger) *Hub {
	if queueSize <= 0 {
		queueSize = constants.DefaultRealtimeSubscriberQueue
	}
	if registry == nil {
		registry = metrics.GetRegistry()
	}
	return &Hub{
		subscribers: make(map[int64]map[*subscriber]struct{}),
		queueSize:   queueSize,
		registry:    registry,
		logger:      logger,
	}
}

// Broadcast delivers an event to the order's subscribers without blocking
func (h *Hub) Broadcast(eventType string, msg *models.Message) {
	if msg == nil {
		return
	}
	event := Event{Type: eventType, OrderID: msg.OrderID, Message: msg}

	h.mu.Lock()
	defer h.mu.Unlock()

	for s := range h.subscribers[msg.OrderID] {
		select {
		case s.events <- event:
		default:
			go s.closeSlow()
		}
	}
}

// SubscriberCount returns the number of live subscribers for an order
func (h *Hub) SubscriberCount(orderID int64) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers[orderID])
}

func (h *Hub) add(orderID int64, s *subscriber) {
	h.mu.Lock()
	if h.subscribers[orderID] == nil {
		h.subscribers[orderID] = make(map[*subscriber]struct{})
	}
	h.subscribers[orderID][s] = struct{}{}
	h.total++
	total := h.total
	h.mu.Unlock()

	h.registry.SetGauge("realtime_subscribers", float64(total), nil, "Connected websocket subscribers")
}

func (h *Hub) remove(orderID int64, s *subscriber) {
	h.mu.Lock()
	if subs, ok := h.subscribers[orderID]; ok {
		if _, ok := subs[s]; ok {
			delete(subs, s)
			h.total--
		}
		if len(subs) == 0 {
			delete(h.subscribers, orderID)
		}
	}
	total := h.total
	h.mu.Unlock()

	h.registry.SetGauge("realtime_subscribers", float64(total), nil, "Connected websocket subscribers")
}

// ServeOrder upgrades the request and streams the order's new messages until
// the client disconnects or the request context ends. Client frames are ignored.
func (h *Hub) ServeOrder(w http.ResponseWriter, r *http.Request, orderID int64, originPatterns []string) error {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: originPatterns})
	if err != nil {
		return err
	}
	defer conn.CloseNow()

	var once sync.Once
	s := &subscriber{
		events: make(chan Event, h.queueSize),
		closeSlow: func() {
			once.Do(func() {
				conn.Close(websocket.StatusPolicyViolation, "connection too slow to keep up with messages")
			})
		},
	}
	h.add(orderID, s)
	defer h.remove(orderID, s)

	h.logger.WithField("order_id", orderID).Debug("Realtime subscriber connected")

	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case event := <-s.events:
			if err := writeEvent(ctx, conn, event); err != nil {
				return ignoreClosed(err)
			}
		case <-ctx.Done():
			h.logger.WithField("order_id", orderID).Debug("Realtime subscriber disconnected")
			return ignoreClosed(ctx.Err())
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, event Event) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, event)
}

func ignoreClosed(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return nil
	}
	return err
}
