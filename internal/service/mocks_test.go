package service

import (
	"context"
	"io"
	"net/url"
	"sync"
	"time"

	"orderbridge/internal/events"
	"orderbridge/internal/models"
	"orderbridge/pkg/media"
	"orderbridge/pkg/whatsapp/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) GetMediaDetails(ctx context.Context, mediaID string) (*models.MediaDetails, error) {
	args := m.Called(ctx, mediaID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MediaDetails), args.Error(1)
}

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) Fetch(ctx context.Context, rawURL string, timeout time.Duration) (*media.FetchResult, error) {
	args := m.Called(ctx, rawURL, timeout)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*media.FetchResult), args.Error(1)
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Save(ctx context.Context, r io.Reader, mimeType string, size int64) (*models.StoredMedia, error) {
	args := m.Called(ctx, r, mimeType, size)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.StoredMedia), args.Error(1)
}

type allowAll struct{}

func (allowAll) IsAllowedMediaHost(u *url.URL) bool { return u != nil && u.Host != "" }

type mockMessageStore struct {
	mock.Mock
}

func (m *mockMessageStore) GetMessage(ctx context.Context, id int64) (*models.Message, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *mockMessageStore) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *mockMessageStore) InsertMessage(ctx context.Context, msg *models.Message) (*models.Message, error) {
	args := m.Called(ctx, msg)
	if fn, ok := args.Get(0).(func(context.Context, *models.Message) *models.Message); ok {
		return fn(ctx, msg), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

type mockSender struct {
	mock.Mock
}

func (m *mockSender) SendText(ctx context.Context, to, text string) (*types.SendResponse, error) {
	args := m.Called(ctx, to, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.SendResponse), args.Error(1)
}

type mockPermanence struct {
	mock.Mock
}

func (m *mockPermanence) MakePermanent(ctx context.Context, mediaID string) (*models.PermanenceResult, error) {
	args := m.Called(ctx, mediaID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PermanenceResult), args.Error(1)
}

type mockOrderStatusStore struct {
	mock.Mock
}

func (m *mockOrderStatusStore) UpdateOrderStatus(ctx context.Context, id int64, status models.OrderStatus) (*models.Order, error) {
	args := m.Called(ctx, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

// recordingPublisher keeps published envelopes and can be told to fail
type recordingPublisher struct {
	mu        sync.Mutex
	envelopes []events.Envelope
	err       error
}

func (p *recordingPublisher) Publish(ctx context.Context, key string, env events.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.envelopes = append(p.envelopes, env)
	return p.err
}

func (p *recordingPublisher) published() []events.Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Envelope(nil), p.envelopes...)
}

type recordingHub struct {
	mu       sync.Mutex
	messages []*models.Message
	types    []string
}

func (h *recordingHub) Broadcast(eventType string, msg *models.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.types = append(h.types, eventType)
	h.messages = append(h.messages, msg)
}
