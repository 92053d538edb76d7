package services

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"agrolink/api/internal/cache"
	"agrolink/api/internal/gateway"
)

type broadcastCall struct {
	Room  string
	Event string
	Data  interface{}
}

type recordingBroadcaster struct {
	mu    sync.Mutex
	calls []broadcastCall
}

func (b *recordingBroadcaster) Broadcast(_ context.Context, room, event string, data interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, broadcastCall{Room: room, Event: event, Data: data})
	return nil
}

func (b *recordingBroadcaster) eventsTo(room string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var events []string
	for _, c := range b.calls {
		if c.Room == room {
			events = append(events, c.Event)
		}
	}
	return events
}

type sentMail struct {
	To         string
	TemplateID string
	Data       map[string]interface{}
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *recordingMailer) SendTemplate(_ context.Context, to, templateID string, data map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{To: to, TemplateID: templateID, Data: data})
	return nil
}

func (m *recordingMailer) last(templateID string) (sentMail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].TemplateID == templateID {
			return m.sent[i], true
		}
	}
	return sentMail{}, false
}

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) CreatePaymentRequest(ctx context.Context, in gateway.PaymentRequestInput) (*gateway.PaymentRequest, error) {
	args := m.Called(ctx, in)
	if req := args.Get(0); req != nil {
		return req.(*gateway.PaymentRequest), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockGateway) GetPaymentRequest(ctx context.Context, requestID string) (*gateway.PaymentRequest, error) {
	args := m.Called(ctx, requestID)
	if req := args.Get(0); req != nil {
		return req.(*gateway.PaymentRequest), args.Error(1)
	}
	return nil, args.Error(1)
}

type memoryCodeStore struct {
	mu    sync.Mutex
	codes map[string]string
}

func newMemoryCodeStore() *memoryCodeStore {
	return &memoryCodeStore{codes: map[string]string{}}
}

func (s *memoryCodeStore) Save(_ context.Context, key, code string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[key] = code
	return nil
}

func (s *memoryCodeStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, ok := s.codes[key]
	if !ok {
		return "", cache.ErrCodeNotFound
	}
	return code, nil
}

func (s *memoryCodeStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.codes, key)
	return nil
}
