package payment

import (
	"context"
	"sync"
	"time"
)

// MockProvider completes instantly. SendErr and AwaitErr script failures.
type MockProvider struct {
	SendErr  error
	AwaitErr error

	mu   sync.Mutex
	sent []Request
}

func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) SendConfirmation(_ context.Context, req Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return "", m.SendErr
	}
	m.sent = append(m.sent, req)
	return "MOCK-" + req.Reference, nil
}

func (m *MockProvider) AwaitPayment(_ context.Context, req Request) (Result, error) {
	if m.AwaitErr != nil {
		return Result{}, m.AwaitErr
	}
	return Result{TransactionID: req.TransactionID, PaidAt: time.Now().UTC()}, nil
}

func (m *MockProvider) Sent() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.sent...)
}
