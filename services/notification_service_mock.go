package services

import (
	"context"
	"errors"
	"sync"

	"github.com/girish1208dev/print-service/models"
)

// MockDispatcher is a mock implementation of Dispatcher for testing
type MockDispatcher struct {
	mu       sync.Mutex
	fail     bool
	notified []models.Order
}

// NewMockDispatcher creates a mock dispatcher. When fail is set every Notify returns an error.
func NewMockDispatcher(fail bool) *MockDispatcher {
	return &MockDispatcher{fail: fail}
}

func (m *MockDispatcher) Notify(_ context.Context, order models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notified = append(m.notified, order)
	if m.fail {
		return errors.New("mock mailer unavailable")
	}
	return nil
}

// Notified returns the orders passed to Notify
func (m *MockDispatcher) Notified() []models.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Order(nil), m.notified...)
}
