package mocks

import (
	"context"
	"sync"

	"github.com/FrancoRivero2025/quote-average/internal/domain"
)

type MockPublisher struct {
	data  map[string]domain.QuoteSet
	err   error
	calls int
	mutex sync.RWMutex
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		data: make(map[string]domain.QuoteSet),
	}
}

func (m *MockPublisher) Publish(ctx context.Context, qs domain.QuoteSet) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.calls++
	if m.err != nil {
		return m.err
	}
	m.data[qs.Exchange] = qs
	return nil
}

func (m *MockPublisher) SetError(err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.err = err
}

func (m *MockPublisher) Get(exchange string) (domain.QuoteSet, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	qs, ok := m.data[exchange]
	return qs, ok
}

func (m *MockPublisher) Calls() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.calls
}

func (m *MockPublisher) GetAll() map[string]domain.QuoteSet {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	out := make(map[string]domain.QuoteSet, len(m.data))
	for k, v := range m.data {
		out[k] = v
	}
	return out
}
