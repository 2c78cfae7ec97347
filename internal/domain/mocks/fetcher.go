package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/FrancoRivero2025/quote-average/internal/domain"
)

// MockFetcher returns scripted quotes or errors and counts calls.
type MockFetcher struct {
	mu         sync.Mutex
	response   domain.Quotes
	err        error
	delay      time.Duration
	panicOnUse bool
	callCount  int
	lastParams domain.Params
}

func NewMockFetcher() *MockFetcher {
	return &MockFetcher{}
}

func (m *MockFetcher) SetResponse(q domain.Quotes) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.response = q
	m.err = nil
}

func (m *MockFetcher) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MockFetcher) SetDelay(delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = delay
}

func (m *MockFetcher) SetPanic(shouldPanic bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panicOnUse = shouldPanic
}

func (m *MockFetcher) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

func (m *MockFetcher) LastParams() domain.Params {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastParams
}

func (m *MockFetcher) Fetch(ctx context.Context, params domain.Params) (domain.Quotes, error) {
	m.mu.Lock()
	m.callCount++
	m.lastParams = params
	delay, resp, err, shouldPanic := m.delay, m.response, m.err, m.panicOnUse
	m.mu.Unlock()

	if shouldPanic {
		panic("mock panic")
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}
