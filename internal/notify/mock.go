package notify

import (
	"context"
	"sync"
)

// MockDispatcher records dispatched events for assertions in tests.
type MockDispatcher struct {
	mu     sync.Mutex
	events []BookingEvent

	// FailNext makes the next Dispatch call return this error once.
	FailNext error
}

// NewMockDispatcher creates a recording dispatcher.
func NewMockDispatcher() *MockDispatcher {
	return &MockDispatcher{}
}

// Dispatch records the event.
func (m *MockDispatcher) Dispatch(_ context.Context, evt BookingEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.FailNext; err != nil {
		m.FailNext = nil
		return err
	}
	m.events = append(m.events, evt)
	return nil
}

// Events returns a copy of everything dispatched so far.
func (m *MockDispatcher) Events() []BookingEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]BookingEvent, len(m.events))
	copy(out, m.events)
	return out
}

// NopDispatcher drops every event. Used when no webhook is configured.
type NopDispatcher struct{}

func (NopDispatcher) Dispatch(context.Context, BookingEvent) error {
	return nil
}
