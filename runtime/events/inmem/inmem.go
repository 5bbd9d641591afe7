// Package inmem provides an in-memory events.Sink for tests and local
// development. Events are grouped per context topic and retained in emission
// order.
package inmem

import (
	"context"
	"sync"

	"github.com/parcelops/resolve/runtime/events"
)

// Sink buffers conversation events in process memory, keyed by context ID.
// It is safe for concurrent use.
type Sink struct {
	mu     sync.Mutex
	topics map[string][]events.ConversationEvent
	closed bool
}

// New returns an empty in-memory sink.
func New() *Sink {
	return &Sink{topics: make(map[string][]events.ConversationEvent)}
}

// Send appends the event to its context topic.
func (s *Sink) Send(_ context.Context, event events.ConversationEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return context.Canceled
	}
	s.topics[event.ContextID] = append(s.topics[event.ContextID], event)
	return nil
}

// Close marks the sink closed. Subsequent Send calls fail.
func (s *Sink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Topic returns a copy of the events published for the given context, in
// emission order.
func (s *Sink) Topic(contextID string) []events.ConversationEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	evs := s.topics[contextID]
	out := make([]events.ConversationEvent, len(evs))
	copy(out, evs)
	return out
}
