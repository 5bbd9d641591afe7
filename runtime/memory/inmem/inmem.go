// Package inmem provides an in-memory memory.Store for testing and local
// development. Data is lost when the process exits.
package inmem

import (
	"context"
	"sync"

	"github.com/parcelops/resolve/runtime/task"
)

// Store implements memory.Store using an in-process map keyed by session ID.
// It is thread-safe; all operations defensively copy data to prevent external
// mutation.
type Store struct {
	mu       sync.RWMutex
	sessions map[string][]task.Message
}

// New returns a new in-memory store with no history.
func New() *Store {
	return &Store{sessions: make(map[string][]task.Message)}
}

// LoadHistory returns a copy of the session history. A missing session yields
// an empty history.
func (s *Store) LoadHistory(_ context.Context, sessionID string) ([]task.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.sessions[sessionID]
	out := make([]task.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// AppendHistory appends the messages to the session history in order.
func (s *Store) AppendHistory(_ context.Context, sessionID string, msgs ...task.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	copied := make([]task.Message, len(msgs))
	copy(copied, msgs)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = append(s.sessions[sessionID], copied...)
	return nil
}

// Reset clears all stored history. Primarily useful in tests.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string][]task.Message)
}
