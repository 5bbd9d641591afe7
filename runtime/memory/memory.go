// Package memory defines the conversation history dependency of the
// reasoning loops. The orchestration core depends only on this interface,
// not on the backing store.
package memory

import (
	"context"

	"github.com/parcelops/resolve/runtime/task"
)

// Store persists conversation history per session. Session identifiers are
// caller-provided; the runtime uses the resolution context ID.
type Store interface {
	// LoadHistory returns the ordered message history for the session. A
	// missing session yields an empty history, not an error.
	LoadHistory(ctx context.Context, sessionID string) ([]task.Message, error)
	// AppendHistory appends messages to the session history in order.
	AppendHistory(ctx context.Context, sessionID string, msgs ...task.Message) error
}
