// Package task implements the state machine for one delegated unit of work
// between a supervisor and a specialist agent. A task tracks status
// transitions and an append-only message history; every successful transition
// is reported to an observer, which is the only way state changes become
// externally observable.
package task

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidTransition is the sentinel matched by errors.Is for rejected
// status transitions. The concrete error is *InvalidTransitionError.
var ErrInvalidTransition = errors.New("invalid task transition")

type (
	// InvalidTransitionError reports an attempted status change that violates
	// the state graph. This is a programming-level invariant violation: it is
	// fatal to the affected task only.
	InvalidTransitionError struct {
		// TaskID identifies the task whose transition was rejected.
		TaskID string
		// From is the status the task was in.
		From Status
		// To is the requested status.
		To Status
	}

	// Transition describes one successful status change, in the form the
	// event publisher consumes.
	Transition struct {
		// TaskID identifies the task that transitioned.
		TaskID string
		// ContextID groups tasks belonging to one end-to-end resolution.
		ContextID string
		// AgentID is the agent the task is delegated to.
		AgentID string
		// From is the prior status. Empty for the creation transition.
		From Status
		// To is the new status.
		To Status
		// StatusMessage is the optional human-readable status annotation.
		StatusMessage *Message
		// Timestamp records when the transition occurred (UTC).
		Timestamp time.Time
	}

	// Observer receives successful transitions. Implementations must not
	// block: the task holds no lock during notification but the reasoning
	// loop waits on the call.
	Observer func(Transition)

	// Options configures a new task.
	Options struct {
		// ID is the unique task identifier. Defaults to a random UUID.
		ID string
		// ContextID groups tasks belonging to one resolution. Required.
		ContextID string
		// AgentID is the target agent identifier. Required.
		AgentID string
		// Observer is notified of every successful transition, including the
		// creation transition to "submitted". Optional.
		Observer Observer
	}

	// Task is the unit of delegated work. It is safe for concurrent use: the
	// processing agent holds exclusive write access by convention, while
	// cancellation and status reads may come from other goroutines.
	Task struct {
		mu            sync.Mutex
		id            string
		contextID     string
		agentID       string
		status        Status
		history       []Message
		statusMessage *Message
		observer      Observer
	}

	// Snapshot is the serializable projection of a task, returned over the
	// request/response channel once the task reaches a terminal state.
	Snapshot struct {
		ID            string    `json:"id"`
		ContextID     string    `json:"contextId"`
		AgentID       string    `json:"agentId"`
		Status        Status    `json:"status"`
		StatusMessage *Message  `json:"statusMessage,omitempty"`
		History       []Message `json:"history,omitempty"`
	}
)

// Error implements the error interface.
func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("task %s: invalid transition %s -> %s", e.TaskID, e.From, e.To)
}

// Is matches ErrInvalidTransition so callers can use errors.Is.
func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// New creates a task in the "submitted" state and notifies the observer of
// the creation transition.
func New(opts Options) (*Task, error) {
	if opts.ContextID == "" {
		return nil, errors.New("context id is required")
	}
	if opts.AgentID == "" {
		return nil, errors.New("agent id is required")
	}
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	t := &Task{
		id:        id,
		contextID: opts.ContextID,
		agentID:   opts.AgentID,
		status:    StatusSubmitted,
		observer:  opts.Observer,
	}
	t.notify(Transition{
		TaskID:    id,
		ContextID: opts.ContextID,
		AgentID:   opts.AgentID,
		To:        StatusSubmitted,
		Timestamp: time.Now().UTC(),
	})
	return t, nil
}

// ID returns the unique task identifier.
func (t *Task) ID() string { return t.id }

// ContextID returns the resolution context the task belongs to.
func (t *Task) ContextID() string { return t.contextID }

// AgentID returns the agent the task is delegated to.
func (t *Task) AgentID() string { return t.agentID }

// Status returns the current lifecycle status.
func (t *Task) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Canceled reports whether the task has been externally canceled. Reasoning
// loops check this at the top of each iteration and stop invoking further
// tools when it returns true; in-flight tool calls are allowed to complete.
func (t *Task) Canceled() bool {
	return t.Status() == StatusCanceled
}

// StatusMessage returns the latest human-readable status annotation, or nil.
func (t *Task) StatusMessage() *Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.statusMessage
}

// History returns a copy of the ordered, append-only message history.
func (t *Task) History() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Message, len(t.history))
	copy(out, t.history)
	return out
}

// Append adds a message to the task history. The history never shrinks and
// cannot grow after the task reaches a terminal state. Messages must carry at
// least one part.
func (t *Task) Append(msg Message) error {
	if len(msg.Parts) == 0 {
		return errors.New("message parts must be non-empty")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.Terminal() {
		return fmt.Errorf("task %s: history is frozen in terminal state %s", t.id, t.status)
	}
	t.history = append(t.history, msg)
	return nil
}

// Transition moves the task to a new status, recording the optional status
// message and notifying the observer. Returns *InvalidTransitionError
// (matching ErrInvalidTransition) when the state graph does not permit the
// change, including any transition out of a terminal state.
func (t *Task) Transition(to Status, statusMessage *Message) error {
	if !to.Valid() {
		return fmt.Errorf("unknown task status %q", to)
	}
	t.mu.Lock()
	from := t.status
	if !from.CanTransition(to) {
		t.mu.Unlock()
		return &InvalidTransitionError{TaskID: t.id, From: from, To: to}
	}
	t.status = to
	if statusMessage != nil {
		t.statusMessage = statusMessage
	}
	t.mu.Unlock()

	t.notify(Transition{
		TaskID:        t.id,
		ContextID:     t.contextID,
		AgentID:       t.agentID,
		From:          from,
		To:            to,
		StatusMessage: statusMessage,
		Timestamp:     time.Now().UTC(),
	})
	return nil
}

// Snapshot returns the serializable projection of the task.
func (t *Task) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	history := make([]Message, len(t.history))
	copy(history, t.history)
	return Snapshot{
		ID:            t.id,
		ContextID:     t.contextID,
		AgentID:       t.agentID,
		Status:        t.status,
		StatusMessage: t.statusMessage,
		History:       history,
	}
}

func (t *Task) notify(tr Transition) {
	if t.observer != nil {
		t.observer(tr)
	}
}
