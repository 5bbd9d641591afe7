// Package dispatch moves task requests between a supervisor and specialist
// agents. The Local dispatcher runs agents in-process; the HTTP dispatcher
// speaks the same JSON-RPC protocol across process boundaries, resolving
// endpoints through the agent directory. Either way the supervisor only sees
// the Dispatcher interface.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/parcelops/resolve/runtime/task"
)

// ErrUnknownAgent is returned when a task is dispatched to an agent that has
// no published card or local registration.
var ErrUnknownAgent = errors.New("unknown agent")

type (
	// TaskRequest carries one delegated unit of work to an agent.
	TaskRequest struct {
		// TaskID identifies the task. Empty lets the receiver assign one.
		TaskID string `json:"taskId,omitempty"`
		// ContextID groups tasks belonging to one end-to-end resolution.
		// Required.
		ContextID string `json:"contextId"`
		// Message is the initiating task message. Required.
		Message task.Message `json:"message"`
		// TenantID scopes all tool side effects performed for this task. It
		// comes from the trusted caller, never from model output.
		TenantID string `json:"tenantId,omitempty"`
	}

	// Dispatcher sends a task to a named agent and blocks until the task
	// reaches a terminal state, returning its final snapshot. Implementations
	// must be safe for concurrent use: the supervisor may dispatch several
	// tasks at once.
	Dispatcher interface {
		SendTask(ctx context.Context, agentID string, req TaskRequest) (task.Snapshot, error)
	}

	// TransportError reports a failure of the delegation channel itself, as
	// opposed to a failure of the delegated work: the target agent is
	// unknown, unreachable, or the wire exchange broke.
	TransportError struct {
		// Op names the operation that failed (for example "tasks/send").
		Op string
		// Agent is the target agent identifier.
		Agent string
		// Err is the underlying failure.
		Err error
	}
)

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("dispatch %s to %s: %v", e.Op, e.Agent, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error { return e.Err }
