// Package events converts task state transitions into conversation events
// broadcast on a per-context channel so observers can render a live sequence
// of agent activity. Publication is fire-and-forget: a sink failure is logged
// and dropped, never surfaced to the orchestration loop, so observability can
// never become a correctness dependency of the control flow.
package events

import (
	"context"
	"time"

	"github.com/parcelops/resolve/runtime/task"
	"github.com/parcelops/resolve/runtime/telemetry"
)

type (
	// ConversationEvent is the externally observable projection of a task
	// transition. Events are immutable once created and are owned by the
	// channel for its retention window; the orchestration core does not
	// persist them beyond the emission act.
	ConversationEvent struct {
		// Kind identifies the event family. Always "task".
		Kind string `json:"kind"`
		// TaskID is the task that transitioned.
		TaskID string `json:"taskId"`
		// ContextID selects the channel topic the event is broadcast on.
		ContextID string `json:"contextId"`
		// AgentID is the agent processing the task.
		AgentID string `json:"agentId"`
		// Status is the new task status.
		Status task.Status `json:"status"`
		// StatusMessage is the optional human-readable status annotation.
		StatusMessage *task.Message `json:"statusMessage,omitempty"`
		// Timestamp records when the transition occurred (UTC).
		Timestamp time.Time `json:"timestamp"`
	}

	// Sink delivers conversation events to a transport (Pulse stream,
	// in-memory buffer). Implementations must be safe for concurrent Send
	// calls: multiple tasks may transition at once.
	Sink interface {
		// Send publishes an event to the per-context topic.
		Send(ctx context.Context, event ConversationEvent) error
		// Close releases resources owned by the sink.
		Close(ctx context.Context) error
	}

	// Publisher turns task transitions into conversation events and forwards
	// them to a sink. Emit never returns an error: publication failures are
	// logged and dropped.
	Publisher struct {
		sink   Sink
		logger telemetry.Logger
	}
)

// NewPublisher constructs a Publisher over the given sink. A nil logger
// defaults to the no-op logger.
func NewPublisher(sink Sink, logger telemetry.Logger) *Publisher {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Publisher{sink: sink, logger: logger}
}

// Emit converts the transition into a ConversationEvent and sends it on the
// context's topic. Fire-and-forget: failures are logged and dropped, and a
// nil sink makes Emit a no-op.
func (p *Publisher) Emit(ctx context.Context, tr task.Transition) {
	if p == nil || p.sink == nil {
		return
	}
	event := ConversationEvent{
		Kind:          "task",
		TaskID:        tr.TaskID,
		ContextID:     tr.ContextID,
		AgentID:       tr.AgentID,
		Status:        tr.To,
		StatusMessage: tr.StatusMessage,
		Timestamp:     tr.Timestamp,
	}
	if err := p.sink.Send(ctx, event); err != nil {
		p.logger.Warn(ctx, "dropping conversation event",
			"task_id", tr.TaskID, "context_id", tr.ContextID, "status", string(tr.To), "err", err.Error())
	}
}

// Observer adapts the publisher to the task.Observer signature so tasks can
// report transitions directly.
func (p *Publisher) Observer(ctx context.Context) task.Observer {
	return func(tr task.Transition) {
		p.Emit(ctx, tr)
	}
}
