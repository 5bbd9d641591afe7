package dispatch

import (
	"context"
	"errors"
	"sync"

	"github.com/parcelops/resolve/runtime/agent"
	"github.com/parcelops/resolve/runtime/card"
	"github.com/parcelops/resolve/runtime/events"
	"github.com/parcelops/resolve/runtime/task"
)

type (
	// Local dispatches tasks to agents hosted in the same process. Each
	// registered agent is published to the directory so supervisors discover
	// it the same way they would discover a remote one.
	Local struct {
		mu        sync.RWMutex
		agents    map[string]*agent.Agent
		tasks     map[string]*task.Task
		directory *card.Directory
		publisher *events.Publisher
	}
)

// NewLocal creates an in-process dispatcher. The directory is required; the
// publisher may be nil to disable event emission.
func NewLocal(directory *card.Directory, publisher *events.Publisher) (*Local, error) {
	if directory == nil {
		return nil, errors.New("agent directory is required")
	}
	return &Local{
		agents:    make(map[string]*agent.Agent),
		tasks:     make(map[string]*task.Task),
		directory: directory,
		publisher: publisher,
	}, nil
}

// Register hosts the agent and publishes its card under the given endpoint.
func (l *Local) Register(a *agent.Agent, endpoint string) error {
	if a == nil {
		return errors.New("agent is required")
	}
	if err := l.directory.Publish(a.Card(endpoint)); err != nil {
		return err
	}
	l.mu.Lock()
	l.agents[a.ID()] = a
	l.mu.Unlock()
	return nil
}

// SendTask creates a task for the named agent, runs the agent's reasoning
// loop to completion, and returns the task's terminal snapshot. A failed task
// is not a transport failure: the snapshot carries the failed status and the
// error describes the cause. Unknown agents yield a TransportError matching
// ErrUnknownAgent.
func (l *Local) SendTask(ctx context.Context, agentID string, req TaskRequest) (task.Snapshot, error) {
	l.mu.RLock()
	a, ok := l.agents[agentID]
	l.mu.RUnlock()
	if !ok {
		return task.Snapshot{}, &TransportError{Op: "tasks/send", Agent: agentID, Err: ErrUnknownAgent}
	}

	t, err := task.New(task.Options{
		ID:        req.TaskID,
		ContextID: req.ContextID,
		AgentID:   agentID,
		Observer:  l.publisher.Observer(ctx),
	})
	if err != nil {
		return task.Snapshot{}, &TransportError{Op: "tasks/send", Agent: agentID, Err: err}
	}
	if err := t.Append(req.Message); err != nil {
		return task.Snapshot{}, &TransportError{Op: "tasks/send", Agent: agentID, Err: err}
	}
	l.mu.Lock()
	l.tasks[t.ID()] = t
	l.mu.Unlock()

	_, err = a.Handle(ctx, t, req.TenantID)
	return t.Snapshot(), err
}

// GetTask returns the current snapshot of a previously dispatched task.
func (l *Local) GetTask(taskID string) (task.Snapshot, bool) {
	l.mu.RLock()
	t, ok := l.tasks[taskID]
	l.mu.RUnlock()
	if !ok {
		return task.Snapshot{}, false
	}
	return t.Snapshot(), true
}

// CancelTask requests cooperative cancellation of a running task. The agent
// observes the canceled status at its next iteration boundary; in-flight tool
// calls complete first. Canceling a task already in a terminal state returns
// task.ErrInvalidTransition.
func (l *Local) CancelTask(taskID string) error {
	l.mu.RLock()
	t, ok := l.tasks[taskID]
	l.mu.RUnlock()
	if !ok {
		return &TransportError{Op: "tasks/cancel", Agent: "", Err: errors.New("unknown task " + taskID)}
	}
	return t.Transition(task.StatusCanceled, nil)
}
