package task

// Status is the lifecycle state of a delegated task.
type Status string

// Task lifecycle states. Transitions move forward only:
// submitted -> working -> {input-required, completed, failed};
// input-required -> working once the missing input is supplied; any
// non-terminal state may move to canceled. Completed, failed, and canceled
// are terminal.
const (
	StatusSubmitted     Status = "submitted"
	StatusWorking       Status = "working"
	StatusInputRequired Status = "input-required"
	StatusCompleted     Status = "completed"
	StatusFailed        Status = "failed"
	StatusCanceled      Status = "canceled"
)

// transitions is the directed state graph. Absence of a key or target means
// the transition is rejected.
var transitions = map[Status][]Status{
	StatusSubmitted:     {StatusWorking, StatusCanceled},
	StatusWorking:       {StatusInputRequired, StatusCompleted, StatusFailed, StatusCanceled},
	StatusInputRequired: {StatusWorking, StatusCanceled},
}

// Terminal reports whether the status permits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCanceled
}

// Valid reports whether the status is one of the defined lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusSubmitted, StatusWorking, StatusInputRequired, StatusCompleted, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// CanTransition reports whether the graph permits moving from s to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
