package task

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
)

func newTask(t *testing.T, observer Observer) *Task {
	t.Helper()
	tk, err := New(Options{ContextID: "ctx-1", AgentID: "orders", Observer: observer})
	require.NoError(t, err)
	return tk
}

func TestNewRequiresContextAndAgent(t *testing.T) {
	_, err := New(Options{AgentID: "orders"})
	require.Error(t, err)
	_, err = New(Options{ContextID: "ctx-1"})
	require.Error(t, err)
}

func TestNewNotifiesCreationTransition(t *testing.T) {
	var seen []Transition
	tk := newTask(t, func(tr Transition) { seen = append(seen, tr) })

	require.Equal(t, StatusSubmitted, tk.Status())
	require.Len(t, seen, 1)
	require.Equal(t, StatusSubmitted, seen[0].To)
	require.Equal(t, Status(""), seen[0].From)
	require.Equal(t, tk.ID(), seen[0].TaskID)
}

func TestTransitionGraph(t *testing.T) {
	cases := []struct {
		name string
		path []Status
		ok   bool
	}{
		{"happy path", []Status{StatusWorking, StatusCompleted}, true},
		{"input required resumes", []Status{StatusWorking, StatusInputRequired, StatusWorking, StatusCompleted}, true},
		{"failure", []Status{StatusWorking, StatusFailed}, true},
		{"cancel while submitted", []Status{StatusCanceled}, true},
		{"cancel while working", []Status{StatusWorking, StatusCanceled}, true},
		{"cancel while input required", []Status{StatusWorking, StatusInputRequired, StatusCanceled}, true},
		{"skip working", []Status{StatusCompleted}, false},
		{"reopen completed", []Status{StatusWorking, StatusCompleted, StatusWorking}, false},
		{"reopen failed", []Status{StatusWorking, StatusFailed, StatusWorking}, false},
		{"cancel after cancel", []Status{StatusCanceled, StatusCanceled}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tk := newTask(t, nil)
			var err error
			for _, next := range tc.path {
				err = tk.Transition(next, nil)
				if err != nil {
					break
				}
			}
			if tc.ok {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, ErrInvalidTransition)
			}
		})
	}
}

func TestTransitionRejectsUnknownStatus(t *testing.T) {
	tk := newTask(t, nil)
	require.Error(t, tk.Transition(Status("paused"), nil))
}

func TestAppendRejectsEmptyAndTerminal(t *testing.T) {
	tk := newTask(t, nil)
	require.Error(t, tk.Append(Message{}))

	require.NoError(t, tk.Append(TextMessage("user", "please fix delivery DEL-1")))
	require.NoError(t, tk.Transition(StatusWorking, nil))
	require.NoError(t, tk.Transition(StatusCompleted, nil))
	err := tk.Append(TextMessage("assistant", "late"))
	require.Error(t, err)
	require.Len(t, tk.History(), 1)
}

func TestObserverSeesTransitionsInOrder(t *testing.T) {
	var seen []Status
	tk := newTask(t, func(tr Transition) { seen = append(seen, tr.To) })
	msg := TextMessage("assistant", "done")
	require.NoError(t, tk.Transition(StatusWorking, nil))
	require.NoError(t, tk.Transition(StatusCompleted, &msg))
	require.Equal(t, []Status{StatusSubmitted, StatusWorking, StatusCompleted}, seen)
	require.Equal(t, "done", tk.StatusMessage().Text())
}

func TestSnapshotCopiesHistory(t *testing.T) {
	tk := newTask(t, nil)
	require.NoError(t, tk.Append(TextMessage("user", "hello")))
	snap := tk.Snapshot()
	snap.History[0].Parts[0].Text = "mutated"
	require.Equal(t, "hello", tk.History()[0].Text())
}

// Terminal states never accept an outgoing transition, whatever the target.
func TestTerminalStatesRejectAllTransitionsProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	all := []Status{StatusSubmitted, StatusWorking, StatusInputRequired, StatusCompleted, StatusFailed, StatusCanceled}
	terminals := []Status{StatusCompleted, StatusFailed, StatusCanceled}

	properties.Property("terminal states have no outgoing edges", prop.ForAll(
		func(fromIdx, toIdx int) bool {
			from := terminals[fromIdx%len(terminals)]
			to := all[toIdx%len(all)]
			return !from.CanTransition(to)
		},
		gen.IntRange(0, len(terminals)-1),
		gen.IntRange(0, len(all)-1),
	))
	properties.TestingRun(t)
}

// History length never decreases across any sequence of appends and
// transitions.
func TestHistoryMonotonicProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	all := []Status{StatusWorking, StatusInputRequired, StatusCompleted, StatusFailed, StatusCanceled}

	properties.Property("history is append-only", prop.ForAll(
		func(ops []int) bool {
			tk, err := New(Options{ContextID: "ctx-p", AgentID: "a"})
			if err != nil {
				return false
			}
			prev := 0
			for _, op := range ops {
				if op%2 == 0 {
					_ = tk.Append(TextMessage("user", "m"))
				} else {
					_ = tk.Transition(all[op%len(all)], nil)
				}
				n := len(tk.History())
				if n < prev {
					return false
				}
				prev = n
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 9)),
	))
	properties.TestingRun(t)
}
