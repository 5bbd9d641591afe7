package inmem

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/parcelops/resolve/runtime/task"
)

func TestLoadMissingSessionIsEmpty(t *testing.T) {
	s := New()
	msgs, err := s.LoadHistory(context.Background(), "ctx-1")
	require.NoError(t, err)
	require.Empty(t, msgs)
}

func TestAppendAndLoadPreservesOrder(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.AppendHistory(ctx, "ctx-1",
		task.TextMessage("user", "where is my package?"),
		task.TextMessage("assistant", "it shipped yesterday"),
	))
	require.NoError(t, s.AppendHistory(ctx, "ctx-1", task.TextMessage("user", "thanks")))

	msgs, err := s.LoadHistory(ctx, "ctx-1")
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	require.Equal(t, "where is my package?", msgs[0].Text())
	require.Equal(t, "thanks", msgs[2].Text())
}

func TestSessionsAreIndependent(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.AppendHistory(ctx, "ctx-1", task.TextMessage("user", "a")))
	require.NoError(t, s.AppendHistory(ctx, "ctx-2", task.TextMessage("user", "b")))

	msgs, err := s.LoadHistory(ctx, "ctx-1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, "a", msgs[0].Text())
}

func TestLoadReturnsCopy(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.AppendHistory(ctx, "ctx-1", task.TextMessage("user", "original")))

	msgs, err := s.LoadHistory(ctx, "ctx-1")
	require.NoError(t, err)
	msgs[0] = task.TextMessage("user", "mutated")

	again, err := s.LoadHistory(ctx, "ctx-1")
	require.NoError(t, err)
	require.Equal(t, "original", again[0].Text())
}

func TestReset(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.AppendHistory(ctx, "ctx-1", task.TextMessage("user", "a")))
	s.Reset()
	msgs, err := s.LoadHistory(ctx, "ctx-1")
	require.NoError(t, err)
	require.Empty(t, msgs)
}
