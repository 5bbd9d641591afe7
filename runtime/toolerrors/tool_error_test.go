package toolerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewDefaultsMessage(t *testing.T) {
	require.Equal(t, "tool error", New("").Error())
	require.Equal(t, "stock depleted", New("stock depleted").Error())
}

func TestErrorf(t *testing.T) {
	err := Errorf("order %s not found", "ORD-1")
	require.Equal(t, "order ORD-1 not found", err.Error())
}

func TestNewWithCausePreservesChain(t *testing.T) {
	cause := errors.New("gateway timeout")
	err := NewWithCause("send notification", cause)
	require.Equal(t, "send notification", err.Message)
	require.NotNil(t, err.Cause)
	require.Equal(t, "gateway timeout", err.Cause.Message)
}

func TestNewWithCauseEmptyMessageUsesCause(t *testing.T) {
	err := NewWithCause("", errors.New("boom"))
	require.Equal(t, "boom", err.Message)
}

func TestFromError(t *testing.T) {
	require.Nil(t, FromError(nil))

	te := New("direct")
	require.Same(t, te, FromError(te))

	wrapped := fmt.Errorf("outer: %w", errors.New("inner"))
	converted := FromError(wrapped)
	require.Equal(t, "outer: inner", converted.Message)
	require.Equal(t, "inner", converted.Cause.Message)
}

func TestFromErrorFindsNestedToolError(t *testing.T) {
	te := New("tool failed")
	wrapped := fmt.Errorf("invoke: %w", te)
	require.Same(t, te, FromError(wrapped))
}

func TestErrorsAsThroughChain(t *testing.T) {
	err := NewWithCause("outer", New("inner"))
	var te *ToolError
	require.ErrorAs(t, err, &te)
	require.Equal(t, "outer", te.Message)
}
