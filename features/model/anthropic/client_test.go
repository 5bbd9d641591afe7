package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/require"

	"github.com/parcelops/resolve/runtime/model"
	"github.com/parcelops/resolve/runtime/tools"
)

type stubMessagesClient struct {
	lastParams sdk.MessageNewParams
	resp       *sdk.Message
	err        error
}

func (s *stubMessagesClient) New(_ context.Context, body sdk.MessageNewParams, _ ...option.RequestOption) (*sdk.Message, error) {
	s.lastParams = body
	return s.resp, s.err
}

func newTestClient(t *testing.T, stub *stubMessagesClient) *Client {
	t.Helper()
	cl, err := New(stub, Options{DefaultModel: "claude-sonnet-4-5", MaxTokens: 128})
	require.NoError(t, err)
	return cl
}

func TestNewValidatesOptions(t *testing.T) {
	_, err := New(nil, Options{DefaultModel: "claude-sonnet-4-5"})
	require.Error(t, err)
	_, err = New(&stubMessagesClient{}, Options{})
	require.Error(t, err)
}

func TestCompleteTextOnly(t *testing.T) {
	stub := &stubMessagesClient{resp: &sdk.Message{
		Content:    []sdk.ContentBlockUnion{{Type: "text", Text: "world"}},
		StopReason: sdk.StopReasonEndTurn,
		Usage:      sdk.Usage{InputTokens: 10, OutputTokens: 5},
	}}
	cl := newTestClient(t, stub)

	resp, err := cl.Complete(context.Background(), model.Request{
		Messages: []model.Message{
			{Role: "system", Content: "be terse"},
			{Role: "user", Content: "hello"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "world", resp.Content)
	require.Empty(t, resp.ToolCalls)
	require.Equal(t, string(sdk.StopReasonEndTurn), resp.StopReason)
	require.Equal(t, 15, resp.Usage.TotalTokens)

	// The system message is lifted out of the conversation.
	require.Len(t, stub.lastParams.System, 1)
	require.Equal(t, "be terse", stub.lastParams.System[0].Text)
	require.Len(t, stub.lastParams.Messages, 1)
	require.Equal(t, sdk.Model("claude-sonnet-4-5"), stub.lastParams.Model)
	require.Equal(t, int64(128), stub.lastParams.MaxTokens)
}

func TestCompleteSanitizesAndRestoresToolNames(t *testing.T) {
	stub := &stubMessagesClient{resp: &sdk.Message{
		Content: []sdk.ContentBlockUnion{{
			Type:  "tool_use",
			ID:    "tc-1",
			Name:  "orders_update_status",
			Input: json.RawMessage(`{"orderId":"ORD-1","status":"replaced"}`),
		}},
		StopReason: sdk.StopReasonToolUse,
	}}
	cl := newTestClient(t, stub)

	resp, err := cl.Complete(context.Background(), model.Request{
		Messages: []model.Message{{Role: "user", Content: "replace the order"}},
		Tools: []model.ToolDefinition{{
			Name:        "orders.update_status",
			Description: "Update the status of an order.",
			InputSchema: map[string]any{"type": "object"},
		}},
	})
	require.NoError(t, err)

	// The provider saw the sanitized name; the loop sees the canonical one.
	require.Len(t, stub.lastParams.Tools, 1)
	require.Equal(t, "orders_update_status", stub.lastParams.Tools[0].OfTool.Name)
	require.Len(t, resp.ToolCalls, 1)
	require.Equal(t, tools.Ident("orders.update_status"), resp.ToolCalls[0].Name)
	require.Equal(t, "tc-1", resp.ToolCalls[0].ID)
	require.Equal(t, "ORD-1", resp.ToolCalls[0].Payload["orderId"])
}

func TestCompleteRejectsToolNameCollision(t *testing.T) {
	cl := newTestClient(t, &stubMessagesClient{})
	_, err := cl.Complete(context.Background(), model.Request{
		Messages: []model.Message{{Role: "user", Content: "x"}},
		Tools: []model.ToolDefinition{
			{Name: "orders.cancel", InputSchema: map[string]any{"type": "object"}},
			{Name: "orders_cancel", InputSchema: map[string]any{"type": "object"}},
		},
	})
	require.ErrorContains(t, err, "collides")
}

func TestCompletePassesThroughHallucinatedToolName(t *testing.T) {
	stub := &stubMessagesClient{resp: &sdk.Message{
		Content: []sdk.ContentBlockUnion{{
			Type:  "tool_use",
			ID:    "tc-1",
			Name:  "made_up_tool",
			Input: json.RawMessage(`{}`),
		}},
	}}
	cl := newTestClient(t, stub)

	resp, err := cl.Complete(context.Background(), model.Request{
		Messages: []model.Message{{Role: "user", Content: "x"}},
	})
	require.NoError(t, err)
	require.Equal(t, tools.Ident("made_up_tool"), resp.ToolCalls[0].Name)
}

func TestCompleteEncodesToolResults(t *testing.T) {
	stub := &stubMessagesClient{resp: &sdk.Message{
		Content: []sdk.ContentBlockUnion{{Type: "text", Text: "done"}},
	}}
	cl := newTestClient(t, stub)

	_, err := cl.Complete(context.Background(), model.Request{
		Messages: []model.Message{
			{Role: "user", Content: "refund"},
			{Role: "assistant", ToolCalls: []model.ToolCall{{
				ID: "tc-1", Name: "payments.refund", Payload: map[string]any{"orderId": "ORD-1"},
			}}},
			{Role: "tool", ToolCallID: "tc-1", Content: "error: order ORD-1 not found"},
		},
	})
	require.NoError(t, err)
	require.Len(t, stub.lastParams.Messages, 3)
}

func TestCompleteRejectsEmptyConversation(t *testing.T) {
	cl := newTestClient(t, &stubMessagesClient{})
	_, err := cl.Complete(context.Background(), model.Request{})
	require.Error(t, err)
}

func TestCompleteMapsRateLimiting(t *testing.T) {
	u, err := url.Parse("https://api.anthropic.com/v1/messages")
	require.NoError(t, err)
	stub := &stubMessagesClient{err: &sdk.Error{
		StatusCode: http.StatusTooManyRequests,
		Request:    &http.Request{Method: http.MethodPost, URL: u},
		Response:   &http.Response{StatusCode: http.StatusTooManyRequests},
	}}
	cl := newTestClient(t, stub)

	_, err = cl.Complete(context.Background(), model.Request{
		Messages: []model.Message{{Role: "user", Content: "x"}},
	})
	require.ErrorIs(t, err, model.ErrRateLimited)
}

func TestCompleteWrapsTransportErrors(t *testing.T) {
	boom := errors.New("connection reset")
	cl := newTestClient(t, &stubMessagesClient{err: boom})

	_, err := cl.Complete(context.Background(), model.Request{
		Messages: []model.Message{{Role: "user", Content: "x"}},
	})
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, model.ErrRateLimited)
}

func TestSanitizeToolName(t *testing.T) {
	require.Equal(t, "orders_update_status", sanitizeToolName("orders.update_status"))
	require.Equal(t, "plain-name_ok", sanitizeToolName("plain-name_ok"))
}
