package openai

import (
	"context"
	"errors"
	"testing"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"github.com/stretchr/testify/require"

	"github.com/parcelops/resolve/runtime/model"
	"github.com/parcelops/resolve/runtime/tools"
)

type stubChatClient struct {
	lastParams sdk.ChatCompletionNewParams
	resp       *sdk.ChatCompletion
	err        error
}

func (s *stubChatClient) New(_ context.Context, body sdk.ChatCompletionNewParams, _ ...option.RequestOption) (*sdk.ChatCompletion, error) {
	s.lastParams = body
	return s.resp, s.err
}

func textCompletion(text, finishReason string) *sdk.ChatCompletion {
	resp := &sdk.ChatCompletion{Choices: []sdk.ChatCompletionChoice{{FinishReason: finishReason}}}
	resp.Choices[0].Message.Content = text
	resp.Usage.PromptTokens = 10
	resp.Usage.CompletionTokens = 5
	resp.Usage.TotalTokens = 15
	return resp
}

func newTestClient(t *testing.T, stub *stubChatClient) *Client {
	t.Helper()
	cl, err := New(Options{Client: stub, DefaultModel: "gpt-4o"})
	require.NoError(t, err)
	return cl
}

func TestNewValidatesOptions(t *testing.T) {
	_, err := New(Options{DefaultModel: "gpt-4o"})
	require.Error(t, err)
	_, err = New(Options{Client: &stubChatClient{}})
	require.Error(t, err)
}

func TestCompleteTextOnly(t *testing.T) {
	stub := &stubChatClient{resp: textCompletion("hi there", "stop")}
	cl := newTestClient(t, stub)

	resp, err := cl.Complete(context.Background(), model.Request{
		Messages: []model.Message{
			{Role: "system", Content: "be terse"},
			{Role: "user", Content: "ping"},
		},
		Tools: []model.ToolDefinition{{
			Name:        "orders.cancel",
			Description: "Cancel an order.",
			InputSchema: map[string]any{"type": "object"},
		}},
	})
	require.NoError(t, err)
	require.Equal(t, "hi there", resp.Content)
	require.Equal(t, "stop", resp.StopReason)
	require.Equal(t, 15, resp.Usage.TotalTokens)

	require.Equal(t, shared.ChatModel("gpt-4o"), stub.lastParams.Model)
	require.Len(t, stub.lastParams.Messages, 2)
	require.Len(t, stub.lastParams.Tools, 1)
	require.Equal(t, "orders.cancel", stub.lastParams.Tools[0].OfFunction.Function.Name)
}

func TestCompleteTranslatesToolCalls(t *testing.T) {
	resp := textCompletion("", "tool_calls")
	call := sdk.ChatCompletionMessageToolCallUnion{ID: "tc-1"}
	call.Function.Name = "orders.cancel"
	call.Function.Arguments = `{"orderId":"ORD-1"}`
	resp.Choices[0].Message.ToolCalls = []sdk.ChatCompletionMessageToolCallUnion{call}
	stub := &stubChatClient{resp: resp}
	cl := newTestClient(t, stub)

	out, err := cl.Complete(context.Background(), model.Request{
		Messages: []model.Message{{Role: "user", Content: "cancel ORD-1"}},
	})
	require.NoError(t, err)
	require.Len(t, out.ToolCalls, 1)
	require.Equal(t, "tc-1", out.ToolCalls[0].ID)
	require.Equal(t, tools.Ident("orders.cancel"), out.ToolCalls[0].Name)
	require.Equal(t, "ORD-1", out.ToolCalls[0].Payload["orderId"])
}

func TestCompleteMalformedArgumentsBecomeRawPayload(t *testing.T) {
	resp := textCompletion("", "tool_calls")
	call := sdk.ChatCompletionMessageToolCallUnion{ID: "tc-1"}
	call.Function.Name = "orders.cancel"
	call.Function.Arguments = `{"orderId":`
	resp.Choices[0].Message.ToolCalls = []sdk.ChatCompletionMessageToolCallUnion{call}
	stub := &stubChatClient{resp: resp}
	cl := newTestClient(t, stub)

	out, err := cl.Complete(context.Background(), model.Request{
		Messages: []model.Message{{Role: "user", Content: "cancel"}},
	})
	require.NoError(t, err)
	require.Equal(t, `{"orderId":`, out.ToolCalls[0].Payload["raw"])
}

func TestCompleteEncodesAssistantToolCallsAndResults(t *testing.T) {
	stub := &stubChatClient{resp: textCompletion("done", "stop")}
	cl := newTestClient(t, stub)

	_, err := cl.Complete(context.Background(), model.Request{
		Messages: []model.Message{
			{Role: "user", Content: "refund"},
			{Role: "assistant", ToolCalls: []model.ToolCall{{
				ID: "tc-1", Name: "payments.refund", Payload: map[string]any{"orderId": "ORD-1"},
			}}},
			{Role: "tool", ToolCallID: "tc-1", Content: "refund of $250.00 issued for order ORD-1"},
		},
	})
	require.NoError(t, err)
	require.Len(t, stub.lastParams.Messages, 3)

	assistant := stub.lastParams.Messages[1].OfAssistant
	require.NotNil(t, assistant)
	require.Len(t, assistant.ToolCalls, 1)
	require.Equal(t, "tc-1", assistant.ToolCalls[0].OfFunction.ID)
	require.Equal(t, "payments.refund", assistant.ToolCalls[0].OfFunction.Function.Name)
	require.NotNil(t, stub.lastParams.Messages[2].OfTool)
}

func TestCompleteRejectsEmptyConversation(t *testing.T) {
	cl := newTestClient(t, &stubChatClient{})
	_, err := cl.Complete(context.Background(), model.Request{})
	require.Error(t, err)
}

func TestCompleteRejectsEmptyChoices(t *testing.T) {
	stub := &stubChatClient{resp: &sdk.ChatCompletion{}}
	cl := newTestClient(t, stub)
	_, err := cl.Complete(context.Background(), model.Request{
		Messages: []model.Message{{Role: "user", Content: "x"}},
	})
	require.Error(t, err)
}

func TestCompleteWrapsTransportErrors(t *testing.T) {
	boom := errors.New("connection reset")
	cl := newTestClient(t, &stubChatClient{err: boom})

	_, err := cl.Complete(context.Background(), model.Request{
		Messages: []model.Message{{Role: "user", Content: "x"}},
	})
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, model.ErrRateLimited)
}
