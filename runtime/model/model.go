// Package model provides the provider-agnostic contract for language model
// clients used by the reasoning loops. It abstracts over chat completion APIs
// (Anthropic, OpenAI, ...) so agents can invoke models without coupling to
// specific SDKs. Implementations translate these normalized types into
// provider-specific formats.
package model

import (
	"context"
	"errors"

	"github.com/parcelops/resolve/runtime/tools"
)

type (
	// Client defines the contract reasoning loops use to invoke model calls.
	// Implementations wrap provider SDKs and must be thread-safe and reusable
	// across invocations. A failure returned by Complete is a transport-level
	// failure: it aborts the calling loop, unlike tool errors which are fed
	// back to the model.
	Client interface {
		// Complete sends a chat completion request to the model provider and
		// returns the generated response. Returns an error if the model is
		// unavailable, quota is exceeded, or the request is malformed.
		Complete(ctx context.Context, req Request) (Response, error)
	}

	// Request captures the normalized parameters for a model invocation.
	Request struct {
		// Model identifies the target model using the provider-specific
		// identifier. Empty selects the client's configured default.
		Model string
		// Messages is the ordered chat history provided to the model,
		// including system prompts, user inputs, prior assistant responses,
		// and tool results.
		Messages []Message
		// Tools describes the tool schemas exposed to the model for function
		// calling. Empty if the model should not invoke tools.
		Tools []ToolDefinition
		// Temperature controls sampling temperature. Zero means greedy decoding.
		Temperature float32
		// MaxTokens caps the number of completion tokens. Zero uses the
		// provider default.
		MaxTokens int
	}

	// Response wraps the generated content and any tool call requests from
	// the model provider.
	Response struct {
		// Content is the assistant text returned by the model. Empty if the
		// model only requested tool calls.
		Content string
		// ToolCalls lists the tool invocations requested by the model, in the
		// order the model issued them. Empty when the model produced a final
		// text response.
		ToolCalls []ToolCall
		// Usage reports token usage when the provider supplies it.
		Usage TokenUsage
		// StopReason explains why the model stopped generating. Values are
		// provider-specific and may be empty.
		StopReason string
	}

	// Message mirrors a chat message with role and content. Messages form the
	// conversation history sent to the model.
	Message struct {
		// Role indicates who produced the message: "system", "user",
		// "assistant", or "tool" for tool results.
		Role string
		// Content is the message text. May be empty for assistant messages
		// that only carry tool calls.
		Content string
		// ToolCalls carries the tool invocations issued alongside an
		// assistant message, so providers can reconstruct the exchange.
		ToolCalls []ToolCall
		// ToolCallID correlates a "tool" role message with the assistant tool
		// call it answers.
		ToolCallID string
	}

	// ToolDefinition describes a tool schema passed to the provider for
	// function calling.
	ToolDefinition struct {
		// Name is the identifier presented to the model.
		Name string
		// Description documents the tool for prompting purposes.
		Description string
		// InputSchema is the JSON Schema object describing the tool's input.
		InputSchema map[string]any
	}

	// ToolCall captures a tool invocation requested by the model.
	ToolCall struct {
		// ID is the provider-assigned identifier for this invocation, echoed
		// back on the corresponding tool-result message.
		ID string
		// Name identifies which tool should be invoked.
		Name tools.Ident
		// Payload carries the JSON arguments requested by the model. The
		// shape conforms to the InputSchema from the tool definition; the
		// registry re-validates it before execution.
		Payload map[string]any
	}

	// TokenUsage records prompt/completion token counts when reported by the
	// provider. All fields are zero if the provider doesn't report usage.
	TokenUsage struct {
		// InputTokens counts tokens consumed by the prompt and history.
		InputTokens int
		// OutputTokens counts tokens produced by this completion.
		OutputTokens int
		// TotalTokens reports the aggregate tokens consumed.
		TotalTokens int
	}
)

// ErrRateLimited indicates the provider rejected the request due to rate
// limiting. Middleware and callers can match it with errors.Is.
var ErrRateLimited = errors.New("model: rate limited")

// Add accumulates usage counts, for per-run token accounting.
func (u *TokenUsage) Add(delta TokenUsage) {
	u.InputTokens += delta.InputTokens
	u.OutputTokens += delta.OutputTokens
	u.TotalTokens += delta.TotalTokens
}
