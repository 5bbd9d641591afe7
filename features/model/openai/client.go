// Package openai provides a model.Client backed by the OpenAI Chat
// Completions API. It translates normalized requests into chat completion
// calls using github.com/openai/openai-go and maps responses back into the
// generic loop structures.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/parcelops/resolve/runtime/model"
	"github.com/parcelops/resolve/runtime/tools"
)

type (
	// ChatClient captures the subset of the OpenAI SDK used by the adapter.
	// It is satisfied by the SDK's chat completion service so tests can pass
	// a mock.
	ChatClient interface {
		New(ctx context.Context, body sdk.ChatCompletionNewParams, opts ...option.RequestOption) (*sdk.ChatCompletion, error)
	}

	// Options configures the OpenAI adapter.
	Options struct {
		// Client is the chat completion client. Required.
		Client ChatClient
		// DefaultModel is the model identifier used when
		// model.Request.Model is empty. Required.
		DefaultModel string
	}

	// Client implements model.Client via OpenAI chat completions.
	Client struct {
		chat         ChatClient
		defaultModel string
	}
)

// New builds an OpenAI-backed model client from the provided options.
func New(opts Options) (*Client, error) {
	if opts.Client == nil {
		return nil, errors.New("openai client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("default model is required")
	}
	return &Client{chat: opts.Client, defaultModel: opts.DefaultModel}, nil
}

// NewFromAPIKey constructs a client using the default OpenAI HTTP client.
func NewFromAPIKey(apiKey, defaultModel string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("api key is required")
	}
	oc := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(Options{Client: &oc.Chat.Completions, DefaultModel: defaultModel})
}

// Complete renders a chat completion using the configured OpenAI client.
func (c *Client) Complete(ctx context.Context, req model.Request) (model.Response, error) {
	if len(req.Messages) == 0 {
		return model.Response{}, errors.New("openai: messages are required")
	}
	modelID := req.Model
	if modelID == "" {
		modelID = c.defaultModel
	}
	messages, err := encodeMessages(req.Messages)
	if err != nil {
		return model.Response{}, err
	}
	params := sdk.ChatCompletionNewParams{
		Model:    shared.ChatModel(modelID),
		Messages: messages,
		Tools:    encodeTools(req.Tools),
	}
	if req.Temperature > 0 {
		params.Temperature = sdk.Float(float64(req.Temperature))
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = sdk.Int(int64(req.MaxTokens))
	}

	resp, err := c.chat.New(ctx, params)
	if err != nil {
		if isRateLimited(err) {
			return model.Response{}, fmt.Errorf("%w: %w", model.ErrRateLimited, err)
		}
		return model.Response{}, fmt.Errorf("openai chat completion: %w", err)
	}
	return translateResponse(resp)
}

func encodeMessages(msgs []model.Message) ([]sdk.ChatCompletionMessageParamUnion, error) {
	out := make([]sdk.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case "system":
			out = append(out, sdk.SystemMessage(m.Content))
		case "user":
			out = append(out, sdk.UserMessage(m.Content))
		case "assistant":
			assistant := sdk.ChatCompletionAssistantMessageParam{}
			if m.Content != "" {
				assistant.Content.OfString = sdk.String(m.Content)
			}
			for _, call := range m.ToolCalls {
				args, err := json.Marshal(call.Payload)
				if err != nil {
					return nil, fmt.Errorf("openai: marshal tool call %s arguments: %w", call.Name, err)
				}
				assistant.ToolCalls = append(assistant.ToolCalls, sdk.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &sdk.ChatCompletionMessageFunctionToolCallParam{
						ID: call.ID,
						Function: sdk.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      call.Name.String(),
							Arguments: string(args),
						},
					},
				})
			}
			out = append(out, sdk.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		case "tool":
			out = append(out, sdk.ToolMessage(m.Content, m.ToolCallID))
		default:
			return nil, fmt.Errorf("openai: unsupported message role %q", m.Role)
		}
	}
	return out, nil
}

func encodeTools(defs []model.ToolDefinition) []sdk.ChatCompletionToolUnionParam {
	if len(defs) == 0 {
		return nil
	}
	out := make([]sdk.ChatCompletionToolUnionParam, 0, len(defs))
	for _, def := range defs {
		fn := shared.FunctionDefinitionParam{
			Name:       def.Name,
			Parameters: shared.FunctionParameters(def.InputSchema),
		}
		if def.Description != "" {
			fn.Description = sdk.String(def.Description)
		}
		out = append(out, sdk.ChatCompletionFunctionTool(fn))
	}
	return out
}

func isRateLimited(err error) bool {
	var apierr *sdk.Error
	return errors.As(err, &apierr) && apierr.StatusCode == http.StatusTooManyRequests
}

func translateResponse(resp *sdk.ChatCompletion) (model.Response, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return model.Response{}, errors.New("openai: response has no choices")
	}
	choice := resp.Choices[0]
	out := model.Response{
		Content:    choice.Message.Content,
		StopReason: string(choice.FinishReason),
		Usage: model.TokenUsage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:  int(resp.Usage.TotalTokens),
		},
	}
	for _, call := range choice.Message.ToolCalls {
		var payload map[string]any
		if call.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Function.Arguments), &payload); err != nil {
				// Malformed arguments surface as a raw payload so the
				// registry's schema validation produces the error result.
				payload = map[string]any{"raw": call.Function.Arguments}
			}
		}
		out.ToolCalls = append(out.ToolCalls, model.ToolCall{
			ID:      call.ID,
			Name:    tools.Ident(call.Function.Name),
			Payload: payload,
		})
	}
	return out, nil
}
