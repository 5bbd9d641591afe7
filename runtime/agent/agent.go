// Package agent hosts one specialist's reasoning loop. Given a delegated task
// and a fixed tool set, the agent repeatedly calls the language model,
// executes any requested tool calls, and returns a final textual result. The
// loop is bounded: hallucinated infinite tool-calling can never block the
// caller indefinitely.
package agent

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/parcelops/resolve/runtime/card"
	"github.com/parcelops/resolve/runtime/memory"
	"github.com/parcelops/resolve/runtime/model"
	"github.com/parcelops/resolve/runtime/task"
	"github.com/parcelops/resolve/runtime/telemetry"
	"github.com/parcelops/resolve/runtime/toolerrors"
	"github.com/parcelops/resolve/runtime/tools"
)

// DefaultMaxIterations bounds the reasoning loop when Config.MaxIterations is
// zero.
const DefaultMaxIterations = 10

// ErrCanceled is returned by Handle when the task was externally canceled and
// the loop stopped before producing a final result.
var ErrCanceled = errors.New("task canceled")

// thinkingTags matches internal reasoning markup emitted by some models. The
// final result is stripped of these blocks unless PreserveThinkingTags is set.
var thinkingTags = regexp.MustCompile(`(?s)<thinking>.*?</thinking>`)

type (
	// TransportError reports a failure of the model call itself (network,
	// quota, timeout). It is fatal to the current loop only: the task
	// terminates as failed while sibling tasks are unaffected.
	TransportError struct {
		// Agent identifies the agent whose model call failed.
		Agent string
		// Err is the underlying transport failure.
		Err error
	}

	// Config configures a specialist agent.
	Config struct {
		// ID is the agent identifier used for delegation and event
		// attribution. Required.
		ID string
		// Description is a human-readable description published on the card.
		Description string
		// SystemPrompt is prepended to every model conversation.
		SystemPrompt string
		// Model is the language model client. Required.
		Model model.Client
		// ModelName selects the provider model. Empty uses the client default.
		ModelName string
		// Tools is the registry of tools exposed to this agent. Required.
		Tools *tools.Registry
		// Memory persists conversation history per resolution context. Optional.
		Memory memory.Store
		// MaxIterations bounds the reasoning loop. Defaults to
		// DefaultMaxIterations.
		MaxIterations int
		// CallTimeout bounds each model call. Zero means no per-call deadline
		// beyond the caller's context.
		CallTimeout time.Duration
		// PreserveThinkingTags keeps internal reasoning markup in the final
		// text instead of stripping it.
		PreserveThinkingTags bool
		// Logger, Metrics, and Tracer default to no-op implementations.
		Logger  telemetry.Logger
		Metrics telemetry.Metrics
		Tracer  telemetry.Tracer
	}

	// Agent runs the bounded reasoning loop for one specialist.
	Agent struct {
		id            string
		description   string
		systemPrompt  string
		client        model.Client
		modelName     string
		registry      *tools.Registry
		mem           memory.Store
		maxIterations int
		callTimeout   time.Duration
		preserveTags  bool
		logger        telemetry.Logger
		metrics       telemetry.Metrics
		tracer        telemetry.Tracer
	}
)

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("agent %s: model transport: %v", e.Agent, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error { return e.Err }

// New validates the configuration and constructs an Agent.
func New(cfg Config) (*Agent, error) {
	if cfg.ID == "" {
		return nil, errors.New("agent id is required")
	}
	if cfg.Model == nil {
		return nil, errors.New("model client is required")
	}
	if cfg.Tools == nil {
		return nil, errors.New("tool registry is required")
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.Logger == nil {
		cfg.Logger = telemetry.NewNoopLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = telemetry.NewNoopMetrics()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = telemetry.NewNoopTracer()
	}
	return &Agent{
		id:            cfg.ID,
		description:   cfg.Description,
		systemPrompt:  cfg.SystemPrompt,
		client:        cfg.Model,
		modelName:     cfg.ModelName,
		registry:      cfg.Tools,
		mem:           cfg.Memory,
		maxIterations: cfg.MaxIterations,
		callTimeout:   cfg.CallTimeout,
		preserveTags:  cfg.PreserveThinkingTags,
		logger:        cfg.Logger,
		metrics:       cfg.Metrics,
		tracer:        cfg.Tracer,
	}, nil
}

// ID returns the agent identifier.
func (a *Agent) ID() string { return a.id }

// Card builds the agent's capability descriptor for the given endpoint. Each
// registered tool is published as a skill.
func (a *Agent) Card(endpoint string) card.AgentCard {
	descs := a.registry.Descriptors()
	skills := make([]card.Skill, 0, len(descs))
	for _, d := range descs {
		skills = append(skills, card.Skill{
			ID:          d.Name,
			Name:        d.Name,
			Description: d.Description,
		})
	}
	return card.AgentCard{
		Name:         a.id,
		Description:  a.description,
		Endpoint:     endpoint,
		Skills:       skills,
		Capabilities: card.Capabilities{Streaming: true},
	}
}

// Handle processes a delegated task to completion. It seeds the conversation
// from the task's initiating message (and any persisted session history),
// runs the bounded reasoning loop, and transitions the task to a terminal
// state. The returned text is always non-empty on success: if the iteration
// bound is exhausted the agent falls back to the last assistant-authored text
// found in the conversation, then to a generic failure result.
//
// Tool failures are absorbed: each is converted into a structured error
// result fed back to the model so it can recover or apologize. Only a model
// transport failure aborts the loop, failing this task alone.
//
// The tenant identifier comes from the trusted caller context, never from
// model output, and is passed to multi-tenant tools on every invocation.
func (a *Agent) Handle(ctx context.Context, t *task.Task, tenantID string) (string, error) {
	history := t.History()
	if len(history) == 0 {
		err := &card.MalformedRequestError{Reason: "task has no initiating message"}
		a.fail(t, err)
		return "", err
	}
	if err := card.ValidateTaskMessage(&history[0]); err != nil {
		a.fail(t, err)
		return "", err
	}
	if t.Status() == task.StatusSubmitted {
		if err := t.Transition(task.StatusWorking, nil); err != nil {
			return "", err
		}
	}

	convo, err := a.seedConversation(ctx, t.ContextID(), history)
	if err != nil {
		a.fail(t, err)
		return "", err
	}

	var usage model.TokenUsage
	final := ""
	for i := 0; i < a.maxIterations; i++ {
		if t.Canceled() {
			a.logger.Info(ctx, "task canceled, stopping loop", "agent", a.id, "task_id", t.ID(), "iteration", i)
			return "", ErrCanceled
		}

		resp, err := a.complete(ctx, convo)
		if err != nil {
			terr := &TransportError{Agent: a.id, Err: err}
			a.fail(t, terr)
			return "", terr
		}
		usage.Add(resp.Usage)

		if len(resp.ToolCalls) == 0 {
			if strings.TrimSpace(resp.Content) != "" {
				final = resp.Content
				break
			}
			// Neither tool calls nor text: terminal recoverable condition.
			a.logger.Warn(ctx, "model returned empty response", "agent", a.id, "task_id", t.ID())
			final = "The agent received an unexpected model response and could not complete the request."
			break
		}

		convo = append(convo, model.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		if strings.TrimSpace(resp.Content) != "" {
			_ = t.Append(task.TextMessage("assistant", resp.Content))
		}
		convo = a.executeToolCalls(ctx, t, tenantID, resp.ToolCalls, convo)
	}

	if final == "" {
		final = lastAssistantText(convo)
	}
	if final == "" {
		final = "The request could not be completed within the agent's reasoning budget."
	}
	if !a.preserveTags {
		final = strings.TrimSpace(thinkingTags.ReplaceAllString(final, ""))
	}

	finalMsg := task.TextMessage("assistant", final)
	_ = t.Append(finalMsg)
	if a.mem != nil {
		if err := a.mem.AppendHistory(ctx, t.ContextID(), history[0], finalMsg); err != nil {
			a.logger.Warn(ctx, "append session history failed", "agent", a.id, "err", err.Error())
		}
	}
	if !t.Status().Terminal() {
		if err := t.Transition(task.StatusCompleted, &finalMsg); err != nil {
			return "", err
		}
	}
	a.metrics.IncCounter("agent.tasks_completed", 1, "agent", a.id)
	a.metrics.RecordGauge("agent.tokens_used", float64(usage.TotalTokens), "agent", a.id)
	return final, nil
}

// complete issues one model call with the configured per-call deadline.
func (a *Agent) complete(ctx context.Context, convo []model.Message) (model.Response, error) {
	if a.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.callTimeout)
		defer cancel()
	}
	ctx, span := a.tracer.Start(ctx, "agent.model_call")
	defer span.End()

	defs := descriptorsToDefinitions(a.registry.Descriptors())
	started := time.Now()
	resp, err := a.client.Complete(ctx, model.Request{
		Model:    a.modelName,
		Messages: convo,
		Tools:    defs,
	})
	a.metrics.RecordTimer("agent.model_call", time.Since(started), "agent", a.id)
	if err != nil {
		span.RecordError(err)
		return model.Response{}, err
	}
	return resp, nil
}

// executeToolCalls runs the model's requested tool calls in request order and
// appends each result (or structured error) to the conversation and the task
// history. Errors never propagate past this point: the model gets to recover.
func (a *Agent) executeToolCalls(ctx context.Context, t *task.Task, tenantID string, calls []model.ToolCall, convo []model.Message) []model.Message {
	for _, call := range calls {
		content, outcome := a.invokeTool(ctx, tenantID, call)
		convo = append(convo, model.Message{
			Role:       "tool",
			Content:    content,
			ToolCallID: call.ID,
		})
		_ = t.Append(task.ToolResultMessage(call.ID, content))
		a.metrics.IncCounter("agent.tool_calls", 1, "agent", a.id, "tool", call.Name.String(), "outcome", outcome)
	}
	return convo
}

// invokeTool executes one tool call and renders its result as text for the
// model. Failures (unknown tool, validation, execution) become structured
// error results.
func (a *Agent) invokeTool(ctx context.Context, tenantID string, call model.ToolCall) (content, outcome string) {
	result, err := a.registry.Invoke(ctx, call.Name, tenantID, call.Payload)
	if err != nil {
		te := toolerrors.FromError(err)
		a.logger.Warn(ctx, "tool call failed", "agent", a.id, "tool", call.Name.String(), "err", te.Message)
		return fmt.Sprintf("error: %s", te.Message), "error"
	}
	return renderToolResult(result), "ok"
}

// seedConversation assembles the initial model conversation: system prompt,
// persisted session history, then the task's messages.
func (a *Agent) seedConversation(ctx context.Context, contextID string, history []task.Message) ([]model.Message, error) {
	convo := make([]model.Message, 0, len(history)+2)
	if a.systemPrompt != "" {
		convo = append(convo, model.Message{Role: "system", Content: a.systemPrompt})
	}
	if a.mem != nil {
		prior, err := a.mem.LoadHistory(ctx, contextID)
		if err != nil {
			return nil, fmt.Errorf("load session history: %w", err)
		}
		for _, msg := range prior {
			convo = append(convo, model.Message{Role: msg.Role, Content: msg.Text()})
		}
	}
	for _, msg := range history {
		if text := msg.Text(); text != "" {
			convo = append(convo, model.Message{Role: msg.Role, Content: text})
		}
	}
	return convo, nil
}

// fail transitions the task to failed unless it is already terminal.
func (a *Agent) fail(t *task.Task, cause error) {
	if t.Status().Terminal() {
		return
	}
	msg := task.TextMessage("assistant", cause.Error())
	if t.Status() == task.StatusSubmitted {
		_ = t.Transition(task.StatusWorking, nil)
	}
	_ = t.Transition(task.StatusFailed, &msg)
}

// lastAssistantText scans the conversation backwards for the most recent
// assistant-authored text fragment.
func lastAssistantText(convo []model.Message) string {
	for i := len(convo) - 1; i >= 0; i-- {
		if convo[i].Role == "assistant" && strings.TrimSpace(convo[i].Content) != "" {
			return convo[i].Content
		}
	}
	return ""
}

// renderToolResult converts a tool result into the textual form fed back to
// the model.
func renderToolResult(result any) string {
	switch v := result.(type) {
	case nil:
		return "ok"
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

// descriptorsToDefinitions maps registry descriptors to model tool
// definitions.
func descriptorsToDefinitions(descs []tools.Descriptor) []model.ToolDefinition {
	defs := make([]model.ToolDefinition, 0, len(descs))
	for _, d := range descs {
		defs = append(defs, model.ToolDefinition{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: d.InputSchema,
		})
	}
	return defs
}
