// Package supervisor implements the top-level orchestration loop for delivery
// exceptions. The supervisor classifies an inbound exception against a
// declarative decision policy, then runs a bounded reasoning loop whose single
// capability is delegating work to specialist agents discovered through the
// directory. Delegation failures are absorbed as tool-result errors so the
// model can retry, substitute, or degrade to a customer-notification-only
// outcome; the supervisor always emits a resolution summary.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parcelops/resolve/runtime/card"
	"github.com/parcelops/resolve/runtime/dispatch"
	"github.com/parcelops/resolve/runtime/model"
	"github.com/parcelops/resolve/runtime/task"
	"github.com/parcelops/resolve/runtime/telemetry"
)

// DefaultMaxIterations bounds the supervisor loop when Config.MaxIterations
// is zero.
const DefaultMaxIterations = 10

// invokeAgentTool is the single capability exposed to the supervisor's model.
const invokeAgentTool = "invoke_agent"

type (
	// Config configures a Supervisor.
	Config struct {
		// Model is the language model client. Required.
		Model model.Client
		// ModelName selects the provider model. Empty uses the client
		// default.
		ModelName string
		// Dispatcher delivers delegated tasks to specialist agents. Required.
		Dispatcher dispatch.Dispatcher
		// Directory lists the reachable specialist agents. Required.
		Directory *card.Directory
		// Policy is the decision table rendered into the prompt. Defaults to
		// DefaultPolicy.
		Policy *Policy
		// MaxIterations bounds the reasoning loop. Defaults to
		// DefaultMaxIterations.
		MaxIterations int
		// ConcurrentDispatch executes multiple invoke-agent calls issued in
		// one model turn in parallel, joining all results before the next
		// turn. Results are reassembled in request order either way. Off by
		// default: delegations run sequentially in request order.
		ConcurrentDispatch bool
		// CallTimeout bounds each model call. Zero means no per-call
		// deadline.
		CallTimeout time.Duration
		// TaskTimeout bounds each delegated task. Defaults to 2 minutes.
		TaskTimeout time.Duration
		// NotifyAgent is the agent used for the direct customer-notification
		// fallback when a resolution degrades completely. Defaults to
		// "notifications".
		NotifyAgent string
		// Logger, Metrics, and Tracer default to no-op implementations.
		Logger  telemetry.Logger
		Metrics telemetry.Metrics
		Tracer  telemetry.Tracer
	}

	// Supervisor orchestrates exception resolution across specialist agents.
	Supervisor struct {
		client        model.Client
		modelName     string
		dispatcher    dispatch.Dispatcher
		directory     *card.Directory
		policy        *Policy
		maxIterations int
		concurrent    bool
		callTimeout   time.Duration
		taskTimeout   time.Duration
		notifyAgent   string
		logger        telemetry.Logger
		metrics       telemetry.Metrics
		tracer        telemetry.Tracer
	}
)

// New validates the configuration and constructs a Supervisor.
func New(cfg Config) (*Supervisor, error) {
	if cfg.Model == nil {
		return nil, errors.New("model client is required")
	}
	if cfg.Dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}
	if cfg.Directory == nil {
		return nil, errors.New("agent directory is required")
	}
	if cfg.Policy == nil {
		cfg.Policy = DefaultPolicy()
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 2 * time.Minute
	}
	if cfg.NotifyAgent == "" {
		cfg.NotifyAgent = "notifications"
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
	return &Supervisor{
		client:        cfg.Model,
		modelName:     cfg.ModelName,
		dispatcher:    cfg.Dispatcher,
		directory:     cfg.Directory,
		policy:        cfg.Policy,
		maxIterations: cfg.MaxIterations,
		concurrent:    cfg.ConcurrentDispatch,
		callTimeout:   cfg.CallTimeout,
		taskTimeout:   cfg.TaskTimeout,
		notifyAgent:   cfg.NotifyAgent,
		logger:        cfg.Logger,
		metrics:       cfg.Metrics,
		tracer:        cfg.Tracer,
	}, nil
}

// Resolve runs the full resolution loop for one exception. It always returns
// a summary: when the model transport fails or the iteration bound is
// exhausted the summary carries status "requires_follow_up" and the
// customer-notification fallback is attempted, so no exception is ever left
// silently unresolved. The tenant identifier scopes every side effect the
// delegated agents perform.
func (s *Supervisor) Resolve(ctx context.Context, exc Exception, tenantID string) (ResolutionSummary, error) {
	if exc.DeliveryID == "" {
		return ResolutionSummary{}, errors.New("delivery id is required")
	}
	if exc.ContextID == "" {
		exc.ContextID = uuid.NewString()
	}
	ctx, span := s.tracer.Start(ctx, "supervisor.resolve")
	defer span.End()

	classification := s.policy.Classify(exc)
	s.logger.Info(ctx, "resolving exception",
		"delivery_id", exc.DeliveryID, "context_id", exc.ContextID, "classification", classification)

	convo := []model.Message{
		{Role: "system", Content: s.systemPrompt()},
		{Role: "user", Content: renderException(exc)},
	}

	var (
		outcomes  []DelegationOutcome
		finalText string
		loopErr   error
	)
	for i := 0; i < s.maxIterations; i++ {
		resp, err := s.complete(ctx, convo)
		if err != nil {
			span.RecordError(err)
			loopErr = fmt.Errorf("model call: %w", err)
			break
		}

		if len(resp.ToolCalls) == 0 {
			if strings.TrimSpace(resp.Content) != "" {
				finalText = resp.Content
			}
			break
		}

		convo = append(convo, model.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		batch := s.runBatch(ctx, exc, tenantID, resp.ToolCalls)
		for j, call := range resp.ToolCalls {
			outcomes = append(outcomes, batch[j])
			convo = append(convo, model.Message{
				Role:       "tool",
				Content:    batch[j].toolContent(),
				ToolCallID: call.ID,
			})
		}
	}

	summary := s.summarize(classification, outcomes, finalText, loopErr)
	if summary.Status != StatusResolved && !notified(outcomes, s.notifyAgent) {
		if o, ok := s.fallbackNotify(ctx, exc, tenantID); ok {
			summary.Outcomes = append(summary.Outcomes, o)
			summary.AgentsInvoked = append(summary.AgentsInvoked, o.Agent)
			if o.Status == string(task.StatusCompleted) {
				summary.ActionsCompleted = append(summary.ActionsCompleted, o.Agent+": "+o.Result)
			}
		}
	}
	s.metrics.IncCounter("supervisor.resolutions", 1, "classification", classification, "status", summary.Status)
	return summary, loopErr
}

// complete issues one model call advertising the invoke-agent capability.
func (s *Supervisor) complete(ctx context.Context, convo []model.Message) (model.Response, error) {
	if s.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.callTimeout)
		defer cancel()
	}
	started := time.Now()
	resp, err := s.client.Complete(ctx, model.Request{
		Model:    s.modelName,
		Messages: convo,
		Tools:    []model.ToolDefinition{invokeAgentDefinition()},
	})
	s.metrics.RecordTimer("supervisor.model_call", time.Since(started))
	return resp, err
}

// runBatch executes one model turn's invoke-agent calls and returns their
// outcomes in request order. With concurrent dispatch enabled the calls run
// independently and are joined before returning; each delegation makes its
// own bounded number of model and tool calls.
func (s *Supervisor) runBatch(ctx context.Context, exc Exception, tenantID string, calls []model.ToolCall) []DelegationOutcome {
	results := make([]DelegationOutcome, len(calls))
	if !s.concurrent || len(calls) == 1 {
		for i, call := range calls {
			results[i] = s.delegate(ctx, exc, tenantID, call)
		}
		return results
	}
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call model.ToolCall) {
			defer wg.Done()
			results[i] = s.delegate(ctx, exc, tenantID, call)
		}(i, call)
	}
	wg.Wait()
	return results
}

// delegate executes one invoke-agent call: it sends a task to the target
// specialist and blocks until the task reaches a terminal state. Transport
// failures and failed tasks both surface as failed outcomes, never as errors:
// the model decides how to recover.
func (s *Supervisor) delegate(ctx context.Context, exc Exception, tenantID string, call model.ToolCall) DelegationOutcome {
	if call.Name.String() != invokeAgentTool {
		return DelegationOutcome{
			Agent:  call.Name.String(),
			Status: string(task.StatusFailed),
			Result: fmt.Sprintf("unknown tool %q; only %s is available", call.Name, invokeAgentTool),
		}
	}
	agentID, _ := call.Payload["agentId"].(string)
	message, _ := call.Payload["message"].(string)
	if agentID == "" || message == "" {
		return DelegationOutcome{
			Agent:  agentID,
			Status: string(task.StatusFailed),
			Result: "invoke_agent requires non-empty agentId and message",
		}
	}
	if _, ok := s.directory.Describe(agentID); !ok {
		return DelegationOutcome{
			Agent:  agentID,
			Status: string(task.StatusFailed),
			Result: fmt.Sprintf("agent %q is not in the directory", agentID),
		}
	}

	taskCtx, cancel := context.WithTimeout(ctx, s.taskTimeout)
	defer cancel()
	started := time.Now()
	snap, err := s.dispatcher.SendTask(taskCtx, agentID, dispatch.TaskRequest{
		ContextID: exc.ContextID,
		Message:   task.TextMessage("user", message),
		TenantID:  tenantID,
	})
	s.metrics.RecordTimer("supervisor.delegation", time.Since(started), "agent", agentID)
	if err != nil && snap.ID == "" {
		s.logger.Warn(ctx, "delegation transport failure", "agent", agentID, "err", err.Error())
		return DelegationOutcome{
			Agent:  agentID,
			Status: string(task.StatusFailed),
			Result: fmt.Sprintf("delegation to %s failed: %v", agentID, err),
		}
	}

	out := DelegationOutcome{Agent: agentID, TaskID: snap.ID, Status: string(snap.Status)}
	switch snap.Status {
	case task.StatusCompleted:
		out.Result = finalText(snap)
	case task.StatusInputRequired:
		out.Result = "agent is waiting for additional input: " + finalText(snap)
	default:
		out.Result = fmt.Sprintf("task ended in status %s: %s", snap.Status, finalText(snap))
	}
	return out
}

// fallbackNotify dispatches a direct customer notification when the
// resolution degraded without one. Best effort: failures are logged and the
// outcome still recorded.
func (s *Supervisor) fallbackNotify(ctx context.Context, exc Exception, tenantID string) (DelegationOutcome, bool) {
	if _, ok := s.directory.Describe(s.notifyAgent); !ok {
		return DelegationOutcome{}, false
	}
	msg := fmt.Sprintf(
		"Notify the customer for delivery %s that we hit an issue resolving their delivery exception (%s) and a support agent will follow up.",
		exc.DeliveryID, exc.Status.Status)
	taskCtx, cancel := context.WithTimeout(ctx, s.taskTimeout)
	defer cancel()
	snap, err := s.dispatcher.SendTask(taskCtx, s.notifyAgent, dispatch.TaskRequest{
		ContextID: exc.ContextID,
		Message:   task.TextMessage("user", msg),
		TenantID:  tenantID,
	})
	if err != nil && snap.ID == "" {
		s.logger.Warn(ctx, "fallback notification failed", "agent", s.notifyAgent, "err", err.Error())
		return DelegationOutcome{Agent: s.notifyAgent, Status: string(task.StatusFailed), Result: err.Error()}, true
	}
	return DelegationOutcome{Agent: s.notifyAgent, TaskID: snap.ID, Status: string(snap.Status), Result: finalText(snap)}, true
}

// summarize packages the loop's outputs into the resolution summary.
func (s *Supervisor) summarize(classification string, outcomes []DelegationOutcome, finalText string, loopErr error) ResolutionSummary {
	summary := ResolutionSummary{
		Classification: classification,
		AgentsInvoked:  make([]string, 0, len(outcomes)),
		Outcomes:       outcomes,
	}
	var failed, pending bool
	for _, o := range outcomes {
		summary.AgentsInvoked = append(summary.AgentsInvoked, o.Agent)
		switch o.Status {
		case string(task.StatusCompleted):
			summary.ActionsCompleted = append(summary.ActionsCompleted, o.Agent+": "+o.Result)
		case string(task.StatusInputRequired):
			pending = true
		default:
			failed = true
		}
	}

	switch {
	case loopErr != nil || finalText == "":
		summary.Status = StatusRequiresFollowUp
	case failed:
		summary.Status = StatusRequiresFollowUp
	case pending:
		summary.Status = StatusPending
	default:
		summary.Status = StatusResolved
	}

	summary.CustomerImpact = finalText
	if summary.CustomerImpact == "" {
		summary.CustomerImpact = "Resolution incomplete; a support agent will follow up with the customer."
	}
	return summary
}

// systemPrompt renders the supervisor's instructions: role, decision policy,
// and the directory of reachable specialists.
func (s *Supervisor) systemPrompt() string {
	var b strings.Builder
	b.WriteString("You are the supervisor for delivery exception resolution. ")
	b.WriteString("Classify the exception against the decision policy below and delegate the required actions ")
	b.WriteString("to specialist agents using the invoke_agent tool. Invoke agents one at a time when an action ")
	b.WriteString("depends on a previous result; issue multiple invoke_agent calls in a single turn only for ")
	b.WriteString("independent actions. When all actions are done, reply with a short customer-facing summary ")
	b.WriteString("of what was resolved and no further tool calls.\n\n")
	b.WriteString(s.policy.Render())
	b.WriteString("\nAvailable agents:\n")
	for _, c := range s.directory.List() {
		fmt.Fprintf(&b, "- %s: %s\n", c.Name, c.Description)
		for _, sk := range c.Skills {
			fmt.Fprintf(&b, "    - %s: %s\n", sk.Name, sk.Description)
		}
	}
	return b.String()
}

// invokeAgentDefinition is the tool definition advertised to the model.
func invokeAgentDefinition() model.ToolDefinition {
	return model.ToolDefinition{
		Name:        invokeAgentTool,
		Description: "Delegate a task to a specialist agent and wait for its result.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"agentId": map[string]any{
					"type":        "string",
					"description": "Identifier of the agent to invoke, as listed in the directory.",
				},
				"message": map[string]any{
					"type":        "string",
					"description": "Natural-language instruction for the agent.",
				},
			},
			"required":             []any{"agentId", "message"},
			"additionalProperties": false,
		},
	}
}

// renderException formats the exception's structured fields for the model.
func renderException(exc Exception) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Delivery exception for %s:\n", exc.DeliveryID)
	fmt.Fprintf(&b, "- status: %s\n", exc.Status.Status)
	if exc.Status.Reason != "" {
		fmt.Fprintf(&b, "- reason: %s\n", exc.Status.Reason)
	}
	if exc.OrderValue > 0 {
		fmt.Fprintf(&b, "- order value: $%.2f\n", exc.OrderValue)
	}
	if exc.DriverNotes != "" {
		fmt.Fprintf(&b, "- driver notes: %s\n", exc.DriverNotes)
	}
	return b.String()
}

// toolContent renders a delegation outcome as the tool result fed back to the
// model. Failed delegations become error results so the model can recover.
func (o DelegationOutcome) toolContent() string {
	if o.Status == string(task.StatusCompleted) {
		return o.Result
	}
	return "error: " + o.Result
}

// notified reports whether a delegation to the notify agent completed.
func notified(outcomes []DelegationOutcome, notifyAgent string) bool {
	for _, o := range outcomes {
		if o.Agent == notifyAgent && o.Status == string(task.StatusCompleted) {
			return true
		}
	}
	return false
}

// finalText extracts the last assistant text from a task snapshot.
func finalText(snap task.Snapshot) string {
	for i := len(snap.History) - 1; i >= 0; i-- {
		if snap.History[i].Role == "assistant" {
			if text := snap.History[i].Text(); text != "" {
				return text
			}
		}
	}
	if snap.StatusMessage != nil {
		return snap.StatusMessage.Text()
	}
	return ""
}
