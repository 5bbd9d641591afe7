// Package notifications hosts the customer notification specialist. Its
// single tool sends a customer-facing message; delivery here is a logged
// stand-in for an email/SMS gateway. The tool is single-tenant: notifications
// carry no tenant-scoped record access.
package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/parcelops/resolve/runtime/agent"
	"github.com/parcelops/resolve/runtime/memory"
	"github.com/parcelops/resolve/runtime/model"
	"github.com/parcelops/resolve/runtime/telemetry"
	"github.com/parcelops/resolve/runtime/toolerrors"
	"github.com/parcelops/resolve/runtime/tools"
)

// AgentID is the identifier the notifications agent publishes to the
// directory.
const AgentID = "notifications"

const systemPrompt = `You are the customer notification specialist. Use your tool to send a
single clear message to the customer about their delivery. Do not send more
than one notification per instruction.`

var notifySchema = []byte(`{
	"type": "object",
	"properties": {
		"recipient": {"type": "string", "description": "Customer identifier or address. Defaults to the order's customer."},
		"message": {"type": "string", "description": "Message delivered to the customer."},
		"channel": {"type": "string", "enum": ["email", "sms", "push"], "description": "Delivery channel. Defaults to email."}
	},
	"required": ["message"],
	"additionalProperties": false
}`)

// Sender delivers a notification and returns a delivery receipt identifier.
// The default sender logs the message and fabricates a receipt.
type Sender func(ctx context.Context, recipient, channel, message string) (string, error)

// Config configures the notifications agent.
type Config struct {
	// Model is the language model client. Required.
	Model model.Client
	// ModelName selects the provider model. Empty uses the client default.
	ModelName string
	// Sender delivers notifications. Defaults to a logging sender.
	Sender Sender
	// Memory persists conversation history per resolution context. Optional.
	Memory memory.Store
	// MaxIterations bounds the reasoning loop. Zero uses the agent default.
	MaxIterations int
	// CallTimeout bounds each model call.
	CallTimeout time.Duration
	// Logger, Metrics, and Tracer default to no-op implementations.
	Logger  telemetry.Logger
	Metrics telemetry.Metrics
	Tracer  telemetry.Tracer
}

// New builds the notifications specialist agent with its tool registry.
func New(cfg Config) (*agent.Agent, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	sender := cfg.Sender
	if sender == nil {
		sender = loggingSender(logger)
	}
	reg, err := NewRegistry(sender)
	if err != nil {
		return nil, err
	}
	return agent.New(agent.Config{
		ID:            AgentID,
		Description:   "Sends delivery notifications to customers.",
		SystemPrompt:  systemPrompt,
		Model:         cfg.Model,
		ModelName:     cfg.ModelName,
		Tools:         reg,
		Memory:        cfg.Memory,
		MaxIterations: cfg.MaxIterations,
		CallTimeout:   cfg.CallTimeout,
		Logger:        logger,
		Metrics:       cfg.Metrics,
		Tracer:        cfg.Tracer,
	})
}

// NewRegistry builds the notifications tool registry over the given sender.
func NewRegistry(sender Sender) (*tools.Registry, error) {
	if sender == nil {
		return nil, fmt.Errorf("sender is required")
	}
	reg := tools.NewRegistry()
	err := reg.Register(tools.ToolSpec{
		Name:        "notifications.notify",
		Description: "Send a message to the customer about their delivery.",
		InputSchema: notifySchema,
		Handler:     notify(sender),
	})
	if err != nil {
		return nil, err
	}
	return reg, nil
}

func notify(sender Sender) tools.Handler {
	return func(ctx context.Context, payload map[string]any) (any, error) {
		message, _ := payload["message"].(string)
		recipient, _ := payload["recipient"].(string)
		if recipient == "" {
			recipient = "customer"
		}
		channel, _ := payload["channel"].(string)
		if channel == "" {
			channel = "email"
		}
		receipt, err := sender(ctx, recipient, channel, message)
		if err != nil {
			return nil, toolerrors.NewWithCause("send notification", err)
		}
		return fmt.Sprintf("notification %s sent to %s via %s", receipt, recipient, channel), nil
	}
}

func loggingSender(logger telemetry.Logger) Sender {
	return func(ctx context.Context, recipient, channel, message string) (string, error) {
		receipt := uuid.NewString()[:8]
		logger.Info(ctx, "customer notification",
			"receipt", receipt, "recipient", recipient, "channel", channel, "message", message)
		return receipt, nil
	}
}
