// Package payments hosts the payments specialist: issuing refunds against
// orders. Refunds are at-most-once per order, enforced by the store's
// conditional write rather than an in-process lock, so the guarantee holds
// across processes.
package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/parcelops/resolve/runtime/agent"
	"github.com/parcelops/resolve/runtime/memory"
	"github.com/parcelops/resolve/runtime/model"
	"github.com/parcelops/resolve/runtime/store"
	"github.com/parcelops/resolve/runtime/telemetry"
	"github.com/parcelops/resolve/runtime/toolerrors"
	"github.com/parcelops/resolve/runtime/tools"
)

// AgentID is the identifier the payments agent publishes to the directory.
const AgentID = "payments"

const systemPrompt = `You are the payments specialist. Use your tools to issue refunds for
orders. A refund can only be issued once per order; if the order was already
refunded, report that instead of retrying. Set the expedite flag when the
instruction marks the refund as priority or expedited.`

var refundSchema = []byte(`{
	"type": "object",
	"properties": {
		"orderId": {"type": "string", "description": "Identifier of the order to refund."},
		"amount": {"type": "number", "minimum": 0, "description": "Refund amount. Omit to refund the full order value."},
		"expedite": {"type": "boolean", "description": "Process the refund with priority."}
	},
	"required": ["orderId"],
	"additionalProperties": false
}`)

// Config configures the payments agent.
type Config struct {
	// Store is the tenant-scoped domain record store. Required.
	Store store.Store
	// Model is the language model client. Required.
	Model model.Client
	// ModelName selects the provider model. Empty uses the client default.
	ModelName string
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

// New builds the payments specialist agent with its tool registry.
func New(cfg Config) (*agent.Agent, error) {
	reg, err := NewRegistry(cfg.Store)
	if err != nil {
		return nil, err
	}
	return agent.New(agent.Config{
		ID:            AgentID,
		Description:   "Issues refunds for customer orders.",
		SystemPrompt:  systemPrompt,
		Model:         cfg.Model,
		ModelName:     cfg.ModelName,
		Tools:         reg,
		Memory:        cfg.Memory,
		MaxIterations: cfg.MaxIterations,
		CallTimeout:   cfg.CallTimeout,
		Logger:        cfg.Logger,
		Metrics:       cfg.Metrics,
		Tracer:        cfg.Tracer,
	})
}

// NewRegistry builds the payments tool registry over the given store.
func NewRegistry(st store.Store) (*tools.Registry, error) {
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	reg := tools.NewRegistry()
	err := reg.Register(tools.ToolSpec{
		Name:          "payments.refund",
		Description:   "Refund an order, optionally expedited. At most one refund per order.",
		InputSchema:   refundSchema,
		MultiTenant:   true,
		TenantHandler: refund(st),
	})
	if err != nil {
		return nil, err
	}
	return reg, nil
}

func refund(st store.Store) tools.TenantHandler {
	return func(ctx context.Context, tenantID string, payload map[string]any) (any, error) {
		orderID, _ := payload["orderId"].(string)
		rec, err := st.Get(ctx, tenantID, "order/"+orderID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, toolerrors.Errorf("order %s not found", orderID)
			}
			return nil, toolerrors.Errorf("load order %s: %v", orderID, err)
		}
		if rec.Value == nil {
			rec.Value = make(map[string]any)
		}
		if refunded, _ := rec.Value["refunded"].(bool); refunded {
			return nil, toolerrors.Errorf("order %s was already refunded", orderID)
		}

		amount, ok := payload["amount"].(float64)
		if !ok {
			amount, _ = rec.Value["value"].(float64)
		}
		expedite, _ := payload["expedite"].(bool)

		rec.Value["refunded"] = true
		rec.Value["refundAmount"] = amount
		rec.Value["refundExpedited"] = expedite
		if _, err := st.Update(ctx, tenantID, "order/"+orderID, rec.Version, rec.Value); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return nil, toolerrors.Errorf("order %s was modified concurrently; refund not applied", orderID)
			}
			return nil, toolerrors.Errorf("refund order %s: %v", orderID, err)
		}
		if expedite {
			return fmt.Sprintf("expedited refund of $%.2f issued for order %s", amount, orderID), nil
		}
		return fmt.Sprintf("refund of $%.2f issued for order %s", amount, orderID), nil
	}
}
