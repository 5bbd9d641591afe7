// Package orders hosts the order management specialist: updating order
// status, canceling orders, and recreating orders for replacement shipments.
// All tools are tenant-scoped and use conditional writes so concurrent
// mutations of the same order fail loudly instead of overwriting each other.
package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/parcelops/resolve/runtime/agent"
	"github.com/parcelops/resolve/runtime/memory"
	"github.com/parcelops/resolve/runtime/model"
	"github.com/parcelops/resolve/runtime/store"
	"github.com/parcelops/resolve/runtime/telemetry"
	"github.com/parcelops/resolve/runtime/toolerrors"
	"github.com/parcelops/resolve/runtime/tools"
)

// AgentID is the identifier the orders agent publishes to the directory.
const AgentID = "orders"

const systemPrompt = `You are the order management specialist. Use your tools to update order
status, cancel orders, or recreate an order for a replacement shipment. Report
exactly what you changed; if a tool fails, say why instead of pretending it
succeeded.`

var updateStatusSchema = []byte(`{
	"type": "object",
	"properties": {
		"orderId": {"type": "string", "description": "Identifier of the order to update."},
		"status": {"type": "string", "description": "New order status, for example delivery_attempted or replaced."},
		"note": {"type": "string", "description": "Optional annotation recorded on the order."}
	},
	"required": ["orderId", "status"],
	"additionalProperties": false
}`)

var cancelSchema = []byte(`{
	"type": "object",
	"properties": {
		"orderId": {"type": "string", "description": "Identifier of the order to cancel."},
		"reason": {"type": "string", "description": "Reason the order is canceled."}
	},
	"required": ["orderId"],
	"additionalProperties": false
}`)

var recreateSchema = []byte(`{
	"type": "object",
	"properties": {
		"orderId": {"type": "string", "description": "Identifier of the original order to recreate."}
	},
	"required": ["orderId"],
	"additionalProperties": false
}`)

// Config configures the orders agent.
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

// New builds the orders specialist agent with its tool registry.
func New(cfg Config) (*agent.Agent, error) {
	reg, err := NewRegistry(cfg.Store)
	if err != nil {
		return nil, err
	}
	return agent.New(agent.Config{
		ID:            AgentID,
		Description:   "Updates, cancels, and recreates customer orders.",
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

// NewRegistry builds the orders tool registry over the given store.
func NewRegistry(st store.Store) (*tools.Registry, error) {
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	reg := tools.NewRegistry()
	specs := []tools.ToolSpec{
		{
			Name:          "orders.update_status",
			Description:   "Update the status of an order.",
			InputSchema:   updateStatusSchema,
			MultiTenant:   true,
			TenantHandler: updateStatus(st),
		},
		{
			Name:          "orders.cancel",
			Description:   "Cancel an order.",
			InputSchema:   cancelSchema,
			MultiTenant:   true,
			TenantHandler: cancel(st),
		},
		{
			Name:          "orders.recreate",
			Description:   "Create a replacement order for an existing order and mark the original as replaced.",
			InputSchema:   recreateSchema,
			MultiTenant:   true,
			TenantHandler: recreate(st),
		},
	}
	for _, spec := range specs {
		if err := reg.Register(spec); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func updateStatus(st store.Store) tools.TenantHandler {
	return func(ctx context.Context, tenantID string, payload map[string]any) (any, error) {
		orderID, _ := payload["orderId"].(string)
		status, _ := payload["status"].(string)
		rec, err := loadOrder(ctx, st, tenantID, orderID)
		if err != nil {
			return nil, err
		}
		rec.Value["status"] = status
		if note, ok := payload["note"].(string); ok && note != "" {
			rec.Value["note"] = note
		}
		if _, err := st.Update(ctx, tenantID, orderKey(orderID), rec.Version, rec.Value); err != nil {
			return nil, writeError(orderID, err)
		}
		return fmt.Sprintf("order %s status updated to %s", orderID, status), nil
	}
}

func cancel(st store.Store) tools.TenantHandler {
	return func(ctx context.Context, tenantID string, payload map[string]any) (any, error) {
		orderID, _ := payload["orderId"].(string)
		rec, err := loadOrder(ctx, st, tenantID, orderID)
		if err != nil {
			return nil, err
		}
		if rec.Value["status"] == "canceled" {
			return nil, toolerrors.Errorf("order %s is already canceled", orderID)
		}
		rec.Value["status"] = "canceled"
		if reason, ok := payload["reason"].(string); ok && reason != "" {
			rec.Value["cancelReason"] = reason
		}
		if _, err := st.Update(ctx, tenantID, orderKey(orderID), rec.Version, rec.Value); err != nil {
			return nil, writeError(orderID, err)
		}
		return fmt.Sprintf("order %s canceled", orderID), nil
	}
}

func recreate(st store.Store) tools.TenantHandler {
	return func(ctx context.Context, tenantID string, payload map[string]any) (any, error) {
		orderID, _ := payload["orderId"].(string)
		rec, err := loadOrder(ctx, st, tenantID, orderID)
		if err != nil {
			return nil, err
		}
		// Mark the original replaced first: the conditional write is the
		// at-most-once guard against two concurrent recreations.
		if rec.Value["status"] == "replaced" {
			return nil, toolerrors.Errorf("order %s was already replaced by %v", orderID, rec.Value["replacementId"])
		}
		replacementID := orderID + "-R" + uuid.NewString()[:8]
		rec.Value["status"] = "replaced"
		rec.Value["replacementId"] = replacementID
		if _, err := st.Update(ctx, tenantID, orderKey(orderID), rec.Version, rec.Value); err != nil {
			return nil, writeError(orderID, err)
		}

		replacement := map[string]any{
			"status":          "pending",
			"originalOrderId": orderID,
		}
		for _, field := range []string{"items", "customer", "address", "value"} {
			if v, ok := rec.Value[field]; ok {
				replacement[field] = v
			}
		}
		if _, err := st.Put(ctx, tenantID, orderKey(replacementID), replacement); err != nil {
			return nil, toolerrors.Errorf("create replacement for %s: %v", orderID, err)
		}
		return fmt.Sprintf("order %s recreated as %s", orderID, replacementID), nil
	}
}

func loadOrder(ctx context.Context, st store.Store, tenantID, orderID string) (store.Record, error) {
	rec, err := st.Get(ctx, tenantID, orderKey(orderID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Record{}, toolerrors.Errorf("order %s not found", orderID)
		}
		return store.Record{}, toolerrors.Errorf("load order %s: %v", orderID, err)
	}
	if rec.Value == nil {
		rec.Value = make(map[string]any)
	}
	return rec, nil
}

func writeError(orderID string, err error) error {
	if errors.Is(err, store.ErrConflict) {
		return toolerrors.Errorf("order %s was modified concurrently; re-read and retry", orderID)
	}
	return toolerrors.Errorf("write order %s: %v", orderID, err)
}

func orderKey(orderID string) string {
	return "order/" + orderID
}
