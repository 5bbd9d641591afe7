// Package warehouse hosts the warehouse specialist: checking stock and
// allocating replacement inventory. Allocations decrement tenant-scoped
// inventory records with conditional writes, so concurrent allocations of the
// same SKU cannot oversell.
package warehouse

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

// AgentID is the identifier the warehouse agent publishes to the directory.
const AgentID = "warehouse"

const systemPrompt = `You are the warehouse specialist. Use your tools to check stock and
allocate replacement inventory. If stock is insufficient, report the shortage
instead of allocating a partial amount.`

var checkStockSchema = []byte(`{
	"type": "object",
	"properties": {
		"sku": {"type": "string", "description": "Stock keeping unit to check."}
	},
	"required": ["sku"],
	"additionalProperties": false
}`)

var allocateSchema = []byte(`{
	"type": "object",
	"properties": {
		"sku": {"type": "string", "description": "Stock keeping unit to allocate."},
		"quantity": {"type": "integer", "minimum": 1, "description": "Units to allocate."},
		"orderId": {"type": "string", "description": "Order the allocation is for."}
	},
	"required": ["sku", "quantity"],
	"additionalProperties": false
}`)

// Config configures the warehouse agent.
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

// New builds the warehouse specialist agent with its tool registry.
func New(cfg Config) (*agent.Agent, error) {
	reg, err := NewRegistry(cfg.Store)
	if err != nil {
		return nil, err
	}
	return agent.New(agent.Config{
		ID:            AgentID,
		Description:   "Checks stock and allocates replacement inventory.",
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

// NewRegistry builds the warehouse tool registry over the given store.
func NewRegistry(st store.Store) (*tools.Registry, error) {
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	reg := tools.NewRegistry()
	specs := []tools.ToolSpec{
		{
			Name:          "warehouse.check_stock",
			Description:   "Report the available quantity for a SKU.",
			InputSchema:   checkStockSchema,
			MultiTenant:   true,
			TenantHandler: checkStock(st),
		},
		{
			Name:          "warehouse.allocate",
			Description:   "Allocate inventory for a replacement shipment.",
			InputSchema:   allocateSchema,
			MultiTenant:   true,
			TenantHandler: allocate(st),
		},
	}
	for _, spec := range specs {
		if err := reg.Register(spec); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func checkStock(st store.Store) tools.TenantHandler {
	return func(ctx context.Context, tenantID string, payload map[string]any) (any, error) {
		sku, _ := payload["sku"].(string)
		rec, err := st.Get(ctx, tenantID, inventoryKey(sku))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Sprintf("sku %s: 0 units available", sku), nil
			}
			return nil, toolerrors.Errorf("load inventory for %s: %v", sku, err)
		}
		available, _ := rec.Value["available"].(float64)
		return fmt.Sprintf("sku %s: %d units available", sku, int(available)), nil
	}
}

func allocate(st store.Store) tools.TenantHandler {
	return func(ctx context.Context, tenantID string, payload map[string]any) (any, error) {
		sku, _ := payload["sku"].(string)
		quantity, _ := payload["quantity"].(float64)
		rec, err := st.Get(ctx, tenantID, inventoryKey(sku))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, toolerrors.Errorf("sku %s has no inventory record", sku)
			}
			return nil, toolerrors.Errorf("load inventory for %s: %v", sku, err)
		}
		available, _ := rec.Value["available"].(float64)
		if available < quantity {
			return nil, toolerrors.Errorf("insufficient inventory for sku %s: %d available, %d requested",
				sku, int(available), int(quantity))
		}

		rec.Value["available"] = available - quantity
		if orderID, ok := payload["orderId"].(string); ok && orderID != "" {
			rec.Value["lastAllocationOrder"] = orderID
		}
		if _, err := st.Update(ctx, tenantID, inventoryKey(sku), rec.Version, rec.Value); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return nil, toolerrors.Errorf("inventory for sku %s changed concurrently; allocation not applied", sku)
			}
			return nil, toolerrors.Errorf("allocate sku %s: %v", sku, err)
		}
		return fmt.Sprintf("allocated %d units of sku %s", int(quantity), sku), nil
	}
}

func inventoryKey(sku string) string {
	return "inventory/" + sku
}
