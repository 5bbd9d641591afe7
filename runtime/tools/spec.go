package tools

import "context"

type (
	// Handler executes a single-tenant tool. The payload has already been
	// validated against the tool's input schema.
	Handler func(ctx context.Context, payload map[string]any) (any, error)

	// TenantHandler executes a multi-tenant tool. The tenant identifier is
	// supplied by the trusted caller context, never derived from model output,
	// so a prompt-injected payload cannot reach another tenant's records.
	TenantHandler func(ctx context.Context, tenantID string, payload map[string]any) (any, error)

	// ToolSpec enumerates the metadata and handler for a registered tool.
	ToolSpec struct {
		// Name is the globally unique tool identifier (`toolset.tool`).
		Name Ident
		// Description provides human-readable context for planners and tooling.
		Description string
		// InputSchema is the JSON Schema document describing the tool's
		// payload. Required; payloads are validated against it before the
		// handler runs.
		InputSchema []byte
		// MultiTenant indicates the tool operates on tenant-scoped records.
		// When true TenantHandler must be set; otherwise Handler must be set.
		MultiTenant bool
		// Handler executes single-tenant tools. Nil when MultiTenant is true.
		Handler Handler
		// TenantHandler executes multi-tenant tools. Nil when MultiTenant is false.
		TenantHandler TenantHandler
	}

	// Descriptor is the model-facing projection of a ToolSpec. It strips the
	// handler and tenancy flag so implementation details never reach the model.
	Descriptor struct {
		// Name is the tool identifier presented to the model.
		Name string
		// Description documents the tool for prompting purposes.
		Description string
		// InputSchema is the decoded JSON Schema object for the tool payload.
		InputSchema map[string]any
	}
)
