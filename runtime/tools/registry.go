// Package tools implements the tool registry: the mapping from tool names to
// input schemas, handlers, and tenancy flags. The registry is populated at
// startup and read-only afterwards; reasoning loops resolve tools by name and
// invoke them with payloads validated against the declared schema.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ErrUnknownTool is returned by Resolve and Invoke when the requested tool
// name is not registered. Callers inside a reasoning loop convert it into a
// tool-execution error fed back to the model rather than raising it.
var ErrUnknownTool = errors.New("unknown tool")

type (
	// ValidationError reports a payload that failed validation against the
	// tool's declared input schema. It is recovered locally by feeding the
	// issues back into the reasoning loop, never raised to the top level.
	ValidationError struct {
		// Tool identifies the tool whose schema rejected the payload.
		Tool Ident
		// Issues lists the human-readable validation failures.
		Issues []string
	}

	// Registry maps tool names to specs with compiled input schemas. It is
	// safe for concurrent use; registration normally completes before the
	// first Resolve so reads are effectively lock-free in steady state.
	Registry struct {
		mu      sync.RWMutex
		specs   map[Ident]ToolSpec
		schemas map[Ident]*jsonschema.Schema
	}
)

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("invalid payload for tool %q: %s", e.Tool, strings.Join(e.Issues, "; "))
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		specs:   make(map[Ident]ToolSpec),
		schemas: make(map[Ident]*jsonschema.Schema),
	}
}

// Register adds a tool spec to the registry. It validates the spec (name,
// schema, handler arity consistent with the tenancy flag) and compiles the
// input schema once so Invoke can validate payloads cheaply. Registering the
// same name twice is an error; tools are not redefined at runtime.
func (r *Registry) Register(spec ToolSpec) error {
	if spec.Name == "" {
		return errors.New("tool name is required")
	}
	if len(spec.InputSchema) == 0 {
		return fmt.Errorf("tool %q: input schema is required", spec.Name)
	}
	if spec.MultiTenant {
		if spec.TenantHandler == nil {
			return fmt.Errorf("tool %q: tenant handler is required for multi-tenant tools", spec.Name)
		}
		if spec.Handler != nil {
			return fmt.Errorf("tool %q: multi-tenant tools must not set Handler", spec.Name)
		}
	} else {
		if spec.Handler == nil {
			return fmt.Errorf("tool %q: handler is required", spec.Name)
		}
		if spec.TenantHandler != nil {
			return fmt.Errorf("tool %q: single-tenant tools must not set TenantHandler", spec.Name)
		}
	}

	schema, err := compileSchema(spec.Name, spec.InputSchema)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.specs[spec.Name]; ok {
		return fmt.Errorf("tool %q: already registered", spec.Name)
	}
	r.specs[spec.Name] = spec
	r.schemas[spec.Name] = schema
	return nil
}

// Resolve returns the spec for the given tool name. The returned error wraps
// ErrUnknownTool when the name is not registered.
func (r *Registry) Resolve(name Ident) (ToolSpec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.specs[name]
	if !ok {
		return ToolSpec{}, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return spec, nil
}

// Descriptors returns the model-facing projection of every registered tool,
// sorted by name. Handlers and tenancy flags are stripped: the model sees
// name, description, and schema only.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	descs := make([]Descriptor, 0, len(r.specs))
	for _, spec := range r.specs {
		var schema map[string]any
		// Schemas were validated as JSON objects at registration.
		_ = json.Unmarshal(spec.InputSchema, &schema)
		descs = append(descs, Descriptor{
			Name:        spec.Name.String(),
			Description: spec.Description,
			InputSchema: schema,
		})
	}
	sort.Slice(descs, func(i, j int) bool { return descs[i].Name < descs[j].Name })
	return descs
}

// Validate checks the payload against the tool's declared input schema.
// Returns a *ValidationError on schema violation and ErrUnknownTool when the
// tool is not registered.
func (r *Registry) Validate(name Ident, payload map[string]any) error {
	r.mu.RLock()
	schema, ok := r.schemas[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	// jsonschema validates generic JSON values; round-trip the payload so
	// numeric types match what the validator expects.
	raw, err := json.Marshal(payload)
	if err != nil {
		return &ValidationError{Tool: name, Issues: []string{err.Error()}}
	}
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(raw)))
	if err != nil {
		return &ValidationError{Tool: name, Issues: []string{err.Error()}}
	}
	if err := schema.Validate(doc); err != nil {
		return &ValidationError{Tool: name, Issues: []string{err.Error()}}
	}
	return nil
}

// Invoke resolves the tool, validates the payload, and executes the handler.
// Multi-tenant tools receive the tenant identifier from the trusted caller
// context; single-tenant tools receive the payload alone. All failures are
// returned as errors for the caller to convert into tool results.
func (r *Registry) Invoke(ctx context.Context, name Ident, tenantID string, payload map[string]any) (any, error) {
	spec, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}
	if err := r.Validate(name, payload); err != nil {
		return nil, err
	}
	if spec.MultiTenant {
		if tenantID == "" {
			return nil, fmt.Errorf("tool %q: tenant id is required", name)
		}
		return spec.TenantHandler(ctx, tenantID, payload)
	}
	return spec.Handler(ctx, payload)
}

// compileSchema parses and compiles a JSON Schema document for the tool.
func compileSchema(name Ident, schemaBytes []byte) (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(schemaBytes)))
	if err != nil {
		return nil, fmt.Errorf("tool %q: input schema is not valid JSON: %w", name, err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", doc); err != nil {
		return nil, fmt.Errorf("tool %q: add schema resource: %w", name, err)
	}
	schema, err := c.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("tool %q: compile input schema: %w", name, err)
	}
	return schema, nil
}
