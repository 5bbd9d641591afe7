// Package store defines the tenant-scoped key-value store that domain tools
// operate on (orders, payments, inventory). Writes use optimistic
// concurrency: an update succeeds only when the expected prior version still
// holds, so concurrent tool invocations against the same record fail loudly
// instead of silently overwriting each other.
package store

import (
	"context"
	"errors"
)

// Sentinel errors returned by Store implementations.
var (
	// ErrNotFound indicates the record does not exist for the tenant.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates a conditional write lost the race: the record's
	// version no longer matches the expected value.
	ErrConflict = errors.New("conditional write conflict")
)

type (
	// Record is a versioned domain record. Version starts at 1 and increments
	// on every write.
	Record struct {
		// Value is the record payload.
		Value map[string]any `json:"value"`
		// Version is the optimistic concurrency token.
		Version int64 `json:"version"`
	}

	// Store persists tenant-scoped records. Keys are namespaced per tenant:
	// identically-named keys under different tenants never collide.
	Store interface {
		// Get returns the record for the tenant's key. Returns ErrNotFound
		// when missing.
		Get(ctx context.Context, tenantID, key string) (Record, error)
		// Put creates or replaces the record unconditionally and returns the
		// stored record with its new version.
		Put(ctx context.Context, tenantID, key string, value map[string]any) (Record, error)
		// Update replaces the record only if its current version equals
		// expectedVersion. Returns ErrConflict when the version moved and
		// ErrNotFound when the record does not exist.
		Update(ctx context.Context, tenantID, key string, expectedVersion int64, value map[string]any) (Record, error)
	}
)
