// Package inmem provides an in-memory store.Store for tests and local
// development. Production deployments use the MongoDB-backed implementation
// in features/store/mongo.
package inmem

import (
	"context"
	"sync"

	"github.com/parcelops/resolve/runtime/store"
)

// Store implements store.Store with a two-level map: tenant -> key -> record.
// All operations copy values defensively and are safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	tenants map[string]map[string]store.Record
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{tenants: make(map[string]map[string]store.Record)}
}

// Get returns the record for the tenant's key.
func (s *Store) Get(_ context.Context, tenantID, key string) (store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.tenants[tenantID][key]
	if !ok {
		return store.Record{}, store.ErrNotFound
	}
	return copyRecord(rec), nil
}

// Put creates or replaces the record unconditionally.
func (s *Store) Put(_ context.Context, tenantID, key string, value map[string]any) (store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := s.tenants[tenantID]
	if records == nil {
		records = make(map[string]store.Record)
		s.tenants[tenantID] = records
	}
	rec := store.Record{Value: copyValue(value), Version: records[key].Version + 1}
	records[key] = rec
	return copyRecord(rec), nil
}

// Update replaces the record only when the stored version matches
// expectedVersion.
func (s *Store) Update(_ context.Context, tenantID, key string, expectedVersion int64, value map[string]any) (store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := s.tenants[tenantID]
	current, ok := records[key]
	if !ok {
		return store.Record{}, store.ErrNotFound
	}
	if current.Version != expectedVersion {
		return store.Record{}, store.ErrConflict
	}
	rec := store.Record{Value: copyValue(value), Version: current.Version + 1}
	records[key] = rec
	return copyRecord(rec), nil
}

func copyRecord(rec store.Record) store.Record {
	return store.Record{Value: copyValue(rec.Value), Version: rec.Version}
}

func copyValue(value map[string]any) map[string]any {
	if value == nil {
		return nil
	}
	out := make(map[string]any, len(value))
	for k, v := range value {
		out[k] = v
	}
	return out
}
