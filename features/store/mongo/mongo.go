// Package mongo provides a MongoDB implementation of the domain record
// store. Records persist across restarts and conditional writes are enforced
// server-side, so concurrent tool invocations against the same record are
// serialized by the database rather than by process-local locks.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/parcelops/resolve/runtime/store"
)

// Store is a MongoDB implementation of the store.Store interface.
type Store struct {
	collection *mongo.Collection
}

// Compile-time check that Store implements store.Store.
var _ store.Store = (*Store)(nil)

// recordDocument is the MongoDB document representation of a tenant record.
type recordDocument struct {
	ID      string         `bson:"_id"`
	Tenant  string         `bson:"tenant"`
	Key     string         `bson:"key"`
	Value   map[string]any `bson:"value"`
	Version int64          `bson:"version"`
}

// New creates a MongoDB store using the provided collection. The collection
// should be from a connected MongoDB client.
func New(collection *mongo.Collection) *Store {
	return &Store{collection: collection}
}

// Get returns the record for the tenant's key.
func (s *Store) Get(ctx context.Context, tenantID, key string) (store.Record, error) {
	var doc recordDocument
	err := s.collection.FindOne(ctx, bson.M{"_id": docID(tenantID, key)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return store.Record{}, store.ErrNotFound
		}
		return store.Record{}, fmt.Errorf("mongodb get %s/%s: %w", tenantID, key, err)
	}
	return store.Record{Value: doc.Value, Version: doc.Version}, nil
}

// Put creates or replaces the record unconditionally, incrementing its
// version atomically server-side.
func (s *Store) Put(ctx context.Context, tenantID, key string, value map[string]any) (store.Record, error) {
	update := bson.M{
		"$set": bson.M{"tenant": tenantID, "key": key, "value": value},
		"$inc": bson.M{"version": int64(1)},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var doc recordDocument
	err := s.collection.FindOneAndUpdate(ctx, bson.M{"_id": docID(tenantID, key)}, update, opts).Decode(&doc)
	if err != nil {
		return store.Record{}, fmt.Errorf("mongodb put %s/%s: %w", tenantID, key, err)
	}
	return store.Record{Value: doc.Value, Version: doc.Version}, nil
}

// Update replaces the record only when its stored version still matches
// expectedVersion. The version check and the write are one conditional
// database operation, so two racing updates cannot both succeed.
func (s *Store) Update(ctx context.Context, tenantID, key string, expectedVersion int64, value map[string]any) (store.Record, error) {
	filter := bson.M{"_id": docID(tenantID, key), "version": expectedVersion}
	update := bson.M{
		"$set": bson.M{"value": value},
		"$inc": bson.M{"version": int64(1)},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc recordDocument
	err := s.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err == nil {
		return store.Record{Value: doc.Value, Version: doc.Version}, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return store.Record{}, fmt.Errorf("mongodb update %s/%s: %w", tenantID, key, err)
	}
	// No document matched: either the record is missing or the version moved.
	if _, getErr := s.Get(ctx, tenantID, key); getErr != nil {
		if errors.Is(getErr, store.ErrNotFound) {
			return store.Record{}, store.ErrNotFound
		}
		return store.Record{}, getErr
	}
	return store.Record{}, store.ErrConflict
}

// docID builds the composite document identifier. Tenant and key are also
// stored as separate fields for querying.
func docID(tenantID, key string) string {
	return tenantID + "/" + key
}
