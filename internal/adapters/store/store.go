// Package store defines the consumed document-store contract and its
// embedded BadgerDB implementation.
//
// The store is the sole source of truth for shared report state. Callers
// get document read-by-key, write/merge, atomic numeric increment, and a
// subscribe-to-collection primitive that pushes full result snapshots on
// any change.
package store

import "context"

// Document is one stored record: an opaque ID plus a JSON payload.
type Document struct {
	ID   string
	Data []byte
}

// CancelFunc releases a subscription. It is idempotent; after it returns
// the snapshot channel is closed and no further pushes occur.
type CancelFunc func()

// Store provides read/write/subscribe access to JSON documents grouped
// into collections.
type Store interface {
	// Get reads a document by key. Returns ErrNotFound when absent.
	Get(ctx context.Context, collection, id string) (Document, error)

	// Set writes a document wholesale, creating or replacing it.
	Set(ctx context.Context, collection, id string, data []byte) error

	// Update merges partial fields into an existing JSON document.
	// Returns ErrNotFound when the document is absent.
	Update(ctx context.Context, collection, id string, fields map[string]any) error

	// Delete removes a document. Deleting an absent document is a no-op.
	Delete(ctx context.Context, collection, id string) error

	// Increment atomically adds delta to a numeric field, creating the
	// field at delta if missing, and returns the new value. Counters
	// floor at zero.
	Increment(ctx context.Context, collection, id, field string, delta int64) (int64, error)

	// List returns every document in the collection in key order.
	List(ctx context.Context, collection string) ([]Document, error)

	// Subscribe delivers the full current document set of the collection
	// on every change. Snapshots arrive in order per subscription;
	// intermediate states may coalesce. The first push is the current
	// state at subscription time.
	Subscribe(ctx context.Context, collection string) (<-chan []Document, CancelFunc, error)

	// Close releases the store. All subscriptions are cancelled.
	Close() error
}
