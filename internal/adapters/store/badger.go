package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/streetfix/streetfix/pkg/metrics"
)

// incrementRetries bounds optimistic-transaction retries on conflict.
const incrementRetries = 5

// BadgerStore implements Store on an embedded BadgerDB. Keys are
// "collection/id"; values are the raw JSON payloads.
type BadgerStore struct {
	db *badger.DB

	mu     sync.Mutex
	subs   map[string][]*subscription
	closed bool

	path     string
	inMemory bool
}

// subscription is one live snapshot-push watch on a collection.
type subscription struct {
	collection string
	dirty      chan struct{} // capacity 1; coalesces change notifications
	out        chan []Document
	stop       chan struct{}
	cancelOnce sync.Once
	done       chan struct{}
}

// NewBadgerStore opens (or creates) a Badger-backed store.
func NewBadgerStore(opts ...Option) (*BadgerStore, error) {
	s := &BadgerStore{
		subs: make(map[string][]*subscription),
	}
	for _, opt := range opts {
		opt(s)
	}

	var bopts badger.Options
	if s.inMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		bopts = badger.DefaultOptions(s.path)
	}
	bopts = bopts.WithLogger(nil)

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	s.db = db
	return s, nil
}

func key(collection, id string) []byte {
	return []byte(collection + "/" + id)
}

func observe(op string, start time.Time) {
	metrics.RecordStoreOpLatency(op, float64(time.Since(start).Milliseconds()))
}

// Get reads a document by key.
func (s *BadgerStore) Get(ctx context.Context, collection, id string) (Document, error) {
	defer observe("get", time.Now())
	if err := s.guard(ctx); err != nil {
		return Document{}, err
	}

	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(collection, id))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Document{}, fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	if err != nil {
		metrics.RecordStoreError("get")
		return Document{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return Document{ID: id, Data: data}, nil
}

// Set writes a document wholesale.
func (s *BadgerStore) Set(ctx context.Context, collection, id string, data []byte) error {
	defer observe("set", time.Now())
	if err := s.guard(ctx); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(collection, id), data)
	})
	if err != nil {
		metrics.RecordStoreError("set")
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	s.notify(collection)
	return nil
}

// Update merges partial fields into an existing JSON document.
func (s *BadgerStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	defer observe("update", time.Now())
	if err := s.guard(ctx); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key(collection, id))
		if err != nil {
			return err
		}
		data, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		var doc map[string]any
		if err := json.Unmarshal(data, &doc); err != nil {
			return err
		}
		for k, v := range fields {
			doc[k] = v
		}
		merged, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		return txn.Set(key(collection, id), merged)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	if err != nil {
		metrics.RecordStoreError("update")
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	s.notify(collection)
	return nil
}

// Delete removes a document. Absent documents are a no-op.
func (s *BadgerStore) Delete(ctx context.Context, collection, id string) error {
	defer observe("delete", time.Now())
	if err := s.guard(ctx); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(collection, id))
	})
	if err != nil {
		metrics.RecordStoreError("delete")
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	s.notify(collection)
	return nil
}

// Increment atomically adds delta to a numeric field and returns the new
// value, flooring at zero. The read-modify-write runs in one transaction;
// conflicting concurrent increments retry.
func (s *BadgerStore) Increment(ctx context.Context, collection, id, field string, delta int64) (int64, error) {
	defer observe("increment", time.Now())
	if err := s.guard(ctx); err != nil {
		return 0, err
	}

	var result int64
	var err error
	for attempt := 0; attempt < incrementRetries; attempt++ {
		err = s.db.Update(func(txn *badger.Txn) error {
			item, err := txn.Get(key(collection, id))
			if err != nil {
				return err
			}
			data, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			var doc map[string]any
			if err := json.Unmarshal(data, &doc); err != nil {
				return err
			}
			var current int64
			if raw, ok := doc[field]; ok {
				if f, ok := raw.(float64); ok {
					current = int64(f)
				}
			}
			next := current + delta
			if next < 0 {
				next = 0
			}
			doc[field] = next
			merged, err := json.Marshal(doc)
			if err != nil {
				return err
			}
			result = next
			return txn.Set(key(collection, id), merged)
		})
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
	}
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	if err != nil {
		metrics.RecordStoreError("increment")
		return 0, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	s.notify(collection)
	return result, nil
}

// List returns every document in the collection in key order.
func (s *BadgerStore) List(ctx context.Context, collection string) ([]Document, error) {
	defer observe("list", time.Now())
	if err := s.guard(ctx); err != nil {
		return nil, err
	}

	prefix := []byte(collection + "/")
	var docs []Document
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			id := strings.TrimPrefix(string(item.Key()), collection+"/")
			// Skip nested collections, e.g. "upvotes/<report>/<user>"
			// under a "upvotes" listing.
			if strings.Contains(id, "/") {
				continue
			}
			data, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			docs = append(docs, Document{ID: id, Data: data})
		}
		return nil
	})
	if err != nil {
		metrics.RecordStoreError("list")
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return docs, nil
}

// Subscribe registers a snapshot-push watch on the collection. The pump
// goroutine delivers the current state immediately, then a fresh full
// snapshot after every change, coalescing bursts to the latest state.
func (s *BadgerStore) Subscribe(ctx context.Context, collection string) (<-chan []Document, CancelFunc, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, nil, ErrClosed
	}
	sub := &subscription{
		collection: collection,
		dirty:      make(chan struct{}, 1),
		out:        make(chan []Document),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	s.subs[collection] = append(s.subs[collection], sub)
	s.updateSubscriptionGauge()
	s.mu.Unlock()

	// Seed the first push with current state.
	sub.dirty <- struct{}{}

	go s.pump(ctx, sub)

	cancel := func() {
		sub.cancelOnce.Do(func() {
			close(sub.stop)
		})
		<-sub.done
	}
	return sub.out, cancel, nil
}

// pump drives one subscription: it re-reads the collection whenever the
// dirty flag is set and pushes the snapshot in order. It owns sub.out.
func (s *BadgerStore) pump(ctx context.Context, sub *subscription) {
	defer func() {
		s.removeSub(sub)
		close(sub.out)
		close(sub.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.stop:
			return
		case <-sub.dirty:
			docs, err := s.List(ctx, sub.collection)
			if err != nil {
				// Store closed or unavailable; subscription ends.
				return
			}
			select {
			case sub.out <- docs:
			case <-ctx.Done():
				return
			case <-sub.stop:
				return
			}
		}
	}
}

// notify flags every subscription on the collection dirty. A full
// notification already pending is enough; snapshots coalesce.
func (s *BadgerStore) notify(collection string) {
	s.mu.Lock()
	subs := make([]*subscription, len(s.subs[collection]))
	copy(subs, s.subs[collection])
	s.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub.dirty <- struct{}{}:
		default:
		}
	}
}

func (s *BadgerStore) removeSub(sub *subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.subs[sub.collection]
	for i, candidate := range list {
		if candidate == sub {
			s.subs[sub.collection] = append(list[:i], list[i+1:]...)
			break
		}
	}
	s.updateSubscriptionGauge()
}

// updateSubscriptionGauge must be called with s.mu held.
func (s *BadgerStore) updateSubscriptionGauge() {
	total := 0
	for _, list := range s.subs {
		total += len(list)
	}
	metrics.UpdateActiveSubscriptions(total)
}

// guard rejects operations on a closed store or done context.
func (s *BadgerStore) guard(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Close stops all subscriptions and releases the database.
func (s *BadgerStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	var all []*subscription
	for _, list := range s.subs {
		all = append(all, list...)
	}
	s.mu.Unlock()

	for _, sub := range all {
		sub.cancelOnce.Do(func() {
			close(sub.stop)
		})
		<-sub.done
	}

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}
