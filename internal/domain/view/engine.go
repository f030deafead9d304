// Package view maintains a live, ordered local mirror of the shared
// report collection for one connected client.
//
// Every push from the store replaces the entire local view; there is no
// incremental diffing. Local optimistic mutations are hints applied for
// perceived latency and expire on the next authoritative snapshot: the
// snapshot always wins, no merge conflict is ever surfaced.
package view

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/streetfix/streetfix/internal/adapters/store"
	"github.com/streetfix/streetfix/internal/domain/model"
	"github.com/streetfix/streetfix/pkg/logger"
	"github.com/streetfix/streetfix/pkg/metrics"
)

// defaultCollection is the shared report collection name.
const defaultCollection = "reports"

// localMutation is one optimistic overlay entry. Nil fields leave the
// authoritative value untouched.
type localMutation struct {
	count   *int64
	status  *model.Status
	removed bool
}

// Engine is one client's synchronized view of the report set.
type Engine struct {
	store      store.Store
	collection string
	logger     logger.Logger

	mu      sync.RWMutex
	order   model.SortOrder
	base    []model.ReportRecord // last authoritative snapshot
	overlay map[string]*localMutation

	out        chan []model.ReportRecord
	cancel     store.CancelFunc
	subscribed bool
	closed     bool
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithSortOrder sets the initial sort order.
func WithSortOrder(order model.SortOrder) Option {
	return func(e *Engine) {
		if order != "" {
			e.order = order
		}
	}
}

// WithCollection overrides the subscribed collection name.
func WithCollection(name string) Option {
	return func(e *Engine) {
		if name != "" {
			e.collection = name
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(lg logger.Logger) Option {
	return func(e *Engine) {
		if lg != nil {
			e.logger = lg
		}
	}
}

// New creates an Engine over the given store.
func New(st store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:      st,
		collection: defaultCollection,
		order:      model.SortVotesHigh,
		overlay:    make(map[string]*localMutation),
		out:        make(chan []model.ReportRecord, 1),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logger.Get().Named("view")
	}
	return e
}

// Subscribe starts the store watch and returns the snapshot channel.
// Each received slice is a fresh copy the caller owns. The channel closes
// on Unsubscribe.
func (e *Engine) Subscribe(ctx context.Context) (<-chan []model.ReportRecord, error) {
	e.mu.Lock()
	if e.subscribed {
		e.mu.Unlock()
		return nil, ErrAlreadySubscribed
	}
	e.subscribed = true
	e.mu.Unlock()

	docs, cancel, err := e.store.Subscribe(ctx, e.collection)
	if err != nil {
		e.mu.Lock()
		e.subscribed = false
		e.mu.Unlock()
		return nil, err
	}
	e.cancel = cancel

	go func() {
		for snapshot := range docs {
			e.applyAuthoritative(ctx, snapshot)
		}
		e.closeOut()
	}()

	return e.out, nil
}

// applyAuthoritative replaces the whole base view with a store snapshot.
// The optimistic overlay expires wholesale: server truth wins.
func (e *Engine) applyAuthoritative(ctx context.Context, docs []store.Document) {
	records := make([]model.ReportRecord, 0, len(docs))
	for _, doc := range docs {
		var r model.ReportRecord
		if err := json.Unmarshal(doc.Data, &r); err != nil {
			e.logger.Warn(ctx, "dropping undecodable report document",
				logger.String("id", doc.ID), logger.Error(err))
			continue
		}
		if r.ID == "" {
			r.ID = doc.ID
		}
		records = append(records, r)
	}

	e.mu.Lock()
	e.base = records
	e.overlay = make(map[string]*localMutation)
	snap := e.renderLocked()
	e.mu.Unlock()

	metrics.RecordSnapshotPush(len(snap))
	e.emit(snap)
}

// SetSortOrder switches the view ordering and re-emits the current view.
func (e *Engine) SetSortOrder(order model.SortOrder) {
	e.mu.Lock()
	e.order = order
	snap := e.renderLocked()
	e.mu.Unlock()
	e.emit(snap)
}

// SortOrder returns the current ordering.
func (e *Engine) SortOrder() model.SortOrder {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.order
}

// Snapshot returns a copy of the current view (overlay applied, sorted).
func (e *Engine) Snapshot() []model.ReportRecord {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.renderLocked()
}

// ApplyLocalUpvote optimistically sets a report's vote count ahead of
// server confirmation.
func (e *Engine) ApplyLocalUpvote(reportID string, count int64) {
	e.mu.Lock()
	m := e.mutation(reportID)
	m.count = &count
	snap := e.renderLocked()
	e.mu.Unlock()
	e.emit(snap)
}

// ApplyLocalStatus optimistically applies a status change. A resolved
// status removes the record from the local view, mirroring the
// resolve-deletes commit.
func (e *Engine) ApplyLocalStatus(reportID string, st model.Status) {
	e.mu.Lock()
	m := e.mutation(reportID)
	if st == model.StatusResolved {
		m.removed = true
	} else {
		m.status = &st
	}
	snap := e.renderLocked()
	e.mu.Unlock()
	e.emit(snap)
}

// RollbackLocal discards the optimistic overlay for one report, restoring
// the last known-good snapshot value. Used when a store write fails.
func (e *Engine) RollbackLocal(reportID string) {
	e.mu.Lock()
	delete(e.overlay, reportID)
	snap := e.renderLocked()
	e.mu.Unlock()
	e.emit(snap)
}

// Unsubscribe releases the store watch deterministically. Idempotent.
func (e *Engine) Unsubscribe() {
	e.mu.Lock()
	cancel := e.cancel
	e.cancel = nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	e.closeOut()
}

// closeOut closes the snapshot channel exactly once.
func (e *Engine) closeOut() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		close(e.out)
	}
}

// mutation returns the overlay entry for a report, creating it. Must be
// called with e.mu held.
func (e *Engine) mutation(reportID string) *localMutation {
	m, ok := e.overlay[reportID]
	if !ok {
		m = &localMutation{}
		e.overlay[reportID] = m
	}
	return m
}

// renderLocked builds the sorted, overlay-applied view. Must be called
// with e.mu held (read or write).
func (e *Engine) renderLocked() []model.ReportRecord {
	out := make([]model.ReportRecord, 0, len(e.base))
	for _, r := range e.base {
		m, ok := e.overlay[r.ID]
		if ok {
			if m.removed {
				continue
			}
			if m.count != nil {
				r.UpvoteCount = *m.count
			}
			if m.status != nil {
				r.Status = *m.status
			}
		}
		out = append(out, r)
	}
	SortRecords(out, e.order)
	return out
}

// emit pushes a snapshot to the subscriber, coalescing to the latest
// state when the consumer lags. Sends are non-blocking, so holding the
// lock keeps the send race-free against teardown.
func (e *Engine) emit(snap []model.ReportRecord) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.subscribed || e.closed {
		return
	}
	for {
		select {
		case e.out <- snap:
			return
		default:
		}
		select {
		case <-e.out: // discard the stale pending snapshot
		default:
		}
	}
}

// SortRecords orders records by vote count per the sort order. The
// pre-sort puts newer reports first, so vote ties surface the newest
// report (the stable vote sort preserves that ordering).
func SortRecords(records []model.ReportRecord, order model.SortOrder) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	sort.SliceStable(records, func(i, j int) bool {
		if order == model.SortVotesLow {
			return records[i].UpvoteCount < records[j].UpvoteCount
		}
		return records[i].UpvoteCount > records[j].UpvoteCount
	})
}
