// Package ledger maintains per-report, per-user idempotent vote
// membership over the document store.
//
// The existence of an entry is the sole source of truth for "has this
// user upvoted". The report's upvote counter is a denormalized cache of
// entry cardinality: the entry write and the counter increment are two
// store operations, not one atomic commit, so a crash between them leaves
// a transient divergence. Reconcile repairs it from ledger cardinality.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/streetfix/streetfix/internal/adapters/store"
	"github.com/streetfix/streetfix/internal/domain/model"
	"github.com/streetfix/streetfix/pkg/logger"
	"github.com/streetfix/streetfix/pkg/metrics"
)

// Collection layout constants.
const (
	defaultReportsCollection = "reports"
	upvotesPrefix            = "upvotes"
	counterField             = "upvote_count"
)

// ToggleResult reports the outcome of one vote toggle.
type ToggleResult struct {
	NowUpvoted bool
	Count      int64
}

// Ledger applies idempotent vote toggles. Exactly one Toggle per
// (reportID, userID) is in flight at a time; rapid double toggles from
// the same user serialize instead of racing the read.
type Ledger struct {
	store    store.Store
	reports  string
	inflight keyedMutex
	logger   logger.Logger
	now      func() time.Time
}

// Option applies a configuration option to the Ledger.
type Option func(*Ledger)

// WithReportsCollection overrides the reports collection name.
func WithReportsCollection(name string) Option {
	return func(l *Ledger) {
		if name != "" {
			l.reports = name
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(lg logger.Logger) Option {
	return func(l *Ledger) {
		if lg != nil {
			l.logger = lg
		}
	}
}

// WithClock overrides the time source. For tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// New creates a Ledger backed by the given store.
func New(st store.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:   st,
		reports: defaultReportsCollection,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = logger.Get().Named("ledger")
	}
	return l
}

// entriesCollection returns the per-report ledger collection.
func (l *Ledger) entriesCollection(reportID string) string {
	return upvotesPrefix + "/" + reportID
}

// Toggle flips the actor's vote on a report and returns the new counter
// value. Entry absent: create it, increment the counter. Entry present:
// delete it, decrement. The two writes are not one atomic commit; see the
// package comment for the recovery story.
func (l *Ledger) Toggle(ctx context.Context, reportID, userID string) (ToggleResult, error) {
	if reportID == "" || userID == "" {
		return ToggleResult{}, fmt.Errorf("%w: empty report or user id", ErrBadToggle)
	}

	unlock := l.inflight.lock(reportID + "/" + userID)
	defer unlock()

	coll := l.entriesCollection(reportID)
	_, err := l.store.Get(ctx, coll, userID)
	switch {
	case err == nil:
		// Entry present: toggle off.
		if err := l.store.Delete(ctx, coll, userID); err != nil {
			metrics.RecordUpvoteToggleError()
			return ToggleResult{}, fmt.Errorf("remove vote entry: %w", err)
		}
		count, err := l.store.Increment(ctx, l.reports, reportID, counterField, -1)
		if err != nil {
			metrics.RecordUpvoteToggleError()
			return ToggleResult{}, fmt.Errorf("decrement vote counter: %w", err)
		}
		metrics.RecordUpvoteToggle("off")
		return ToggleResult{NowUpvoted: false, Count: count}, nil

	case errors.Is(err, store.ErrNotFound):
		// Entry absent: toggle on.
		entry := model.UpvoteEntry{
			ReportID:  reportID,
			UserID:    userID,
			CreatedAt: l.now().UTC(),
		}
		data, err := json.Marshal(entry)
		if err != nil {
			return ToggleResult{}, fmt.Errorf("encode vote entry: %w", err)
		}
		if err := l.store.Set(ctx, coll, userID, data); err != nil {
			metrics.RecordUpvoteToggleError()
			return ToggleResult{}, fmt.Errorf("write vote entry: %w", err)
		}
		count, err := l.store.Increment(ctx, l.reports, reportID, counterField, 1)
		if err != nil {
			metrics.RecordUpvoteToggleError()
			return ToggleResult{}, fmt.Errorf("increment vote counter: %w", err)
		}
		metrics.RecordUpvoteToggle("on")
		return ToggleResult{NowUpvoted: true, Count: count}, nil

	default:
		metrics.RecordUpvoteToggleError()
		return ToggleResult{}, fmt.Errorf("read vote entry: %w", err)
	}
}

// HasUpvoted reports whether a ledger entry exists for the pair.
func (l *Ledger) HasUpvoted(ctx context.Context, reportID, userID string) (bool, error) {
	_, err := l.store.Get(ctx, l.entriesCollection(reportID), userID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read vote entry: %w", err)
	}
	return true, nil
}

// Cardinality returns the true ledger entry count for a report.
func (l *Ledger) Cardinality(ctx context.Context, reportID string) (int64, error) {
	docs, err := l.store.List(ctx, l.entriesCollection(reportID))
	if err != nil {
		return 0, fmt.Errorf("list vote entries: %w", err)
	}
	return int64(len(docs)), nil
}

// Reconcile recomputes the denormalized counter from ledger cardinality
// and repairs the report document when they diverge. Returns the true
// count.
func (l *Ledger) Reconcile(ctx context.Context, reportID string) (int64, error) {
	metrics.RecordReconciliationRun()

	truth, err := l.Cardinality(ctx, reportID)
	if err != nil {
		return 0, err
	}

	doc, err := l.store.Get(ctx, l.reports, reportID)
	if err != nil {
		return 0, fmt.Errorf("read report: %w", err)
	}
	var report model.ReportRecord
	if err := json.Unmarshal(doc.Data, &report); err != nil {
		return 0, fmt.Errorf("decode report: %w", err)
	}

	if report.UpvoteCount != truth {
		l.logger.Warn(ctx, "vote counter diverged from ledger; repairing",
			logger.String("report", reportID),
			logger.Int64("counter", report.UpvoteCount),
			logger.Int64("ledger", truth),
		)
		if err := l.store.Update(ctx, l.reports, reportID, map[string]any{counterField: truth}); err != nil {
			return 0, fmt.Errorf("repair vote counter: %w", err)
		}
		metrics.RecordReconciliationRepair()
	}
	return truth, nil
}

// PurgeReport drops every ledger entry for a deleted report so stale
// entries cannot resurrect counts.
func (l *Ledger) PurgeReport(ctx context.Context, reportID string) error {
	coll := l.entriesCollection(reportID)
	docs, err := l.store.List(ctx, coll)
	if err != nil {
		return fmt.Errorf("list vote entries: %w", err)
	}
	for _, doc := range docs {
		if err := l.store.Delete(ctx, coll, doc.ID); err != nil {
			return fmt.Errorf("purge vote entry %s: %w", doc.ID, err)
		}
	}
	return nil
}
