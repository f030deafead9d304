// Package model contains domain models passed between layers.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of a report.
//
// Transitions are monotonic: pending -> in_progress -> resolved, with
// pending -> resolved allowed directly. Resolved is terminal and is never
// persisted; committing it deletes the record instead.
type Status string

// Report lifecycle states.
const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
)

// rank orders statuses for monotonicity checks. Unknown statuses rank -1.
func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusInProgress:
		return 1
	case StatusResolved:
		return 2
	default:
		return -1
	}
}

// Valid reports whether s is a known lifecycle state.
func (s Status) Valid() bool { return s.rank() >= 0 }

// Before reports whether s precedes other in the lifecycle.
func (s Status) Before(other Status) bool { return s.rank() < other.rank() }

// ParseStatus parses a status string (case-insensitive).
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return s, nil
}

// SortOrder selects the ordering of the synchronized report view.
type SortOrder string

// Supported sort orders. Ties break by creation order, stable.
const (
	SortVotesHigh SortOrder = "votes-high"
	SortVotesLow  SortOrder = "votes-low"
)

// ParseSortOrder parses a sort order string, defaulting to votes-high.
func ParseSortOrder(raw string) (SortOrder, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(SortVotesHigh):
		return SortVotesHigh, nil
	case string(SortVotesLow):
		return SortVotesLow, nil
	default:
		return "", fmt.Errorf("unknown sort order: %q", raw)
	}
}

// GeoSample is a single positioning reading. It is ephemeral: created per
// acquisition attempt and discarded after the accept/reject decision.
type GeoSample struct {
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	AccuracyMeters float64   `json:"accuracy_meters"`
	CapturedAt     time.Time `json:"captured_at"`

	// LowAccuracyWarning is set on accepted samples whose accuracy is
	// acceptable but coarse enough to warn the submitter about.
	LowAccuracyWarning bool `json:"low_accuracy_warning,omitempty"`
}

// ReportRecord is the canonical shared report entity. It is owned by the
// document store and mutated only through the status machine and the
// upvote ledger, never by direct field assignment from a viewer.
type ReportRecord struct {
	ID           string    `json:"id"`
	AuthorID     string    `json:"author_id"`
	AuthorEmail  string    `json:"author_email"`
	Category     string    `json:"category"`
	Description  string    `json:"description"`
	LocationText string    `json:"location_text"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	Images       []string  `json:"images,omitempty"`
	Status       Status    `json:"status"`
	UpvoteCount  int64     `json:"upvote_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// UpvoteEntry is the durable marker of one user's upvote on one report,
// unique on (ReportID, UserID). Its existence is the sole source of truth
// for "has this user upvoted"; ReportRecord.UpvoteCount is a denormalized,
// eventually-consistent cache of entry cardinality.
type UpvoteEntry struct {
	ReportID  string    `json:"report_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Validation sentinels.
var (
	ErrInvalidCoordinate = errors.New("coordinate out of range")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrNegativeVoteCount = errors.New("negative upvote count")
)

// ValidCoordinate reports whether the pair is a plausible WGS 84 coordinate.
func ValidCoordinate(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// Validate checks the record invariants.
func (r ReportRecord) Validate() error {
	if !ValidCoordinate(r.Latitude, r.Longitude) {
		return fmt.Errorf("%w: lat=%v lng=%v", ErrInvalidCoordinate, r.Latitude, r.Longitude)
	}
	if !r.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, r.Status)
	}
	if r.UpvoteCount < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeVoteCount, r.UpvoteCount)
	}
	return nil
}

// AuthorName derives a display name from the author email local part.
func (r ReportRecord) AuthorName() string {
	if i := strings.IndexByte(r.AuthorEmail, '@'); i > 0 {
		return r.AuthorEmail[:i]
	}
	return "Anonymous"
}
