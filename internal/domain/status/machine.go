// Package status validates and applies report lifecycle transitions.
package status

import (
	"fmt"

	"github.com/streetfix/streetfix/internal/domain/model"
)

// Role identifies the privilege level of a transition actor.
type Role string

// Known actor roles.
const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole normalizes a role string; anything but "admin" is a plain user.
func ParseRole(raw string) Role {
	if raw == string(RoleAdmin) {
		return RoleAdmin
	}
	return RoleUser
}

// Commit describes the store effect of an accepted transition. A resolved
// transition deletes the record instead of persisting status=resolved:
// resolved reports are archival noise in the live view, so resolution is a
// deletion trigger. This policy is deliberate and exact.
type Commit struct {
	Delete    bool
	NewStatus model.Status
}

// Proposal is a held, not-yet-committed transition. Proposals live only in
// controller-local state; abandoning one has no side effect.
type Proposal struct {
	ReportID  string
	Requested model.Status
}

// Machine validates transitions against the monotonic lifecycle.
type Machine struct{}

// NewMachine creates a transition machine.
func NewMachine() *Machine { return &Machine{} }

// Apply validates the requested transition and returns the commit to
// issue. It fails before any store write: ErrUnauthorized when the actor
// is not an admin, ErrInvalidTransition when the request is a no-op or
// moves backward. pending -> resolved directly is allowed.
func (m *Machine) Apply(report model.ReportRecord, requested model.Status, actor Role) (Commit, error) {
	if actor != RoleAdmin {
		return Commit{}, fmt.Errorf("%w: role %q cannot transition reports", ErrUnauthorized, actor)
	}
	if !requested.Valid() {
		return Commit{}, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, requested)
	}
	if requested == report.Status {
		return Commit{}, fmt.Errorf("%w: report %s already %s", ErrInvalidTransition, report.ID, requested)
	}
	if requested.Before(report.Status) {
		return Commit{}, fmt.Errorf("%w: %s -> %s moves backward", ErrInvalidTransition, report.Status, requested)
	}
	return Commit{
		Delete:    requested == model.StatusResolved,
		NewStatus: requested,
	}, nil
}
