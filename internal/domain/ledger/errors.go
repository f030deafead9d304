package ledger

import "errors"

// Sentinel kinds for ledger errors.
var (
	// ErrBadToggle rejects malformed toggle arguments.
	ErrBadToggle = errors.New("bad toggle request")
)
