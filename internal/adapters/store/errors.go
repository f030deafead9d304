package store

import "errors"

// Sentinel kinds for document store errors.
var (
	ErrNotFound    = errors.New("document not found")
	ErrUnavailable = errors.New("store unavailable")
	ErrClosed      = errors.New("store closed")
)
