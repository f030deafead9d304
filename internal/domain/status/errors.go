package status

import "errors"

// Sentinel kinds for transition errors.
var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidTransition = errors.New("invalid transition")
)
