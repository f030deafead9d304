package view

import "errors"

// Sentinel kinds for view errors.
var (
	ErrAlreadySubscribed = errors.New("engine already subscribed")
)
