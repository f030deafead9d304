package geocode

import "errors"

// Sentinel kinds for geocode errors.
var (
	ErrResolve   = errors.New("reverse geocode failed")
	ErrNoAddress = errors.New("no address found")
)
