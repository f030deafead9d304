package location

import "errors"

// Terminal acquisition outcomes. Every terminal error still offers manual
// map placement as the escape hatch; acquisition never hard-fails.
var (
	ErrPositionUnavailable = errors.New("position unavailable")
	ErrPositionDenied      = errors.New("position access denied")
	ErrPositionTimeout     = errors.New("position request timed out")
	ErrLowAccuracy         = errors.New("accuracy too low")
	ErrOutsideServiceArea  = errors.New("outside service area")

	// ErrAcquisitionInFlight rejects a second concurrent Acquire on the
	// same controller.
	ErrAcquisitionInFlight = errors.New("acquisition already in flight")
)

// ManualFallback reports whether the error is a terminal acquisition
// outcome for which manual map placement remains available. That is every
// terminal outcome: manual placement is the universal escape hatch.
func ManualFallback(err error) bool {
	switch {
	case errors.Is(err, ErrPositionUnavailable),
		errors.Is(err, ErrPositionDenied),
		errors.Is(err, ErrPositionTimeout),
		errors.Is(err, ErrLowAccuracy),
		errors.Is(err, ErrOutsideServiceArea):
		return true
	default:
		return false
	}
}
