// Package geofence provides the service-area containment predicate.
package geofence

import (
	"errors"
	"fmt"
)

// Fence is an axis-aligned rectangular lat/lng bound restricting valid
// report locations.
type Fence struct {
	North float64 `koanf:"north" json:"north"`
	South float64 `koanf:"south" json:"south"`
	East  float64 `koanf:"east" json:"east"`
	West  float64 `koanf:"west" json:"west"`
}

// ErrInvalidFence indicates a degenerate or inverted fence.
var ErrInvalidFence = errors.New("invalid geofence")

// Default returns the Olongapo City service-area bounds.
func Default() Fence {
	return Fence{
		North: 14.9167,
		South: 14.7833,
		East:  120.3167,
		West:  120.2333,
	}
}

// Validate checks that the fence encloses a non-empty area.
func (f Fence) Validate() error {
	switch {
	case f.North <= f.South:
		return fmt.Errorf("%w: north (%v) must exceed south (%v)", ErrInvalidFence, f.North, f.South)
	case f.East <= f.West:
		return fmt.Errorf("%w: east (%v) must exceed west (%v)", ErrInvalidFence, f.East, f.West)
	case f.North > 90 || f.South < -90 || f.East > 180 || f.West < -180:
		return fmt.Errorf("%w: bounds outside WGS 84 range", ErrInvalidFence)
	}
	return nil
}

// Contains reports whether the coordinate lies inside the fence. Edges
// count as inside.
func (f Fence) Contains(lat, lng float64) bool {
	return lat >= f.South && lat <= f.North && lng >= f.West && lng <= f.East
}
