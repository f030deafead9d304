package location

import (
	"context"

	"github.com/streetfix/streetfix/internal/domain/model"
)

// Source abstracts a positioning provider. Implementations wrap real
// hardware or platform services; tests inject fakes.
type Source interface {
	// Current issues a one-shot positioning request. It honors ctx
	// cancellation and deadline; failures are classified with the
	// package sentinels (ErrPositionDenied, ErrPositionUnavailable).
	Current(ctx context.Context) (model.GeoSample, error)

	// Watch starts a continuous positioning stream that yields samples
	// as they arrive, typically at a lower power and accuracy
	// expectation than Current. The channel closes when ctx is
	// cancelled; implementations must never block a send past
	// cancellation, so samples produced after cancel are dropped.
	Watch(ctx context.Context) (<-chan model.GeoSample, error)
}
