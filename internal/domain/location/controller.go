// Package location reconciles noisy asynchronous positioning signals into
// a single trustworthy coordinate, with bounded retry and graceful
// degradation to manual placement.
package location

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/streetfix/streetfix/internal/adapters/geocode"
	"github.com/streetfix/streetfix/internal/domain/geofence"
	"github.com/streetfix/streetfix/internal/domain/model"
	"github.com/streetfix/streetfix/pkg/logger"
	"github.com/streetfix/streetfix/pkg/metrics"
)

// Default acquisition policy constants, mirroring the production deployment.
const (
	defaultMaxAttempts     = 3
	defaultAccuracyCeiling = 500.0 // meters; reject coarser samples
	defaultWarnAccuracy    = 200.0 // meters; accept but flag a warning
	defaultAttemptTimeout  = 10 * time.Second
	defaultRetryBackoff    = time.Second
	defaultManualAccuracy  = 10.0 // meters; nominal accuracy of a map click
	geocodeTimeout         = 15 * time.Second
)

// Policy bounds one acquisition run. All fields are configuration.
type Policy struct {
	MaxAttempts     int
	AccuracyCeiling float64
	WarnAccuracy    float64
	AttemptTimeout  time.Duration
	RetryBackoff    time.Duration
	ManualAccuracy  float64
	Fence           geofence.Fence
}

// DefaultPolicy returns the production acquisition policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     defaultMaxAttempts,
		AccuracyCeiling: defaultAccuracyCeiling,
		WarnAccuracy:    defaultWarnAccuracy,
		AttemptTimeout:  defaultAttemptTimeout,
		RetryBackoff:    defaultRetryBackoff,
		ManualAccuracy:  defaultManualAccuracy,
		Fence:           geofence.Default(),
	}
}

// State is the controller's acquisition state.
type State int32

// Controller states. A run moves idle -> sampling -> accepted|exhausted;
// manual placement can move exhausted -> accepted.
const (
	StateIdle State = iota
	StateSampling
	StateAccepted
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSampling:
		return "sampling"
	case StateAccepted:
		return "accepted"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// AddressFunc receives the best-effort reverse-geocoded address for an
// accepted coordinate. It may fire well after acceptance, or never.
type AddressFunc func(address string)

// verdict classifies one evaluated sample.
type verdict int

const (
	verdictAccept verdict = iota
	verdictTooCoarse
	verdictOutsideFence
)

// Controller orchestrates positioning sources under a Policy and owns the
// acquisition state machine. One Acquire runs at a time per controller.
type Controller struct {
	src       Source
	policy    Policy
	resolver  geocode.Resolver
	onAddress AddressFunc
	logger    logger.Logger

	mu       sync.Mutex
	state    State
	attempts int
	accepted *model.GeoSample
}

// Option applies a configuration option to the Controller.
type Option func(*Controller)

// WithPolicy sets the acquisition policy.
func WithPolicy(p Policy) Option {
	return func(c *Controller) {
		if p.MaxAttempts > 0 {
			c.policy = p
		}
	}
}

// WithResolver sets the reverse-geocode resolver triggered on acceptance.
func WithResolver(r geocode.Resolver) Option {
	return func(c *Controller) {
		c.resolver = r
	}
}

// WithAddressFunc sets the callback receiving resolved addresses.
func WithAddressFunc(fn AddressFunc) Option {
	return func(c *Controller) {
		c.onAddress = fn
	}
}

// WithLogger sets a custom logger.
func WithLogger(lg logger.Logger) Option {
	return func(c *Controller) {
		if lg != nil {
			c.logger = lg
		}
	}
}

// New creates a Controller over the given positioning source.
func New(src Source, opts ...Option) *Controller {
	c := &Controller{
		src:    src,
		policy: DefaultPolicy(),
		state:  StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.Get().Named("location")
	}
	return c
}

// State returns the current acquisition state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Attempts returns the number of samples evaluated in the current or most
// recent run.
func (c *Controller) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// Accepted returns the accepted coordinate, if any.
func (c *Controller) Accepted() (model.GeoSample, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.accepted == nil {
		return model.GeoSample{}, false
	}
	return *c.accepted, true
}

// Acquire runs one acquisition: a one-shot request first, degrading to a
// continuous stream on source failure. Samples from either source pass
// the same accuracy and geofence evaluation; the attempt counter
// increments once per evaluated sample (and per attempt timeout), never
// per source switch. The first acceptable sample cancels everything else.
//
// Terminal failures always leave manual placement available; see
// ManualFallback and PlaceManual.
func (c *Controller) Acquire(ctx context.Context) (model.GeoSample, error) {
	c.mu.Lock()
	if c.state == StateSampling {
		c.mu.Unlock()
		return model.GeoSample{}, ErrAcquisitionInFlight
	}
	c.state = StateSampling
	c.attempts = 0
	c.accepted = nil
	c.mu.Unlock()

	start := time.Now()
	sample, err := c.run(ctx)
	metrics.RecordAcquisitionLatency(float64(time.Since(start).Milliseconds()))
	if err != nil {
		return model.GeoSample{}, err
	}
	return sample, nil
}

// run drives the two-phase acquisition under the sampling state.
func (c *Controller) run(ctx context.Context) (model.GeoSample, error) {
	// Phase one: bounded one-shot requests.
	for {
		attemptCtx, cancel := context.WithTimeout(ctx, c.policy.AttemptTimeout)
		sample, err := c.src.Current(attemptCtx)
		cancel()

		if err != nil {
			if isTimeout(err) {
				// A timed-out attempt consumes an attempt like any
				// evaluated sample would.
				if c.bumpAttempts() >= c.policy.MaxAttempts {
					return model.GeoSample{}, c.terminal(ctx, ErrPositionTimeout, "timeout")
				}
				if err := c.backoff(ctx); err != nil {
					return model.GeoSample{}, err
				}
				continue
			}
			c.logger.Debug(ctx, "one-shot positioning failed; degrading to stream",
				logger.Error(err))
			break
		}

		sample, v := c.evaluate(sample)
		switch v {
		case verdictAccept:
			c.accept(ctx, &sample)
			return sample, nil
		case verdictOutsideFence:
			return model.GeoSample{}, c.terminal(ctx, ErrOutsideServiceArea, "outside_fence")
		case verdictTooCoarse:
			if c.currentAttempts() >= c.policy.MaxAttempts {
				return model.GeoSample{}, c.terminal(ctx, ErrLowAccuracy, "low_accuracy")
			}
			if err := c.backoff(ctx); err != nil {
				return model.GeoSample{}, err
			}
		}
	}

	// Phase two: continuous stream until acceptance or exhaustion.
	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()

	samples, err := c.src.Watch(watchCtx)
	if err != nil {
		return model.GeoSample{}, c.terminal(ctx, classify(err), "unavailable")
	}

	for {
		select {
		case <-ctx.Done():
			return model.GeoSample{}, c.terminal(ctx, ErrPositionTimeout, "timeout")
		case sample, ok := <-samples:
			if !ok {
				return model.GeoSample{}, c.terminal(ctx, ErrPositionUnavailable, "unavailable")
			}
			sample, v := c.evaluate(sample)
			switch v {
			case verdictAccept:
				// Cancel before returning so a sample racing the
				// acceptance is dropped, not evaluated.
				cancelWatch()
				c.accept(ctx, &sample)
				return sample, nil
			case verdictOutsideFence:
				return model.GeoSample{}, c.terminal(ctx, ErrOutsideServiceArea, "outside_fence")
			case verdictTooCoarse:
				if c.currentAttempts() >= c.policy.MaxAttempts {
					return model.GeoSample{}, c.terminal(ctx, ErrLowAccuracy, "low_accuracy")
				}
				if err := c.backoff(ctx); err != nil {
					return model.GeoSample{}, err
				}
			}
		}
	}
}

// PlaceManual accepts a manually placed coordinate (a direct map click).
// It bypasses the attempt and accuracy pipeline entirely but still runs
// the geofence: an outside-fence click is rejected with
// ErrOutsideServiceArea and the previously accepted coordinate, if any,
// is retained.
func (c *Controller) PlaceManual(ctx context.Context, lat, lng float64) (model.GeoSample, error) {
	if !model.ValidCoordinate(lat, lng) {
		return model.GeoSample{}, fmt.Errorf("%w: lat=%v lng=%v", model.ErrInvalidCoordinate, lat, lng)
	}
	if !c.policy.Fence.Contains(lat, lng) {
		metrics.RecordAcquisitionRejected("outside_fence")
		return model.GeoSample{}, fmt.Errorf("%w: manual placement at (%v, %v)", ErrOutsideServiceArea, lat, lng)
	}
	sample := model.GeoSample{
		Latitude:       lat,
		Longitude:      lng,
		AccuracyMeters: c.policy.ManualAccuracy,
		CapturedAt:     time.Now().UTC(),
	}
	c.accept(ctx, &sample)
	return sample, nil
}

// evaluate applies the accuracy and geofence policy to one sample. Each
// call consumes one attempt.
func (c *Controller) evaluate(sample model.GeoSample) (model.GeoSample, verdict) {
	attempts := c.bumpAttempts()
	metrics.RecordAcquisitionAttempt()

	if sample.AccuracyMeters > c.policy.AccuracyCeiling {
		c.logger.Debug(context.Background(), "discarding coarse sample",
			logger.Float64("accuracy_m", sample.AccuracyMeters),
			logger.Int("attempt", attempts))
		return sample, verdictTooCoarse
	}
	if !c.policy.Fence.Contains(sample.Latitude, sample.Longitude) {
		// Retrying will not change geography; reject immediately.
		return sample, verdictOutsideFence
	}
	sample.LowAccuracyWarning = sample.AccuracyMeters > c.policy.WarnAccuracy
	return sample, verdictAccept
}

// accept records the final coordinate and fires the best-effort reverse
// geocode. Resolver failure or slowness never blocks or reverts
// acceptance.
func (c *Controller) accept(ctx context.Context, sample *model.GeoSample) {
	c.mu.Lock()
	c.state = StateAccepted
	c.accepted = sample
	c.mu.Unlock()

	metrics.RecordAcquisitionAccepted()
	c.logger.Info(ctx, "coordinate accepted",
		logger.Float64("lat", sample.Latitude),
		logger.Float64("lng", sample.Longitude),
		logger.Float64("accuracy_m", sample.AccuracyMeters),
		logger.Bool("low_accuracy_warning", sample.LowAccuracyWarning))

	if c.resolver == nil || c.onAddress == nil {
		return
	}
	lat, lng := sample.Latitude, sample.Longitude
	go func() {
		// Independent deadline: the acquisition context may already be
		// done by the time the address resolves.
		rctx, cancel := context.WithTimeout(context.Background(), geocodeTimeout)
		defer cancel()
		address, err := c.resolver.Resolve(rctx, lat, lng)
		if err != nil {
			metrics.RecordGeocodeRequest("error")
			c.logger.Warn(rctx, "reverse geocode failed", logger.Error(err))
			return
		}
		metrics.RecordGeocodeRequest("ok")
		c.onAddress(address)
	}()
}

// terminal records a terminal outcome. The controller ends exhausted;
// manual placement remains available.
func (c *Controller) terminal(ctx context.Context, err error, reason string) error {
	c.mu.Lock()
	c.state = StateExhausted
	attempts := c.attempts
	c.mu.Unlock()

	metrics.RecordAcquisitionRejected(reason)
	c.logger.Info(ctx, "acquisition exhausted; manual placement available",
		logger.String("reason", reason),
		logger.Int("attempts", attempts))
	return fmt.Errorf("%w after %d attempts", err, attempts)
}

func (c *Controller) bumpAttempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts++
	return c.attempts
}

func (c *Controller) currentAttempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// backoff sleeps the retry backoff, honoring cancellation.
func (c *Controller) backoff(ctx context.Context) error {
	if c.policy.RetryBackoff <= 0 {
		return nil
	}
	timer := time.NewTimer(c.policy.RetryBackoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return c.terminal(ctx, ErrPositionTimeout, "timeout")
	case <-timer.C:
		return nil
	}
}

// isTimeout reports whether a one-shot failure was a deadline expiry.
func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrPositionTimeout)
}

// classify maps a source error onto the package taxonomy.
func classify(err error) error {
	switch {
	case errors.Is(err, ErrPositionDenied):
		return ErrPositionDenied
	case errors.Is(err, ErrPositionTimeout), errors.Is(err, context.DeadlineExceeded):
		return ErrPositionTimeout
	default:
		return ErrPositionUnavailable
	}
}
