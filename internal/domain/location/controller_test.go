package location_test

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/streetfix/streetfix/internal/domain/location"
	"github.com/streetfix/streetfix/internal/domain/model"
)

// fakeSource replays scripted one-shot results, then streams.
type fakeSource struct {
	current  []currentResult
	stream   []model.GeoSample
	closeStr bool // close the stream channel after draining samples
	watchErr error
}

type currentResult struct {
	sample model.GeoSample
	err    error
}

func (f *fakeSource) Current(ctx context.Context) (model.GeoSample, error) {
	if err := ctx.Err(); err != nil {
		return model.GeoSample{}, err
	}
	if len(f.current) == 0 {
		return model.GeoSample{}, location.ErrPositionUnavailable
	}
	next := f.current[0]
	f.current = f.current[1:]
	return next.sample, next.err
}

func (f *fakeSource) Watch(ctx context.Context) (<-chan model.GeoSample, error) {
	if f.watchErr != nil {
		return nil, f.watchErr
	}
	ch := make(chan model.GeoSample)
	go func() {
		for _, s := range f.stream {
			select {
			case ch <- s:
			case <-ctx.Done():
				close(ch)
				return
			}
		}
		if f.closeStr {
			close(ch)
		} else {
			<-ctx.Done()
			close(ch)
		}
	}()
	return ch, nil
}

// blockingSource parks Current until released.
type blockingSource struct {
	release chan struct{}
}

func (b *blockingSource) Current(ctx context.Context) (model.GeoSample, error) {
	select {
	case <-b.release:
		return inside(50), nil
	case <-ctx.Done():
		return model.GeoSample{}, ctx.Err()
	}
}

func (b *blockingSource) Watch(ctx context.Context) (<-chan model.GeoSample, error) {
	ch := make(chan model.GeoSample)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

// inside returns a sample inside the default fence with given accuracy.
func inside(accuracy float64) model.GeoSample {
	return model.GeoSample{
		Latitude:       14.85,
		Longitude:      120.28,
		AccuracyMeters: accuracy,
		CapturedAt:     time.Now().UTC(),
	}
}

// fastPolicy keeps retries near-instant in tests.
func fastPolicy() location.Policy {
	p := location.DefaultPolicy()
	p.AttemptTimeout = 100 * time.Millisecond
	p.RetryBackoff = time.Millisecond
	return p
}

func TestAcquireOneShot(t *testing.T) {
	Convey("Given a source that answers precisely on the first try", t, func() {
		src := &fakeSource{current: []currentResult{{sample: inside(25)}}}
		c := location.New(src, location.WithPolicy(fastPolicy()))

		Convey("When acquiring", func() {
			sample, err := c.Acquire(context.Background())

			Convey("Then the first sample should be accepted without warning", func() {
				So(err, ShouldBeNil)
				So(sample.AccuracyMeters, ShouldEqual, 25)
				So(sample.LowAccuracyWarning, ShouldBeFalse)
				So(c.State(), ShouldEqual, location.StateAccepted)
				So(c.Attempts(), ShouldEqual, 1)

				accepted, ok := c.Accepted()
				So(ok, ShouldBeTrue)
				So(accepted.Latitude, ShouldEqual, sample.Latitude)
			})
		})
	})

	Convey("Given accuracies 800, 600 then 50 meters", t, func() {
		src := &fakeSource{current: []currentResult{
			{sample: inside(800)},
			{sample: inside(600)},
			{sample: inside(50)},
		}}
		c := location.New(src, location.WithPolicy(fastPolicy()))

		Convey("When acquiring", func() {
			sample, err := c.Acquire(context.Background())

			Convey("Then the third sample should be accepted on the last attempt", func() {
				So(err, ShouldBeNil)
				So(sample.AccuracyMeters, ShouldEqual, 50)
				So(c.Attempts(), ShouldEqual, 3)
			})
		})
	})

	Convey("Given a coarse but acceptable fix", t, func() {
		src := &fakeSource{current: []currentResult{{sample: inside(300)}}}
		c := location.New(src, location.WithPolicy(fastPolicy()))

		Convey("When acquiring", func() {
			sample, err := c.Acquire(context.Background())

			Convey("Then it should be accepted with a low-accuracy warning", func() {
				So(err, ShouldBeNil)
				So(sample.LowAccuracyWarning, ShouldBeTrue)
			})
		})
	})

	Convey("Given only coarse samples", t, func() {
		src := &fakeSource{current: []currentResult{
			{sample: inside(900)},
			{sample: inside(800)},
			{sample: inside(700)},
		}}
		c := location.New(src, location.WithPolicy(fastPolicy()))

		Convey("When acquiring", func() {
			_, err := c.Acquire(context.Background())

			Convey("Then the run should exhaust on low accuracy", func() {
				So(err, ShouldWrap, location.ErrLowAccuracy)
				So(c.State(), ShouldEqual, location.StateExhausted)
				So(c.Attempts(), ShouldEqual, 3)
				So(location.ManualFallback(err), ShouldBeTrue)
			})
		})
	})

	Convey("Given a precise fix outside the service area", t, func() {
		outside := model.GeoSample{Latitude: 14.5995, Longitude: 120.9842, AccuracyMeters: 10}
		src := &fakeSource{current: []currentResult{
			{sample: outside},
			{sample: inside(10)}, // would be accepted, must never be read
		}}
		c := location.New(src, location.WithPolicy(fastPolicy()))

		Convey("When acquiring", func() {
			_, err := c.Acquire(context.Background())

			Convey("Then it should fail immediately without retrying", func() {
				So(err, ShouldWrap, location.ErrOutsideServiceArea)
				So(c.Attempts(), ShouldEqual, 1)
				So(location.ManualFallback(err), ShouldBeTrue)
			})
		})
	})
}

func TestAcquireStreamFallback(t *testing.T) {
	Convey("Given a one-shot source that fails outright", t, func() {
		Convey("When the stream then yields an acceptable sample", func() {
			src := &fakeSource{
				current: []currentResult{{err: location.ErrPositionDenied}},
				stream:  []model.GeoSample{inside(700), inside(40)},
			}
			c := location.New(src, location.WithPolicy(fastPolicy()))
			sample, err := c.Acquire(context.Background())

			Convey("Then acquisition should degrade to the stream and accept", func() {
				So(err, ShouldBeNil)
				So(sample.AccuracyMeters, ShouldEqual, 40)
				So(c.State(), ShouldEqual, location.StateAccepted)
			})
		})

		Convey("When the stream closes without a usable sample", func() {
			src := &fakeSource{
				current:  []currentResult{{err: location.ErrPositionDenied}},
				closeStr: true,
			}
			c := location.New(src, location.WithPolicy(fastPolicy()))
			_, err := c.Acquire(context.Background())

			Convey("Then the run should end position-unavailable", func() {
				So(err, ShouldWrap, location.ErrPositionUnavailable)
				So(location.ManualFallback(err), ShouldBeTrue)
			})
		})

		Convey("When the stream cannot start at all", func() {
			src := &fakeSource{
				current:  []currentResult{{err: location.ErrPositionDenied}},
				watchErr: location.ErrPositionDenied,
			}
			c := location.New(src, location.WithPolicy(fastPolicy()))
			_, err := c.Acquire(context.Background())

			Convey("Then the denial should surface", func() {
				So(err, ShouldWrap, location.ErrPositionDenied)
			})
		})
	})
}

func TestAcquireTimeout(t *testing.T) {
	Convey("Given a source that never answers", t, func() {
		src := &blockingSource{release: make(chan struct{})}
		p := fastPolicy()
		p.AttemptTimeout = 10 * time.Millisecond
		c := location.New(src, location.WithPolicy(p))

		Convey("When acquiring", func() {
			_, err := c.Acquire(context.Background())

			Convey("Then each timed-out attempt should count toward exhaustion", func() {
				So(err, ShouldWrap, location.ErrPositionTimeout)
				So(c.Attempts(), ShouldEqual, 3)
				So(location.ManualFallback(err), ShouldBeTrue)
			})
		})
	})
}

func TestAcquireInFlight(t *testing.T) {
	Convey("Given an acquisition already running", t, func() {
		src := &blockingSource{release: make(chan struct{})}
		p := fastPolicy()
		p.AttemptTimeout = time.Second
		c := location.New(src, location.WithPolicy(p))

		started := make(chan struct{})
		done := make(chan error, 1)
		go func() {
			close(started)
			_, err := c.Acquire(context.Background())
			done <- err
		}()
		<-started
		for c.State() != location.StateSampling {
			time.Sleep(time.Millisecond)
		}

		Convey("When a second acquire starts", func() {
			_, err := c.Acquire(context.Background())

			Convey("Then it should be refused", func() {
				So(err, ShouldWrap, location.ErrAcquisitionInFlight)
				So(location.ManualFallback(err), ShouldBeFalse)
			})
		})

		close(src.release)
		So(<-done, ShouldBeNil)
	})
}

func TestPlaceManual(t *testing.T) {
	Convey("Given an exhausted controller", t, func() {
		src := &fakeSource{current: []currentResult{
			{sample: inside(900)},
			{sample: inside(900)},
			{sample: inside(900)},
		}}
		c := location.New(src, location.WithPolicy(fastPolicy()))
		_, err := c.Acquire(context.Background())
		So(err, ShouldWrap, location.ErrLowAccuracy)

		Convey("When placing a pin inside the fence", func() {
			sample, err := c.PlaceManual(context.Background(), 14.84, 120.29)

			Convey("Then the placement should be accepted at nominal accuracy", func() {
				So(err, ShouldBeNil)
				So(sample.AccuracyMeters, ShouldEqual, location.DefaultPolicy().ManualAccuracy)
				So(c.State(), ShouldEqual, location.StateAccepted)
			})
		})

		Convey("When placing a pin outside the fence", func() {
			accepted, _ := c.PlaceManual(context.Background(), 14.84, 120.29)
			_, err := c.PlaceManual(context.Background(), 14.5995, 120.9842)

			Convey("Then the click should be rejected and the prior pin retained", func() {
				So(err, ShouldWrap, location.ErrOutsideServiceArea)
				prior, ok := c.Accepted()
				So(ok, ShouldBeTrue)
				So(prior.Latitude, ShouldEqual, accepted.Latitude)
				So(prior.Longitude, ShouldEqual, accepted.Longitude)
			})
		})

		Convey("When placing a pin at an impossible coordinate", func() {
			_, err := c.PlaceManual(context.Background(), 120.0, 220.0)

			Convey("Then the coordinate should be rejected outright", func() {
				So(err, ShouldWrap, model.ErrInvalidCoordinate)
			})
		})
	})
}

func TestManualFallback(t *testing.T) {
	Convey("Given the error taxonomy", t, func() {
		Convey("Then every terminal outcome should offer manual fallback", func() {
			for _, err := range []error{
				location.ErrPositionUnavailable,
				location.ErrPositionDenied,
				location.ErrPositionTimeout,
				location.ErrLowAccuracy,
				location.ErrOutsideServiceArea,
			} {
				So(location.ManualFallback(err), ShouldBeTrue)
			}
		})

		Convey("Then non-terminal errors should not", func() {
			So(location.ManualFallback(location.ErrAcquisitionInFlight), ShouldBeFalse)
			So(location.ManualFallback(errors.New("boom")), ShouldBeFalse)
			So(location.ManualFallback(nil), ShouldBeFalse)
		})
	})
}
