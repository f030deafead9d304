package geofence_test

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/streetfix/streetfix/internal/domain/geofence"
)

func TestFence(t *testing.T) {
	Convey("Given the default service-area fence", t, func() {
		f := geofence.Default()

		Convey("When validating it", func() {
			Convey("Then it should be well formed", func() {
				So(f.Validate(), ShouldBeNil)
			})
		})

		Convey("When checking points inside the city", func() {
			Convey("Then they should be contained", func() {
				So(f.Contains(14.85, 120.28), ShouldBeTrue)
				So(f.Contains(14.8386, 120.2847), ShouldBeTrue)
			})
		})

		Convey("When checking a point north of the city on the same longitude", func() {
			Convey("Then it should be rejected", func() {
				So(f.Contains(15.0, 120.2847), ShouldBeFalse)
			})
		})

		Convey("When checking points on the boundary", func() {
			Convey("Then edges should count as inside", func() {
				So(f.Contains(f.North, 120.28), ShouldBeTrue)
				So(f.Contains(f.South, 120.28), ShouldBeTrue)
				So(f.Contains(14.85, f.East), ShouldBeTrue)
				So(f.Contains(14.85, f.West), ShouldBeTrue)
				So(f.Contains(f.North, f.East), ShouldBeTrue)
			})
		})

		Convey("When checking points just outside each edge", func() {
			Convey("Then they should be rejected", func() {
				So(f.Contains(f.North+0.0001, 120.28), ShouldBeFalse)
				So(f.Contains(f.South-0.0001, 120.28), ShouldBeFalse)
				So(f.Contains(14.85, f.East+0.0001), ShouldBeFalse)
				So(f.Contains(14.85, f.West-0.0001), ShouldBeFalse)
			})
		})

		Convey("When checking distant cities", func() {
			Convey("Then Manila should be outside", func() {
				So(f.Contains(14.5995, 120.9842), ShouldBeFalse)
			})
			Convey("Then the antipode should be outside", func() {
				So(f.Contains(-14.85, -59.72), ShouldBeFalse)
			})
		})
	})
}

func TestFenceValidate(t *testing.T) {
	Convey("Given malformed fences", t, func() {
		Convey("When north does not exceed south", func() {
			f := geofence.Fence{North: 10, South: 10, East: 20, West: 10}

			Convey("Then validation should fail", func() {
				So(f.Validate(), ShouldWrap, geofence.ErrInvalidFence)
			})
		})

		Convey("When east does not exceed west", func() {
			f := geofence.Fence{North: 20, South: 10, East: 5, West: 5}

			Convey("Then validation should fail", func() {
				So(f.Validate(), ShouldWrap, geofence.ErrInvalidFence)
			})
		})

		Convey("When bounds leave the WGS 84 range", func() {
			f := geofence.Fence{North: 95, South: 10, East: 20, West: 10}

			Convey("Then validation should fail", func() {
				So(f.Validate(), ShouldWrap, geofence.ErrInvalidFence)
			})
		})
	})
}
