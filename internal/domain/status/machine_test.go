package status_test

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/streetfix/streetfix/internal/domain/model"
	"github.com/streetfix/streetfix/internal/domain/status"
)

func TestParseRole(t *testing.T) {
	Convey("Given role strings", t, func() {
		Convey("When parsing admin", func() {
			So(status.ParseRole("admin"), ShouldEqual, status.RoleAdmin)
		})
		Convey("When parsing anything else", func() {
			So(status.ParseRole("user"), ShouldEqual, status.RoleUser)
			So(status.ParseRole(""), ShouldEqual, status.RoleUser)
			So(status.ParseRole("Administrator"), ShouldEqual, status.RoleUser)
		})
	})
}

func TestMachineApply(t *testing.T) {
	Convey("Given a transition machine and a pending report", t, func() {
		m := status.NewMachine()
		report := model.ReportRecord{ID: "r-1", Status: model.StatusPending}

		Convey("When a plain user requests any transition", func() {
			_, err := m.Apply(report, model.StatusInProgress, status.RoleUser)

			Convey("Then it should be rejected as unauthorized", func() {
				So(err, ShouldWrap, status.ErrUnauthorized)
			})
		})

		Convey("When an admin moves pending to in_progress", func() {
			commit, err := m.Apply(report, model.StatusInProgress, status.RoleAdmin)

			Convey("Then the commit should persist the new status", func() {
				So(err, ShouldBeNil)
				So(commit.Delete, ShouldBeFalse)
				So(commit.NewStatus, ShouldEqual, model.StatusInProgress)
			})
		})

		Convey("When an admin resolves a pending report directly", func() {
			commit, err := m.Apply(report, model.StatusResolved, status.RoleAdmin)

			Convey("Then the commit should delete the record", func() {
				So(err, ShouldBeNil)
				So(commit.Delete, ShouldBeTrue)
			})
		})

		Convey("When an admin resolves an in_progress report", func() {
			report.Status = model.StatusInProgress
			commit, err := m.Apply(report, model.StatusResolved, status.RoleAdmin)

			Convey("Then the commit should delete the record", func() {
				So(err, ShouldBeNil)
				So(commit.Delete, ShouldBeTrue)
			})
		})

		Convey("When an admin requests the current status again", func() {
			_, err := m.Apply(report, model.StatusPending, status.RoleAdmin)

			Convey("Then the no-op should be rejected", func() {
				So(err, ShouldWrap, status.ErrInvalidTransition)
			})
		})

		Convey("When an admin moves a report backward", func() {
			report.Status = model.StatusInProgress
			_, err := m.Apply(report, model.StatusPending, status.RoleAdmin)

			Convey("Then the regression should be rejected", func() {
				So(err, ShouldWrap, status.ErrInvalidTransition)
			})
		})

		Convey("When an admin requests an unknown status", func() {
			_, err := m.Apply(report, model.Status("archived"), status.RoleAdmin)

			Convey("Then it should be rejected", func() {
				So(err, ShouldWrap, status.ErrInvalidTransition)
			})
		})
	})
}
