package identity_test

import (
	"context"
	"net/http/httptest"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/streetfix/streetfix/internal/adapters/identity"
)

func TestFromRequest(t *testing.T) {
	Convey("Given an incoming request", t, func() {
		Convey("When the principal headers are present", func() {
			r := httptest.NewRequest("GET", "/reports", nil)
			r.Header.Set(identity.HeaderUserID, "u-1")
			r.Header.Set(identity.HeaderEmail, "maria@example.com")
			r.Header.Set(identity.HeaderVerified, "true")
			r.Header.Set(identity.HeaderRole, "admin")

			user, err := identity.FromRequest(r)

			Convey("Then the principal should be extracted", func() {
				So(err, ShouldBeNil)
				So(user.ID, ShouldEqual, "u-1")
				So(user.Email, ShouldEqual, "maria@example.com")
				So(user.EmailVerified, ShouldBeTrue)
				So(user.Role, ShouldEqual, "admin")
			})
		})

		Convey("When the user id header is missing", func() {
			r := httptest.NewRequest("GET", "/reports", nil)
			_, err := identity.FromRequest(r)

			Convey("Then the request should be unauthenticated", func() {
				So(err, ShouldWrap, identity.ErrUnauthenticated)
			})
		})

		Convey("When the verified header is absent or mangled", func() {
			r := httptest.NewRequest("GET", "/reports", nil)
			r.Header.Set(identity.HeaderUserID, "u-1")
			r.Header.Set(identity.HeaderVerified, "TRUE")

			user, err := identity.FromRequest(r)

			Convey("Then verification should default to false", func() {
				So(err, ShouldBeNil)
				So(user.EmailVerified, ShouldBeFalse)
			})
		})
	})
}

func TestStaticProvider(t *testing.T) {
	Convey("Given a static identity provider", t, func() {
		p := identity.NewStaticProvider(nil)

		Convey("When no one is signed in", func() {
			_, err := p.CurrentUser(context.Background())

			Convey("Then it should be unauthenticated", func() {
				So(err, ShouldWrap, identity.ErrUnauthenticated)
			})
		})

		Convey("When a user signs in", func() {
			var observed []identity.User
			cancel := p.OnAuthStateChanged(func(u identity.User) {
				observed = append(observed, u)
			})
			defer cancel()

			p.SignIn(identity.User{ID: "u-1", Email: "maria@example.com", EmailVerified: true})

			Convey("Then the current user should be available", func() {
				u, err := p.CurrentUser(context.Background())
				So(err, ShouldBeNil)
				So(u.ID, ShouldEqual, "u-1")
			})

			Convey("And listeners should observe the change", func() {
				So(observed, ShouldHaveLength, 1)
				So(observed[0].ID, ShouldEqual, "u-1")
			})

			Convey("And signing out should notify with the zero user", func() {
				p.SignOut()
				_, err := p.CurrentUser(context.Background())
				So(err, ShouldWrap, identity.ErrUnauthenticated)
				So(observed, ShouldHaveLength, 2)
				So(observed[1].ID, ShouldBeEmpty)
			})
		})
	})
}
