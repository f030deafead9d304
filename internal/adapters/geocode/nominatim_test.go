package geocode_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/streetfix/streetfix/internal/adapters/geocode"
)

func TestNominatimResolve(t *testing.T) {
	Convey("Given a Nominatim-compatible endpoint", t, func() {
		var gotPath string
		var gotQuery url.Values
		var gotUA, gotLang string
		handler := func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotQuery = r.URL.Query()
			gotUA = r.Header.Get("User-Agent")
			gotLang = r.Header.Get("Accept-Language")
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"display_name":"Rizal Avenue, East Bajac-Bajac, Olongapo, Zambales, Philippines"}`))
		}
		srv := httptest.NewServer(http.HandlerFunc(handler))
		defer srv.Close()

		resolver := geocode.NewNominatim(geocode.WithBaseURL(srv.URL))

		Convey("When resolving a coordinate", func() {
			address, err := resolver.Resolve(context.Background(), 14.85, 120.28)

			Convey("Then the display name should come back", func() {
				So(err, ShouldBeNil)
				So(address, ShouldContainSubstring, "Olongapo")
			})

			Convey("Then the request should follow the reverse endpoint contract", func() {
				So(gotPath, ShouldEqual, "/reverse")
				So(gotQuery.Get("format"), ShouldEqual, "json")
				So(gotQuery.Get("lat"), ShouldEqual, "14.85")
				So(gotQuery.Get("lon"), ShouldEqual, "120.28")
				So(gotQuery.Get("zoom"), ShouldEqual, "18")
				So(gotQuery.Get("addressdetails"), ShouldEqual, "1")
				So(gotUA, ShouldEqual, "StreetFix/1.0")
				So(gotLang, ShouldStartWith, "en-US")
			})
		})
	})

	Convey("Given an endpoint with no address for the location", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"display_name":""}`))
		}))
		defer srv.Close()

		resolver := geocode.NewNominatim(geocode.WithBaseURL(srv.URL))

		Convey("When resolving", func() {
			_, err := resolver.Resolve(context.Background(), 0, 0)

			Convey("Then it should report no address", func() {
				So(err, ShouldWrap, geocode.ErrNoAddress)
			})
		})
	})

	Convey("Given an endpoint returning a server error", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		resolver := geocode.NewNominatim(geocode.WithBaseURL(srv.URL))

		Convey("When resolving", func() {
			_, err := resolver.Resolve(context.Background(), 14.85, 120.28)

			Convey("Then the failure should be classified as a resolve error", func() {
				So(err, ShouldWrap, geocode.ErrResolve)
			})
		})
	})

	Convey("Given an unreachable endpoint", t, func() {
		resolver := geocode.NewNominatim(geocode.WithBaseURL("http://127.0.0.1:1"))

		Convey("When resolving", func() {
			_, err := resolver.Resolve(context.Background(), 14.85, 120.28)

			Convey("Then the failure should be classified as a resolve error", func() {
				So(err, ShouldWrap, geocode.ErrResolve)
			})
		})
	})
}
