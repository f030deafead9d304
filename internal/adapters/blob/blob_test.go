package blob_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/streetfix/streetfix/internal/adapters/blob"
)

func TestLocalUploader(t *testing.T) {
	Convey("Given a local uploader over a temp directory", t, func() {
		dir := t.TempDir()
		u, err := blob.NewLocalUploader(dir)
		So(err, ShouldBeNil)
		ctx := context.Background()

		Convey("When uploading a jpeg", func() {
			url, err := u.Upload(ctx, "pothole.JPG", strings.NewReader("fake image bytes"))

			Convey("Then a /uploads/ URL should come back", func() {
				So(err, ShouldBeNil)
				So(url, ShouldStartWith, "/uploads/")
				So(url, ShouldEndWith, ".jpg")
			})

			Convey("And the file should land in the directory", func() {
				So(err, ShouldBeNil)
				name := strings.TrimPrefix(url, "/uploads/")
				data, err := os.ReadFile(filepath.Join(dir, name))
				So(err, ShouldBeNil)
				So(string(data), ShouldEqual, "fake image bytes")
			})
		})

		Convey("When uploading two files with the same name", func() {
			first, err := u.Upload(ctx, "photo.png", strings.NewReader("one"))
			So(err, ShouldBeNil)
			second, err := u.Upload(ctx, "photo.png", strings.NewReader("two"))
			So(err, ShouldBeNil)

			Convey("Then the URLs should not collide", func() {
				So(first, ShouldNotEqual, second)
			})
		})

		Convey("When uploading an unsupported type", func() {
			_, err := u.Upload(ctx, "notes.pdf", strings.NewReader("pdf bytes"))

			Convey("Then the upload should be refused", func() {
				So(err, ShouldWrap, blob.ErrBadType)
			})
		})

		Convey("When uploading with a cancelled context", func() {
			cancelled, cancel := context.WithCancel(ctx)
			cancel()
			_, err := u.Upload(cancelled, "late.png", strings.NewReader("bytes"))

			Convey("Then the upload should fail", func() {
				So(err, ShouldWrap, blob.ErrUpload)
			})
		})

		Convey("When uploading a file over the size limit", func() {
			huge := strings.NewReader(strings.Repeat("x", (5<<20)+1))
			_, err := u.Upload(ctx, "huge.png", huge)

			Convey("Then the upload should be refused and nothing kept", func() {
				So(err, ShouldWrap, blob.ErrTooLarge)
				entries, readErr := os.ReadDir(dir)
				So(readErr, ShouldBeNil)
				So(entries, ShouldHaveLength, 0)
			})
		})
	})
}
