package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/streetfix/streetfix/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	Convey("Given no file or environment overrides", t, func() {
		cfg, err := config.Load(context.Background())

		Convey("Then defaults should apply", func() {
			So(err, ShouldBeNil)
			So(cfg.Addr, ShouldEqual, ":9080")
			So(cfg.LogLevel, ShouldEqual, "info")
			So(cfg.MaxAttempts, ShouldEqual, 3)
			So(cfg.AccuracyCeilingM, ShouldEqual, 500)
			So(cfg.WarnAccuracyM, ShouldEqual, 200)
			So(cfg.ManualAccuracyM, ShouldEqual, 10)
			So(cfg.MaxListLimit, ShouldEqual, 100)
		})

		Convey("Then the default fence should be the Olongapo bounds", func() {
			So(err, ShouldBeNil)
			So(cfg.Fence.North, ShouldEqual, 14.9167)
			So(cfg.Fence.South, ShouldEqual, 14.7833)
			So(cfg.Fence.East, ShouldEqual, 120.3167)
			So(cfg.Fence.West, ShouldEqual, 120.2333)
		})
	})
}

func TestLoadEnvOverrides(t *testing.T) {
	Convey("Given environment overrides", t, func() {
		t.Setenv("STREETFIX_ADDR", ":7070")
		t.Setenv("STREETFIX_LOG_LEVEL", "debug")
		t.Setenv("STREETFIX_MAX_ATTEMPTS", "5")
		t.Setenv("STREETFIX_STORE_IN_MEMORY", "true")

		cfg, err := config.Load(context.Background())

		Convey("Then overridden fields should change and others keep defaults", func() {
			So(err, ShouldBeNil)
			So(cfg.Addr, ShouldEqual, ":7070")
			So(cfg.LogLevel, ShouldEqual, "debug")
			So(cfg.MaxAttempts, ShouldEqual, 5)
			So(cfg.StoreInMemory, ShouldBeTrue)
			So(cfg.MaxListLimit, ShouldEqual, 100)
		})
	})
}

func TestLoadFile(t *testing.T) {
	Convey("Given a YAML config file", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.yaml")
		yaml := []byte("addr: \":6060\"\nmax_list_limit: 25\nfence:\n  north: 15.0\n  south: 14.0\n  east: 121.0\n  west: 120.0\n")
		So(os.WriteFile(path, yaml, 0o600), ShouldBeNil)
		t.Setenv("STREETFIX_CONFIG", path)

		Convey("When loading", func() {
			cfg, err := config.Load(context.Background())

			Convey("Then file values should layer over defaults", func() {
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":6060")
				So(cfg.MaxListLimit, ShouldEqual, 25)
				So(cfg.Fence.North, ShouldEqual, 15.0)
			})
		})

		Convey("When the environment also overrides", func() {
			t.Setenv("STREETFIX_ADDR", ":5050")
			cfg, err := config.Load(context.Background())

			Convey("Then env should win over the file", func() {
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":5050")
			})
		})
	})

	Convey("Given a missing config file path", t, func() {
		t.Setenv("STREETFIX_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))

		Convey("When loading", func() {
			_, err := config.Load(context.Background())

			Convey("Then loading should fail", func() {
				So(err, ShouldWrap, config.ErrLoadConfig)
			})
		})
	})
}

func TestLoadValidation(t *testing.T) {
	Convey("Given invalid overrides", t, func() {
		Convey("When addr is set to an empty string", func() {
			t.Setenv("STREETFIX_ADDR", "")
			_, err := config.Load(context.Background())

			Convey("Then validation should reject it", func() {
				So(err, ShouldWrap, config.ErrInvalidConfig)
			})
		})

		Convey("When max_attempts is zero", func() {
			t.Setenv("STREETFIX_MAX_ATTEMPTS", "0")
			_, err := config.Load(context.Background())

			Convey("Then validation should reject it", func() {
				So(err, ShouldWrap, config.ErrInvalidConfig)
			})
		})

		Convey("When a config file inverts the fence", func() {
			dir := t.TempDir()
			path := filepath.Join(dir, "config.yaml")
			yaml := []byte("fence:\n  north: 10.0\n  south: 14.0\n  east: 121.0\n  west: 120.0\n")
			So(os.WriteFile(path, yaml, 0o600), ShouldBeNil)
			t.Setenv("STREETFIX_CONFIG", path)

			_, err := config.Load(context.Background())

			Convey("Then validation should reject it", func() {
				So(err, ShouldWrap, config.ErrInvalidConfig)
			})
		})
	})
}
