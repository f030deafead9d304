// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults, Load(ctx) to layer
//   file and environment sources on top.
// - All future functions must accept context.Context as the first parameter.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"context"

	"github.com/streetfix/streetfix/internal/domain/geofence"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// StorePath is the on-disk location of the report store.
	StorePath string `koanf:"store_path"`

	// StoreInMemory switches the store to a non-persistent backend.
	StoreInMemory bool `koanf:"store_in_memory"`

	// UploadsDir is where report images land, served at /uploads/.
	UploadsDir string `koanf:"uploads_dir"`

	// GeocodeBaseURL points at the reverse-geocoding endpoint.
	GeocodeBaseURL string `koanf:"geocode_base_url"`

	// GeocodeTimeoutMS bounds a single reverse-geocode request.
	GeocodeTimeoutMS int `koanf:"geocode_timeout_ms"`

	// Fence bounds the service area; reports outside it are rejected.
	Fence geofence.Fence `koanf:"fence"`

	// MaxAttempts caps location sampling attempts before manual fallback.
	MaxAttempts int `koanf:"max_attempts"`

	// AccuracyCeilingM rejects samples with worse accuracy than this.
	AccuracyCeilingM float64 `koanf:"accuracy_ceiling_m"`

	// WarnAccuracyM flags accepted samples coarser than this.
	WarnAccuracyM float64 `koanf:"warn_accuracy_m"`

	// AttemptTimeoutMS bounds a single sampling attempt.
	AttemptTimeoutMS int `koanf:"attempt_timeout_ms"`

	// RetryBackoffMS is the pause between sampling attempts.
	RetryBackoffMS int `koanf:"retry_backoff_ms"`

	// ManualAccuracyM is the accuracy assigned to hand-placed pins.
	ManualAccuracyM float64 `koanf:"manual_accuracy_m"`

	// MaxListLimit caps GET /reports?limit.
	MaxListLimit int `koanf:"max_list_limit"`

	// ReconcileIntervalMS sets the upvote counter repair sweep period.
	ReconcileIntervalMS int `koanf:"reconcile_interval_ms"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention; it is reserved for future use.
func New(_ context.Context) *Config {
	c := &Config{
		LogLevel:            "info",
		Addr:                ":9080",
		StorePath:           "data/streetfix",
		StoreInMemory:       false,
		UploadsDir:          "uploads",
		GeocodeBaseURL:      "https://nominatim.openstreetmap.org",
		GeocodeTimeoutMS:    15_000,
		Fence:               geofence.Default(),
		MaxAttempts:         3,
		AccuracyCeilingM:    500,
		WarnAccuracyM:       200,
		AttemptTimeoutMS:    10_000,
		RetryBackoffMS:      1_000,
		ManualAccuracyM:     10,
		MaxListLimit:        100,
		ReconcileIntervalMS: 60_000,
	}
	return c
}
