// Package geocode provides the consumed reverse-geocoder contract:
// coordinate in, human-readable address out. Best effort only; it is
// never on the critical acceptance path.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Default client configuration constants.
const (
	defaultBaseURL = "https://nominatim.openstreetmap.org"
	defaultTimeout = 10 * time.Second
	userAgent      = "StreetFix/1.0"
)

// Resolver turns a coordinate into a display address.
type Resolver interface {
	Resolve(ctx context.Context, lat, lng float64) (string, error)
}

// Nominatim resolves addresses against a Nominatim-compatible endpoint.
type Nominatim struct {
	baseURL string
	client  *http.Client
}

// Option applies a configuration option to the Nominatim resolver.
type Option func(*Nominatim)

// WithBaseURL overrides the Nominatim endpoint. For self-hosted
// instances and tests.
func WithBaseURL(base string) Option {
	return func(n *Nominatim) {
		if base != "" {
			n.baseURL = base
		}
	}
}

// WithTimeout overrides the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(n *Nominatim) {
		if d > 0 {
			n.client.Timeout = d
		}
	}
}

// WithHTTPClient replaces the HTTP client entirely.
func WithHTTPClient(client *http.Client) Option {
	return func(n *Nominatim) {
		if client != nil {
			n.client = client
		}
	}
}

// NewNominatim creates a Nominatim resolver.
func NewNominatim(opts ...Option) *Nominatim {
	n := &Nominatim{
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// reverseResponse mirrors the fields we read from /reverse.
type reverseResponse struct {
	DisplayName string `json:"display_name"`
}

// Resolve performs a reverse lookup. An empty display name is an error so
// callers treat it like any other best-effort failure.
func (n *Nominatim) Resolve(ctx context.Context, lat, lng float64) (string, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lng, 'f', -1, 64))
	q.Set("zoom", "18")
	q.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrResolve, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := n.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrResolve, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: unexpected status %d", ErrResolve, resp.StatusCode)
	}

	var body reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: %w", ErrResolve, err)
	}
	if body.DisplayName == "" {
		return "", fmt.Errorf("%w: no address for (%v, %v)", ErrNoAddress, lat, lng)
	}
	return body.DisplayName, nil
}
