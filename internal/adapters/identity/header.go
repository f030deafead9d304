package identity

import "net/http"

// Principal headers set by the upstream authenticating proxy.
const (
	HeaderUserID   = "X-User-Id"
	HeaderEmail    = "X-User-Email"
	HeaderVerified = "X-User-Verified"
	HeaderRole     = "X-User-Role"
)

// FromRequest extracts the upstream-authenticated principal from request
// headers. The auth protocol runs upstream; by the time a request reaches
// this core, the headers are trusted.
func FromRequest(r *http.Request) (User, error) {
	id := r.Header.Get(HeaderUserID)
	if id == "" {
		return User{}, ErrUnauthenticated
	}
	return User{
		ID:            id,
		Email:         r.Header.Get(HeaderEmail),
		EmailVerified: r.Header.Get(HeaderVerified) == "true",
		Role:          r.Header.Get(HeaderRole),
	}, nil
}
