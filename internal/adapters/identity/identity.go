// Package identity declares the consumed identity-provider contract. The
// authentication protocol itself lives upstream; this core only reads the
// authenticated principal.
package identity

import (
	"context"
	"errors"
	"sync"
)

// User is an authenticated principal.
type User struct {
	ID            string
	Email         string
	EmailVerified bool
	Role          string
}

// ErrUnauthenticated indicates no current user.
var ErrUnauthenticated = errors.New("not authenticated")

// Provider exposes the current principal and auth-state change
// notifications.
type Provider interface {
	// CurrentUser returns the authenticated user or ErrUnauthenticated.
	CurrentUser(ctx context.Context) (User, error)

	// OnAuthStateChanged registers a callback fired on sign-in and
	// sign-out. The returned func cancels the registration.
	OnAuthStateChanged(fn func(User)) (cancel func())
}

// StaticProvider is an in-memory Provider for tests and single-user
// tooling.
type StaticProvider struct {
	mu        sync.Mutex
	user      *User
	listeners map[int]func(User)
	nextID    int
}

// NewStaticProvider creates a provider, optionally pre-authenticated.
func NewStaticProvider(user *User) *StaticProvider {
	return &StaticProvider{
		user:      user,
		listeners: make(map[int]func(User)),
	}
}

// CurrentUser implements Provider.
func (p *StaticProvider) CurrentUser(_ context.Context) (User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.user == nil {
		return User{}, ErrUnauthenticated
	}
	return *p.user, nil
}

// OnAuthStateChanged implements Provider.
func (p *StaticProvider) OnAuthStateChanged(fn func(User)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

// SignIn sets the current user and notifies listeners.
func (p *StaticProvider) SignIn(user User) {
	p.mu.Lock()
	p.user = &user
	fns := make([]func(User), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(user)
	}
}

// SignOut clears the current user and notifies listeners with a zero User.
func (p *StaticProvider) SignOut() {
	p.mu.Lock()
	p.user = nil
	fns := make([]func(User), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(User{})
	}
}
