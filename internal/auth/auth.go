// Package auth resolves the owner that records are attributed to.
//
// The hosted identity provider is an external collaborator; this package only
// turns what it tells us (a session, a request header, static configuration)
// into a core.Owner or core.ErrUnauthenticated.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"finboard/internal/core"
)

// OwnerResolver returns the currently authenticated owner.
type OwnerResolver interface {
	CurrentOwner(ctx context.Context) (core.Owner, error)
}

// ResolverFunc adapts a function to OwnerResolver.
type ResolverFunc func(ctx context.Context) (core.Owner, error)

func (f ResolverFunc) CurrentOwner(ctx context.Context) (core.Owner, error) { return f(ctx) }

// Static always resolves to the same owner, taken from configuration.
type Static struct {
	Owner core.Owner
}

func NewStatic(id, email string) Static {
	return Static{Owner: core.Owner{ID: strings.TrimSpace(id), Email: strings.TrimSpace(email)}}
}

func (s Static) CurrentOwner(context.Context) (core.Owner, error) {
	if s.Owner.ID == "" {
		return core.Owner{}, fmt.Errorf("no owner configured: %w", core.ErrUnauthenticated)
	}
	return s.Owner, nil
}

type ownerKey struct{}

// WithOwner stores an authenticated owner on ctx.
func WithOwner(ctx context.Context, o core.Owner) context.Context {
	return WithSession(ctx, core.AuthenticatedSession(o))
}

// WithSession stores the session reported by the identity provider on ctx.
func WithSession(ctx context.Context, s core.Session) context.Context {
	return context.WithValue(ctx, ownerKey{}, s)
}

// SessionFrom returns the session on ctx, anonymous when there is none.
func SessionFrom(ctx context.Context) core.Session {
	if s, ok := ctx.Value(ownerKey{}).(core.Session); ok {
		return s
	}
	return core.AnonymousSession()
}

// ContextResolver resolves the owner placed on the context by the HTTP layer
// or the sync worker.
type ContextResolver struct{}

func (ContextResolver) CurrentOwner(ctx context.Context) (core.Owner, error) {
	return SessionFrom(ctx).Owner()
}

// Chain tries each resolver in order and returns the first owner found.
// Only ErrUnauthenticated moves on to the next resolver.
type Chain []OwnerResolver

func (c Chain) CurrentOwner(ctx context.Context) (core.Owner, error) {
	for _, r := range c {
		o, err := r.CurrentOwner(ctx)
		if err == nil {
			return o, nil
		}
		if !errors.Is(err, core.ErrUnauthenticated) {
			return core.Owner{}, err
		}
	}
	return core.Owner{}, fmt.Errorf("no resolver produced an owner: %w", core.ErrUnauthenticated)
}
