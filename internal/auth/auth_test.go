package auth

import (
	"context"
	"errors"
	"testing"

	"finboard/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatic(t *testing.T) {
	o, err := NewStatic(" u1 ", "a@b.c").CurrentOwner(context.Background())
	require.NoError(t, err)
	assert.Equal(t, core.Owner{ID: "u1", Email: "a@b.c"}, o)

	_, err = NewStatic("", "").CurrentOwner(context.Background())
	assert.ErrorIs(t, err, core.ErrUnauthenticated)
}

func TestContextResolver(t *testing.T) {
	ctx := context.Background()
	_, err := ContextResolver{}.CurrentOwner(ctx)
	assert.ErrorIs(t, err, core.ErrUnauthenticated)

	_, err = ContextResolver{}.CurrentOwner(WithSession(ctx, core.LoadingSession()))
	assert.ErrorIs(t, err, core.ErrUnauthenticated)

	o, err := ContextResolver{}.CurrentOwner(WithOwner(ctx, core.Owner{ID: "u2"}))
	require.NoError(t, err)
	assert.Equal(t, "u2", o.ID)
}

func TestChain(t *testing.T) {
	chain := Chain{ContextResolver{}, NewStatic("fallback", "")}

	o, err := chain.CurrentOwner(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fallback", o.ID)

	o, err = chain.CurrentOwner(WithOwner(context.Background(), core.Owner{ID: "req"}))
	require.NoError(t, err)
	assert.Equal(t, "req", o.ID)

	boom := errors.New("provider down")
	failing := Chain{ResolverFunc(func(context.Context) (core.Owner, error) { return core.Owner{}, boom }), NewStatic("x", "")}
	_, err = failing.CurrentOwner(context.Background())
	assert.ErrorIs(t, err, boom)

	_, err = Chain{}.CurrentOwner(context.Background())
	assert.ErrorIs(t, err, core.ErrUnauthenticated)
}
