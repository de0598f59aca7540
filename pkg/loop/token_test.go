package loop_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fllo/go-coline/pkg/loop"
)

func TestToken(t *testing.T) {
	t.Parallel()

	token := loop.NewToken()
	assert.True(t, token.Alive())
	token.Discard()
	token.Discard()
	assert.False(t, token.Alive())
}

func TestToken_Bind(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	token := loop.NewToken()
	owner := token.Bind(loop.Inline(ctx))

	calls := 0
	assert.True(t, owner.Alive())
	assert.True(t, owner.Post(func() { calls++ }))

	// Discarded token
	token.Discard()
	assert.False(t, owner.Alive())
	assert.False(t, owner.Post(func() { calls++ }))
	assert.Equal(t, 1, calls)

	// Gone owner
	other := loop.NewToken().Bind(loop.Inline(ctx))
	cancel()
	assert.False(t, other.Alive())
	assert.False(t, other.Post(func() { calls++ }))
	assert.Equal(t, 1, calls)
}
