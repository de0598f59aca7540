package loop

import "sync/atomic"

// Token is a liveness flag of a component that doesn't own an execution context,
// for example a view served by a shared Loop.
type Token struct {
	discarded atomic.Bool
}

func NewToken() *Token {
	return &Token{}
}

func (t *Token) Alive() bool {
	return !t.discarded.Load()
}

// Discard marks the component gone, it cannot be undone.
func (t *Token) Discard() {
	t.discarded.Store(true)
}

// Bind returns an Owner that posts to the owner and is alive only while both the Token and the owner are.
func (t *Token) Bind(owner Owner) Owner {
	return bound{token: t, owner: owner}
}

type bound struct {
	token *Token
	owner Owner
}

func (b bound) Alive() bool {
	return b.token.Alive() && b.owner.Alive()
}

func (b bound) Post(fn func()) bool {
	if !b.token.Alive() {
		return false
	}
	return b.owner.Post(fn)
}
