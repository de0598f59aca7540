package loop

import "context"

type inline struct {
	ctx context.Context
}

// Inline returns an Owner running posted functions directly on the posting goroutine.
// The Owner is gone when ctx is done.
func Inline(ctx context.Context) Owner {
	return inline{ctx: ctx}
}

func (o inline) Alive() bool {
	return o.ctx.Err() == nil
}

func (o inline) Post(fn func()) bool {
	if !o.Alive() {
		return false
	}
	fn()
	return true
}
