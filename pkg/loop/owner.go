// Package loop provides execution contexts a result callback is delivered to.
//
// An Owner is the Go counterpart of a UI thread bound to a screen:
// the callback runs on the owner's goroutine, and only while the owner is alive.
package loop

// Owner is an execution context with liveness.
type Owner interface {
	// Alive returns false once the owner is gone, then no callback should be delivered.
	Alive() bool
	// Post schedules fn on the owner's execution context.
	// It returns false if fn has been refused, for example the owner is gone.
	Post(fn func()) bool
}
