package loop

import (
	"sync"
)

// Loop is a serial executor, all posted functions run in FIFO order on one goroutine.
//
// Close marks the Loop gone: new posts are refused,
// already accepted functions are still run, then the goroutine exits.
type Loop struct {
	lock    sync.Mutex
	pending []func()
	closed  bool
	wakeup  chan struct{}
	done    chan struct{}
}

// New creates a Loop and starts its goroutine.
func New() *Loop {
	l := &Loop{
		wakeup: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go l.run()
	return l
}

// Alive returns true until Close is called.
func (l *Loop) Alive() bool {
	l.lock.Lock()
	defer l.lock.Unlock()
	return !l.closed
}

// Post appends fn to the queue, it returns false if the Loop is closed.
func (l *Loop) Post(fn func()) bool {
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.closed {
		return false
	}
	l.pending = append(l.pending, fn)
	l.notify()
	return true
}

// Close stops accepting new functions. It doesn't wait, use Done for that.
// It may be called from a posted function.
func (l *Loop) Close() {
	l.lock.Lock()
	defer l.lock.Unlock()
	if !l.closed {
		l.closed = true
		l.notify()
	}
}

// Done is closed when the Loop goroutine exits, after Close and after all accepted functions have run.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) notify() {
	select {
	case l.wakeup <- struct{}{}:
	default:
	}
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		l.lock.Lock()
		batch := l.pending
		l.pending = nil
		closed := l.closed
		l.lock.Unlock()

		for _, fn := range batch {
			fn()
		}

		if len(batch) == 0 {
			if closed {
				return
			}
			<-l.wakeup
		}
	}
}
