package coline

import (
	"context"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/fllo/go-coline/pkg/request"
)

// DefaultConcurrencyLimit is the default maximum number of concurrently running requests started by a Queue.
const DefaultConcurrencyLimit = 32

// Queue collects requests by Handle.Enqueue and sends them together by the Start method.
//
// The Queue tracks the number of outstanding requests, from Enqueue until the callback is delivered.
// When the last one is delivered, the current batch is torn down and the next Enqueue starts a new one.
type Queue struct {
	logger logrus.FieldLogger
	sem    *semaphore.Weighted // nil if unbounded

	lock  sync.Mutex
	batch *batch // nil if there is no pending request
	last  *batch // the last drained batch
}

// batch is a generation of the Queue, from the first Enqueue to the last delivered callback.
type batch struct {
	entries     []*Handle // not started yet
	outstanding int
	used        bool
	drained     chan struct{}
	err         *multierror.Error
}

func newQueue(logger logrus.FieldLogger, concurrencyLimit int64) *Queue {
	q := &Queue{logger: logger}
	if concurrencyLimit > 0 {
		q.sem = semaphore.NewWeighted(concurrencyLimit)
	}
	return q
}

// IsPending returns true if at least one enqueued request has not been delivered yet.
func (q *Queue) IsPending() bool {
	q.lock.Lock()
	defer q.lock.Unlock()
	return q.batch != nil && q.batch.outstanding > 0
}

// Start sends all enqueued requests that have not been started yet, each on its own goroutine.
// Requests whose owner is already gone are skipped.
// It never blocks, the concurrency limit is applied on the request goroutines.
func (q *Queue) Start() {
	q.lock.Lock()
	b := q.batch
	if b == nil {
		q.lock.Unlock()
		q.logger.Info(`the queue isn't created, maybe you missed to add a request with "Enqueue"`)
		return
	}
	entries := b.entries
	b.entries = nil
	q.lock.Unlock()

	q.logger.Debugf("launch all requests in the current queue: %d", len(entries))
	for _, h := range entries {
		if !h.ownerAlive() {
			h.skip()
			continue
		}
		if !h.state.CompareAndSwap(int32(StateQueued), int32(StateRunning)) {
			continue
		}
		spec := h.Spec()
		go func() {
			if q.sem != nil {
				// If the request has been canceled while waiting, the transfer fails fast without a slot
				if err := q.sem.Acquire(h.ctx, 1); err == nil {
					defer q.sem.Release(1)
				}
			}
			h.run(spec)
		}()
	}
}

// Wait blocks until the current batch is torn down, or the ctx is done.
// It returns failures delivered in the batch, if any.
// If there is no pending request, failures of the last batch are returned.
func (q *Queue) Wait(ctx context.Context) error {
	q.lock.Lock()
	b := q.batch
	if b == nil {
		b = q.last
	}
	q.lock.Unlock()
	if b == nil {
		return nil
	}

	select {
	case <-b.drained:
	case <-ctx.Done():
		return ctx.Err()
	}

	q.lock.Lock()
	defer q.lock.Unlock()
	// If there is only one error, then unwrap multierror
	if b.err != nil && len(b.err.Errors) == 1 {
		return b.err.Errors[0]
	}
	return b.err.ErrorOrNil()
}

func (q *Queue) enqueue(h *Handle) {
	q.lock.Lock()
	defer q.lock.Unlock()

	if q.batch == nil {
		q.batch = &batch{drained: make(chan struct{})}
		q.logger.Debug("queue created")
	}
	b := q.batch
	b.entries = append(b.entries, h)
	b.used = true
	b.outstanding++

	h.lock.Lock()
	h.batch = b
	h.lock.Unlock()

	h.logger.Debugf("request added to the queue, pending: %d", b.outstanding)
}

// release is called by the handle teardown, the outcome is nil for a skipped request.
func (q *Queue) release(b *batch, outcome request.Outcome) {
	q.lock.Lock()
	defer q.lock.Unlock()

	if outcome != nil {
		if _, failure := request.Split(outcome); failure != nil {
			b.err = multierror.Append(b.err, failure)
		}
	}

	b.outstanding--
	if b.outstanding == 0 && b.used {
		close(b.drained)
		if q.batch == b {
			q.batch = nil
		}
		q.last = b
		q.logger.Debug("queue is empty, destroyed")
	}
}
