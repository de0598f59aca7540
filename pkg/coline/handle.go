package coline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fllo/go-coline/pkg/loop"
	"github.com/fllo/go-coline/pkg/request"
)

// ErrAlreadyStarted is returned if Exec or Enqueue is called on a handle that has already been executed or enqueued.
var ErrAlreadyStarted = errors.New("request has already been started")

// Callback receives the Outcome of a request.
type Callback func(outcome request.Outcome)

// State of a Handle.
type State int32

const (
	StateCreated State = iota
	StateQueued
	StateRunning
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateQueued:
		return "queued"
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Handle builds one request and tracks its execution.
// Builder methods modify the handle and return it, so calls can be chained.
// A handle is executed at most once, by Exec or by the Queue.
type Handle struct {
	id     string
	line   *Line
	logger logrus.FieldLogger
	ctx    context.Context
	cancel context.CancelFunc
	state  atomic.Int32
	once   sync.Once // delivery

	lock     sync.Mutex
	owner    loop.Owner
	spec     request.Spec
	callback Callback
	batch    *batch // set if the handle has been enqueued
}

func newHandle(line *Line, owner loop.Owner) *Handle {
	h := &Handle{id: uuid.NewString(), line: line, owner: owner, spec: request.NewSpec()}
	h.logger = line.logger.WithField("request_id", h.id)
	h.ctx, h.cancel = context.WithCancel(line.ctx)
	return h
}

// ID returns the unique identifier of the handle, it is present in all log messages of the request.
func (h *Handle) ID() string {
	return h.id
}

func (h *Handle) State() State {
	return State(h.state.Load())
}

// Spec returns a snapshot of the request built so far.
func (h *Handle) Spec() request.Spec {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.spec
}

// URL sets the method and the target URL.
func (h *Handle) URL(method request.Method, route string) *Handle {
	return h.modify("URL", func() {
		h.spec = h.spec.WithURL(method, route)
	})
}

// With sets the body fields, they are sent form-encoded.
func (h *Handle) With(fields map[string]any) *Handle {
	if len(fields) == 0 {
		h.logger.Info(`please check the values sent in "With"`)
	}
	return h.modify("With", func() {
		h.spec = h.spec.WithFields(fields)
	})
}

// WithPairs sets the body fields from alternating keys and values, e.g. WithPairs("key1", value1, "key2", value2).
// Keys are converted to string. A key without a value is ignored.
func (h *Handle) WithPairs(pairs ...any) *Handle {
	if len(pairs) == 0 || len(pairs)%2 != 0 {
		h.logger.Info(`please check the values sent in "WithPairs"`)
	}
	return h.modify("WithPairs", func() {
		for i := 0; i+1 < len(pairs); i += 2 {
			h.spec = h.spec.AndField(fmt.Sprint(pairs[i]), pairs[i+1])
		}
	})
}

// Head sets the header fields. If at least one header is set, the default Content-Type is not sent.
func (h *Handle) Head(headers map[string]string) *Handle {
	if len(headers) == 0 {
		h.logger.Info(`please check the properties sent in "Head"`)
	}
	return h.modify("Head", func() {
		h.spec = h.spec.WithHeaders(headers)
	})
}

// Auth sets the Authorization header.
func (h *Handle) Auth(scheme request.AuthScheme, credentials string) *Handle {
	return h.modify("Auth", func() {
		h.spec = h.spec.WithAuth(scheme, credentials)
	})
}

// OnResult sets the callback. Without a callback the request is sent, but the Outcome is only logged.
func (h *Handle) OnResult(cb Callback) *Handle {
	return h.modify("OnResult", func() {
		h.callback = cb
	})
}

// Exec validates the request and sends it on a new goroutine.
// The callback is invoked exactly once, on the owner's execution context, if the owner is still alive.
func (h *Handle) Exec() error {
	spec, err := h.validate()
	if err != nil {
		return err
	}
	if !h.state.CompareAndSwap(int32(StateCreated), int32(StateRunning)) {
		return ErrAlreadyStarted
	}

	h.logger.Debug("request execution...")
	go h.run(spec)
	return nil
}

// Enqueue validates the request and adds it to the Line's Queue, it is sent by Queue.Start.
// If the owner is already gone, the request is not enqueued.
func (h *Handle) Enqueue() error {
	if _, err := h.validate(); err != nil {
		return err
	}
	if !h.ownerAlive() {
		h.logger.Info("owner is gone, request is not enqueued")
		return nil
	}
	if !h.state.CompareAndSwap(int32(StateCreated), int32(StateQueued)) {
		return ErrAlreadyStarted
	}

	h.line.queue.enqueue(h)
	return nil
}

// Cancel interrupts a queued or running request, it is best-effort.
// The callback may still be invoked with the resulting Outcome, usually a ConnectionError or a ReadError.
// A request that has not been started yet, or has already finished, is not affected.
func (h *Handle) Cancel() {
	switch state := h.State(); state {
	case StateQueued, StateRunning:
		h.cancel()
	default:
		h.logger.Infof(`cannot cancel request in state "%s"`, state)
	}
}

func (h *Handle) String() string {
	return fmt.Sprintf("%s %s", h.id, h.Spec())
}

// modify applies a builder change, if the handle has not been started yet.
func (h *Handle) modify(method string, fn func()) *Handle {
	if h.State() != StateCreated {
		h.logger.Warnf(`"%s" ignored: %s`, method, ErrAlreadyStarted)
		return h
	}
	h.lock.Lock()
	defer h.lock.Unlock()
	fn()
	return h
}

func (h *Handle) validate() (request.Spec, error) {
	if h.State() != StateCreated {
		return request.Spec{}, ErrAlreadyStarted
	}
	spec := h.Spec()
	if err := spec.Validate(); err != nil {
		h.logger.Errorf("invalid request: %s", err)
		return request.Spec{}, err
	}
	return spec, nil
}

// run is called on the worker goroutine.
func (h *Handle) run(spec request.Spec) {
	h.deliver(h.line.client.Transfer(h.ctx, spec))
}

func (h *Handle) ownerAlive() bool {
	h.lock.Lock()
	owner := h.owner
	h.lock.Unlock()
	return owner != nil && owner.Alive()
}
