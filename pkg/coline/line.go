// Package coline sends HTTP requests asynchronously and delivers the Outcome
// to the execution context of the caller.
//
// A Line is the entry point, it holds the Transfer Worker configuration and one Queue.
// Each request is built by a Handle:
//
//	line := coline.New()
//	err := line.Init(owner).
//		URL(request.GET, "https://example.com/users/1").
//		OnResult(func(outcome request.Outcome) { ... }).
//		Exec()
//
// The callback runs on the owner's execution context, see the loop package.
// If the owner is gone before the transfer finishes, the callback is not invoked.
package coline

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/fllo/go-coline/pkg/client"
	"github.com/fllo/go-coline/pkg/loop"
)

// Line creates request handles and owns the Queue of pending requests.
type Line struct {
	ctx    context.Context
	client client.Client
	logger logrus.FieldLogger
	queue  *Queue
}

type config struct {
	ctx              context.Context
	client           *client.Client
	logger           logrus.FieldLogger
	concurrencyLimit int64
}

type Option func(c *config)

// WithContext sets the parent context of all requests, canceling it cancels all requests.
func WithContext(ctx context.Context) Option {
	return func(c *config) {
		c.ctx = ctx
	}
}

// WithClient sets the Transfer Worker.
func WithClient(v client.Client) Option {
	return func(c *config) {
		c.client = &v
	}
}

// WithLogger sets the diagnostics sink of the Line and of its Client.
func WithLogger(v logrus.FieldLogger) Option {
	return func(c *config) {
		c.logger = v
	}
}

// WithConcurrencyLimit sets the maximum number of concurrently running requests started by the Queue.
// Zero means unbounded.
func WithConcurrencyLimit(v int64) Option {
	return func(c *config) {
		c.concurrencyLimit = v
	}
}

// New creates a Line with an empty Queue.
func New(opts ...Option) *Line {
	cfg := config{ctx: context.Background(), concurrencyLimit: DefaultConcurrencyLimit}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.concurrencyLimit < 0 {
		panic(fmt.Errorf("concurrency limit cannot be negative, found %d", cfg.concurrencyLimit))
	}

	l := &Line{ctx: cfg.ctx}
	if cfg.client != nil {
		l.client = *cfg.client
	} else {
		l.client = client.New()
	}
	if cfg.logger != nil {
		l.client = l.client.WithLogger(cfg.logger)
	}
	l.logger = l.client.Logger()
	l.queue = newQueue(l.logger, cfg.concurrencyLimit)
	return l
}

// Client returns the Transfer Worker.
func (l *Line) Client() client.Client {
	return l.client
}

// Queue returns the Queue of pending requests.
func (l *Line) Queue() *Queue {
	return l.queue
}

// Init starts building a request, the result will be delivered to the owner.
func (l *Line) Init(owner loop.Owner) *Handle {
	if owner == nil {
		panic(fmt.Errorf("owner cannot be nil"))
	}
	return newHandle(l, owner)
}

// Send starts all requests in the Queue, see Queue.Start.
func (l *Line) Send() {
	l.queue.Start()
}
