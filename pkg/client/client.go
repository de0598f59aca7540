// Package client provides the Transfer Worker: it performs one HTTP exchange
// described by a request.Spec and classifies the result as a request.Outcome.
//
// Client is based on the standard net/http package and contains tracing/telemetry support.
// Client is immutable, every With* method returns a modified clone.
//
// Client.Transfer never returns an error, all problems are reported as a *request.Failure:
//   - request.MalformedURL, the URL cannot be parsed or it is not an absolute http(s) URL.
//   - request.ConnectionError, the connection cannot be opened or the request cannot be written.
//   - request.EmptyResponseStream, the response has no body stream.
//   - request.ReadError, the response body cannot be read.
//   - request.ServerError, the response status is outside 200-299.
package client

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptrace"
	"time"

	"github.com/sirupsen/logrus"
	otelMetric "go.opentelemetry.io/otel/metric"
	otelTrace "go.opentelemetry.io/otel/trace"

	"github.com/fllo/go-coline/pkg/client/trace"
	"github.com/fllo/go-coline/pkg/client/trace/otel"
	"github.com/fllo/go-coline/pkg/request"
)

// Client is a default and configurable implementation of the Transfer Worker by Go native http.Client.
type Client struct {
	transport       http.RoundTripper
	customTransport bool
	header          http.Header
	connectTimeout  time.Duration
	readTimeout     time.Duration
	logger          logrus.FieldLogger
	traceFactory    trace.Factory
}

// New creates new HTTP Client.
func New() Client {
	c := Client{
		header:         make(http.Header),
		connectTimeout: ConnectTimeout,
		readTimeout:    ReadTimeout,
		logger:         NewLogger(false),
	}
	c.transport = newTransport(c.connectTimeout, c.readTimeout)
	c.header.Set("User-Agent", "go-coline")
	c.header.Set("Accept-Encoding", "gzip, br")
	return c
}

// Logger returns the diagnostics sink.
func (c Client) Logger() logrus.FieldLogger {
	return c.logger
}

// ConnectTimeout returns the maximum connection initialization time.
func (c Client) ConnectTimeout() time.Duration {
	return c.connectTimeout
}

// ReadTimeout returns the maximum time to wait for response headers and for each read of the body.
func (c Client) ReadTimeout() time.Duration {
	return c.readTimeout
}

// WithUserAgent returns a clone of the Client with user agent set.
func (c Client) WithUserAgent(v string) Client {
	c.header = c.header.Clone()
	c.header.Set("User-Agent", v)
	return c
}

// WithTransport returns a clone of the Client with a HTTP transport set.
// The connect timeout is not applied to a custom transport, the read timeout is still applied to the body.
func (c Client) WithTransport(transport http.RoundTripper) Client {
	if transport == nil {
		panic(fmt.Errorf("transport cannot be nil"))
	}
	c.transport = transport
	c.customTransport = true
	return c
}

// WithConnectTimeout returns a clone of the Client with connect timeout set.
func (c Client) WithConnectTimeout(v time.Duration) Client {
	if v <= 0 {
		panic(fmt.Errorf("connect timeout must be positive, found %s", v))
	}
	c.connectTimeout = v
	if !c.customTransport {
		c.transport = newTransport(c.connectTimeout, c.readTimeout)
	}
	return c
}

// WithReadTimeout returns a clone of the Client with read timeout set.
func (c Client) WithReadTimeout(v time.Duration) Client {
	if v <= 0 {
		panic(fmt.Errorf("read timeout must be positive, found %s", v))
	}
	c.readTimeout = v
	if !c.customTransport {
		c.transport = newTransport(c.connectTimeout, c.readTimeout)
	}
	return c
}

// WithLogger returns a clone of the Client with the diagnostics sink set.
func (c Client) WithLogger(logger logrus.FieldLogger) Client {
	if logger == nil {
		panic(fmt.Errorf("logger cannot be nil"))
	}
	c.logger = logger
	return c
}

// WithLogs returns a clone of the Client with the default logger enabled or disabled.
func (c Client) WithLogs(enabled bool) Client {
	c.logger = NewLogger(enabled)
	return c
}

// WithTrace returns a clone of the Client with Trace hooks set.
// It replaces all previous hooks.
func (c Client) WithTrace(fn trace.Factory) Client {
	c.traceFactory = fn
	return c
}

// AndTrace returns a clone of the Client with Trace hooks added.
// Previously registered hooks are executed first.
func (c Client) AndTrace(fn trace.Factory) Client {
	if c.traceFactory == nil {
		return c.WithTrace(fn)
	}
	oldFactory := c.traceFactory
	c.traceFactory = func(ctx context.Context, spec request.Spec) (context.Context, *trace.ClientTrace) {
		ctx, oldTrace := oldFactory(ctx, spec)
		if oldTrace != nil {
			// Native hooks are composed by the httptrace package
			ctx = httptrace.WithClientTrace(ctx, &oldTrace.ClientTrace)
		}
		ctx, newTrace := fn(ctx, spec)
		if newTrace == nil {
			newTrace = &trace.ClientTrace{}
		}
		newTrace.Compose(oldTrace)
		return ctx, newTrace
	}
	return c
}

// WithTelemetry returns a clone of the Client with OpenTelemetry tracing and metrics added.
func (c Client) WithTelemetry(tracerProvider otelTrace.TracerProvider, meterProvider otelMetric.MeterProvider, opts ...otel.Option) Client {
	return c.AndTrace(otel.NewTrace(tracerProvider, meterProvider, opts...))
}
