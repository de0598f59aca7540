package otel

import (
	"strings"

	"go.opentelemetry.io/otel/propagation"
)

type config struct {
	propagators         propagation.TextMapPropagator
	redactedQueryParams map[string]struct{}
	redactedHeaders     map[string]struct{}
	redactedFields      map[string]struct{}
}

type Option func(*config)

// WithPropagators injects the trace context to the headers of each sent request.
func WithPropagators(v propagation.TextMapPropagator) Option {
	return func(c *config) {
		c.propagators = v
	}
}

func WithRedactedQueryParam(params ...string) Option {
	return func(c *config) {
		for _, p := range params {
			c.redactedQueryParams[strings.ToLower(p)] = struct{}{}
		}
	}
}

func WithRedactedHeaders(headers ...string) Option {
	return func(c *config) {
		for _, h := range headers {
			c.redactedHeaders[strings.ToLower(h)] = struct{}{}
		}
	}
}

// WithRedactedFields masks values of the form body fields, e.g. "password".
func WithRedactedFields(fields ...string) Option {
	return func(c *config) {
		for _, f := range fields {
			c.redactedFields[strings.ToLower(f)] = struct{}{}
		}
	}
}

func newConfig(opts []Option) config {
	cfg := config{
		redactedQueryParams: make(map[string]struct{}),
		redactedFields:      make(map[string]struct{}),
		// Same as in the otelhttptrace
		redactedHeaders: map[string]struct{}{
			"authorization":       {},
			"www-authenticate":    {},
			"proxy-authenticate":  {},
			"proxy-authorization": {},
			"cookie":              {},
			"set-cookie":          {},
		},
	}
	for _, o := range opts {
		o(&cfg)
	}
	return cfg
}

func (c config) isRedactedHeader(k string) bool {
	_, found := c.redactedHeaders[strings.ToLower(k)]
	return found
}

func (c config) isRedactedQueryParam(k string) bool {
	_, found := c.redactedQueryParams[strings.ToLower(k)]
	return found
}

func (c config) isRedactedField(k string) bool {
	_, found := c.redactedFields[strings.ToLower(k)]
	return found
}
