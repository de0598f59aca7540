package request

import (
	"errors"
	"fmt"
	"maps"
	"net/http"

	"golang.org/x/net/http/httpguts"
)

const (
	// DefaultContentType is sent when the caller supplies no header fields.
	DefaultContentType = "application/x-www-form-urlencoded; charset=UTF-8"
	headerContentType  = "Content-Type"
	headerAuthorize    = "Authorization"
)

var (
	ErrMethodNotSet  = errors.New("request method is not set")
	ErrURLNotSet     = errors.New("request url is not set")
	ErrInvalidMethod = errors.New("request method is not supported")
	ErrInvalidHeader = errors.New("request header is not valid")
)

// Spec is an immutable description of one HTTP call.
type Spec struct {
	method  Method
	url     string
	headers map[string]string
	fields  map[string]any
}

// NewSpec creates an empty Spec, method and URL must be set before it is sent.
func NewSpec() Spec {
	return Spec{}
}

func (s Spec) Method() Method {
	return s.method
}

func (s Spec) URL() string {
	return s.url
}

// Headers returns a copy of header fields supplied by the caller.
func (s Spec) Headers() map[string]string {
	return maps.Clone(s.headers)
}

// Fields returns a copy of body fields.
func (s Spec) Fields() map[string]any {
	return maps.Clone(s.fields)
}

// HasBody returns true if at least one body field is set.
func (s Spec) HasBody() bool {
	return len(s.fields) > 0
}

// WithURL sets the method and the target URL.
func (s Spec) WithURL(method Method, route string) Spec {
	s.method = method
	s.url = route
	return s
}

// WithFields replaces body fields.
func (s Spec) WithFields(fields map[string]any) Spec {
	s.fields = maps.Clone(fields)
	return s
}

// AndField sets a single body field.
func (s Spec) AndField(key string, value any) Spec {
	s.fields = maps.Clone(s.fields)
	if s.fields == nil {
		s.fields = make(map[string]any)
	}
	s.fields[key] = value
	return s
}

// WithHeaders replaces header fields.
// If at least one header is set, the default Content-Type is not sent.
func (s Spec) WithHeaders(headers map[string]string) Spec {
	s.headers = maps.Clone(headers)
	return s
}

// AndHeader sets a single header field.
func (s Spec) AndHeader(key, value string) Spec {
	s.headers = maps.Clone(s.headers)
	if s.headers == nil {
		s.headers = make(map[string]string)
	}
	s.headers[key] = value
	return s
}

// WithAuth sets the Authorization header, e.g. "Bearer <credentials>".
func (s Spec) WithAuth(scheme AuthScheme, credentials string) Spec {
	return s.AndHeader(headerAuthorize, scheme.Prefix()+credentials)
}

// Validate checks that the Spec can be sent.
func (s Spec) Validate() error {
	if s.method == "" {
		return ErrMethodNotSet
	}
	if !s.method.Valid() {
		return fmt.Errorf(`%w: "%s"`, ErrInvalidMethod, s.method)
	}
	if s.url == "" {
		return ErrURLNotSet
	}
	for k, v := range s.headers {
		if !httpguts.ValidHeaderFieldName(k) {
			return fmt.Errorf(`%w: name "%s"`, ErrInvalidHeader, k)
		}
		if !httpguts.ValidHeaderFieldValue(v) {
			return fmt.Errorf(`%w: value of "%s"`, ErrInvalidHeader, k)
		}
	}
	return nil
}

// Header returns header fields to send.
// Caller headers fully replace the defaults, they are not merged.
func (s Spec) Header() http.Header {
	out := make(http.Header)
	if len(s.headers) == 0 {
		out.Set(headerContentType, DefaultContentType)
		return out
	}
	for k, v := range s.headers {
		out.Set(k, v)
	}
	return out
}

func (s Spec) String() string {
	return fmt.Sprintf(`%s "%s"`, s.method, s.url)
}
