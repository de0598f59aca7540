package otel

import (
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/spf13/cast"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/semconv/v1.18.0/httpconv"

	"github.com/fllo/go-coline/pkg/request"
)

const (
	maskedAttrValue = "****"
)

type attributes struct {
	config config
	// definitionURL is nil if the URL cannot be parsed
	definitionURL *url.URL
	// definition attributes for span and metrics
	definition []attribute.KeyValue
	// definitionExtra attributes for span only
	definitionExtra []attribute.KeyValue
	// httpRequest attributes for span and metrics
	httpRequest []attribute.KeyValue
	// httpRequestExtra attributes for span only
	httpRequestExtra []attribute.KeyValue
	// httpResponse attributes for span and metrics
	httpResponse []attribute.KeyValue
	// httpResponseExtra attributes for span only
	httpResponseExtra []attribute.KeyValue
	// outcome attributes for span and metrics
	outcome []attribute.KeyValue
}

func newAttributes(cfg config, spec request.Spec) *attributes {
	out := &attributes{config: cfg}

	// Definition base
	out.definition = []attribute.KeyValue{
		attribute.String("definition.method", spec.Method().String()),
		attribute.String("definition.url.full", redactURL(cfg, spec.URL())),
	}
	if reqURL, err := url.Parse(spec.URL()); err == nil && reqURL.Host != "" {
		out.definitionURL = reqURL
		out.definition = append(out.definition,
			attribute.String("definition.url.path", mustURLPathUnescape(reqURL.Path)),
			attribute.String("definition.url.host.full", reqURL.Host),
		)
		if dotPos := strings.IndexByte(reqURL.Host, '.'); dotPos > 0 {
			// Host parts: to trace service name (host prefix) and domain (host suffix).
			out.definition = append(out.definition,
				attribute.String("definition.url.host.prefix", reqURL.Host[:dotPos]),
				attribute.String("definition.url.host.suffix", strings.TrimLeft(reqURL.Host[dotPos:], ".")),
			)
		}
	}

	// Definition headers
	var headerAttrs []attribute.KeyValue
	for k, v := range spec.Header() {
		value := strings.Join(v, ";")
		if cfg.isRedactedHeader(k) {
			value = maskedAttrValue
		}
		headerAttrs = append(headerAttrs, attribute.String("definition.header."+k, value))
	}
	sortAttrs(headerAttrs)
	out.definitionExtra = append(out.definitionExtra, headerAttrs...)

	// Definition body fields
	var fieldAttrs []attribute.KeyValue
	for k, v := range spec.Fields() {
		value := cast.ToString(v)
		if cfg.isRedactedField(k) {
			value = maskedAttrValue
		}
		fieldAttrs = append(fieldAttrs, attribute.String("definition.body."+k, value))
	}
	sortAttrs(fieldAttrs)
	out.definitionExtra = append(out.definitionExtra, fieldAttrs...)

	return out
}

func (v *attributes) ResourceName() string {
	if v.definitionURL == nil {
		return ""
	}
	return mustURLPathUnescape(v.definitionURL.Path)
}

func (v *attributes) SetFromRequest(req *http.Request) {
	if req == nil {
		v.httpRequest = nil
		v.httpRequestExtra = nil
		return
	}

	// Base
	v.httpRequest = httpconv.ClientRequest(req)
	for i, attr := range v.httpRequest {
		if attr.Key == "http.url" {
			v.httpRequest[i] = attribute.String("http.url", redactURL(v.config, attr.Value.AsString()))
		}
	}

	// Extra
	var attrs []attribute.KeyValue
	for key, values := range req.Header {
		key = strings.ToLower(key)
		value := strings.Join(values, ";")
		if key == "user-agent" {
			// Skip, it is already present from httpconv
			continue
		}
		if v.config.isRedactedHeader(key) {
			value = maskedAttrValue
		}
		attrs = append(attrs, attribute.String("http.header."+key, value))
	}
	sortAttrs(attrs)
	v.httpRequestExtra = attrs
}

func (v *attributes) SetFromResponse(res *http.Response) {
	if res == nil {
		v.httpResponse = nil
		v.httpResponseExtra = nil
		return
	}

	// Base
	v.httpResponse = httpconv.ClientResponse(res)
	v.httpResponse = append(v.httpResponse, attribute.Bool("http.is_redirection", isRedirection(res)))

	// Extra
	var attrs []attribute.KeyValue
	for key, values := range res.Header {
		key = strings.ToLower(key)
		value := strings.Join(values, ";")
		if v.config.isRedactedHeader(key) {
			value = maskedAttrValue
		}
		attrs = append(attrs, attribute.String("http.response.header."+key, value))
	}
	sortAttrs(attrs)
	v.httpResponseExtra = attrs
}

func (v *attributes) SetFromOutcome(outcome request.Outcome) {
	v.outcome = []attribute.KeyValue{
		attribute.Bool("transfer.success", outcome.IsSuccess()),
		attribute.String("transfer.outcome", outcomeKind(outcome)),
		attribute.Int("transfer.status_code", outcome.Status()),
	}
}

// redactURL masks values of the redacted query parameters.
// An unparsable URL is returned unchanged.
func redactURL(cfg config, str string) string {
	u, err := url.Parse(str)
	if err != nil || u.RawQuery == "" {
		return str
	}
	query := u.Query()
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var parts []string
	for _, k := range keys {
		for _, value := range query[k] {
			if cfg.isRedactedQueryParam(k) {
				value = maskedAttrValue
			} else {
				value = url.QueryEscape(value)
			}
			parts = append(parts, url.QueryEscape(k)+"="+value)
		}
	}
	u.RawQuery = strings.Join(parts, "&")
	return u.String()
}

func sortAttrs(attrs []attribute.KeyValue) {
	sort.SliceStable(attrs, func(i, j int) bool {
		return attrs[i].Key < attrs[j].Key
	})
}

func mustURLPathUnescape(in string) string {
	out, err := url.PathUnescape(in)
	if err != nil {
		return in
	}
	return out
}
