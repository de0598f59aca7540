// Package otel provides OpenTelemetry tracing and metrics for transfers.
//
// The package provides 3 levels of telemetry:
//
// 1. Transfer telemetry:
//   - Span "coline.transfer" wraps the whole transfer: connection, redirects and body read.
//   - Span "coline.transfer.body" tracks the response body read.
//   - The outcome is stored in the "transfer.outcome" attribute, a failure sets the span status to error.
//   - Metrics names start with "coline.transfer." (transferMeterPrefix const).
//
// 2. HTTP request telemetry:
//   - Span "http.request" for every sent HTTP request, including redirects.
//   - Metrics names start with "coline.http." (httpMeterPrefix const).
//
// 3. Low-level [httptrace] telemetry:
//   - Spans for HTTP request parts, for example: "http.dns", "http.tls", "http.getconn".
//   - Metrics are not provided.
//
// For full list of metrics see the allMeters struct.
package otel

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/http/httptrace"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelMetric "go.opentelemetry.io/otel/metric"
	metricNoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	otelTrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/fllo/go-coline/pkg/client/trace"
	"github.com/fllo/go-coline/pkg/request"
)

const (
	traceAppName     = "github.com/fllo/go-coline"
	attrResourceName = attribute.Key("resource.name")
	// Transfer spans.
	transferSpanName     = "coline.transfer"
	transferBodySpanName = transferSpanName + ".body"
	// HTTP request spans, for each redirect.
	httpSpanPrefix           = "http."
	httpRequestSpanName      = httpSpanPrefix + "request"
	httpDNSSpanName          = httpSpanPrefix + "dns"
	httpGetConnSpanName      = httpSpanPrefix + "getconn"
	httpConnectSpanName      = httpSpanPrefix + "connect"
	httpTLSHandshakeSpanName = httpSpanPrefix + "tls"
	httpHeadersSpanName      = httpSpanPrefix + "headers"
	httpSendSpanName         = httpSpanPrefix + "send"
	httpReceiveSpanName      = httpSpanPrefix + "receive"
	attrDNSAddresses         = attribute.Key("http.dns.addrs")
	attrRemoteAddr           = attribute.Key("http.remote")
	attrLocalAddr            = attribute.Key("http.local")
	attrConnectionReused     = attribute.Key("http.conn.reused")
	attrConnectionWasIdle    = attribute.Key("http.conn.wasidle")
	attrConnectionNetwork    = attribute.Key("http.conn.network")
	attrReadBytes            = attribute.Key("http.read_bytes")
	// Extra attributes for DataDog.
	attrSpanKind            = attribute.Key("span.kind")
	attrSpanKindValueClient = "client"
	attrSpanType            = attribute.Key("span.type")
	attrSpanTypeValueHTTP   = "http"
)

// transferTrace holds the state of one transfer.
type transferTrace struct {
	*trace.ClientTrace
	cfg    config
	tracer otelTrace.Tracer
	meters *allMeters
	attrs  *attributes

	rootCtx     context.Context
	rootSpan    otelTrace.Span
	startTime   time.Time
	httpCtx     context.Context
	httpSpan    otelTrace.Span
	httpStart   time.Time
	receiveSpan otelTrace.Span
	bodySpan    otelTrace.Span
	bodyStart   time.Time
	dnsSpan     otelTrace.Span
	getConnSpan otelTrace.Span
	connectSpan otelTrace.Span
	tlsSpan     otelTrace.Span
	headersSpan otelTrace.Span
	sendSpan    otelTrace.Span
}

// NewTrace creates trace.Factory which reports spans and metrics of each transfer.
// Nil providers are replaced by noop implementations.
func NewTrace(tracerProvider otelTrace.TracerProvider, meterProvider otelMetric.MeterProvider, opts ...Option) trace.Factory {
	cfg := newConfig(opts)
	if tracerProvider == nil {
		tracerProvider = noop.NewTracerProvider()
	}
	if meterProvider == nil {
		meterProvider = metricNoop.NewMeterProvider()
	}
	tracer := tracerProvider.Tracer(traceAppName)
	meters := newMeters(meterProvider.Meter(traceAppName))

	return func(ctx context.Context, spec request.Spec) (context.Context, *trace.ClientTrace) {
		t := &transferTrace{
			ClientTrace: &trace.ClientTrace{},
			cfg:         cfg,
			tracer:      tracer,
			meters:      meters,
			attrs:       newAttributes(cfg, spec),
		}
		t.start(ctx)
		t.registerHTTPHooks()
		t.registerBodyHooks()
		t.registerLowLevelHooks()
		t.TransferDone = t.done
		return t.rootCtx, t.ClientTrace
	}
}

func (t *transferTrace) start(ctx context.Context) {
	// Metrics
	t.startTime = time.Now()
	t.meters.transfer.inFlight.Add(ctx, 1, otelMetric.WithAttributes(t.attrs.definition...))

	// Tracing
	t.rootCtx, t.rootSpan = t.tracer.Start(
		ctx,
		transferSpanName,
		otelTrace.WithSpanKind(otelTrace.SpanKindClient),
		otelTrace.WithAttributes(
			attrResourceName.String(t.attrs.ResourceName()),
			attrSpanKind.String(attrSpanKindValueClient),
			attrSpanType.String(attrSpanTypeValueHTTP),
		),
		otelTrace.WithAttributes(t.attrs.definition...),
		otelTrace.WithAttributes(t.attrs.definitionExtra...),
	)
	t.httpCtx = t.rootCtx
}

func (t *transferTrace) done(outcome request.Outcome) {
	elapsedTime := float64(time.Since(t.startTime)) / float64(time.Millisecond)
	t.attrs.SetFromOutcome(outcome)

	// Spans of an interrupted transfer
	t.endSpan(&t.bodySpan, nil)
	t.endSpan(&t.receiveSpan, nil)
	t.endSpan(&t.httpSpan, nil)

	// Metrics
	meterAttrs := append(append([]attribute.KeyValue{}, t.attrs.definition...), t.attrs.outcome...)
	t.meters.transfer.inFlight.Add(t.rootCtx, -1, otelMetric.WithAttributes(t.attrs.definition...)) // same attributes/dimensions as in start!
	t.meters.transfer.duration.Record(t.rootCtx, elapsedTime, otelMetric.WithAttributes(meterAttrs...))

	// Tracing
	t.rootSpan.SetAttributes(t.attrs.httpResponse...)
	t.rootSpan.SetAttributes(t.attrs.httpResponseExtra...)
	t.rootSpan.SetAttributes(t.attrs.outcome...)
	if _, failure := request.Split(outcome); failure != nil {
		t.rootSpan.RecordError(failure)
		t.rootSpan.SetStatus(codes.Error, failure.Error())
	}
	t.rootSpan.End()
}

func (t *transferTrace) registerHTTPHooks() {
	t.HTTPRequestStart = func(req *http.Request) {
		// Previous redirect
		t.endSpan(&t.bodySpan, nil)

		t.httpCtx, t.httpSpan = t.startSpan(t.rootCtx, httpRequestSpanName,
			attrSpanKind.String(attrSpanKindValueClient),
			attrSpanType.String(attrSpanTypeValueHTTP),
		)

		// Inject trace headers
		if t.cfg.propagators != nil {
			t.cfg.propagators.Inject(t.httpCtx, propagation.HeaderCarrier(req.Header))
		}

		// Attrs
		t.httpStart = time.Now()
		t.attrs.SetFromRequest(req)
		t.httpSpan.SetAttributes(attrResourceName.String(mustURLPathUnescape(req.URL.Path)))
		t.httpSpan.SetAttributes(t.attrs.httpRequest...)
		t.httpSpan.SetAttributes(t.attrs.httpRequestExtra...)

		// Metrics
		t.meters.http.inFlight.Add(t.rootCtx, 1, otelMetric.WithAttributes(t.attrs.httpRequest...))
	}
	t.GotFirstResponseByte = func() {
		_, t.receiveSpan = t.startSpan(t.httpCtx, httpReceiveSpanName)
	}
	t.HTTPRequestDone = func(res *http.Response, err error) {
		elapsedTime := float64(time.Since(t.httpStart)) / float64(time.Millisecond)
		t.attrs.SetFromResponse(res)

		// Metrics
		t.meters.http.inFlight.Add(t.rootCtx, -1, otelMetric.WithAttributes(t.attrs.httpRequest...)) // same attributes/dimensions as in HTTPRequestStart!
		t.meters.http.duration.Record(
			t.rootCtx,
			elapsedTime,
			otelMetric.WithAttributes(t.attrs.httpRequest...),
			otelMetric.WithAttributes(t.attrs.httpResponse...),
		)

		// Tracing
		if t.httpSpan == nil {
			return
		}
		t.httpSpan.SetAttributes(t.attrs.httpResponse...)
		t.httpSpan.SetAttributes(t.attrs.httpResponseExtra...)
		if err == nil && res != nil && res.StatusCode >= http.StatusBadRequest {
			err = fmt.Errorf(`HTTP status code: %d %s`, res.StatusCode, http.StatusText(res.StatusCode))
		}
		t.endSpan(&t.receiveSpan, err)
		t.endSpan(&t.httpSpan, err)
	}
}

func (t *transferTrace) registerBodyHooks() {
	hook := t.HTTPRequestDone
	t.HTTPRequestDone = func(res *http.Response, err error) {
		hook(res, err)
		if err == nil && res != nil {
			// The body of a redirect is discarded, the span is ended by the next HTTPRequestStart.
			t.bodyStart = time.Now()
			_, t.bodySpan = t.startSpan(t.rootCtx, transferBodySpanName, t.attrs.httpResponse...)
		}
	}
	t.BodyRead = func(bytes int64, err error) {
		elapsedTime := float64(time.Since(t.bodyStart)) / float64(time.Millisecond)

		// Metrics
		meterAttrs := append(append([]attribute.KeyValue{}, t.attrs.definition...), t.attrs.httpResponse...)
		t.meters.body.duration.Record(t.rootCtx, elapsedTime, otelMetric.WithAttributes(meterAttrs...))
		t.meters.body.size.Add(t.rootCtx, bytes, otelMetric.WithAttributes(meterAttrs...))

		// Tracing
		if t.bodySpan != nil {
			t.bodySpan.SetAttributes(attrReadBytes.Int64(bytes))
			t.endSpan(&t.bodySpan, err)
		}
	}
}

// registerLowLevelHooks creates spans from the native httptrace hooks.
// The "otelhttptrace" pkg from the opentelemetry-contrib module does not end spans:
// https://github.com/open-telemetry/opentelemetry-go-contrib/issues/399
func (t *transferTrace) registerLowLevelHooks() {
	// DNS
	t.DNSStart = func(info httptrace.DNSStartInfo) {
		_, t.dnsSpan = t.startSpan(t.httpCtx, httpDNSSpanName, semconv.NetHostName(info.Host))
	}
	t.DNSDone = func(info httptrace.DNSDoneInfo) {
		if t.dnsSpan != nil {
			addrs := make([]string, 0, len(info.Addrs))
			for _, netAddr := range info.Addrs {
				addrs = append(addrs, netAddr.String())
			}
			t.dnsSpan.SetAttributes(attrDNSAddresses.String(strings.Join(addrs, ";")))
		}
		t.endSpan(&t.dnsSpan, info.Err)
	}

	// Get connection
	t.GetConn = func(host string) {
		_, t.getConnSpan = t.startSpan(t.httpCtx, httpGetConnSpanName, semconv.NetHostName(host))
	}
	t.GotConn = func(info httptrace.GotConnInfo) {
		if t.getConnSpan != nil {
			t.getConnSpan.SetAttributes(
				attrRemoteAddr.String(info.Conn.RemoteAddr().String()),
				attrLocalAddr.String(info.Conn.LocalAddr().String()),
				attrConnectionReused.Bool(info.Reused),
				attrConnectionWasIdle.Bool(info.WasIdle),
			)
		}
		t.endSpan(&t.getConnSpan, nil)
	}

	// Connect
	t.ConnectStart = func(network, addr string) {
		_, t.connectSpan = t.startSpan(t.httpCtx, httpConnectSpanName, attrRemoteAddr.String(addr), attrConnectionNetwork.String(network))
	}
	t.ConnectDone = func(_, _ string, err error) {
		t.endSpan(&t.connectSpan, err)
	}

	// TLS handshake
	t.TLSHandshakeStart = func() {
		_, t.tlsSpan = t.startSpan(t.httpCtx, httpTLSHandshakeSpanName)
	}
	t.TLSHandshakeDone = func(_ tls.ConnectionState, err error) {
		t.endSpan(&t.tlsSpan, err)
	}

	// Headers, send
	t.WroteHeaderField = func(_ string, _ []string) {
		if t.headersSpan == nil {
			_, t.headersSpan = t.startSpan(t.httpCtx, httpHeadersSpanName)
		}
	}
	t.WroteHeaders = func() {
		t.endSpan(&t.headersSpan, nil)
		_, t.sendSpan = t.startSpan(t.httpCtx, httpSendSpanName)
	}
	t.WroteRequest = func(info httptrace.WroteRequestInfo) {
		t.endSpan(&t.sendSpan, info.Err)
	}
}

func (t *transferTrace) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, otelTrace.Span) {
	return t.tracer.Start(ctx, name, otelTrace.WithSpanKind(otelTrace.SpanKindClient), otelTrace.WithAttributes(attrs...))
}

// endSpan ends the span, if any, and clears the reference.
func (t *transferTrace) endSpan(span *otelTrace.Span, err error) {
	if *span == nil {
		return
	}
	if err != nil {
		(*span).RecordError(err)
		(*span).SetStatus(codes.Error, err.Error())
	}
	(*span).End()
	*span = nil
}
