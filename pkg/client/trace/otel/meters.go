package otel

import otelMetric "go.opentelemetry.io/otel/metric"

const (
	transferMeterPrefix = "coline.transfer."
	httpMeterPrefix     = "coline.http."
)

type allMeters struct {
	transfer transferMeters
	http     httpMeters
	body     bodyMeters
}

type transferMeters struct {
	inFlight otelMetric.Int64UpDownCounter
	duration otelMetric.Float64Histogram
}

type httpMeters struct {
	inFlight otelMetric.Int64UpDownCounter
	duration otelMetric.Float64Histogram
}

type bodyMeters struct {
	duration otelMetric.Float64Histogram
	size     otelMetric.Int64Counter
}

func newMeters(meter otelMetric.Meter) *allMeters {
	return &allMeters{
		transfer: transferMeters{
			inFlight: upDownCounter(meter, transferMeterPrefix+"in_flight", "Transfer: in flight transfers."),
			duration: histogram(meter, transferMeterPrefix+"duration", "Transfer: duration, including body read.", "ms"),
		},
		http: httpMeters{
			inFlight: upDownCounter(meter, httpMeterPrefix+"request.in_flight", "HTTP request: in flight requests."),
			duration: histogram(meter, httpMeterPrefix+"request.duration", "HTTP request: response headers received duration.", "ms"),
		},
		body: bodyMeters{
			duration: histogram(meter, transferMeterPrefix+"body.duration", "Transfer: response body read duration.", "ms"),
			size:     counter(meter, transferMeterPrefix+"body.size", "Transfer: response body bytes read.", "By"),
		},
	}
}

func upDownCounter(meter otelMetric.Meter, name, desc string) otelMetric.Int64UpDownCounter {
	return mustInstrument(meter.Int64UpDownCounter(name, otelMetric.WithDescription(desc)))
}

func counter(meter otelMetric.Meter, name, desc, unit string) otelMetric.Int64Counter {
	return mustInstrument(meter.Int64Counter(name, otelMetric.WithDescription(desc), otelMetric.WithUnit(unit)))
}

func histogram(meter otelMetric.Meter, name, desc string, unit string) otelMetric.Float64Histogram {
	return mustInstrument(meter.Float64Histogram(name, otelMetric.WithDescription(desc), otelMetric.WithUnit(unit)))
}

func mustInstrument[T any](instrument T, err error) T {
	if err != nil {
		panic(err)
	}
	return instrument
}
