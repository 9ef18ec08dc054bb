package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

var (
	promReaderFactory = prometheusComponents
	otlpReaderFactory = buildOTLPReader
	instrumentFactory = newOtelInstruments
)

// TelemetryConfig controls how metrics are exported.
type TelemetryConfig struct {
	Enabled      bool
	Port         string
	ServiceName  string
	OtlpEndpoint string
	OtlpInsecure bool
}

// Setup configures OpenTelemetry metrics with a Prometheus exporter and
// optional OTLP exporter. It returns a Recorder, the Prometheus HTTP handler,
// and a shutdown function.
func Setup(ctx context.Context, cfg TelemetryConfig) (*Recorder, http.Handler, func(context.Context) error, error) {
	if !cfg.Enabled {
		return NewRecorder(), nil, func(context.Context) error { return nil }, nil
	}

	if cfg.ServiceName == "" {
		cfg.ServiceName = "challenge-tracker"
	}

	promReader, promHandler, err := promReaderFactory()
	if err != nil {
		return nil, nil, nil, err
	}

	opts := []sdkmetric.Option{sdkmetric.WithReader(promReader)}

	if cfg.OtlpEndpoint != "" {
		otlpReader, err := otlpReaderFactory(ctx, cfg.OtlpEndpoint, cfg.OtlpInsecure)
		if err != nil {
			return nil, nil, nil, err
		}
		opts = append(opts, sdkmetric.WithReader(otlpReader))
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)),
	)
	if err != nil {
		return nil, nil, nil, err
	}

	opts = append(opts, sdkmetric.WithResource(res))

	provider := sdkmetric.NewMeterProvider(opts...)

	otelInst, err := instrumentFactory(provider)
	if err != nil {
		return nil, nil, nil, err
	}

	rec := newRecorder(otelInst)
	shutdown := func(c context.Context) error {
		return provider.Shutdown(c)
	}

	return rec, promHandler, shutdown, nil
}

func buildOTLPReader(ctx context.Context, endpoint string, insecure bool) (sdkmetric.Reader, error) {
	otlpOpts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(endpoint)}
	if insecure {
		otlpOpts = append(otlpOpts, otlpmetrichttp.WithInsecure())
	}
	otlpExp, err := otlpmetrichttp.New(ctx, otlpOpts...)
	if err != nil {
		return nil, err
	}
	return sdkmetric.NewPeriodicReader(otlpExp, sdkmetric.WithInterval(15*time.Second)), nil
}

func prometheusComponents() (sdkmetric.Reader, http.Handler, error) {
	reg := prometheus.NewRegistry()
	promExp, err := promexporter.New(promexporter.WithRegisterer(reg))
	if err != nil {
		return nil, nil, err
	}
	return promExp, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
}

type otelInstruments struct {
	meter             metric.Meter
	requests          metric.Int64Counter
	requestLatencyMs  metric.Float64Histogram
	pollCycles        metric.Int64Counter
	pollErrors        metric.Int64Counter
	pollLatencyMs     metric.Float64Histogram
	usersRefreshed    metric.Int64Counter
	refreshUnits      metric.Int64Counter
	upstreamCalls     metric.Int64Counter
	upstreamErrors    metric.Int64Counter
	upstreamLatencyMs metric.Float64Histogram
}

func newOtelInstruments(provider metric.MeterProvider) (*otelInstruments, error) {
	meter := provider.Meter("challenge-tracker")

	requests, err := meter.Int64Counter("http_requests_total")
	if err != nil {
		return nil, err
	}
	requestLatency, err := meter.Float64Histogram("http_request_duration_ms")
	if err != nil {
		return nil, err
	}
	pollCycles, err := meter.Int64Counter("poll_cycles_total")
	if err != nil {
		return nil, err
	}
	pollErrors, err := meter.Int64Counter("poll_errors_total")
	if err != nil {
		return nil, err
	}
	pollLatency, err := meter.Float64Histogram("poll_cycle_duration_ms")
	if err != nil {
		return nil, err
	}
	usersRefreshed, err := meter.Int64Counter("poll_users_refreshed_total")
	if err != nil {
		return nil, err
	}
	refreshUnits, err := meter.Int64Counter("refresh_units_total")
	if err != nil {
		return nil, err
	}
	upstreamCalls, err := meter.Int64Counter("upstream_calls_total")
	if err != nil {
		return nil, err
	}
	upstreamErrors, err := meter.Int64Counter("upstream_errors_total")
	if err != nil {
		return nil, err
	}
	upstreamLatency, err := meter.Float64Histogram("upstream_call_duration_ms")
	if err != nil {
		return nil, err
	}

	return &otelInstruments{
		meter:             meter,
		requests:          requests,
		requestLatencyMs:  requestLatency,
		pollCycles:        pollCycles,
		pollErrors:        pollErrors,
		pollLatencyMs:     pollLatency,
		usersRefreshed:    usersRefreshed,
		refreshUnits:      refreshUnits,
		upstreamCalls:     upstreamCalls,
		upstreamErrors:    upstreamErrors,
		upstreamLatencyMs: upstreamLatency,
	}, nil
}

func (o *otelInstruments) recordHTTPRequest(method, path string, status int, duration time.Duration) {
	if o == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String(AttrMethod, method),
		attribute.String(AttrPath, path),
		attribute.Int(AttrStatus, status),
	}
	o.recordCounter(o.requests, 1, attrs...)
	o.recordHistogram(o.requestLatencyMs, float64(duration.Milliseconds()), attrs...)
}

func (o *otelInstruments) recordPollCycle(duration time.Duration, users int, err error) {
	if o == nil {
		return
	}
	o.recordCounter(o.pollCycles, 1)
	o.recordCounter(o.usersRefreshed, int64(users))
	o.recordHistogram(o.pollLatencyMs, float64(duration.Milliseconds()))
	if err != nil {
		o.recordCounter(o.pollErrors, 1)
	}
}

func (o *otelInstruments) recordRefreshUnit(outcome string) {
	if o == nil {
		return
	}
	o.recordCounter(o.refreshUnits, 1, attribute.String(AttrOutcome, outcome))
}

func (o *otelInstruments) recordUpstreamCall(duration time.Duration, err error) {
	if o == nil {
		return
	}
	o.recordCounter(o.upstreamCalls, 1)
	o.recordHistogram(o.upstreamLatencyMs, float64(duration.Milliseconds()))
	if err != nil {
		o.recordCounter(o.upstreamErrors, 1)
	}
}

func (o *otelInstruments) recordCounter(counter metric.Int64Counter, value int64, attrs ...attribute.KeyValue) {
	if o == nil || counter == nil {
		return
	}
	counter.Add(context.Background(), value, metric.WithAttributes(attrs...))
}

func (o *otelInstruments) recordHistogram(hist metric.Float64Histogram, value float64, attrs ...attribute.KeyValue) {
	if o == nil || hist == nil {
		return
	}
	hist.Record(context.Background(), value, metric.WithAttributes(attrs...))
}
