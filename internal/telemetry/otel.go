// Package telemetry sets up the meter/tracer providers and the runtime
// instruments SPEC_FULL.md's DOMAIN STACK table assigns them: a
// dispatched-message counter, mailbox-depth histogram, overload counter,
// endless-detection counter, and socket byte/warning counters.
// internal/admin/grpc wires otelgrpc itself; this package does not.
//
// Grounded on the teacher's go.opentelemetry.io/otel + otel/sdk +
// otelgrpc direct dependencies (named in cmd/fx.go's DI surface but not
// retrieved with a call site); actorcore gives them one here instead of
// leaving them unwired.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Telemetry holds the process-wide providers and the runtime's named
// instruments. Constructed once by the composition root; it feeds the
// scheduler's DispatchObserver and the eventbus subscribers in bridge.go.
// The monitor and socket reactor never hold it.
type Telemetry struct {
	MeterProvider  metric.MeterProvider
	TracerProvider trace.TracerProvider

	Dispatched  metric.Int64Counter
	MailboxLen  metric.Int64Histogram
	Overload    metric.Int64Counter
	Endless     metric.Int64Counter
	SocketBytes metric.Int64Counter
	SocketWarn  metric.Int64Counter
	WriteBuffer metric.Int64Gauge
}

// New builds an in-process otel SDK provider pair (no exporter wired —
// actorcore's scope is the instruments themselves, not a backend) and
// registers the runtime's instruments on it.
func New() (*Telemetry, error) {
	mp := sdkmetric.NewMeterProvider()
	tp := sdktrace.NewTracerProvider()

	meter := mp.Meter("github.com/webitel/actorcore")

	t := &Telemetry{MeterProvider: mp, TracerProvider: tp}

	var err error
	if t.Dispatched, err = meter.Int64Counter("actorcore.dispatched",
		metric.WithDescription("messages dispatched to a service handler")); err != nil {
		return nil, err
	}
	if t.MailboxLen, err = meter.Int64Histogram("actorcore.mailbox.length",
		metric.WithDescription("mailbox length observed at pop time")); err != nil {
		return nil, err
	}
	if t.Overload, err = meter.Int64Counter("actorcore.mailbox.overload",
		metric.WithDescription("mailbox overload-threshold breaches")); err != nil {
		return nil, err
	}
	if t.Endless, err = meter.Int64Counter("actorcore.service.endless",
		metric.WithDescription("endless-loop detections by the watchdog")); err != nil {
		return nil, err
	}
	if t.SocketBytes, err = meter.Int64Counter("actorcore.socket.bytes",
		metric.WithDescription("bytes read or written by the socket reactor"),
		metric.WithUnit("By")); err != nil {
		return nil, err
	}
	if t.SocketWarn, err = meter.Int64Counter("actorcore.socket.warning",
		metric.WithDescription("socket write-buffer warning emissions")); err != nil {
		return nil, err
	}
	if t.WriteBuffer, err = meter.Int64Gauge("actorcore.socket.write_buffer",
		metric.WithDescription("current aggregate socket write-buffer size"),
		metric.WithUnit("By")); err != nil {
		return nil, err
	}

	return t, nil
}

// Noop returns a Telemetry backed by no-op providers, used when otel
// initialization is undesirable (e.g. unit tests).
func Noop() *Telemetry {
	return &Telemetry{
		MeterProvider:  metricnoop.NewMeterProvider(),
		TracerProvider: tracenoop.NewTracerProvider(),
	}
}

// Shutdown flushes and stops both providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if mp, ok := t.MeterProvider.(*sdkmetric.MeterProvider); ok {
		if err := mp.Shutdown(ctx); err != nil {
			return err
		}
	}
	if tp, ok := t.TracerProvider.(*sdktrace.TracerProvider); ok {
		return tp.Shutdown(ctx)
	}
	return nil
}
