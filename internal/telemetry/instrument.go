package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/webitel/actorcore/internal/domain/registry"
	"github.com/webitel/actorcore/internal/runtime/scheduler"
)

// Observer returns a scheduler.DispatchObserver that feeds t's dispatched
// counter and mailbox-length histogram, keeping the scheduler package
// itself free of any otel SDK dependency (it only knows the
// DispatchObserver func type it declares).
func (t *Telemetry) Observer() scheduler.DispatchObserver {
	return func(worker int, ctx *registry.Context, took time.Duration) {
		attrs := metric.WithAttributes(attribute.Int("worker", worker))
		t.Dispatched.Add(context.Background(), 1, attrs)
		if mb := ctx.Mailbox(); mb != nil {
			t.MailboxLen.Record(context.Background(), int64(mb.Len()), attrs)
		}
	}
}

// RecordOverload feeds the overload counter; called by the eventbus
// subscriber in bridge.go for eventbus.TopicOverload.
func (t *Telemetry) RecordOverload(ctx context.Context) {
	t.Overload.Add(ctx, 1)
}

// RecordEndless feeds the endless-detection counter; called by the
// eventbus subscriber in bridge.go for eventbus.TopicEndless.
func (t *Telemetry) RecordEndless(ctx context.Context) {
	t.Endless.Add(ctx, 1)
}

// RecordSocketWarning feeds the socket-warning counter and write-buffer
// gauge; called by the eventbus subscriber for eventbus.TopicSocketWarn.
func (t *Telemetry) RecordSocketWarning(ctx context.Context, bufferedKiB int64) {
	t.SocketWarn.Add(ctx, 1)
	t.WriteBuffer.Record(ctx, bufferedKiB*1024)
}

// RecordSocketBytes feeds the socket byte counter; dir is "read" or
// "written".
func (t *Telemetry) RecordSocketBytes(ctx context.Context, dir string, n int64) {
	t.SocketBytes.Add(ctx, n, metric.WithAttributes(attribute.String("direction", dir)))
}
