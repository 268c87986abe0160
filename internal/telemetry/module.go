package telemetry

import (
	"context"

	"go.uber.org/fx"

	"github.com/webitel/actorcore/internal/runtime/scheduler"
)

// Module wires the telemetry providers into the composition root and
// flushes them on shutdown.
var Module = fx.Module("telemetry",
	fx.Provide(New, provideObserver),
	fx.Invoke(registerLifecycle, subscribeLifecycle),
)

func provideObserver(t *Telemetry) scheduler.DispatchObserver {
	return t.Observer()
}

func registerLifecycle(lc fx.Lifecycle, t *Telemetry) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return t.Shutdown(ctx)
		},
	})
}
