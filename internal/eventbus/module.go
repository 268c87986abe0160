package eventbus

import (
	"context"

	"go.uber.org/fx"
)

// Module wires the lifecycle event bus into the composition root.
var Module = fx.Module("eventbus",
	fx.Provide(New),
	fx.Invoke(registerLifecycle),
)

func registerLifecycle(lc fx.Lifecycle, b Bus) {
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return b.Close()
		},
	})
}
