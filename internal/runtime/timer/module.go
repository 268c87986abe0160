package timer

import (
	"context"

	"go.uber.org/fx"

	"github.com/webitel/actorcore/internal/runtime/scheduler"
)

// Module wires the waker ticker into the composition root.
var Module = fx.Module("timer",
	fx.Provide(newFromPool),
	fx.Invoke(registerLifecycle),
)

func newFromPool(pool *scheduler.Pool) *Ticker {
	return New(pool)
}

func registerLifecycle(lc fx.Lifecycle, t *Ticker) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go t.Run()
			return nil
		},
		OnStop: func(context.Context) error {
			t.Stop()
			return nil
		},
	})
}
