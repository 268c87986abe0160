package scheduler

import (
	"context"

	"go.uber.org/fx"

	"github.com/webitel/actorcore/config"
	"github.com/webitel/actorcore/internal/domain/mailbox"
	"github.com/webitel/actorcore/internal/domain/registry"
	"github.com/webitel/actorcore/internal/runtime/dispatch"
)

// Module wires the worker pool into the composition root, grounded on the
// teacher's fx.Lifecycle goroutine-per-subsystem pattern (cmd/fx.go).
var Module = fx.Module("scheduler",
	fx.Provide(newFromConfig),
	fx.Invoke(registerLifecycle),
)

func newFromConfig(cfg *config.Config, queue *mailbox.GlobalQueue, reg *registry.Registry, d *dispatch.Dispatcher, beacon Beacon, observe DispatchObserver) *Pool {
	return New(cfg.Thread, queue, reg, d, beacon, observe)
}

func registerLifecycle(lc fx.Lifecycle, p *Pool) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			p.Start()
			return nil
		},
		OnStop: func(context.Context) error {
			p.Stop()
			return nil
		},
	})
}
