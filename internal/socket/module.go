//go:build linux

package socket

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/webitel/actorcore/internal/eventbus"
	"github.com/webitel/actorcore/internal/runtime/dispatch"
	"github.com/webitel/actorcore/internal/runtime/scheduler"
)

// Module wires the reactor and its service-facing API into the
// composition root, grounded on the teacher's fx.Lifecycle goroutine
// pattern (cmd/fx.go).
var Module = fx.Module("socket",
	fx.Provide(newReactor, NewAPI),
	fx.Invoke(registerLifecycle),
)

func newReactor(d *dispatch.Dispatcher, logger *slog.Logger, bus eventbus.Bus) (*Reactor, error) {
	r, err := New(d, logger)
	if err != nil {
		return nil, err
	}
	r.SetBus(bus)
	return r, nil
}

func registerLifecycle(lc fx.Lifecycle, r *Reactor, pool *scheduler.Pool) {
	r.SetPoolWaker(pool)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go r.Run()
			return nil
		},
		OnStop: func(context.Context) error {
			r.Stop()
			return nil
		},
	})
}
