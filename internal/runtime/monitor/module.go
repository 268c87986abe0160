package monitor

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/webitel/actorcore/config"
	"github.com/webitel/actorcore/internal/domain/registry"
	"github.com/webitel/actorcore/internal/eventbus"
	"github.com/webitel/actorcore/internal/runtime/scheduler"
)

// Module wires the watchdog into the composition root, grounded on the
// teacher's fx.Lifecycle OnStart/OnStop pattern in cmd/fx.go. It provides
// both the concrete *Monitor (for its own lifecycle hook) and the
// scheduler.Beacon interface scheduler.Module consumes, since fx.Annotate's
// fx.As would otherwise hide the concrete type from registerLifecycle.
var Module = fx.Module("monitor",
	fx.Provide(newFromConfig, asBeacon),
	fx.Invoke(registerLifecycle),
)

func asBeacon(m *Monitor) scheduler.Beacon { return m }

func newFromConfig(cfg *config.Config, reg *registry.Registry, logger *slog.Logger, bus eventbus.Bus) *Monitor {
	m := New(cfg.Thread, reg, logger)
	m.SetBus(bus)
	return m
}

func registerLifecycle(lc fx.Lifecycle, m *Monitor, sh fx.Shutdowner) {
	m.SetShutdown(func() {
		_ = sh.Shutdown()
	})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go m.Run()
			return nil
		},
		OnStop: func(context.Context) error {
			m.Stop()
			return nil
		},
	})
}
