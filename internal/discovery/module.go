package discovery

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/webitel/actorcore/config"
)

// Module wires optional Consul self-registration into the composition
// root; a no-op when cfg.ConsulAddr is unset.
var Module = fx.Module("discovery",
	fx.Invoke(registerLifecycle),
)

func registerLifecycle(lc fx.Lifecycle, cfg *config.Config, logger *slog.Logger) error {
	if cfg.ConsulAddr == "" {
		return nil
	}

	r, err := New(cfg.ConsulAddr, logger)
	if err != nil {
		return err
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if err := r.RegisterAddr("http", cfg.AdminHTTPAddr); err != nil {
				return err
			}
			return r.RegisterAddr("grpc", cfg.AdminGRPCAddr)
		},
		OnStop: func(context.Context) error {
			r.Deregister()
			return nil
		},
	})
	return nil
}
