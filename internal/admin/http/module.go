//go:build linux

package http

import (
	"context"
	"log/slog"
	"net"

	"go.uber.org/fx"

	"github.com/webitel/actorcore/config"
	"github.com/webitel/actorcore/internal/domain/mailbox"
	"github.com/webitel/actorcore/internal/domain/registry"
	"github.com/webitel/actorcore/internal/eventbus"
	"github.com/webitel/actorcore/internal/socket"
)

// Module wires the admin HTTP surface into the composition root.
var Module = fx.Module("admin-http",
	fx.Provide(newFromConfig),
	fx.Invoke(registerLifecycle),
)

func newFromConfig(cfg *config.Config, reg *registry.Registry, queue *mailbox.GlobalQueue, reactor *socket.Reactor, bus eventbus.Bus, logger *slog.Logger) *Server {
	return New(cfg.AdminHTTPAddr, reg, queue, reactor, bus, logger)
}

func registerLifecycle(lc fx.Lifecycle, s *Server, cfg *config.Config, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", cfg.AdminHTTPAddr)
			if err != nil {
				return err
			}
			s.Start(ln)
			return nil
		},
		OnStop: func(context.Context) error {
			return s.Stop()
		},
	})
}
