package grpc

import (
	"context"
	"log/slog"
	"net"

	"go.uber.org/fx"

	"github.com/webitel/actorcore/config"
)

// Module wires the admin gRPC server into the composition root.
var Module = fx.Module("admin-grpc",
	fx.Provide(New),
	fx.Invoke(registerLifecycle),
)

func registerLifecycle(lc fx.Lifecycle, s *Server, cfg *config.Config, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", cfg.AdminGRPCAddr)
			if err != nil {
				return err
			}
			s.Start(ln)
			return nil
		},
		OnStop: func(context.Context) error {
			s.Stop()
			return nil
		},
	})
}
