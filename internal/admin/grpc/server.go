// Package grpc exposes the admin gRPC surface named in SPEC_FULL.md's
// DOMAIN STACK: a grpc_health_v1 health service plus reflection, with
// otelgrpc tracing and go-grpc-middleware recovery interceptors (the
// recovery handler logs the panic).
// No custom .proto is introduced; wiring the prebuilt health service is
// enough to exercise the dependency without fabricating generated code.
//
// Grounded on the teacher's internal/handler/grpc/module.go
// (RegisterDeliveryServices(server *grpcsrv.Server, ...)) pattern and
// infra/server/grpc/interceptors/stream_auth.go's interceptor style.
package grpc

import (
	"context"
	"log/slog"
	"net"

	grpcrecovery "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/webitel/actorcore/internal/domain/registry"
)

// Server wraps a *grpc.Server exposing only health/reflection; actorcore
// has no domain-facing RPCs of its own (messages are raw byte buffers,
// §3), so this surface exists purely for ops tooling.
type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	reg        *registry.Registry
	logger     *slog.Logger
}

// New builds the admin gRPC server.
func New(reg *registry.Registry, logger *slog.Logger) *Server {
	recoveryOpt := grpcrecovery.WithRecoveryHandlerContext(
		func(ctx context.Context, p any) error {
			if logger != nil {
				logger.Error("admin grpc: recovered panic", slog.Any("panic", p))
			}
			return nil
		})

	gs := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(grpcrecovery.UnaryServerInterceptor(recoveryOpt)),
		grpc.ChainStreamInterceptor(grpcrecovery.StreamServerInterceptor(recoveryOpt)),
	)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	reflection.Register(gs)

	return &Server{grpcServer: gs, health: hs, reg: reg, logger: logger}
}

// Start serves on ln in its own goroutine and marks the service serving.
func (s *Server) Start(ln net.Listener) {
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	go func() {
		if err := s.grpcServer.Serve(ln); err != nil && s.logger != nil {
			s.logger.Error("admin grpc: serve failed", slog.String("error", err.Error()))
		}
	}()
}

// Stop gracefully drains in-flight RPCs, marking the service not-serving
// first so health checks stop routing new traffic.
func (s *Server) Stop() {
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	s.grpcServer.GracefulStop()
}
