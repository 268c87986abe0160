//go:build linux

package cmd

import (
	"go.uber.org/fx"

	"github.com/webitel/actorcore/config"
	adminGRPC "github.com/webitel/actorcore/internal/admin/grpc"
	adminHTTP "github.com/webitel/actorcore/internal/admin/http"
	"github.com/webitel/actorcore/internal/discovery"
	"github.com/webitel/actorcore/internal/domain/mailbox"
	"github.com/webitel/actorcore/internal/domain/registry"
	"github.com/webitel/actorcore/internal/eventbus"
	"github.com/webitel/actorcore/internal/logging"
	"github.com/webitel/actorcore/internal/runtime/dispatch"
	"github.com/webitel/actorcore/internal/runtime/monitor"
	"github.com/webitel/actorcore/internal/runtime/scheduler"
	"github.com/webitel/actorcore/internal/runtime/timer"
	"github.com/webitel/actorcore/internal/service/echo"
	"github.com/webitel/actorcore/internal/socket"
	"github.com/webitel/actorcore/internal/telemetry"
)

// NewApp assembles the composition root: every core subsystem (§1-§4) plus
// the ambient/domain stack SPEC_FULL.md adds, each its own fx.Module with
// fx.Lifecycle hooks starting and stopping its goroutines — the same
// fx.New(fx.Provide(...), service.Module, grpchandler.Module, ...) shape
// as the teacher's cmd/fx.go.
func NewApp(cfg *config.Config) *fx.App {
	return fx.New(
		fx.Provide(func() *config.Config { return cfg }),

		logging.Module,
		telemetry.Module,
		eventbus.Module,

		registry.Module,
		mailbox.Module,
		dispatch.Module,
		monitor.Module,
		scheduler.Module,
		timer.Module,

		socket.Module,
		echo.Module,

		adminHTTP.Module,
		adminGRPC.Module,
		discovery.Module,
	)
}
