//go:build linux

package echo

import (
	"log/slog"
	"net"
	"strconv"

	"go.uber.org/fx"

	"github.com/webitel/actorcore/config"
	"github.com/webitel/actorcore/internal/domain/mailbox"
	"github.com/webitel/actorcore/internal/domain/registry"
	"github.com/webitel/actorcore/internal/runtime/dispatch"
	"github.com/webitel/actorcore/internal/socket"
)

const defaultListenAddr = "127.0.0.1:9001"

// Module spawns the echo fixture at startup only when cfg.Bootstrap names
// it, mirroring how the real module loader (out of scope per §1) would
// start a named bootstrap service — actorcore has no loader, so this is
// the one service wired directly into the composition root.
var Module = fx.Module("echo",
	fx.Invoke(maybeSpawn),
)

func maybeSpawn(cfg *config.Config, reg *registry.Registry, queue *mailbox.GlobalQueue, d *dispatch.Dispatcher, api *socket.API, logger *slog.Logger) {
	if cfg.Bootstrap != "echo" {
		return
	}

	host, portStr, err := net.SplitHostPort(defaultListenAddr)
	if err != nil {
		return
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return
	}

	Spawn(reg, queue, d, api, logger, host, port)
}
