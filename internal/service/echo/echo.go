//go:build linux

// Package echo is a minimal demo/test service fixture exercising the
// public Send/handler and socket APIs end to end (§8 scenario S1). It is
// not a module loader — the dynamic service-module loader is an external
// collaborator out of scope per §1 — just a fixed, compiled-in handler
// registered through dispatch.Spawn like any other service would be.
package echo

import (
	"context"
	"log/slog"

	"github.com/webitel/actorcore/internal/domain/core"
	"github.com/webitel/actorcore/internal/domain/mailbox"
	"github.com/webitel/actorcore/internal/domain/registry"
	"github.com/webitel/actorcore/internal/runtime/dispatch"
	"github.com/webitel/actorcore/internal/socket"
)

// Service is S1's echo fixture: on SOCKET_ACCEPT it starts the new
// connection, and on SOCKET_DATA it writes the received bytes back
// unchanged on the same connection.
type Service struct {
	api    *socket.API
	logger *slog.Logger
	handle core.Handle
}

// Spawn registers the echo service and starts it listening on
// host:port, returning its handle and listen socket id.
func Spawn(reg *registry.Registry, queue *mailbox.GlobalQueue, d *dispatch.Dispatcher, api *socket.API, logger *slog.Logger, host string, port int) (core.Handle, uint32) {
	svc := &Service{api: api, logger: logger}

	h, _ := dispatch.Spawn(reg, queue, svc.handler, nil)
	svc.handle = h

	listenID := api.Listen(context.Background(), h, host, port)
	api.Start(context.Background(), h, listenID)

	return h, listenID
}

// handler implements core.HandlerFunc. Every SOCKET_DATA frame is echoed
// back verbatim on the socket it arrived on (S1: "on DATA sends back the
// payload").
func (s *Service) handler(ctx core.DispatchContext, typ core.Type, session int32, source core.Handle, data []byte) int {
	if typ != core.TypeSocket {
		return 0
	}

	ev, ok := socket.DecodeEvent(data)
	if !ok {
		return 0
	}

	switch ev.Kind {
	case socket.EventAccept:
		s.api.Start(context.Background(), s.handle, ev.UD)
	case socket.EventData:
		s.api.Send(context.Background(), s.handle, ev.ID, ev.Data)
	case socket.EventErr:
		if s.logger != nil {
			s.logger.Warn("echo: socket error", slog.Uint64("id", uint64(ev.ID)), slog.String("detail", string(ev.Data)))
		}
	}

	return 0
}
