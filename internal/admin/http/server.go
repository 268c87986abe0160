//go:build linux

// Package http exposes the introspection HTTP surface SPEC_FULL.md's
// DOMAIN STACK table assigns go-chi/chi + go-chi/cors: /healthz and a
// handful of /debug endpoints reporting registry/mailbox/socket state,
// following the same handler-struct-with-logger shape as the teacher's
// internal/handler/ws/delivery.go — which this package's /debug/events
// websocket endpoint (ws.go) adapts directly, forwarding eventbus.Bus
// lifecycle events the way the teacher forwards service.Deliverer events.
package http

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/webitel/actorcore/internal/domain/mailbox"
	"github.com/webitel/actorcore/internal/domain/registry"
	"github.com/webitel/actorcore/internal/eventbus"
	"github.com/webitel/actorcore/internal/socket"
)

// Server is the admin HTTP surface. It never touches service mailboxes
// directly except through the read-only counters each subsystem already
// exposes (Registry.Count, GlobalQueue.Len, Table.Active).
type Server struct {
	logger  *slog.Logger
	reg     *registry.Registry
	queue   *mailbox.GlobalQueue
	sockets *socket.Reactor
	bus     eventbus.Bus

	srv *http.Server
}

// New builds a Server listening on addr (e.g. "127.0.0.1:9090"). bus may
// be nil, in which case /debug/events reports unavailable rather than
// panicking.
func New(addr string, reg *registry.Registry, queue *mailbox.GlobalQueue, reactor *socket.Reactor, bus eventbus.Bus, logger *slog.Logger) *Server {
	s := &Server{logger: logger, reg: reg, queue: queue, sockets: reactor, bus: bus}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedMethods: []string{"GET"},
		AllowedOrigins: []string{"*"},
	}))

	r.Get("/healthz", s.handleHealthz)
	r.Get("/debug/services", s.handleServices)
	r.Get("/debug/mailboxes", s.handleMailboxes)
	r.Get("/debug/sockets", s.handleSockets)
	r.Get("/debug/events", s.handleEvents)

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start begins serving in its own goroutine; ln lets callers (and tests)
// supply an already-bound listener, e.g. on an ephemeral port.
func (s *Server) Start(ln net.Listener) {
	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			if s.logger != nil {
				s.logger.Error("admin http: serve failed", slog.String("error", err.Error()))
			}
		}
	}()
}

// Stop closes the listener and every open connection immediately; it does
// not wait for in-flight requests to finish.
func (s *Server) Stop() error {
	return s.srv.Close()
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleServices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"registered": s.reg.Count()})
}

func (s *Server) handleMailboxes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"global_queue_length": s.queue.Len()})
}

func (s *Server) handleSockets(w http.ResponseWriter, r *http.Request) {
	active := 0
	if s.sockets != nil {
		active = s.sockets.Sockets().Active()
	}
	writeJSON(w, map[string]any{"active_slots": active})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
