//go:build linux

package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/webitel/actorcore/internal/domain/core"
	"github.com/webitel/actorcore/internal/domain/mailbox"
	"github.com/webitel/actorcore/internal/domain/registry"
	"github.com/webitel/actorcore/internal/eventbus"
	"github.com/webitel/actorcore/internal/runtime/dispatch"
	"github.com/webitel/actorcore/internal/socket"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	reg := registry.New(0)
	queue := mailbox.NewGlobalQueue()
	d := dispatch.New(reg)

	reactor, err := socket.New(d, nil)
	if err != nil {
		t.Fatalf("socket.New: %v", err)
	}
	t.Cleanup(reactor.Stop)
	go reactor.Run()

	bus := eventbus.New(nil)
	t.Cleanup(func() { _ = bus.Close() })

	return New("127.0.0.1:0", reg, queue, reactor, bus, nil)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("expected status ok, got %q", body["status"])
	}
}

func TestDebugServicesReportsRegistrations(t *testing.T) {
	s := newTestServer(t)
	dispatch.Spawn(s.reg, s.queue, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/debug/services", nil)
	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, req)

	var body map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["registered"] != 1 {
		t.Fatalf("expected 1 registered service, got %d", body["registered"])
	}
}

func TestDebugSockets(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/debug/sockets", nil)
	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

// TestDebugEventsStreamsLifecycleEvents exercises the /debug/events
// websocket endpoint the same way the teacher's WSHandler is exercised:
// upgrade, then read frames pumped from a subscription.
func TestDebugEventsStreamsLifecycleEvents(t *testing.T) {
	s := newTestServer(t)

	httpSrv := httptest.NewServer(s.srv.Handler)
	defer httpSrv.Close()

	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/debug/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// The handler subscribes to every topic right after the upgrade
	// completes, in a goroutine per topic; give it a moment to register
	// before publishing, since gochannel isn't persistent.
	time.Sleep(20 * time.Millisecond)

	if err := s.bus.Publish(context.Background(), eventbus.Event{
		Topic:  eventbus.TopicRetired,
		Handle: core.Handle(42),
		At:     time.Now(),
	}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var ev eventbus.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Topic != eventbus.TopicRetired || ev.Handle != core.Handle(42) {
		t.Fatalf("unexpected event: %+v", ev)
	}
}
