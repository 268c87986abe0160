//go:build linux

package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/gorilla/websocket"

	"github.com/webitel/actorcore/internal/eventbus"
)

// eventTopics is every lifecycle topic internal/eventbus publishes;
// handleEvents fans all of them into one websocket connection.
var eventTopics = []eventbus.Topic{
	eventbus.TopicRetired,
	eventbus.TopicOverload,
	eventbus.TopicEndless,
	eventbus.TopicSocketWarn,
}

// wsUpgrader mirrors the teacher's internal/handler/ws/delivery.go
// WSHandler.upgrader; CheckOrigin is permissive because /debug/events is
// an operator-facing introspection surface, not a public API.
var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleEvents upgrades to a websocket and pumps every lifecycle event
// eventbus.Bus publishes (service.retired, mailbox.overload,
// service.endless, socket.warning) out as JSON text frames, the same
// subscribe-then-pump shape as the teacher's WSHandler forwarding
// service.Deliverer.Subscribe events over gorilla/websocket.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.bus == nil {
		http.Error(w, "event bus unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("admin http: ws upgrade failed", slog.String("error", err.Error()))
		}
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	merged := make(chan *message.Message, 64)
	for _, topic := range eventTopics {
		msgs, err := s.bus.Subscribe(ctx, topic)
		if err != nil {
			if s.logger != nil {
				s.logger.Error("admin http: event subscribe failed",
					slog.String("topic", string(topic)), slog.String("error", err.Error()))
			}
			continue
		}
		go pumpTopic(ctx, msgs, merged)
	}

	if s.logger != nil {
		s.logger.Info("admin http: ws events opened")
	}

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-merged:
			if !ok {
				return
			}
			msg.Ack()
			if err := conn.WriteMessage(websocket.TextMessage, msg.Payload); err != nil {
				if s.logger != nil {
					s.logger.Warn("admin http: ws send failed", slog.String("error", err.Error()))
				}
				return
			}
		}
	}
}

// pumpTopic relays one subscription's messages into the shared merged
// channel until ctx is cancelled or the subscription closes.
func pumpTopic(ctx context.Context, msgs <-chan *message.Message, merged chan<- *message.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-msgs:
			if !ok {
				return
			}
			select {
			case merged <- m:
			case <-ctx.Done():
				return
			}
		}
	}
}
