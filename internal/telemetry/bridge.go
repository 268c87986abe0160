package telemetry

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/fx"

	"github.com/webitel/actorcore/internal/eventbus"
)

// subscribeLifecycle feeds t's counters from the lifecycle events the
// monitor, the dispatcher (on the scheduler's behalf), and the socket
// reactor publish, so the otel instruments
// stay accurate without any of those packages depending on the otel SDK
// directly — they only know eventbus.Bus.
func subscribeLifecycle(lc fx.Lifecycle, t *Telemetry, bus eventbus.Bus) {
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			for _, topic := range []eventbus.Topic{eventbus.TopicOverload, eventbus.TopicEndless, eventbus.TopicSocketWarn} {
				ch, err := bus.Subscribe(ctx, topic)
				if err != nil {
					continue
				}
				go t.consume(ctx, topic, ch)
			}
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

func (t *Telemetry) consume(ctx context.Context, topic eventbus.Topic, ch <-chan *message.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev eventbus.Event
			if err := json.Unmarshal(msg.Payload(), &ev); err == nil {
				switch topic {
				case eventbus.TopicOverload:
					t.RecordOverload(ctx)
				case eventbus.TopicEndless:
					t.RecordEndless(ctx)
				case eventbus.TopicSocketWarn:
					t.RecordSocketWarning(ctx, int64(ev.BufferedKiB))
				}
			}
			msg.Ack()
		}
	}
}
