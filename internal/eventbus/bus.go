package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Bus is the high-level publish contract lifecycle producers (monitor,
// scheduler, socket) use, mirroring the teacher's EventDispatcher
// interface so callers stay agnostic of the transport.
type Bus interface {
	Publish(ctx context.Context, ev Event) error
	Subscribe(ctx context.Context, topic Topic) (<-chan *message.Message, error)
	Close() error
}

type bus struct {
	pubsub *gochannel.GoChannel
	logger watermill.LoggerAdapter
}

// New builds an in-process event bus over watermill's pubsub/gochannel,
// the same library the teacher wires its AMQP router through, scoped
// here to single-process fan-out instead of a broker connection.
func New(logger *slog.Logger) Bus {
	wmLogger := watermill.NopLogger{}
	gc := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 256,
		Persistent:          false,
	}, wmLogger)

	return &bus{pubsub: gc, logger: wmLogger}
}

func (b *bus) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("eventbus: marshal failure: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)

	if err := b.pubsub.Publish(ev.RoutingKey(), msg); err != nil {
		return fmt.Errorf("eventbus: publish to %s: %w", ev.RoutingKey(), err)
	}
	return nil
}

func (b *bus) Subscribe(ctx context.Context, topic Topic) (<-chan *message.Message, error) {
	return b.pubsub.Subscribe(ctx, string(topic))
}

func (b *bus) Close() error {
	return b.pubsub.Close()
}
