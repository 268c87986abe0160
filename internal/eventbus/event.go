/*
Package eventbus publishes the runtime's internal lifecycle events
(service retired, mailbox overloaded, handler suspected endless, socket
write-buffer warning) over an in-process watermill pub/sub, so an
external collaborator (the admin surfaces, a future harbor bridge) can
subscribe without the core packages depending on them directly.

Grounded on internal/adapter/pubsub/dispatcher.go's EventDispatcher
(Publish(ctx, ev) over a message.Publisher, routing key from the event
itself), adapted from an outgoing-webhook event model to the runtime's
own lifecycle notifications and backed by watermill's pubsub/gochannel
instead of the teacher's AMQP publisher, since these events never leave
the process (§1's Non-goals exclude a harbor wire protocol).
*/
package eventbus

import (
	"time"

	"github.com/webitel/actorcore/internal/domain/core"
)

// Topic names the routing key lifecycle events publish under, mirroring
// GetRoutingKey on the teacher's event.Eventer.
type Topic string

const (
	TopicRetired    Topic = "service.retired"
	TopicOverload   Topic = "mailbox.overload"
	TopicEndless    Topic = "service.endless"
	TopicSocketWarn Topic = "socket.warning"
)

// Event is the payload every lifecycle notification carries; fields
// beyond Handle/At are topic-specific and left unset otherwise.
type Event struct {
	Topic       Topic
	Handle      core.Handle
	At          time.Time
	Detail      string
	Overload    int
	BufferedKiB uint32
}

// RoutingKey satisfies the same routing contract as the teacher's
// event.Eventer.GetRoutingKey, used as the watermill topic.
func (e Event) RoutingKey() string { return string(e.Topic) }
