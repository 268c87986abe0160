// Package dispatch implements the service-facing Send API (§6) and the
// dead-service reply path (§7), sitting between the handle registry and
// each service's mailbox.
package dispatch

import (
	"context"
	"time"

	"github.com/webitel/actorcore/internal/domain/core"
	"github.com/webitel/actorcore/internal/domain/registry"
	"github.com/webitel/actorcore/internal/eventbus"
)

// Flag controls Send's copy/session-allocation behavior (§6).
type Flag uint8

const (
	// FlagDontCopy transfers ownership of the payload to the dispatcher
	// instead of copying it (TAG_DONTCOPY).
	FlagDontCopy Flag = 1 << iota
	// FlagAllocSession allocates a fresh session in src's context when the
	// caller passed session=0 (TAG_ALLOCSESSION).
	FlagAllocSession
)

// Dispatcher is the public send/callback surface every external
// collaborator (module loader, timer, harbor stub, socket server) uses to
// talk to services. Grounded on internal/service/delivery.go's
// Deliverer interface, generalized from Subscribe/Unsubscribe to Send/Retire.
type Dispatcher struct {
	reg *registry.Registry
	bus eventbus.Bus
}

// New builds a Dispatcher over a handle registry.
func New(reg *registry.Registry) *Dispatcher {
	return &Dispatcher{reg: reg}
}

// SetBus attaches the lifecycle event bus Retire publishes to; optional,
// set once by the composition root.
func (d *Dispatcher) SetBus(b eventbus.Bus) { d.bus = b }

// Send enqueues a message for dst, copying the payload unless FlagDontCopy
// is set, and allocating a session in src's context if requested and the
// caller passed session=0. It never blocks (§5 "a handler may call send,
// which never blocks"). Returns the effective session id.
func (d *Dispatcher) Send(src, dst core.Handle, typ core.Type, session int32, data []byte, flags Flag) int32 {
	if session == 0 && flags&FlagAllocSession != 0 {
		if srcCtx, ok := d.reg.Grab(src); ok {
			session = srcCtx.NextSession()
			d.reg.Release(srcCtx)
		}
	}

	payload := data
	if flags&FlagDontCopy == 0 && data != nil {
		payload = make([]byte, len(data))
		copy(payload, data)
	}

	dstCtx, ok := d.reg.Grab(dst)
	if !ok {
		d.SendDeadReply(src, session)
		return session
	}
	defer d.reg.Release(dstCtx)

	dstCtx.Mailbox().Push(core.Message{Source: src, Session: session, Type: typ, Data: payload})
	return session
}

// SendDeadReply implements §7's dead_service: if session is nonzero, the
// original sender receives a PTYPE_ERROR reply carrying that session so it
// can stop waiting (S6 in §8).
func (d *Dispatcher) SendDeadReply(src core.Handle, session int32) {
	if session == 0 {
		return
	}
	srcCtx, ok := d.reg.Grab(src)
	if !ok {
		return
	}
	defer d.reg.Release(srcCtx)

	srcCtx.Mailbox().Push(core.Message{Source: core.Invalid, Session: session, Type: core.TypeError})
}

// PublishOverload reports a mailbox overload breach (§3 "overload
// counter") for handle h, used by the scheduler after a batch observes a
// nonzero Mailbox.Overload() (scenario S2).
func (d *Dispatcher) PublishOverload(h core.Handle, overload int) {
	if d.bus == nil {
		return
	}
	_ = d.bus.Publish(context.Background(), eventbus.Event{
		Topic:    eventbus.TopicOverload,
		Handle:   h,
		At:       time.Now(),
		Overload: overload,
	})
}

// Retire removes h from the registry and drains its mailbox through the
// release protocol (§4.2), replying PTYPE_ERROR to any sender whose message
// carried a nonzero session (§8 invariant 4, scenario S6).
func (d *Dispatcher) Retire(h core.Handle) bool {
	ctx, ok := d.reg.Grab(h)
	if !ok {
		return false
	}
	defer d.reg.Release(ctx)

	retired := d.reg.Retire(h)
	ctx.Mailbox().MarkRelease()

	if retired && d.bus != nil {
		_ = d.bus.Publish(context.Background(), eventbus.Event{
			Topic:  eventbus.TopicRetired,
			Handle: h,
			At:     time.Now(),
		})
	}
	return retired
}
