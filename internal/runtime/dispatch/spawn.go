package dispatch

import (
	"github.com/webitel/actorcore/internal/domain/core"
	"github.com/webitel/actorcore/internal/domain/mailbox"
	"github.com/webitel/actorcore/internal/domain/registry"
)

// Spawn registers a new service: it creates a Context for handler/userdata,
// registers it to obtain a handle, creates the service's mailbox keyed on
// that handle, and attaches it — the three-step wiring every external
// collaborator (module loader, demo services, tests) needs instead of
// poking registry/mailbox internals directly. It then drops the creator's
// reference, so the registry's own reference is the only long-lived one
// and retiring the handle frees its slot.
func Spawn(reg *registry.Registry, queue *mailbox.GlobalQueue, handler core.HandlerFunc, userdata any) (core.Handle, *registry.Context) {
	ctx := registry.NewContext(handler, userdata)
	h := reg.Register(ctx)
	ctx.SetMailbox(mailbox.New(h, queue))
	reg.Release(ctx) // the creator's reference from NewContext
	return h, ctx
}
