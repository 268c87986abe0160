package dispatch

import (
	"go.uber.org/fx"

	"github.com/webitel/actorcore/internal/domain/registry"
	"github.com/webitel/actorcore/internal/eventbus"
)

// Module wires the send/retire API into the composition root.
var Module = fx.Module("dispatch",
	fx.Provide(newFromRegistry),
)

func newFromRegistry(reg *registry.Registry, bus eventbus.Bus) *Dispatcher {
	d := New(reg)
	d.SetBus(bus)
	return d
}
