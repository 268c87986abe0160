package registry

import (
	"go.uber.org/fx"

	"github.com/webitel/actorcore/config"
)

// Module wires the handle table into the composition root, grounded on the
// teacher's registry/module.go (fx.Provide(NewHub, ...)).
var Module = fx.Module("registry",
	fx.Provide(newFromConfig),
)

func newFromConfig(cfg *config.Config) *Registry {
	return New(cfg.Harbor)
}
