package logging

import "go.uber.org/fx"

// Module provides the process *slog.Logger threaded into every other
// module's constructors. The log-level file watch is wired separately in
// cmd/cmd.go, which is the only place that still knows the on-disk config
// path once LoadConfig has parsed it into a *config.Config; that callback
// only logs the new level, and the provided logger keeps its startup level.
var Module = fx.Module("logging",
	fx.Provide(New),
)
