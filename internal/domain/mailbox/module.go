package mailbox

import "go.uber.org/fx"

// Module provides the process-wide GlobalQueue every mailbox links itself
// into (§3 "Global Queue"), shared by dispatch.Spawn, the scheduler pool,
// and the socket reactor.
var Module = fx.Module("mailbox",
	fx.Provide(NewGlobalQueue),
)
