package scheduler

import "github.com/webitel/actorcore/internal/domain/core"

// Beacon receives a stamp before every message dispatch, letting the
// monitor detect a worker that has stopped making progress (§4.5). Declared
// here (rather than imported from the monitor package) so scheduler has no
// dependency on monitor; monitor.Monitor implements this interface.
type Beacon interface {
	Stamp(worker int, source, dest core.Handle)
}
