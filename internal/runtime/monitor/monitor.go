/*
Package monitor implements the watchdog described in §4.5: a per-worker
liveness beacon stamped before every dispatch, scanned every 5 seconds to
detect a handler that has not returned.

Grounded on the teacher's registry/hub.go runEvictor/performEviction
pattern (ticker plus stop channel, range-and-act on a scan tick),
generalized from idle-cell eviction to stalled-worker detection. Stamping
is lock-free (plain atomics per worker slot) since it sits on the hot
dispatch path; the scan itself runs off a slow 5-second ticker so a
mutex there would not matter, but there is nothing to lock: each slot
belongs to exactly one worker goroutine.
*/
package monitor

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/webitel/actorcore/internal/domain/core"
	"github.com/webitel/actorcore/internal/domain/registry"
	"github.com/webitel/actorcore/internal/eventbus"
)

const scanInterval = 5 * time.Second

// beacon is one worker's liveness slot: version is bumped on every
// dispatch, source/dest record what was being delivered. checkVersion is
// the scanner's own bookkeeping, touched only by the scan goroutine.
type beacon struct {
	version atomic.Uint64
	source  atomic.Uint32
	dest    atomic.Uint32

	checkVersion uint64
}

// Monitor implements scheduler.Beacon and the watchdog scan loop. One
// instance is shared by every worker in the pool.
type Monitor struct {
	reg     *registry.Registry
	logger  *slog.Logger
	bus     eventbus.Bus
	beacons []beacon

	shutdown   func()
	everActive bool

	stop chan struct{}
	done chan struct{}
}

// New allocates a Monitor sized for numWorkers, the same worker count the
// scheduler.Pool it backs was built with.
func New(numWorkers int, reg *registry.Registry, logger *slog.Logger) *Monitor {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	return &Monitor{
		reg:     reg,
		logger:  logger,
		beacons: make([]beacon, numWorkers),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// SetBus attaches the lifecycle event bus an endless detection is
// published to; optional, set once by the composition root.
func (m *Monitor) SetBus(b eventbus.Bus) { m.bus = b }

// SetShutdown attaches the callback invoked once every registered context
// has retired, the Go analogue of skynet_start.c's CHECK_ABORT macro
// (`if (skynet_context_total()==0) break;`) which stops the monitor,
// timer, and socket threads' loops once the service population is empty.
func (m *Monitor) SetShutdown(fn func()) { m.shutdown = fn }

// Stamp records that worker is about to dispatch a message from source to
// dest; called by the scheduler immediately before invoking the handler
// (§3 step 7, "call monitor_trigger(src, dst) to stamp the worker's
// beacon").
func (m *Monitor) Stamp(worker int, source, dest core.Handle) {
	b := &m.beacons[worker]
	b.version.Add(1)
	b.source.Store(uint32(source))
	b.dest.Store(uint32(dest))
}

// Run starts the 5-second scan loop. It blocks until Stop is called, so
// callers invoke it in its own goroutine (the fx.Lifecycle OnStart
// pattern the teacher uses for its watermill router).
func (m *Monitor) Run() {
	defer close(m.done)

	ticker := time.NewTicker(scanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.scan()
		}
	}
}

// Stop ends the scan loop and waits for it to exit.
func (m *Monitor) Stop() {
	close(m.stop)
	<-m.done
}

// scan implements §4.5: a worker whose version has not advanced since the
// last scan is presumed stuck in its current handler. The destination
// context's endless flag is set and an error is logged with a
// correlation id, once per detection.
func (m *Monitor) scan() {
	for i := range m.beacons {
		b := &m.beacons[i]
		v := b.version.Load()
		if v == b.checkVersion && v != 0 {
			dest := core.Handle(b.dest.Load())
			if dest != core.Invalid {
				m.flagEndless(i, dest, core.Handle(b.source.Load()))
			}
		}
		b.checkVersion = v
	}

	m.checkAbort()
}

// checkAbort implements skynet_start.c's CHECK_ABORT: once the registry
// has held at least one service and then drains back to zero, every
// service has retired and the process should begin shutdown rather than
// keep polling an empty registry forever.
func (m *Monitor) checkAbort() {
	if m.shutdown == nil {
		return
	}
	total := m.reg.Total()
	if total > 0 {
		m.everActive = true
		return
	}
	if m.everActive {
		m.everActive = false
		m.shutdown()
	}
}

func (m *Monitor) flagEndless(worker int, dest, source core.Handle) {
	ctx, ok := m.reg.Grab(dest)
	if !ok {
		return
	}
	defer m.reg.Release(ctx)

	if ctx.Endless() {
		return
	}
	ctx.SetEndless(true)

	correlationID := uuid.NewString()
	if m.logger != nil {
		m.logger.Error("maybe in an endless loop",
			slog.Int("worker", worker),
			slog.String("dest", dest.String()),
			slog.String("source", source.String()),
			slog.String("correlation_id", correlationID),
		)
	}

	if m.bus != nil {
		_ = m.bus.Publish(context.Background(), eventbus.Event{
			Topic:  eventbus.TopicEndless,
			Handle: dest,
			At:     time.Now(),
			Detail: correlationID,
		})
	}
}
