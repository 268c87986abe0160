/*
Package timer implements the periodic waker described in §4.3's Wakeup
paragraph: rather than signal the scheduler's condvar on every push, a
dedicated ticker signals once every 2.5ms if any worker is parked. The
timer-wheel/timeout-message facility referenced alongside it in §11 is an
external collaborator and out of scope here.

Grounded on the same ticker/stop-channel shape as
internal/runtime/monitor (itself grounded on the teacher's
registry/hub.go runEvictor), at a much shorter period and with no scan
logic of its own.
*/
package timer

import "time"

const tick = 2500 * time.Microsecond

// waker is the subset of scheduler.Pool the ticker needs; declared here so
// this package has no dependency on scheduler, mirroring how
// scheduler.Beacon avoids a dependency on monitor.
type waker interface {
	AnySleeping() bool
	Wake()
}

// Ticker drives waker.Wake() every 2.5ms whenever at least one worker is
// parked, trading a small latency floor for far fewer condvar signals
// than waking on every push.
type Ticker struct {
	pool waker

	stop chan struct{}
	done chan struct{}
}

// New builds a Ticker over pool.
func New(pool waker) *Ticker {
	return &Ticker{
		pool: pool,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Run blocks ticking until Stop is called; invoke it in its own goroutine.
func (t *Ticker) Run() {
	defer close(t.done)

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			if t.pool.AnySleeping() {
				t.pool.Wake()
			}
		}
	}
}

// Stop ends the tick loop and waits for it to exit.
func (t *Ticker) Stop() {
	close(t.stop)
	<-t.done
}
