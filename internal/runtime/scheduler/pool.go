/*
Package scheduler implements the worker loop described in §4.3: N workers
pull ready mailboxes off the global queue, drain a batch sized by a
per-worker weight, and requeue or idle the mailbox. Sleep/wakeup is
coordinated through a single shared condition variable, exactly as §5
describes ("a worker blocks only when the global queue is empty").

Grounded on the teacher's fx.Lifecycle goroutine-per-subsystem pattern
(cmd/fx.go, internal/handler/amqp/router.go's
`OnStart: go func(){ router.Run(...) }`), generalized from one watermill
router goroutine to a fixed pool of worker goroutines.
*/
package scheduler

import (
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/webitel/actorcore/internal/domain/core"
	"github.com/webitel/actorcore/internal/domain/mailbox"
	"github.com/webitel/actorcore/internal/domain/registry"
	"github.com/webitel/actorcore/internal/runtime/dispatch"
)

// DispatchObserver is notified after every handler invocation; used to
// feed telemetry (internal/telemetry) without the scheduler depending on
// the otel SDK directly.
type DispatchObserver func(worker int, ctx *registry.Context, took time.Duration)

// Pool owns the fixed set of worker goroutines draining the global queue.
type Pool struct {
	queue      *mailbox.GlobalQueue
	reg        *registry.Registry
	dispatcher *dispatch.Dispatcher
	beacon     Beacon
	observe    DispatchObserver

	numWorkers int

	mu       sync.Mutex
	cond     *sync.Cond
	sleeping int
	stopped  bool

	g *errgroup.Group
}

// New builds a worker pool of n goroutines over queue, resolving
// destinations through reg and falling back to dispatcher.SendDeadReply for
// orphaned or released mailboxes.
func New(n int, queue *mailbox.GlobalQueue, reg *registry.Registry, dispatcher *dispatch.Dispatcher, beacon Beacon, observe DispatchObserver) *Pool {
	if n <= 0 {
		n = 1
	}
	p := &Pool{
		queue:      queue,
		reg:        reg,
		dispatcher: dispatcher,
		beacon:     beacon,
		observe:    observe,
		numWorkers: n,
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Start launches the worker goroutines under a shared errgroup.Group, the
// same goroutine-coordination primitive the teacher reaches for whenever a
// fixed set of long-running loops must be joined on shutdown.
func (p *Pool) Start() {
	p.g = new(errgroup.Group)
	for i := 0; i < p.numWorkers; i++ {
		id, weight := i, weightFor(i)
		p.g.Go(func() error {
			p.workerLoop(id, weight)
			return nil
		})
	}
}

// Stop signals every worker to exit and waits for them. A worker checks
// the stop flag only when it finds the global queue empty, so workers
// keep draining ready mailboxes until the queue is empty.
func (p *Pool) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.cond.Broadcast()
	p.mu.Unlock()
	_ = p.g.Wait()
}

// Wake broadcasts to any sleeping worker. Called by the timer thread every
// 2.5ms when at least one worker is asleep, and by the socket thread when
// every worker is asleep (§4.3 "Wakeup").
func (p *Pool) Wake() {
	p.mu.Lock()
	if p.sleeping > 0 {
		p.cond.Broadcast()
	}
	p.mu.Unlock()
}

// AnySleeping reports whether at least one worker is currently parked.
func (p *Pool) AnySleeping() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sleeping > 0
}

// AllSleeping reports whether every worker is currently parked, the signal
// the socket thread uses to decide it must wake the pool itself (§4.3).
func (p *Pool) AllSleeping() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sleeping == p.numWorkers
}

func (p *Pool) workerLoop(id, weight int) {
	for {
		mb := p.queue.Pop()
		if mb == nil {
			p.mu.Lock()
			if p.stopped {
				p.mu.Unlock()
				return
			}
			p.sleeping++
			p.cond.Wait()
			p.sleeping--
			stopped := p.stopped
			p.mu.Unlock()
			if stopped {
				return
			}
			continue
		}

		p.dispatchMailbox(id, weight, mb)
	}
}

// dispatchMailbox implements §4.3 steps 3-6 for a single popped mailbox.
func (p *Pool) dispatchMailbox(id, weight int, mb core.Mailbox) {
	if mb.Released() {
		mb.Drain(func(msg core.Message) {
			p.dispatcher.SendDeadReply(msg.Source, msg.Session)
		})
		return
	}

	ctx, ok := p.reg.Grab(mb.Handle())
	if !ok {
		// Destination is gone and was never marked for release (e.g. a
		// message landed mid-teardown); drop what's pending the same way.
		mb.Drain(func(msg core.Message) {
			p.dispatcher.SendDeadReply(msg.Source, msg.Session)
		})
		return
	}
	defer p.reg.Release(ctx)

	n := batchSize(weight, mb.Len())
	for i := 0; i < n; i++ {
		msg, ok := mb.Pop()
		if !ok {
			break
		}

		if p.beacon != nil {
			p.beacon.Stamp(id, msg.Source, ctx.Handle())
		}

		start := time.Now()
		if h := ctx.Handler(); h != nil {
			h(ctx, msg.Type, msg.Session, msg.Source, msg.Data)
		}
		took := time.Since(start)
		ctx.RecordDispatch(took)

		if p.observe != nil {
			p.observe(id, ctx, took)
		}

		if overload := mb.Overload(); overload > 0 {
			p.dispatcher.PublishOverload(ctx.Handle(), overload)
		}
	}

	if mb.FinishBatch() {
		p.queue.Requeue(mb)
	}
}
