/*
Package registry implements the handle table and service context described
in §4.1: allocation of unique 32-bit service handles, reference-counted
contexts, and message dispatch bookkeeping (CPU stats, session counters,
the watchdog's endless flag).

Key Architectural Concepts:
  - Every live service is represented by a Context, created by the module
    loader with refcount 1 and handed to Register, which adds its own
    reference.
  - Handles are never reused while any reference is outstanding; slot
    indices are reused once a context's refcount reaches zero.
  - Readers (Grab, Lookup) are expected to vastly outnumber writers
    (Register, Retire, Name), so the table is guarded by a single RWMutex.
*/
package registry

import (
	"sync/atomic"
	"time"

	"github.com/webitel/actorcore/internal/domain/core"
)

// Context owns a service's handler, its mailbox reference, and the
// bookkeeping the scheduler and monitor need: accumulated CPU time, message
// counter, the watchdog's endless flag, and the session counter used for
// TAG_ALLOCSESSION (§6).
type Context struct {
	handle core.Handle

	refcount atomic.Int32

	handler  core.HandlerFunc
	userdata any
	mailbox  core.Mailbox

	cpuTimeNanos atomic.Int64
	msgCount     atomic.Uint64
	session      atomic.Uint32
	endless      atomic.Bool
	retired      atomic.Bool
}

// NewContext creates a context with refcount 1, as the module loader would
// before handing it to Registry.Register (§3 Service Context lifecycle).
// Its mailbox is attached afterward via SetMailbox, once Register has
// assigned the handle the mailbox is keyed on.
func NewContext(handler core.HandlerFunc, userdata any) *Context {
	c := &Context{
		handler:  handler,
		userdata: userdata,
	}
	c.refcount.Store(1)
	return c
}

// SetMailbox attaches ctx's mailbox. Called once, immediately after
// Registry.Register has assigned ctx a handle.
func (c *Context) SetMailbox(mb core.Mailbox) { c.mailbox = mb }

// Handle returns the service handle once the context has been registered;
// Invalid beforehand.
func (c *Context) Handle() core.Handle { return c.handle }

// Userdata returns the opaque value passed to the handler alongside type/
// session/source/data, mirroring the C signature's `void *ud`.
func (c *Context) Userdata() any { return c.userdata }

// Mailbox returns the context's mailbox.
func (c *Context) Mailbox() core.Mailbox { return c.mailbox }

// Handler returns the dispatch callback.
func (c *Context) Handler() core.HandlerFunc { return c.handler }

// NextSession allocates a new session id for TAG_ALLOCSESSION sends. 0 is
// reserved for fire-and-forget messages, so the counter skips it on wrap.
func (c *Context) NextSession() int32 {
	for {
		v := c.session.Add(1)
		if v != 0 {
			return int32(v)
		}
	}
}

// grab increments the reference count; paired with release.
func (c *Context) grab() { c.refcount.Add(1) }

// release decrements the reference count and reports whether it reached
// zero (the caller, Registry.release, is responsible for tearing down the
// context exactly once in that case).
func (c *Context) release() bool {
	return c.refcount.Add(-1) == 0
}

// RecordDispatch stamps CPU time and bumps the message counter; called by
// the scheduler after each handler invocation (§3 "accumulated CPU time and
// message counter").
func (c *Context) RecordDispatch(d time.Duration) {
	c.cpuTimeNanos.Add(int64(d))
	c.msgCount.Add(1)
}

// Stats returns the CPU time spent in this context's handler and the
// number of messages dispatched to it so far.
func (c *Context) Stats() (cpu time.Duration, messages uint64) {
	return time.Duration(c.cpuTimeNanos.Load()), c.msgCount.Load()
}

// SetEndless marks the context as suspected of running an endless loop;
// set only by the monitor (§4.5).
func (c *Context) SetEndless(v bool) { c.endless.Store(v) }

// Endless reports the watchdog's current suspicion for this context.
func (c *Context) Endless() bool { return c.endless.Load() }
