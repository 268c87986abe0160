package registry

import (
	"sort"
	"sync"

	"github.com/webitel/actorcore/internal/domain/core"
)

// nameEntry is one append-only, sorted-by-name alias (§4.1 "name index").
type nameEntry struct {
	name   string
	handle core.Handle
}

// Registry is the handle table: a bidirectional map from handle to
// *Context, plus a sorted name-alias index, guarded by a single RWMutex
// because reads (Grab, Lookup) vastly outnumber writes (Register, Retire,
// Name) per §4.1.
type Registry struct {
	mu sync.RWMutex

	harbor uint8
	cursor uint32

	slots []*Context
	count int

	names []nameEntry
}

const defaultSlots = 256

// New creates a Registry for the given harbor id (§3 "the harbor byte is
// fixed per process"), applying any Options.
func New(harbor uint8, opts ...Option) *Registry {
	cfg := config{initialSlots: defaultSlots}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Registry{
		harbor: harbor,
		slots:  make([]*Context, cfg.initialSlots),
	}
}

// Register allocates a handle for ctx, probing increasing local indices
// from a rolling cursor until an empty slot is found, and grows the table
// (power-of-two) when load exceeds 75% (§4.1 Allocation).
func (r *Registry) Register(ctx *Context) core.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, ok := r.findFreeSlotLocked()
	if !ok {
		r.growLocked()
		idx, ok = r.findFreeSlotLocked()
		if !ok {
			// growLocked always doubles capacity, so this cannot happen
			// unless the table has overflowed uint32 local indices.
			panic("registry: exhausted handle space")
		}
	}

	h := core.NewHandle(r.harbor, uint32(idx))
	ctx.handle = h
	ctx.grab() // the registry's own reference (§3 lifecycle)

	r.slots[idx] = ctx
	r.count++
	r.cursor = uint32(idx) + 1

	if r.count*4 >= len(r.slots)*3 {
		r.growLocked()
	}

	return h
}

func (r *Registry) findFreeSlotLocked() (int, bool) {
	n := len(r.slots)
	for i := 0; i < n; i++ {
		idx := int((r.cursor + uint32(i)) % uint32(n))
		if r.slots[idx] == nil {
			return idx, true
		}
	}
	return 0, false
}

// growLocked doubles the slot table. Existing local indices stay valid
// because they were always smaller than the table's capacity at the time
// they were handed out, and capacity only grows.
func (r *Registry) growLocked() {
	next := make([]*Context, len(r.slots)*2)
	copy(next, r.slots)
	r.slots = next
}

func (r *Registry) slotIndex(h core.Handle) int {
	return int(h.Local() % uint32(len(r.slots)))
}

// Grab resolves h to its Context and bumps its reference count atomically
// under the read lock, so the context cannot be torn down mid-send (§4.1
// Concurrency). It fails if h is unknown or has been retired.
func (r *Registry) Grab(h core.Handle) (*Context, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idx := r.slotIndex(h)
	if idx >= len(r.slots) {
		return nil, false
	}
	ctx := r.slots[idx]
	if ctx == nil || ctx.handle != h || ctx.retired.Load() {
		return nil, false
	}
	ctx.grab()
	return ctx, true
}

// Release drops a reference obtained from Grab or held by the registry
// itself. When the count reaches zero, the slot is reclaimed so its local
// index can be handed out again (§3 "slot indices ... reused after full
// release").
func (r *Registry) Release(ctx *Context) {
	if !ctx.release() {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.slotIndex(ctx.handle)
	if idx < len(r.slots) && r.slots[idx] == ctx {
		r.slots[idx] = nil
		r.count--
	}
}

// Retire marks h as no longer addressable: subsequent Grab/Lookup calls
// fail immediately, while any references already held (in-flight sends)
// keep the context alive until they are released (§8 invariant 4). It
// reports false if h was unknown or already retired.
func (r *Registry) Retire(h core.Handle) bool {
	r.mu.RLock()
	idx := r.slotIndex(h)
	var ctx *Context
	if idx < len(r.slots) {
		ctx = r.slots[idx]
	}
	r.mu.RUnlock()

	if ctx == nil || ctx.handle != h {
		return false
	}
	if !ctx.retired.CompareAndSwap(false, true) {
		return false
	}

	r.Release(ctx) // drop the registry's own reference
	return true
}

// Name binds an alias to h, append-only and rejecting duplicates (§4.1).
func (r *Registry) Name(h core.Handle, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := sort.Search(len(r.names), func(i int) bool { return r.names[i].name >= name })
	if i < len(r.names) && r.names[i].name == name {
		return false
	}

	r.names = append(r.names, nameEntry{})
	copy(r.names[i+1:], r.names[i:])
	r.names[i] = nameEntry{name: name, handle: h}
	return true
}

// Lookup resolves a name alias to a handle via binary search.
func (r *Registry) Lookup(name string) (core.Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i := sort.Search(len(r.names), func(i int) bool { return r.names[i].name >= name })
	if i < len(r.names) && r.names[i].name == name {
		return r.names[i].handle, true
	}
	return core.Invalid, false
}

// Count returns the number of currently registered (non-retired-and-freed)
// contexts; exposed for the admin HTTP surface's /debug/services endpoint.
func (r *Registry) Count() int {
	r.mu.RLock()
	n := r.count
	r.mu.RUnlock()
	return n
}

// Total is Count under the name skynet_start.c's CHECK_ABORT macro polls
// (`skynet_context_total()==0`) to decide when every service has retired;
// internal/runtime/monitor uses it to trigger process shutdown the same
// way the original's monitor/timer/socket threads break their loops.
func (r *Registry) Total() int { return r.Count() }
