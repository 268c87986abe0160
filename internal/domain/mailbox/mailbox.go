package mailbox

import "github.com/webitel/actorcore/internal/domain/core"

const (
	initialCapacity  = 64
	initialOverload   = 1024
	wbWarnBytes       = 1 << 20 // 1 MiB; the socket layer keeps its own wbWarnThresholdBytes
)

// Mailbox is the per-service bounded-doubling ring buffer described in §3
// and §4.2. It links itself into a GlobalQueue exactly once whenever a push
// transitions it from idle to ready, and unlinks (conceptually — the
// GlobalQueue actually owns unlinking) when fully drained.
type Mailbox struct {
	mu spinlock

	handle core.Handle
	queue  *GlobalQueue

	ring []core.Message
	head int
	n    int // number of live entries

	inGlobal bool
	release  bool

	overload          int
	overloadThreshold int

	next core.Mailbox // intrusive link for GlobalQueue
}

// New creates an idle mailbox for handle h, backed by q's global queue.
func New(h core.Handle, q *GlobalQueue) *Mailbox {
	return &Mailbox{
		handle:            h,
		queue:             q,
		ring:              make([]core.Message, initialCapacity),
		overloadThreshold: initialOverload,
	}
}

// Handle returns the service handle this mailbox belongs to.
func (m *Mailbox) Handle() core.Handle { return m.handle }

func (m *Mailbox) Next() core.Mailbox    { return m.next }
func (m *Mailbox) SetNext(n core.Mailbox) { m.next = n }

// Len reports the number of pending messages. Used by the scheduler's
// weight policy (§4.3) to size a drain batch.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	n := m.n
	m.mu.Unlock()
	return n
}

// Released reports whether mark_release has been called.
func (m *Mailbox) Released() bool {
	m.mu.Lock()
	r := m.release
	m.mu.Unlock()
	return r
}

// Overload returns the last recorded overload length, or 0 if the mailbox
// has never exceeded its threshold since its last drain-to-empty.
func (m *Mailbox) Overload() int {
	m.mu.Lock()
	o := m.overload
	m.mu.Unlock()
	return o
}

// Push appends msg to the ring, doubling capacity if full, and links the
// mailbox into the global queue if it was idle (§4.2 push).
func (m *Mailbox) Push(msg core.Message) {
	m.mu.Lock()
	if m.release {
		// §4.2 release protocol: no further pushes once release=1.
		m.mu.Unlock()
		return
	}
	m.push(msg)
	wasIdle := !m.inGlobal
	if wasIdle {
		m.inGlobal = true
	}
	m.mu.Unlock()

	if wasIdle {
		m.queue.push(m)
	}
}

func (m *Mailbox) push(msg core.Message) {
	if m.n == len(m.ring) {
		m.grow()
	}
	tail := (m.head + m.n) % len(m.ring)
	m.ring[tail] = msg
	m.n++
}

// grow doubles ring capacity, copying entries in FIFO order starting at head.
func (m *Mailbox) grow() {
	next := make([]core.Message, len(m.ring)*2)
	for i := 0; i < m.n; i++ {
		next[i] = m.ring[(m.head+i)%len(m.ring)]
	}
	m.ring = next
	m.head = 0
}

// Pop removes and returns the oldest message. ok is false if the mailbox
// was empty, in which case in_global is cleared (§4.2 pop).
func (m *Mailbox) Pop() (core.Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.n == 0 {
		m.inGlobal = false
		return core.Message{}, false
	}

	msg := m.ring[m.head]
	m.ring[m.head] = core.Message{}
	m.head = (m.head + 1) % len(m.ring)
	m.n--

	if m.n >= m.overloadThreshold {
		m.overload = m.n
		m.overloadThreshold *= 2
	} else if m.n == 0 {
		m.overloadThreshold = initialOverload
		m.overload = 0
	}

	return msg, true
}

// FinishBatch clears in_global if the mailbox drained to empty exactly on
// the worker's last successful pop (so no later Pop call observes the
// empty state itself). Reports whether the caller must requeue.
func (m *Mailbox) FinishBatch() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.n == 0 {
		m.inGlobal = false
		return false
	}
	return true
}

// MarkRelease sets release=1 and, if the mailbox is not already linked into
// the global queue, links it once so a worker eventually drains and frees
// it (§4.2 release protocol, invariant 4 in §8).
func (m *Mailbox) MarkRelease() {
	m.mu.Lock()
	m.release = true
	needPush := !m.inGlobal
	if needPush {
		m.inGlobal = true
	}
	m.mu.Unlock()

	if needPush {
		m.queue.push(m)
	}
}

// Drain empties any remaining messages through drop, used when a mailbox
// carrying release=1 reaches the head of the global queue (§4.2).
func (m *Mailbox) Drain(drop func(core.Message)) {
	for {
		msg, ok := m.Pop()
		if !ok {
			return
		}
		drop(msg)
	}
}
