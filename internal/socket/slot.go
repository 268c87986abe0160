package socket

import (
	"sync"
	"sync/atomic"

	"github.com/webitel/actorcore/internal/domain/core"
)

// State is a socket slot's position in §4.4's state machine.
type State int32

const (
	Invalid State = iota
	Reserve
	PListen
	PAccept
	Connecting
	Connected
	Bind
	Listen
	HalfClose
)

// Protocol distinguishes the three socket kinds the reactor multiplexes.
type Protocol int

const (
	ProtoTCP Protocol = iota
	ProtoUDPv4
	ProtoUDPv6
)

const slotBits = 16
const slotCount = 1 << slotBits
const slotMask = slotCount - 1

// pendingWrite is one queued send awaiting a writable event.
type pendingWrite struct {
	data []byte
}

// Slot is one entry of the fixed 2^16-slot table (§4.4 "Socket Slot").
// id is the monotonic generation id currently occupying the slot; state
// is CAS'd on the INVALID<->RESERVE edge (allocation/free) and written
// only by the reactor goroutine everywhere else, per §5's "modified via
// CAS during allocation; otherwise accessed only by the socket thread".
type Slot struct {
	mu sync.Mutex

	id    uint32
	state atomic.Int32

	fd       int
	protocol Protocol
	owner    core.Handle

	high []pendingWrite
	low  []pendingWrite

	wbSize        int
	warnThreshold int

	readSize int // adaptive TCP read-buffer size, §4.4 "Reading (TCP)"

	udpDefault *udpDest
}

type udpDest struct {
	ip   [16]byte
	isV4 bool
	port uint16
}

func (s *Slot) stateLoad() State { return State(s.state.Load()) }
func (s *Slot) stateStore(v State) { s.state.Store(int32(v)) }
func (s *Slot) casState(from, to State) bool {
	return s.state.CompareAndSwap(int32(from), int32(to))
}

// Table is the reactor's fixed socket-slot array, indexed by id mod 2^16.
type Table struct {
	slots  [slotCount]Slot
	nextID atomic.Uint32
}

// NewTable allocates a Table with every slot INVALID.
func NewTable() *Table {
	return &Table{}
}

// Alloc claims a free slot via the §4.4 "alloc_id" protocol: bump an
// atomic counter, mask to a 31-bit positive id (wrapping resets the high
// bit), and CAS that slot's state from INVALID to RESERVE, retrying on
// conflict with the next id. A slot staying non-INVALID for the previous
// id's whole lifetime is what makes same-slot collisions across live ids
// impossible (§4.4 "ID allocation").
func (t *Table) Alloc() (uint32, *Slot) {
	for {
		id := t.nextID.Add(1) & 0x7fffffff
		if id == 0 {
			continue // 0 is reserved as "no id"
		}
		s := &t.slots[id&slotMask]
		if s.casState(Invalid, Reserve) {
			s.mu.Lock()
			s.id = id
			s.fd = -1
			s.readSize = 64
			s.warnThreshold = 0
			s.wbSize = 0
			s.high = nil
			s.low = nil
			s.udpDefault = nil
			s.mu.Unlock()
			return id, s
		}
		// Slot occupied by a still-live id; try the next one.
	}
}

// Get resolves id to its slot iff the slot's current generation matches
// (§4.4 invariant: "a slot never reports events for a stale id").
func (t *Table) Get(id uint32) (*Slot, bool) {
	if id == 0 {
		return nil, false
	}
	s := &t.slots[id&slotMask]
	if s.id != id || s.stateLoad() == Invalid {
		return nil, false
	}
	return s, true
}

// Active reports how many slots are currently non-INVALID, for the admin
// HTTP surface's /debug/sockets endpoint.
func (t *Table) Active() int {
	n := 0
	for i := range t.slots {
		if t.slots[i].stateLoad() != Invalid {
			n++
		}
	}
	return n
}

// Free returns a slot to INVALID, making its index eligible for a future
// Alloc once id wraps back around to it.
func (t *Table) Free(s *Slot) {
	s.mu.Lock()
	s.fd = -1
	s.high = nil
	s.low = nil
	s.wbSize = 0
	s.mu.Unlock()
	s.stateStore(Invalid)
}
