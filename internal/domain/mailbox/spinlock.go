package mailbox

import (
	"runtime"
	"sync/atomic"
)

// spinlock is a tiny test-and-set mutex for the short critical sections
// guarding a mailbox's ring buffer and the global queue's head/tail (§5
// "Shared resources"). It is not reentrant and not fair; contention is
// expected to be low and critical sections are a handful of instructions,
// so spinning beats parking a goroutine on a channel or sync.Mutex.
type spinlock struct {
	state atomic.Bool
}

func (s *spinlock) Lock() {
	for !s.state.CompareAndSwap(false, true) {
		runtime.Gosched()
	}
}

func (s *spinlock) Unlock() {
	s.state.Store(false)
}
