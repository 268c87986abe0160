package mailbox

import (
	"testing"

	"github.com/webitel/actorcore/internal/domain/core"
)

func newTestMailbox(h core.Handle) (*Mailbox, *GlobalQueue) {
	q := NewGlobalQueue()
	return New(h, q), q
}

func TestPushLinksIntoGlobalQueueOnce(t *testing.T) {
	m, q := newTestMailbox(core.NewHandle(0, 1))

	m.Push(core.Message{Session: 1})
	m.Push(core.Message{Session: 2})

	if got := q.Len(); got != 1 {
		t.Fatalf("expected mailbox linked exactly once, queue len = %d", got)
	}

	popped := q.Pop()
	if popped == nil {
		t.Fatal("expected to pop the mailbox")
	}
	if q.Pop() != nil {
		t.Fatal("mailbox should not appear twice in the global queue")
	}
}

func TestFIFOOrdering(t *testing.T) {
	m, _ := newTestMailbox(core.NewHandle(0, 1))

	for i := int32(1); i <= 5; i++ {
		m.Push(core.Message{Session: i})
	}

	for i := int32(1); i <= 5; i++ {
		msg, ok := m.Pop()
		if !ok {
			t.Fatalf("expected message %d, got empty", i)
		}
		if msg.Session != i {
			t.Fatalf("FIFO violated: expected session %d, got %d", i, msg.Session)
		}
	}

	if _, ok := m.Pop(); ok {
		t.Fatal("expected mailbox to be empty")
	}
}

func TestRingDoubles(t *testing.T) {
	m, _ := newTestMailbox(core.NewHandle(0, 1))

	for i := 0; i < initialCapacity+1; i++ {
		m.Push(core.Message{Session: int32(i)})
	}

	if len(m.ring) <= initialCapacity {
		t.Fatalf("expected ring to have doubled past %d, got %d", initialCapacity, len(m.ring))
	}
	if m.n != initialCapacity+1 {
		t.Fatalf("expected %d live entries, got %d", initialCapacity+1, m.n)
	}

	for i := 0; i < initialCapacity+1; i++ {
		msg, ok := m.Pop()
		if !ok || msg.Session != int32(i) {
			t.Fatalf("order lost after growth at index %d: ok=%v session=%d", i, ok, msg.Session)
		}
	}
}

func TestOverloadThresholdDoublesAndResets(t *testing.T) {
	m, _ := newTestMailbox(core.NewHandle(0, 1))

	for i := 0; i < initialOverload+1; i++ {
		m.Push(core.Message{Session: int32(i)})
	}

	if _, ok := m.Pop(); !ok {
		t.Fatal("expected a message")
	}
	if m.Overload() == 0 {
		t.Fatal("expected overload to be recorded once threshold exceeded")
	}
	if m.overloadThreshold != initialOverload*2 {
		t.Fatalf("expected threshold to double to %d, got %d", initialOverload*2, m.overloadThreshold)
	}

	for {
		if _, ok := m.Pop(); !ok {
			break
		}
	}
	if m.overloadThreshold != initialOverload {
		t.Fatalf("expected threshold reset to %d on drain, got %d", initialOverload, m.overloadThreshold)
	}
}

func TestReleaseProtocol(t *testing.T) {
	m, q := newTestMailbox(core.NewHandle(0, 1))

	// Drain so the mailbox starts idle and unlinked.
	q.Pop()

	m.MarkRelease()
	if !m.Released() {
		t.Fatal("expected release flag set")
	}
	if q.Len() != 1 {
		t.Fatal("expected mark_release to push the mailbox once")
	}

	// No further pushes should land once released.
	m.Push(core.Message{Session: 99})
	if m.Len() != 0 {
		t.Fatal("expected push after release to be dropped")
	}

	var dropped []core.Message
	m.ring[0] = core.Message{Session: 7}
	m.n = 1
	m.Drain(func(msg core.Message) { dropped = append(dropped, msg) })
	if len(dropped) != 1 || dropped[0].Session != 7 {
		t.Fatalf("expected drain to deliver leftover message via callback, got %+v", dropped)
	}
}
