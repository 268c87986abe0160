package mailbox

import "github.com/webitel/actorcore/internal/domain/core"

// GlobalQueue is the intrusive singly-linked list of ready mailboxes
// described in §3/§4.2. A mailbox appears in it at most once (invariant 1
// in §8): Mailbox.Push only calls queue.push when transitioning from idle.
// queue.push itself does not check whether m is already linked.
type GlobalQueue struct {
	mu         spinlock
	head, tail core.Mailbox
	length     int
}

// NewGlobalQueue returns an empty global queue.
func NewGlobalQueue() *GlobalQueue {
	return &GlobalQueue{}
}

// push links m to the tail. Called by Mailbox when a push finds it idle,
// and by MarkRelease to force one final pass through a worker.
func (q *GlobalQueue) push(m core.Mailbox) {
	m.SetNext(nil)

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.tail == nil {
		q.head, q.tail = m, m
	} else {
		q.tail.SetNext(m)
		q.tail = m
	}
	q.length++
}

// Pop removes and returns the head mailbox, or nil if the queue is empty.
// The caller becomes the sole owner of the returned mailbox until it either
// pushes it back (still non-empty after a drain) or lets it go idle.
func (q *GlobalQueue) Pop() core.Mailbox {
	q.mu.Lock()
	defer q.mu.Unlock()

	m := q.head
	if m == nil {
		return nil
	}
	q.head = m.Next()
	if q.head == nil {
		q.tail = nil
	}
	m.SetNext(nil)
	q.length--
	return m
}

// Requeue pushes m back onto the tail; used by the scheduler after a batch
// when the mailbox still has pending messages (§4.3 step 6).
func (q *GlobalQueue) Requeue(m core.Mailbox) {
	q.push(m)
}

// Len reports the number of mailboxes currently linked (diagnostic use by
// the admin HTTP surface; not used by the scheduler's hot path).
func (q *GlobalQueue) Len() int {
	q.mu.Lock()
	n := q.length
	q.mu.Unlock()
	return n
}
