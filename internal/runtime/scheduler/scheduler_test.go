package scheduler

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/webitel/actorcore/internal/domain/core"
	"github.com/webitel/actorcore/internal/domain/mailbox"
	"github.com/webitel/actorcore/internal/domain/registry"
	"github.com/webitel/actorcore/internal/runtime/dispatch"
)

// newEchoContext spawns a context+mailbox pair the way the module loader
// would, sidestepping the handle-before-mailbox ordering problem directly.
func newEchoContext(reg *registry.Registry, queue *mailbox.GlobalQueue, handler core.HandlerFunc) core.Handle {
	h, _ := dispatch.Spawn(reg, queue, handler, nil)
	return h
}

// startWaker stands in for the timer ticker (internal/runtime/timer): Send
// never signals the pool's condvar, so parked workers only resume on Wake.
func startWaker(t *testing.T, pool *Pool) {
	t.Helper()
	stop := make(chan struct{})
	t.Cleanup(func() { close(stop) })
	go func() {
		ticker := time.NewTicker(time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				pool.Wake()
			}
		}
	}()
}

func TestBatchSize(t *testing.T) {
	cases := []struct {
		weight, queueLen, want int
	}{
		{-1, 10, 1},
		{-1, 0, 0},
		{0, 10, 10},
		{1, 10, 5},
		{2, 10, 3}, // ceil(10/4) = 3
		{3, 10, 2}, // ceil(10/8) = 2
	}
	for _, c := range cases {
		if got := batchSize(c.weight, c.queueLen); got != c.want {
			t.Errorf("batchSize(%d, %d) = %d, want %d", c.weight, c.queueLen, got, c.want)
		}
	}
}

func TestWeightTableShape(t *testing.T) {
	counts := map[int]int{}
	for i := 0; i < 32; i++ {
		counts[weightFor(i)]++
	}
	want := map[int]int{-1: 4, 0: 4, 1: 8, 2: 8, 3: 8}
	for w, n := range want {
		if counts[w] != n {
			t.Errorf("weight %d: expected %d workers, got %d", w, n, counts[w])
		}
	}
	if weightFor(32) != 0 || weightFor(100) != 0 {
		t.Error("expected workers beyond index 32 to default to weight 0")
	}
}

func TestPoolDispatchesEchoFIFO(t *testing.T) {
	reg := registry.New(0)
	queue := mailbox.NewGlobalQueue()
	d := dispatch.New(reg)

	var mu sync.Mutex
	var received []int32

	handler := func(ctx core.DispatchContext, typ core.Type, session int32, source core.Handle, data []byte) int {
		mu.Lock()
		received = append(received, session)
		mu.Unlock()
		return 0
	}

	selfHandle := newEchoContext(reg, queue, handler)

	pool := New(2, queue, reg, d, nil, nil)
	pool.Start()
	defer pool.Stop()
	startWaker(t, pool)

	for i := int32(1); i <= 5; i++ {
		d.Send(selfHandle, selfHandle, core.TypeText, i, nil, 0)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(received)
		mu.Unlock()
		if n == 5 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 5 {
		t.Fatalf("expected 5 messages dispatched, got %d: %v", len(received), received)
	}
	for i, s := range received {
		if s != int32(i+1) {
			t.Fatalf("FIFO violated across workers: %v", received)
		}
	}
}

func TestDeadDestinationReplyError(t *testing.T) {
	reg := registry.New(0)
	queue := mailbox.NewGlobalQueue()
	d := dispatch.New(reg)

	var gotType core.Type
	var gotSession int32
	var once atomic.Bool

	handler := func(ctx core.DispatchContext, typ core.Type, session int32, source core.Handle, data []byte) int {
		if !once.Swap(true) {
			gotType = typ
			gotSession = session
		}
		return 0
	}

	sender := newEchoContext(reg, queue, handler)

	// A handle with no registered context: Grab will fail and Send should
	// reply PTYPE_ERROR with the allocated session (§7, S6 in §8).
	deadHandle := core.NewHandle(0, 999)

	pool := New(1, queue, reg, d, nil, nil)
	pool.Start()
	defer pool.Stop()
	startWaker(t, pool)

	d.Send(sender, deadHandle, core.TypeText, 0, nil, dispatch.FlagAllocSession)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && !once.Load() {
		time.Sleep(time.Millisecond)
	}

	if !once.Load() {
		t.Fatal("expected sender to receive a dead-service reply")
	}
	if gotType != core.TypeError {
		t.Fatalf("expected PTYPE_ERROR, got %v", gotType)
	}
	if gotSession == 0 {
		t.Fatal("expected a nonzero session on the reply")
	}
}
