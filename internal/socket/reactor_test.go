//go:build linux

package socket

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/webitel/actorcore/internal/domain/core"
	"github.com/webitel/actorcore/internal/domain/mailbox"
	"github.com/webitel/actorcore/internal/domain/registry"
	"github.com/webitel/actorcore/internal/runtime/dispatch"
)

// TestListenAcceptEcho exercises §8's S1 scenario end to end: a real
// loopback TCP connection through the epoll reactor, not a net.Listener
// stand-in, verifying ACCEPT/OPEN/DATA events reach the owning handle's
// mailbox via the dispatcher.
func TestListenAcceptEcho(t *testing.T) {
	reg := registry.New(0)
	queue := mailbox.NewGlobalQueue()
	d := dispatch.New(reg)

	echoHandle, _ := dispatch.Spawn(reg, queue, nil, nil)

	reactor, err := New(d, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	go reactor.Run()
	defer reactor.Stop()

	api := NewAPI(reactor)
	ctx := context.Background()

	listenID := api.Listen(ctx, echoHandle, "127.0.0.1", 0)
	if listenID == 0 {
		t.Fatal("expected a nonzero listen id")
	}
	api.Start(ctx, echoHandle, listenID)

	// Dial through the OS, not through the reactor, to exercise accept.
	addr, aerr := listenerAddr(reactor, listenID)
	if aerr != nil {
		t.Fatalf("listenerAddr: %v", aerr)
	}

	conn, derr := net.DialTimeout("tcp", addr, time.Second)
	if derr != nil {
		t.Fatalf("dial: %v", derr)
	}
	defer conn.Close()

	if _, werr := conn.Write([]byte("hello")); werr != nil {
		t.Fatalf("write: %v", werr)
	}

	deadline := time.Now().Add(2 * time.Second)
	var gotAccept, gotOpen, gotData bool
	for time.Now().Before(deadline) && !(gotAccept && gotOpen && gotData) {
		mb := queue.Pop()
		if mb == nil {
			time.Sleep(time.Millisecond)
			continue
		}
		for {
			msg, ok := mb.Pop()
			if !ok {
				break
			}
			if msg.Type != core.TypeSocket {
				continue
			}
			ev, ok := DecodeEvent(msg.Data)
			if !ok {
				continue
			}
			switch ev.Kind {
			case EventAccept:
				gotAccept = true
				api.Start(ctx, echoHandle, ev.UD)
			case EventOpen:
				gotOpen = true
			case EventData:
				gotData = true
			}
		}
		mb.FinishBatch()
	}

	if !gotAccept || !gotOpen || !gotData {
		t.Fatalf("expected ACCEPT+OPEN+DATA, got accept=%v open=%v data=%v", gotAccept, gotOpen, gotData)
	}
}

func listenerAddr(r *Reactor, id uint32) (string, error) {
	slot, ok := r.table.Get(id)
	if !ok {
		return "", net.UnknownNetworkError("no such slot")
	}
	sa, err := unixGetsockname(slot.fd)
	if err != nil {
		return "", err
	}
	return sa, nil
}

func TestCommandQueueDropsAfterTimeoutWhenFull(t *testing.T) {
	q := newCommandQueue(func() {}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for i := 0; i < commandQueueCapacity; i++ {
		if !q.Submit(ctx, Command{Type: CmdSetopt}) {
			t.Fatalf("expected command %d to enqueue into spare capacity", i)
		}
	}

	start := time.Now()
	ok := q.Submit(ctx, Command{Type: CmdSetopt})
	elapsed := time.Since(start)
	if ok {
		t.Fatal("expected Submit to report dropped once the queue is full")
	}
	if elapsed < commandSubmitTimeout {
		t.Fatalf("expected Submit to wait out the full timeout before dropping, waited %v", elapsed)
	}
}
