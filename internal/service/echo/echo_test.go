package echo

import (
	"net"
	"testing"
	"time"

	"github.com/webitel/actorcore/internal/domain/mailbox"
	"github.com/webitel/actorcore/internal/domain/registry"
	"github.com/webitel/actorcore/internal/runtime/dispatch"
	"github.com/webitel/actorcore/internal/socket"
)

// TestEchoRoundTrip exercises the S1 fixture over a real loopback
// connection: bytes written to the socket must come back unchanged.
func TestEchoRoundTrip(t *testing.T) {
	reg := registry.New(0)
	queue := mailbox.NewGlobalQueue()
	d := dispatch.New(reg)

	reactor, err := socket.New(d, nil)
	if err != nil {
		t.Fatalf("socket.New: %v", err)
	}
	go reactor.Run()
	defer reactor.Stop()

	api := socket.NewAPI(reactor)

	const addr = "127.0.0.1:19081"
	Spawn(reg, queue, d, api, nil, "127.0.0.1", 19081)

	// Drain the echo service's mailbox on a background goroutine, the way
	// the scheduler pool would.
	go func() {
		for {
			mb := queue.Pop()
			if mb == nil {
				time.Sleep(time.Millisecond)
				continue
			}
			ctx, ok := reg.Grab(mb.Handle())
			if !ok {
				continue
			}
			for {
				msg, ok := mb.Pop()
				if !ok {
					break
				}
				if h := ctx.Handler(); h != nil {
					h(ctx, msg.Type, msg.Session, msg.Source, msg.Data)
				}
			}
			mb.FinishBatch()
			reg.Release(ctx)
		}
	}()

	var conn net.Conn
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err = net.DialTimeout("tcp", addr, 200*time.Millisecond)
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("dial %s: %v", addr, err)
	}
	defer conn.Close()

	want := []byte("ping")
	if _, err := conn.Write(want); err != nil {
		t.Fatalf("write: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	got := make([]byte, len(want))
	if _, err := readFull(conn, got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != string(want) {
		t.Fatalf("echo mismatch: got %q, want %q", got, want)
	}
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
