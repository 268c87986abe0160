package timer

import (
	"sync/atomic"
	"testing"
	"time"
)

type fakePool struct {
	sleeping atomic.Bool
	woken    atomic.Int32
}

func (f *fakePool) AnySleeping() bool { return f.sleeping.Load() }
func (f *fakePool) Wake()             { f.woken.Add(1) }

func TestTickerWakesOnlyWhenSomeoneSleeps(t *testing.T) {
	pool := &fakePool{}
	tk := New(pool)
	go tk.Run()
	defer tk.Stop()

	time.Sleep(20 * time.Millisecond)
	if pool.woken.Load() != 0 {
		t.Fatalf("expected no wakes while no worker sleeps, got %d", pool.woken.Load())
	}

	pool.sleeping.Store(true)
	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) && pool.woken.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	if pool.woken.Load() == 0 {
		t.Fatal("expected at least one wake once a worker is marked sleeping")
	}
}
