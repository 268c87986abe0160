package monitor

import (
	"testing"

	"github.com/webitel/actorcore/internal/domain/core"
	"github.com/webitel/actorcore/internal/domain/mailbox"
	"github.com/webitel/actorcore/internal/domain/registry"
	"github.com/webitel/actorcore/internal/runtime/dispatch"
)

func TestScanFlagsStalledWorker(t *testing.T) {
	reg := registry.New(0)
	queue := mailbox.NewGlobalQueue()
	h, ctx := dispatch.Spawn(reg, queue, nil, nil)

	m := New(1, reg, nil)

	m.Stamp(0, core.Invalid, h)
	m.scan() // first pass: version 1 vs checkVersion 0, so it only seeds checkVersion
	if ctx.Endless() {
		t.Fatal("did not expect endless to be set before a stalled second scan")
	}

	m.scan() // version unchanged since the last scan: the handler never returned
	if !ctx.Endless() {
		t.Fatal("expected scan to flag a worker whose beacon version stopped advancing")
	}
}

func TestScanIgnoresProgressingWorker(t *testing.T) {
	reg := registry.New(0)
	queue := mailbox.NewGlobalQueue()
	h, ctx := dispatch.Spawn(reg, queue, nil, nil)

	m := New(1, reg, nil)

	m.Stamp(0, core.Invalid, h)
	m.scan()
	m.Stamp(0, core.Invalid, h) // worker made progress before the next scan
	m.scan()

	if ctx.Endless() {
		t.Fatal("did not expect endless flag on a worker that kept advancing")
	}
}

func TestCheckAbortFiresOnceRegistryDrainsToEmpty(t *testing.T) {
	reg := registry.New(0)
	queue := mailbox.NewGlobalQueue()
	h, _ := dispatch.Spawn(reg, queue, nil, nil)

	m := New(1, reg, nil)
	var fired int
	m.SetShutdown(func() { fired++ })

	m.scan() // a service is registered: no shutdown yet, but everActive latches
	if fired != 0 {
		t.Fatalf("expected no shutdown while a service is registered, got %d calls", fired)
	}

	reg.Retire(h)
	m.scan() // registry just drained to empty: CHECK_ABORT fires
	if fired != 1 {
		t.Fatalf("expected exactly one shutdown call after draining to empty, got %d", fired)
	}

	m.scan() // already fired once; must not fire again without re-seeing activity
	if fired != 1 {
		t.Fatalf("expected shutdown not to refire on a second empty scan, got %d", fired)
	}
}

func TestCheckAbortNeverFiresBeforeAnyServiceRegisters(t *testing.T) {
	reg := registry.New(0)

	m := New(1, reg, nil)
	var fired int
	m.SetShutdown(func() { fired++ })

	m.scan()
	if fired != 0 {
		t.Fatalf("expected no shutdown when the registry was never active, got %d calls", fired)
	}
}
