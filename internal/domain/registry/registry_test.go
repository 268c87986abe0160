package registry

import (
	"testing"

	"github.com/webitel/actorcore/internal/domain/core"
)

func TestRegisterGrabRelease(t *testing.T) {
	r := New(0)

	ctx := NewContext(nil, nil)
	h := r.Register(ctx)
	if h == core.Invalid {
		t.Fatal("expected a valid handle")
	}

	got, ok := r.Grab(h)
	if !ok || got != ctx {
		t.Fatalf("expected Grab to resolve the registered context, ok=%v", ok)
	}
	r.Release(got) // release the Grab reference

	if r.Count() != 1 {
		t.Fatalf("expected 1 registered context, got %d", r.Count())
	}
}

func TestHandlesNotReusedWhileReferenced(t *testing.T) {
	r := New(0, WithInitialSlots(4))

	ctx := NewContext(nil, nil)
	h := r.Register(ctx)

	grabbed, ok := r.Grab(h)
	if !ok {
		t.Fatal("expected grab to succeed before retire")
	}

	if !r.Retire(h) {
		t.Fatal("expected retire to succeed")
	}

	// Slot cannot be reused yet: grabbed still holds a reference.
	ctx2 := NewContext(nil, nil)
	h2 := r.Register(ctx2)
	if h2 == h {
		t.Fatal("handle reused while a reference was still outstanding")
	}

	if _, ok := r.Grab(h); ok {
		t.Fatal("expected grab on a retired handle to fail")
	}

	r.Release(grabbed) // drop the Grab reference; ctx's creator reference is still held
}

func TestRetireIsIdempotent(t *testing.T) {
	r := New(0)
	ctx := NewContext(nil, nil)
	h := r.Register(ctx)

	if !r.Retire(h) {
		t.Fatal("expected first retire to succeed")
	}
	if r.Retire(h) {
		t.Fatal("expected second retire to fail")
	}
}

func TestNameLookupRejectsDuplicates(t *testing.T) {
	r := New(0)
	ctx := NewContext(nil, nil)
	h := r.Register(ctx)

	if !r.Name(h, "launcher") {
		t.Fatal("expected first name binding to succeed")
	}
	if r.Name(h, "launcher") {
		t.Fatal("expected duplicate name binding to be rejected")
	}

	got, ok := r.Lookup("launcher")
	if !ok || got != h {
		t.Fatalf("expected lookup to resolve the bound handle, ok=%v", ok)
	}

	if _, ok := r.Lookup("missing"); ok {
		t.Fatal("expected lookup of an unbound name to fail")
	}
}

func TestGrowPreservesLiveHandles(t *testing.T) {
	r := New(0, WithInitialSlots(2))

	handles := make([]core.Handle, 0, 10)
	for i := 0; i < 10; i++ {
		h := r.Register(NewContext(nil, nil))
		handles = append(handles, h)
	}

	for _, h := range handles {
		ctx, ok := r.Grab(h)
		if !ok {
			t.Fatalf("expected handle %v to remain resolvable after growth", h)
		}
		r.Release(ctx)
	}
}
