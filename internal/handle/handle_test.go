//go:build !procview_debug

package handle

import (
	"sync"
	"sync/atomic"
	"testing"

	"pgregory.net/rapid"
)

func TestHandleFinalizesOnLastRelease(t *testing.T) {
	var calls int
	h := New("svc", func(v string) {
		if v != "svc" {
			t.Fatalf("unexpected value %q", v)
		}
		calls++
	})

	h.Acquire()
	h.Release()
	if calls != 0 {
		t.Fatalf("finalizer ran with references outstanding")
	}
	h.Release()
	if calls != 1 {
		t.Fatalf("expected finalizer once, got %d", calls)
	}
	if !h.Finalized() {
		t.Fatal("expected handle to report finalized")
	}
}

func TestHandleReleaseSaturates(t *testing.T) {
	var calls int
	var misuses []string
	OnMisuse = func(op string) { misuses = append(misuses, op) }
	t.Cleanup(func() { OnMisuse = nil })

	h := New(1, func(int) { calls++ })
	h.Release()
	h.Release()
	h.Release()

	if calls != 1 {
		t.Fatalf("expected finalizer once, got %d", calls)
	}
	if h.Refs() != 0 {
		t.Fatalf("expected refs to stay at 0, got %d", h.Refs())
	}
	if len(misuses) != 2 {
		t.Fatalf("expected 2 misuse reports, got %v", misuses)
	}
}

func TestHandleAcquireAfterFinalRelease(t *testing.T) {
	var misuses int
	OnMisuse = func(string) { misuses++ }
	t.Cleanup(func() { OnMisuse = nil })

	h := New(struct{}{}, nil)
	h.Release()
	h.Acquire()
	if h.Refs() != 0 {
		t.Fatalf("acquire resurrected a released handle: refs=%d", h.Refs())
	}
	if misuses != 1 {
		t.Fatalf("expected one misuse report, got %d", misuses)
	}
}

func TestHandleConcurrentAcquireRelease(t *testing.T) {
	var finalized atomic.Int32
	h := New(42, func(int) { finalized.Add(1) })

	const workers = 64
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		h.Acquire()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				h.Acquire()
				h.Release()
			}
			h.Release()
		}()
	}
	wg.Wait()

	if finalized.Load() != 0 {
		t.Fatal("finalizer ran while creation reference is held")
	}
	h.Release()
	if finalized.Load() != 1 {
		t.Fatalf("expected one finalization, got %d", finalized.Load())
	}
}

func TestHandleBalanceProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var finalized int
		h := New("p", func(string) { finalized++ })
		extra := rapid.IntRange(0, 50).Draw(t, "extra")
		for i := 0; i < extra; i++ {
			h.Acquire()
		}
		for i := 0; i < extra; i++ {
			h.Release()
			if finalized != 0 {
				t.Fatalf("finalized after %d of %d releases", i+1, extra)
			}
		}
		h.Release()
		if finalized != 1 || h.Refs() != 0 {
			t.Fatalf("finalized=%d refs=%d", finalized, h.Refs())
		}
	})
}
