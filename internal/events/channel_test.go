package events

import (
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"procview/internal/handle"
	"procview/internal/registry"
)

func ref(key string) registry.Ref {
	r := registry.New(registry.KindProcess)
	r.BeginCycle()
	ch, err := r.Upsert(registry.Snapshot{Key: key, Kind: registry.KindProcess})
	if err != nil {
		panic(err)
	}
	return ch.Handle
}

func TestChannelPreservesOrder(t *testing.T) {
	c := NewChannel(nil)
	sub := c.Subscribe("test")
	p := ref("1")
	sub.Added(p, false)
	sub.Modified(p, nil)
	sub.Removed(p)

	batch := c.Drain()
	want := []Type{Added, Modified, Removed}
	if len(batch) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(batch))
	}
	for i, ev := range batch {
		if ev.Type != want[i] {
			t.Fatalf("event %d: expected %s, got %s", i, want[i], ev.Type)
		}
		if ev.Source != "test" || ev.Key() != "1" {
			t.Fatalf("event %d: unexpected %+v", i, ev)
		}
	}
	if got := p.Refs(); got != 3 {
		t.Fatalf("expected 3 references in flight, got %d", got)
	}
	for _, ev := range batch {
		ev.Release()
	}
	if !p.Finalized() {
		t.Fatal("expected entity finalized after every event released")
	}
	if c.Drain() != nil {
		t.Fatal("expected empty drain")
	}
}

func TestChannelWakesOncePerBatch(t *testing.T) {
	var wakes int
	c := NewChannel(func() { wakes++ })
	sub := c.Subscribe("svc")

	sub.BatchUpdated()
	sub.BatchUpdated()
	if wakes != 1 {
		t.Fatalf("expected one wake for the first batch, got %d", wakes)
	}
	c.Drain()
	sub.BatchUpdated()
	if wakes != 2 {
		t.Fatalf("expected a new wake after drain, got %d", wakes)
	}
}

func TestSubscriptionUnregisterKeepsQueuedEvents(t *testing.T) {
	c := NewChannel(nil)
	sub := c.Subscribe("proc")
	p := ref("9")
	sub.Added(p, false)
	sub.Unregister()

	if sub.Modified(p, nil) {
		t.Fatal("expected publish after unregister to be rejected")
	}
	if got := p.Refs(); got != 2 {
		t.Fatalf("dropped event leaked its reference: refs=%d", got)
	}
	batch := c.Drain()
	if len(batch) != 1 || batch[0].Type != Added {
		t.Fatalf("queued event lost: %+v", batch)
	}
	batch[0].Release()
}

func TestServiceDeltaChanged(t *testing.T) {
	d := &ServiceDelta{
		Old: registry.Snapshot{Key: "a.service", PID: 1, State: "running"},
		New: registry.Snapshot{Key: "a.service", PID: 2, State: "running"},
	}
	got := d.Changed()
	if len(got) != 1 || got[0] != "pid" {
		t.Fatalf("unexpected changed fields %v", got)
	}
	var nilDelta *ServiceDelta
	if nilDelta.Changed() != nil {
		t.Fatal("nil delta should report no changes")
	}
}

func TestChannelConcurrentProducers(t *testing.T) {
	var wakes atomic.Int32
	c := NewChannel(func() { wakes.Add(1) })

	const producers = 100
	liveBefore := handle.Live()
	var wg sync.WaitGroup
	wg.Add(producers)
	for i := 0; i < producers; i++ {
		go func(i int) {
			defer wg.Done()
			sub := c.Subscribe("p" + strconv.Itoa(i))
			p := ref(strconv.Itoa(i))
			sub.Added(p, false)
			p.Release()
		}(i)
	}

	seen := make(map[string]int)
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	collect := func() {
		for _, ev := range c.Drain() {
			seen[ev.Key()]++
			ev.Release()
		}
	}
	for {
		select {
		case <-done:
			collect()
			if len(seen) != producers {
				t.Fatalf("expected %d keys, got %d", producers, len(seen))
			}
			for k, n := range seen {
				if n != 1 {
					t.Fatalf("key %s delivered %d times", k, n)
				}
			}
			if wakes.Load() < 1 {
				t.Fatal("consumer never woken")
			}
			if handle.Live() != liveBefore {
				t.Fatalf("leaked handles: before=%d after=%d", liveBefore, handle.Live())
			}
			return
		default:
			collect()
		}
	}
}

func TestNoDeliveryAfterUnregisterReturns(t *testing.T) {
	c := NewChannel(nil)
	sub := c.Subscribe("racer")
	p := ref("1")

	var accepted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sub.Modified(p, nil) {
				accepted.Add(1)
			}
		}()
	}
	for c.Pending() < 100 {
	}
	sub.Unregister()
	queued := c.Pending()
	wg.Wait()

	if got := c.Pending(); got != queued {
		t.Fatalf("events landed after unregister: %d then %d", queued, got)
	}
	batch := c.Drain()
	if int64(len(batch)) != accepted.Load() {
		t.Fatalf("accepted %d publishes but drained %d", accepted.Load(), len(batch))
	}
	for _, ev := range batch {
		ev.Release()
	}
	if p.Refs() != 1 {
		t.Fatalf("references leaked: %d", p.Refs())
	}
}
