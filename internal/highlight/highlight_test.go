package highlight

import (
	"testing"
	"time"

	"procview/internal/host"
)

type fakeSurface struct {
	dead     bool
	depth    int
	brackets int
	log      []string
}

func (s *fakeSurface) BeginUpdate() {
	s.depth++
	s.brackets++
}

func (s *fakeSurface) EndUpdate() { s.depth-- }

func (s *fakeSurface) Live() bool { return !s.dead }

func (s *fakeSurface) record(what string) Action {
	return func() {
		if s.depth == 0 {
			panic("action ran outside an update bracket: " + what)
		}
		s.log = append(s.log, what)
	}
}

type rig struct {
	loop    *host.Loop
	clock   *host.FakeClock
	surface *fakeSurface
	ctx     *Context
	batches map[Stage]int
	dropped int
}

func newRig(t *testing.T, d time.Duration, enabled bool) *rig {
	t.Helper()
	r := &rig{
		loop:    host.NewLoop(nil),
		clock:   host.NewFakeClock(time.Unix(1000, 0)),
		surface: &fakeSurface{},
		batches: make(map[Stage]int),
	}
	r.ctx = New(Options{
		Duration:  d,
		Enabled:   enabled,
		Poster:    r.loop,
		Clock:     r.clock,
		Surface:   r.surface,
		OnBatch:   func(s Stage, n int) { r.batches[s] += n },
		OnDiscard: func(n int) { r.dropped += n },
	})
	return r
}

// advance moves the clock and runs whatever the timers posted.
func (r *rig) advance(d time.Duration) {
	r.clock.Advance(d)
	r.loop.RunPending()
}

func TestRequestAppliesImmediatelyThenSettlesAfterDuration(t *testing.T) {
	r := newRig(t, time.Second, true)
	s := r.surface

	r.ctx.Request(s.record("apply"), s.record("settle"))
	if len(s.log) != 0 {
		t.Fatalf("apply ran on the requester's stack: %v", s.log)
	}
	r.loop.RunPending()
	if len(s.log) != 1 || s.log[0] != "apply" {
		t.Fatalf("expected apply after one tick, got %v", s.log)
	}

	r.advance(999 * time.Millisecond)
	if len(s.log) != 1 {
		t.Fatalf("settled before the dwell elapsed: %v", s.log)
	}
	r.advance(time.Millisecond)
	if len(s.log) != 2 || s.log[1] != "settle" {
		t.Fatalf("expected settle at the deadline, got %v", s.log)
	}
	if r.batches[StageImmediate] != 1 || r.batches[StageDelayed] != 1 {
		t.Fatalf("unexpected batch counts %v", r.batches)
	}
}

func TestTimerCallbackDoesNotMutateDirectly(t *testing.T) {
	r := newRig(t, time.Second, true)
	s := r.surface
	r.ctx.Request(nil, s.record("settle"))
	r.loop.RunPending()

	r.clock.Advance(time.Second)
	if len(s.log) != 0 {
		t.Fatal("timer callback mutated the surface directly")
	}
	if r.loop.Pending() != 1 {
		t.Fatalf("expected the batch to be posted, pending=%d", r.loop.Pending())
	}
	r.loop.RunPending()
	if len(s.log) != 1 {
		t.Fatalf("posted batch did not run: %v", s.log)
	}
}

func TestSingleTimerInFlightAndBatchedApply(t *testing.T) {
	r := newRig(t, time.Second, true)
	s := r.surface
	for _, name := range []string{"a", "b", "c"} {
		r.ctx.Request(s.record("apply-"+name), s.record("settle-"+name))
	}
	r.loop.RunPending()
	if s.brackets != 1 {
		t.Fatalf("expected one bracket for the immediate batch, got %d", s.brackets)
	}
	if r.clock.Waiting() != 1 {
		t.Fatalf("expected one timer in flight, got %d", r.clock.Waiting())
	}

	r.advance(400 * time.Millisecond)
	r.ctx.Request(s.record("apply-d"), s.record("settle-d"))
	r.loop.RunPending()
	if r.clock.Waiting() != 1 {
		t.Fatalf("second request stacked a timer: %d waiting", r.clock.Waiting())
	}

	r.advance(600 * time.Millisecond)
	want := []string{"apply-a", "apply-b", "apply-c", "apply-d", "settle-a", "settle-b", "settle-c", "settle-d"}
	if len(s.log) != len(want) {
		t.Fatalf("expected %v, got %v", want, s.log)
	}
	for i := range want {
		if s.log[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, s.log)
		}
	}
	if s.brackets != 3 {
		t.Fatalf("expected the delayed queue to run in one bracket, got %d brackets", s.brackets)
	}
	if r.clock.Waiting() != 0 {
		t.Fatalf("timer left armed with empty queue: %d", r.clock.Waiting())
	}
}

func TestSettleQueuedJustBeforeFireJoinsThatBatch(t *testing.T) {
	r := newRig(t, time.Second, true)
	s := r.surface
	r.ctx.Request(nil, s.record("settle-a"))
	r.loop.RunPending()

	r.advance(900 * time.Millisecond)
	r.ctx.Request(nil, s.record("settle-b"))
	r.loop.RunPending()

	r.advance(100 * time.Millisecond)
	if len(s.log) != 2 || s.log[0] != "settle-a" || s.log[1] != "settle-b" {
		t.Fatalf("expected a and b in the first timer batch, got %v", s.log)
	}
	if r.batches[StageDelayed] != 2 {
		t.Fatalf("unexpected delayed count %v", r.batches)
	}
}

func TestRequestsDuringDrainWaitForNextCycle(t *testing.T) {
	r := newRig(t, time.Second, true)
	s := r.surface
	var chained bool
	r.ctx.Request(nil, func() {
		s.log = append(s.log, "first")
		r.ctx.Request(nil, s.record("chained"))
		_, delayed := r.ctx.Queued()
		chained = delayed == 1
	})
	r.loop.RunPending()
	r.advance(time.Second)

	if !chained {
		t.Fatal("request during drain was not captured in the pending buffer")
	}
	if len(s.log) != 1 {
		t.Fatalf("pending action ran in the same batch: %v", s.log)
	}
	r.advance(time.Second)
	if len(s.log) != 2 || s.log[1] != "chained" {
		t.Fatalf("pending action lost: %v", s.log)
	}
}

func TestDisabledAppliesFinalStateImmediately(t *testing.T) {
	r := newRig(t, time.Second, false)
	var applied, settled bool
	r.ctx.Request(func() { applied = true }, func() { settled = true })
	if !settled || applied {
		t.Fatalf("expected only settle to run, applied=%v settled=%v", applied, settled)
	}
	if imm, del := r.ctx.Queued(); imm != 0 || del != 0 {
		t.Fatalf("disabled requests must bypass the queues: %d/%d", imm, del)
	}
	if r.loop.Pending() != 0 {
		t.Fatal("disabled request posted work")
	}
}

func TestConfigureAffectsOnlyFutureTransitions(t *testing.T) {
	r := newRig(t, time.Second, true)
	s := r.surface
	r.ctx.Request(nil, s.record("old"))
	r.loop.RunPending()

	r.ctx.Configure(3*time.Second, true)
	r.advance(time.Second)
	if len(s.log) != 1 || s.log[0] != "old" {
		t.Fatalf("expected the armed timer to keep its duration, got %v", s.log)
	}

	r.ctx.Request(nil, s.record("new"))
	r.loop.RunPending()
	r.advance(2 * time.Second)
	if len(s.log) != 1 {
		t.Fatalf("new transition used the old duration: %v", s.log)
	}
	r.advance(time.Second)
	if len(s.log) != 2 {
		t.Fatalf("expected new transition to settle after 3s, got %v", s.log)
	}

	r.ctx.Configure(0, false)
	if d, on := r.ctx.Settings(); d != 3*time.Second || on {
		t.Fatalf("unexpected settings %v %v", d, on)
	}
}

func TestBatchDiscardedWhenSurfaceGone(t *testing.T) {
	r := newRig(t, time.Second, true)
	s := r.surface
	r.ctx.Request(s.record("apply"), s.record("settle"))
	r.loop.RunPending()

	s.dead = true
	r.advance(time.Second)
	if len(s.log) != 1 {
		t.Fatalf("settle ran on a dead surface: %v", s.log)
	}
	if r.dropped != 1 {
		t.Fatalf("expected 1 discarded action, got %d", r.dropped)
	}
	if r.ctx.Request(nil, s.record("late")) {
		t.Fatal("request accepted after teardown")
	}
}

func TestCloseStopsTimer(t *testing.T) {
	r := newRig(t, time.Second, true)
	r.ctx.Request(nil, func() { t.Fatal("settle ran after close") })
	r.loop.RunPending()
	r.ctx.Close()
	if r.clock.Waiting() != 0 {
		t.Fatal("timer still armed after close")
	}
	r.advance(2 * time.Second)
	if r.dropped != 1 {
		t.Fatalf("expected the queued action to be reported dropped, got %d", r.dropped)
	}
}

func TestPollRunsDueActionsWithoutTimer(t *testing.T) {
	r := newRig(t, time.Second, true)
	s := r.surface
	r.ctx.Request(nil, s.record("settle"))
	r.loop.RunPending()

	r.ctx.Poll()
	if len(s.log) != 0 {
		t.Fatal("poll ran an action before its deadline")
	}
	r.clock.Advance(time.Second)
	r.ctx.Poll()
	if len(s.log) != 1 {
		t.Fatalf("poll did not run the due action: %v", s.log)
	}
	r.loop.RunPending()
	if len(s.log) != 1 {
		t.Fatalf("timer replayed a polled action: %v", s.log)
	}
}
