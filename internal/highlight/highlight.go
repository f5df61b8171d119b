// Package highlight schedules transient visual states for rows of a
// displayed collection.
//
// Every transition is a pair of actions: apply (paint the transient style)
// and settle (move to the final state). Apply actions go through the
// immediate queue and run in one bracket on the next UI tick, which then
// arms a one-shot timer of the configured duration. When it fires, every
// settle action waiting in the delayed queue runs in one bracket, including
// ones queued just before the fire. The timer callback only posts the batch
// back to the UI goroutine. Settle actions requested while that batch runs
// wait for the next timer cycle.
//
// All methods except Configure, Settings and Close must be called on the UI
// goroutine.
package highlight

import (
	"log/slog"
	"sync"
	"time"

	"procview/internal/host"
)

// DefaultDuration is the dwell time used when none is configured.
const DefaultDuration = time.Second

// Action is a deferred UI mutation.
type Action func()

// Surface is the displayed collection the actions mutate.
type Surface interface {
	BeginUpdate()
	EndUpdate()
	// Live reports whether the surface can still be mutated.
	Live() bool
}

// Stage names a batch kind for observers.
type Stage string

const (
	StageImmediate Stage = "immediate"
	StageDelayed   Stage = "delayed"
)

// Options configures a Context.
type Options struct {
	Duration time.Duration
	Enabled  bool
	Poster   host.Poster
	Clock    host.Clock
	Surface  Surface
	Logger   *slog.Logger

	// OnBatch observes every applied batch; OnDiscard every dropped one.
	OnBatch   func(stage Stage, n int)
	OnDiscard func(n int)
}

// Context is the highlight state for one displayed collection.
type Context struct {
	poster  host.Poster
	clock   host.Clock
	surface Surface
	log     *slog.Logger

	onBatch   func(Stage, int)
	onDiscard func(int)

	mu       sync.Mutex
	duration time.Duration
	enabled  bool

	immediate []Action
	delayed   []Action
	pending   []Action

	immediatePosted bool
	draining        bool

	timer    host.Timer
	timerSeq uint64
	firesAt  time.Time

	closed bool
}

// New returns a Context. Poster and Surface are required.
func New(opts Options) *Context {
	if opts.Duration <= 0 {
		opts.Duration = DefaultDuration
	}
	if opts.Clock == nil {
		opts.Clock = host.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Context{
		poster:    opts.Poster,
		clock:     opts.Clock,
		surface:   opts.Surface,
		log:       opts.Logger,
		onBatch:   opts.OnBatch,
		onDiscard: opts.OnDiscard,
		duration:  opts.Duration,
		enabled:   opts.Enabled,
	}
}

// Configure changes the dwell time and the enable flag. Transitions already
// queued keep the deadline they were given.
func (c *Context) Configure(duration time.Duration, enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if duration > 0 {
		c.duration = duration
	}
	c.enabled = enabled
}

// Settings returns the current dwell time and enable flag.
func (c *Context) Settings() (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.duration, c.enabled
}

// Request schedules a transition. With highlighting disabled settle runs
// right away and apply is skipped. It reports whether the transition was
// deferred.
func (c *Context) Request(apply, settle Action) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	if !c.enabled {
		c.mu.Unlock()
		if settle != nil {
			settle()
		}
		return false
	}

	if apply != nil {
		c.immediate = append(c.immediate, apply)
	}
	if settle != nil {
		if c.draining {
			c.pending = append(c.pending, settle)
		} else {
			c.delayed = append(c.delayed, settle)
		}
	}
	post := !c.immediatePosted
	c.immediatePosted = true
	c.mu.Unlock()

	if post {
		c.poster.Post(c.flushImmediate)
	}
	return true
}

// Queued returns the number of apply and settle actions waiting.
func (c *Context) Queued() (immediate, delayed int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.immediate), len(c.delayed) + len(c.pending)
}

// Poll runs the delayed batch now if the timer in flight is already due but
// its posted batch has not run yet. Hosts call it on periodic refresh ticks.
func (c *Context) Poll() {
	c.runDelayed(false, 0)
}

// Close tears the context down. Queued actions are dropped and a timer in
// flight finds nothing to do.
func (c *Context) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	dropped := len(c.immediate) + len(c.delayed) + len(c.pending)
	c.immediate, c.delayed, c.pending = nil, nil, nil
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()

	if dropped > 0 {
		c.discarded(dropped)
	}
}

func (c *Context) flushImmediate() {
	c.mu.Lock()
	c.immediatePosted = false
	batch := c.immediate
	c.immediate = nil
	closed := c.closed
	c.mu.Unlock()

	if closed {
		return
	}
	if !c.surface.Live() {
		c.teardown(len(batch))
		return
	}
	if len(batch) > 0 {
		c.surface.BeginUpdate()
		for _, apply := range batch {
			apply()
		}
		c.surface.EndUpdate()
		c.batch(StageImmediate, len(batch))
	}

	c.mu.Lock()
	c.armLocked()
	c.mu.Unlock()
}

func (c *Context) onTimer(seq uint64) {
	c.poster.Post(func() { c.runDelayed(true, seq) })
}

func (c *Context) runDelayed(fromTimer bool, seq uint64) {
	c.mu.Lock()
	if fromTimer {
		if seq != c.timerSeq {
			c.mu.Unlock()
			return
		}
		c.timer = nil
	} else {
		if c.timer == nil || c.clock.Now().Before(c.firesAt) {
			c.mu.Unlock()
			return
		}
		// The posted fire becomes stale.
		c.timer.Stop()
		c.timer = nil
		c.timerSeq++
	}
	if c.closed || c.draining {
		c.mu.Unlock()
		return
	}
	applies := c.immediate
	c.immediate = nil
	queue := c.delayed
	c.delayed = nil
	c.draining = true
	c.mu.Unlock()

	if !c.surface.Live() {
		c.teardown(len(applies) + len(queue))
		return
	}

	if len(applies)+len(queue) > 0 {
		c.surface.BeginUpdate()
		for _, apply := range applies {
			apply()
		}
		for _, settle := range queue {
			settle()
		}
		c.surface.EndUpdate()
		if len(applies) > 0 {
			c.batch(StageImmediate, len(applies))
		}
		if len(queue) > 0 {
			c.batch(StageDelayed, len(queue))
		}
	}

	c.mu.Lock()
	c.draining = false
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.delayed = append(c.delayed, c.pending...)
	c.pending = nil
	c.armLocked()
	c.mu.Unlock()
}

// armLocked starts a timer of the current duration unless one is already in
// flight or nothing waits for it.
func (c *Context) armLocked() {
	if c.closed || c.timer != nil || len(c.delayed) == 0 {
		return
	}
	c.timerSeq++
	seq := c.timerSeq
	c.firesAt = c.clock.Now().Add(c.duration)
	c.timer = c.clock.AfterFunc(c.duration, func() { c.onTimer(seq) })
}

func (c *Context) teardown(n int) {
	c.log.Debug("highlight surface gone, discarding batch", "actions", n)
	c.Close()
	if n > 0 {
		c.discarded(n)
	}
}

func (c *Context) batch(stage Stage, n int) {
	if c.onBatch != nil {
		c.onBatch(stage, n)
	}
}

func (c *Context) discarded(n int) {
	if c.onDiscard != nil {
		c.onDiscard(n)
	}
}
