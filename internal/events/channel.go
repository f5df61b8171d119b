package events

import (
	"sync"
	"sync/atomic"
)

// Channel is an unbounded multi-producer, single-consumer event queue.
// Publish never blocks; the wake hook runs once per batch, when the first
// event lands in an empty queue, and must itself be non-blocking.
type Channel struct {
	mu       sync.Mutex
	queue    []Event
	notified bool
	wake     func()

	published atomic.Uint64
	drained   atomic.Uint64
}

// NewChannel returns a channel that calls wake whenever a new batch starts.
func NewChannel(wake func()) *Channel {
	return &Channel{wake: wake}
}

// Publish appends ev. The caller's reference in ev.Handle moves into the queue.
func (c *Channel) Publish(ev Event) {
	c.mu.Lock()
	c.queue = append(c.queue, ev)
	notify := !c.notified
	c.notified = true
	c.mu.Unlock()

	c.published.Add(1)
	if notify && c.wake != nil {
		c.wake()
	}
}

// Drain returns everything queued so far and leaves the channel empty. Only
// the consumer may call it. A nil result means nothing was pending.
func (c *Channel) Drain() []Event {
	c.mu.Lock()
	batch := c.queue
	c.queue = nil
	c.notified = false
	c.mu.Unlock()

	c.drained.Add(uint64(len(batch)))
	return batch
}

// Pending returns the number of queued events.
func (c *Channel) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Stats reports lifetime publish and drain counts.
func (c *Channel) Stats() (published, drained uint64) {
	return c.published.Load(), c.drained.Load()
}
