package events

import (
	"sync"
	"sync/atomic"

	"procview/internal/registry"
)

// Subscription is a provider's endpoint on a Channel.
type Subscription struct {
	name   string
	ch     *Channel
	active atomic.Bool
	// mu orders Unregister after any Publish already past the active check.
	mu sync.RWMutex
}

// Subscribe registers a named provider endpoint on c.
func (c *Channel) Subscribe(name string) *Subscription {
	s := &Subscription{name: name, ch: c}
	s.active.Store(true)
	return s
}

// Name returns the provider name the subscription was registered with.
func (s *Subscription) Name() string { return s.name }

// Active reports whether the subscription still delivers events.
func (s *Subscription) Active() bool { return s.active.Load() }

// Unregister stops deliveries. Once it returns no further event from this
// subscription reaches the channel; events already queued stay queued.
func (s *Subscription) Unregister() {
	s.mu.Lock()
	s.active.Store(false)
	s.mu.Unlock()
}

// Publish hands ev to the channel. After Unregister the event is dropped and
// its reference released here, so the caller's accounting stays the same
// either way. It reports whether the event was queued.
func (s *Subscription) Publish(ev Event) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.active.Load() {
		ev.Release()
		return false
	}
	ev.Source = s.name
	s.ch.Publish(ev)
	return true
}

// Added publishes an Added event with a fresh reference to ref.
func (s *Subscription) Added(ref registry.Ref, initial bool) bool {
	return s.Publish(Event{Type: Added, Handle: ref.Acquire(), Initial: initial})
}

// Modified publishes a Modified event with a fresh reference to ref.
func (s *Subscription) Modified(ref registry.Ref, delta *ServiceDelta) bool {
	return s.Publish(Event{Type: Modified, Handle: ref.Acquire(), Delta: delta})
}

// Removed publishes a Removed event. The reference is transferred, not
// acquired: callers pass the creation reference they got from the registry.
func (s *Subscription) Removed(ref registry.Ref) bool {
	return s.Publish(Event{Type: Removed, Handle: ref})
}

// BatchUpdated publishes the ServicesBatchUpdated marker.
func (s *Subscription) BatchUpdated() bool {
	return s.Publish(Event{Type: ServicesBatchUpdated})
}
