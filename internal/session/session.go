// Package session owns the event channel, the displayed collections and
// their highlight contexts for one running UI.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"procview/internal/events"
	"procview/internal/highlight"
	"procview/internal/host"
	"procview/internal/metrics"
	"procview/internal/presenter"
	"procview/internal/registry"
)

// Provider is a background enumerator that publishes through a subscription
// until ctx is done.
type Provider interface {
	Name() string
	Run(ctx context.Context, sub *events.Subscription) error
}

// Options configures a Session.
type Options struct {
	Poster host.Poster
	Clock  host.Clock
	Logger *slog.Logger

	// Collections maps entity kinds to the controls that display them.
	Collections map[registry.Kind]presenter.Collection

	HighlightDuration time.Duration
	HighlightEnabled  bool
}

// Session is the explicit owner of everything that used to be process-wide:
// the channel, the synchronizers and the provider registrations.
type Session struct {
	log    *slog.Logger
	poster host.Poster
	ch     *events.Channel

	syncs map[registry.Kind]*presenter.Synchronizer

	mu        sync.Mutex
	subs      []*events.Subscription
	callbacks []func([]events.Event)
	closed    bool
}

// New builds a session. Poster is required; every collection gets its own
// highlight context.
func New(opts Options) (*Session, error) {
	if opts.Poster == nil {
		return nil, errors.New("session requires a poster")
	}
	if len(opts.Collections) == 0 {
		return nil, errors.New("session requires at least one collection")
	}
	if opts.Clock == nil {
		opts.Clock = host.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Session{
		log:    opts.Logger,
		poster: opts.Poster,
		syncs:  make(map[registry.Kind]*presenter.Synchronizer, len(opts.Collections)),
	}
	s.ch = events.NewChannel(func() { s.poster.Post(s.Pump) })

	for kind, coll := range opts.Collections {
		name := kind.Plural()
		hl := highlight.New(highlight.Options{
			Duration:  opts.HighlightDuration,
			Enabled:   opts.HighlightEnabled,
			Poster:    opts.Poster,
			Clock:     opts.Clock,
			Surface:   coll,
			Logger:    opts.Logger,
			OnBatch:   func(stage highlight.Stage, n int) { metrics.ObserveHighlightBatch(name, string(stage), n) },
			OnDiscard: func(n int) { metrics.AddHighlightDiscarded(name, n) },
		})
		sy := presenter.NewSynchronizer(name, coll, hl, opts.Logger)
		sy.OnAnomaly = func(t events.Type) { metrics.IncOrderingAnomaly(name, t.String()) }
		s.syncs[kind] = sy
	}
	return s, nil
}

// RegisterProvider returns a channel endpoint for a provider.
func (s *Session) RegisterProvider(name string) *events.Subscription {
	sub := s.ch.Subscribe(name)
	s.mu.Lock()
	s.subs = append(s.subs, sub)
	s.mu.Unlock()
	return sub
}

// OnEvents registers a callback invoked on the UI goroutine once per drain
// cycle with the batch that was just applied.
func (s *Session) OnEvents(cb func([]events.Event)) {
	s.mu.Lock()
	s.callbacks = append(s.callbacks, cb)
	s.mu.Unlock()
}

// Configure changes highlighting for every collection.
func (s *Session) Configure(duration time.Duration, enabled bool) {
	for _, sy := range s.syncs {
		sy.Highlight().Configure(duration, enabled)
	}
	s.log.Info("highlight configured", "duration", duration, "enabled", enabled)
}

// Synchronizer returns the synchronizer for kind.
func (s *Session) Synchronizer(kind registry.Kind) (*presenter.Synchronizer, bool) {
	sy, ok := s.syncs[kind]
	return sy, ok
}

// Pump drains the channel and applies the batch. It must run on the UI
// goroutine; the channel's wake hook posts it there.
func (s *Session) Pump() {
	batch := s.ch.Drain()
	if len(batch) == 0 {
		return
	}
	metrics.ObserveDrain(len(batch))

	s.mu.Lock()
	closed := s.closed
	callbacks := append(([]func([]events.Event))(nil), s.callbacks...)
	s.mu.Unlock()

	if !closed {
		// Split by kind while keeping per-key order intact.
		byKind := make(map[registry.Kind][]events.Event, len(s.syncs))
		for _, ev := range batch {
			byKind[ev.Kind()] = append(byKind[ev.Kind()], ev)
		}
		for kind, evs := range byKind {
			sy, ok := s.syncs[kind]
			if !ok {
				s.log.Debug("no collection for events", "kind", kind.String(), "count", len(evs))
				continue
			}
			sy.Apply(evs)
			metrics.SetDisplayedItems(sy.Name(), sy.Len())
		}
		for _, cb := range callbacks {
			cb(batch)
		}
	}

	for _, ev := range batch {
		ev.Release()
	}
}

// Run starts every provider on its own goroutine and blocks until ctx is
// done or one of them fails. Subscriptions are unregistered on return.
func (s *Session) Run(ctx context.Context, providers ...Provider) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, p := range providers {
		p := p
		sub := s.RegisterProvider(p.Name())
		g.Go(func() error {
			defer sub.Unregister()
			s.log.Debug("provider started", "provider", p.Name())
			err := p.Run(ctx, sub)
			if err != nil && !errors.Is(err, context.Canceled) {
				s.log.Error("provider stopped", "provider", p.Name(), "err", err)
				return err
			}
			s.log.Debug("provider stopped", "provider", p.Name())
			return nil
		})
	}
	return g.Wait()
}

// Close unregisters every provider, releases queued events and tears down
// the collections. It must run on the UI goroutine after Run returned.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Unregister()
	}
	for _, ev := range s.ch.Drain() {
		ev.Release()
	}
	for _, sy := range s.syncs {
		sy.Close()
	}
	s.log.Info("session closed")
}

// Stats reports channel counters.
func (s *Session) Stats() (published, drained uint64, pending int) {
	published, drained = s.ch.Stats()
	return published, drained, s.ch.Pending()
}
