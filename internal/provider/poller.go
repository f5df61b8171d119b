package provider

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"procview/internal/events"
	"procview/internal/metrics"
	"procview/internal/registry"
)

// Source produces one complete cycle of snapshots per call.
type Source interface {
	Kind() registry.Kind
	Scan(ctx context.Context) ([]registry.Snapshot, error)
}

// Poller runs a Source on an interval and feeds a Tracker.
type Poller struct {
	src      Source
	interval time.Duration
	tracker  *Tracker
	log      *slog.Logger
}

// NewPoller returns a poller publishing under name.
func NewPoller(name string, src Source, interval time.Duration, log *slog.Logger) *Poller {
	if log == nil {
		log = slog.Default()
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Poller{
		src:      src,
		interval: interval,
		tracker:  NewTracker(name, src.Kind(), log),
		log:      log.With("provider", name),
	}
}

func (p *Poller) Name() string { return p.tracker.Name() }

// Tracker returns the poller's tracker, for registries and cycle hooks.
func (p *Poller) Tracker() *Tracker { return p.tracker }

// Cycle scans once and applies the result.
func (p *Poller) Cycle(ctx context.Context, sub *events.Subscription) (Stats, error) {
	start := time.Now()
	snaps, err := p.src.Scan(ctx)
	if err != nil {
		metrics.IncProviderError(p.Name())
		return Stats{}, err
	}
	st, err := p.tracker.Apply(sub, snaps)
	metrics.ObserveProviderCycle(p.Name(), time.Since(start).Seconds(), st.Live)
	return st, err
}

// Run cycles until ctx is done. Scan failures are logged and retried on the
// next tick; the registry is released on return.
func (p *Poller) Run(ctx context.Context, sub *events.Subscription) error {
	defer p.tracker.Close()

	t := time.NewTicker(p.interval)
	defer t.Stop()
	for {
		if _, err := p.Cycle(ctx, sub); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, ErrUnavailable) {
				p.log.Warn("source unavailable, provider stopped", "err", err)
				return nil
			}
			p.log.Warn("provider cycle failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}
