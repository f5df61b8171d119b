// Package provider enumerates processes and services on background
// goroutines and publishes the differences between cycles as events.
package provider

import (
	"errors"
	"fmt"
	"log/slog"

	"procview/internal/events"
	"procview/internal/metrics"
	"procview/internal/registry"
)

// Stats summarizes one applied cycle.
type Stats struct {
	Generation uint64
	Added      int
	Modified   int
	Removed    int
	Replaced   int
	Live       int
}

func (s Stats) Changed() bool {
	return s.Added+s.Modified+s.Removed+s.Replaced > 0
}

// Tracker turns full cycles of snapshots into Added, Modified and Removed
// events against its own registry. It is owned by one provider goroutine.
type Tracker struct {
	name string
	reg  *registry.Registry
	log  *slog.Logger

	// OnCycle observes every applied cycle, after its events were published.
	OnCycle func(Stats)
}

// NewTracker returns a tracker with an empty registry of the given kind.
func NewTracker(name string, kind registry.Kind, log *slog.Logger) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	return &Tracker{
		name: name,
		reg:  registry.New(kind),
		log:  log.With("provider", name),
	}
}

func (t *Tracker) Name() string { return t.name }

// Registry exposes the tracker's catalog for read-only queries.
func (t *Tracker) Registry() *registry.Registry { return t.reg }

// Apply records snaps as one cycle and publishes the difference to sub.
// The first cycle's additions are flagged initial. Snapshots that fail
// validation are skipped and reported together in the returned error.
func (t *Tracker) Apply(sub *events.Subscription, snaps []registry.Snapshot) (Stats, error) {
	kind := t.reg.Kind()
	gen := t.reg.BeginCycle()
	initial := gen == 1
	st := Stats{Generation: gen}

	var errs []error
	for _, snap := range snaps {
		if snap.Kind == 0 {
			snap.Kind = kind
		}
		ch, err := t.reg.Upsert(snap)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", snap.Key, err))
			continue
		}
		switch ch.Op {
		case registry.OpAdded:
			st.Added++
			t.publish(events.Added, sub.Added(ch.Handle, initial))
		case registry.OpModified:
			st.Modified++
			var delta *events.ServiceDelta
			if kind == registry.KindService {
				delta = &events.ServiceDelta{Old: ch.Old, New: ch.New}
			}
			t.publish(events.Modified, sub.Modified(ch.Handle, delta))
		case registry.OpReplaced:
			st.Replaced++
			t.publish(events.Removed, sub.Removed(ch.Replaced))
			t.publish(events.Added, sub.Added(ch.Handle, false))
		}
	}

	for _, ref := range t.reg.Sweep() {
		st.Removed++
		t.publish(events.Removed, sub.Removed(ref))
	}
	if kind == registry.KindService {
		t.publish(events.ServicesBatchUpdated, sub.BatchUpdated())
	}
	st.Live = t.reg.Len()

	if st.Changed() {
		t.log.Debug("cycle applied", "generation", gen, "added", st.Added, "modified", st.Modified,
			"removed", st.Removed, "replaced", st.Replaced, "live", st.Live)
	}
	if t.OnCycle != nil {
		t.OnCycle(st)
	}
	return st, errors.Join(errs...)
}

func (t *Tracker) publish(typ events.Type, queued bool) {
	if queued {
		metrics.IncPublished(t.name, typ.String())
	}
}

// Close releases the registry's creation references.
func (t *Tracker) Close() {
	t.reg.Close()
}
