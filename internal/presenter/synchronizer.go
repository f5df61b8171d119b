package presenter

import (
	"log/slog"
	"slices"

	"procview/internal/events"
	"procview/internal/highlight"
	"procview/internal/registry"
)

// Synchronizer keeps one Collection in step with the events of one entity
// kind. It is not safe for concurrent use: every method runs on the UI
// goroutine.
type Synchronizer struct {
	name  string
	coll  Collection
	hl    *highlight.Context
	log   *slog.Logger
	items map[string]*Item

	seq uint64

	// OnAnomaly observes events that referenced an unknown key.
	OnAnomaly func(events.Type)
}

// NewSynchronizer binds a collection to its highlight context.
func NewSynchronizer(name string, coll Collection, hl *highlight.Context, log *slog.Logger) *Synchronizer {
	if log == nil {
		log = slog.Default()
	}
	return &Synchronizer{
		name:  name,
		coll:  coll,
		hl:    hl,
		log:   log.With("collection", name),
		items: make(map[string]*Item),
	}
}

// Name returns the collection name.
func (s *Synchronizer) Name() string { return s.name }

// Highlight returns the highlight context bound to the collection.
func (s *Synchronizer) Highlight() *highlight.Context { return s.hl }

// Apply processes a batch in order inside one update bracket. Event
// references stay owned by the caller.
func (s *Synchronizer) Apply(batch []events.Event) {
	if len(batch) == 0 {
		return
	}
	s.coll.BeginUpdate()
	defer s.coll.EndUpdate()
	for _, ev := range batch {
		switch ev.Type {
		case events.Added:
			s.added(ev)
		case events.Modified:
			s.modified(ev)
		case events.Removed:
			s.removed(ev)
		case events.ServicesBatchUpdated:
			s.coll.Refresh()
			s.hl.Poll()
		}
	}
}

func (s *Synchronizer) added(ev events.Event) {
	key := ev.Key()
	snap := ev.Handle.Value().Snapshot()
	if it, ok := s.items[key]; ok {
		if it.State == PendingRemoval {
			s.revive(it, ev, snap)
			return
		}
		s.log.Debug("duplicate add treated as modify", "key", key)
		if it.ref != ev.Handle {
			// A restarted provider re-announces the key with a new entity.
			s.adopt(it, ev)
			s.refresh(it, snap, true)
			return
		}
		s.modified(ev)
		return
	}

	it := &Item{Key: key, Snapshot: snap, ref: ev.Handle.Acquire()}
	s.items[key] = it
	if ev.Initial {
		it.State = Normal
		s.coll.Insert(it)
		return
	}
	it.State = RecentlyAdded
	s.coll.Insert(it)
	s.transition(it, RecentlyAdded, nil)
}

// revive cancels a pending delete when the key shows up again, and adopts
// the new entity.
func (s *Synchronizer) revive(it *Item, ev events.Event, snap registry.Snapshot) {
	s.adopt(it, ev)
	it.Snapshot = snap
	it.State = RecentlyAdded
	s.coll.Update(it)
	s.transition(it, RecentlyAdded, nil)
}

func (s *Synchronizer) adopt(it *Item, ev events.Event) {
	old := it.ref
	it.ref = ev.Handle.Acquire()
	if old != nil {
		old.Release()
	}
}

func (s *Synchronizer) modified(ev events.Event) {
	key := ev.Key()
	it, ok := s.items[key]
	if !ok {
		s.anomaly(ev)
		return
	}
	if it.ref != ev.Handle {
		// The row shows a different entity under the same key.
		return
	}
	if ev.Delta == nil {
		s.refresh(it, ev.Handle.Value().Snapshot(), false)
		return
	}
	changed := ev.Delta.Changed()
	if len(changed) == 0 {
		return
	}
	s.refresh(it, ev.Delta.New, false)
	// A service that moved to another process gets the Changed flash.
	if slices.Contains(changed, "pid") {
		s.markChanged(it)
	}
}

// refresh copies snap into the row. Older generations are ignored unless
// force is set, and an identical snapshot is a no-op.
func (s *Synchronizer) refresh(it *Item, snap registry.Snapshot, force bool) {
	if !force && snap.Generation < it.Snapshot.Generation {
		return
	}
	if len(snap.Diff(it.Snapshot)) == 0 {
		it.Snapshot.Generation = snap.Generation
		return
	}
	it.Snapshot = snap
	s.coll.Update(it)
}

func (s *Synchronizer) removed(ev events.Event) {
	key := ev.Key()
	it, ok := s.items[key]
	if !ok {
		s.anomaly(ev)
		return
	}
	if it.ref != ev.Handle {
		// Stale removal for an entity already replaced under this key.
		return
	}
	if it.State == PendingRemoval {
		return
	}
	it.State = PendingRemoval
	s.transition(it, PendingRemoval, func() {
		s.coll.Remove(it)
		if s.items[key] == it {
			delete(s.items, key)
		}
		it.release()
	})
}

// Tick gives a Normal row a transient Changed state. It is the generic
// "mark changed" signal for periodic refreshes.
func (s *Synchronizer) Tick(key string) bool {
	it, ok := s.items[key]
	if !ok {
		return false
	}
	s.coll.BeginUpdate()
	defer s.coll.EndUpdate()
	return s.markChanged(it)
}

func (s *Synchronizer) markChanged(it *Item) bool {
	if it.State != Normal {
		return false
	}
	it.State = Changed
	s.transition(it, Changed, nil)
	return true
}

// transition paints state now and schedules the settle step. final runs
// instead of the default settle (back to Normal) when non-nil.
func (s *Synchronizer) transition(it *Item, state VisualState, final func()) {
	s.seq++
	seq := s.seq
	it.seq = seq

	apply := func() {
		if it.seq != seq || it.State != state {
			return
		}
		s.coll.Restyle(it)
	}
	settle := func() {
		if it.seq != seq || it.State != state {
			return
		}
		if final != nil {
			final()
			return
		}
		it.State = Normal
		s.coll.Restyle(it)
	}
	s.hl.Request(apply, settle)
}

func (s *Synchronizer) anomaly(ev events.Event) {
	s.log.Debug("event for unknown key ignored", "type", ev.Type.String(), "key", ev.Key())
	if s.OnAnomaly != nil {
		s.OnAnomaly(ev.Type)
	}
}

// Get returns the displayed item for key.
func (s *Synchronizer) Get(key string) (*Item, bool) {
	it, ok := s.items[key]
	return it, ok
}

// Len returns the number of displayed items, including rows pending removal.
func (s *Synchronizer) Len() int {
	return len(s.items)
}

// Close tears down the highlight context and releases every back-reference,
// including rows whose removal was still pending.
func (s *Synchronizer) Close() {
	s.hl.Close()
	for key, it := range s.items {
		it.release()
		delete(s.items, key)
	}
}
