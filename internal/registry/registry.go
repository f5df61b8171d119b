package registry

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"procview/internal/handle"
)

// Op describes what an Upsert did to the registry.
type Op uint8

const (
	OpUnchanged Op = iota
	OpAdded
	OpModified
	// OpReplaced means the key now names a different entity (pid reuse).
	OpReplaced
)

// Change is the result of an Upsert. Handle is the registry's own reference;
// callers that pass it to another goroutine must Acquire first.
//
// For OpReplaced, Replaced is the retired entity's creation reference and
// ownership of it transfers to the caller.
type Change struct {
	Op       Op
	Handle   Ref
	Old      Snapshot
	New      Snapshot
	Replaced Ref
}

// Registry is a threadsafe catalog of the entities one provider observes.
// Only the owning provider mutates it; readers get copies.
type Registry struct {
	mu         sync.RWMutex
	kind       Kind
	generation uint64
	byKey      map[string]*entry
	byPID      map[int]string

	onFinalize func(*Entity)
	closed     bool
}

type entry struct {
	ref  Ref
	seen uint64
}

// Option configures a Registry.
type Option func(*Registry)

// WithFinalizer registers a callback that runs once every reference to a
// removed entity has been released.
func WithFinalizer(fn func(*Entity)) Option {
	return func(r *Registry) {
		r.onFinalize = fn
	}
}

// New returns an empty registry for entities of the given kind.
func New(kind Kind, opts ...Option) *Registry {
	r := &Registry{
		kind:  kind,
		byKey: make(map[string]*entry),
		byPID: make(map[int]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Kind returns the entity kind this registry holds.
func (r *Registry) Kind() Kind {
	return r.kind
}

// BeginCycle bumps the generation. Every Upsert until the next BeginCycle is
// stamped with the returned value, and Sweep retires whatever it did not see.
func (r *Registry) BeginCycle() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generation++
	return r.generation
}

// Generation returns the current cycle number.
func (r *Registry) Generation() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.generation
}

// Upsert records an observation. New keys create an entity holding one
// creation reference owned by the registry.
func (r *Registry) Upsert(s Snapshot) (Change, error) {
	if strings.TrimSpace(s.Key) == "" {
		return Change{}, errors.New("snapshot key must not be empty")
	}
	if s.Kind != r.kind {
		return Change{}, errors.New("snapshot kind " + s.Kind.String() + " does not match registry kind " + r.kind.String())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return Change{}, errors.New("registry is closed")
	}
	s.Generation = r.generation
	if s.SeenAt.IsZero() {
		s.SeenAt = now()
	}

	e, ok := r.byKey[s.Key]
	if !ok {
		ref := handle.New(newEntity(s), r.finalize)
		r.byKey[s.Key] = &entry{ref: ref, seen: r.generation}
		if s.PID > 0 {
			r.byPID[s.PID] = s.Key
		}
		return Change{Op: OpAdded, Handle: ref, New: s}, nil
	}

	e.seen = r.generation
	current := e.ref.Value().Snapshot()
	if reused(current, s) {
		retired := e.ref
		ref := handle.New(newEntity(s), r.finalize)
		r.byKey[s.Key] = &entry{ref: ref, seen: r.generation}
		if s.PID > 0 {
			r.byPID[s.PID] = s.Key
		}
		return Change{Op: OpReplaced, Handle: ref, Old: current, New: s, Replaced: retired}, nil
	}
	if len(current.Diff(s)) == 0 {
		// Still observed this cycle: stamp the generation, the display is unchanged.
		e.ref.Value().store(s)
		return Change{Op: OpUnchanged, Handle: e.ref, Old: current, New: s}, nil
	}
	old := e.ref.Value().store(s)
	if old.PID != s.PID {
		if r.byPID[old.PID] == s.Key {
			delete(r.byPID, old.PID)
		}
		if s.PID > 0 {
			r.byPID[s.PID] = s.Key
		}
	}
	return Change{Op: OpModified, Handle: e.ref, Old: old, New: s}, nil
}

// Sweep retires every entity not observed in the current cycle. The returned
// references are the registry's creation references; ownership transfers to
// the caller, who must release each exactly once.
func (r *Registry) Sweep() []Ref {
	r.mu.Lock()
	defer r.mu.Unlock()

	var gone []Ref
	for key, e := range r.byKey {
		if e.seen == r.generation {
			continue
		}
		gone = append(gone, e.ref)
		r.dropLocked(key, e)
	}
	sort.Slice(gone, func(i, j int) bool { return gone[i].Value().Key() < gone[j].Value().Key() })
	return gone
}

// Remove retires one entity and transfers its creation reference to the caller.
func (r *Registry) Remove(key string) (Ref, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.byKey[key]
	if e == nil {
		return nil, false
	}
	r.dropLocked(key, e)
	return e.ref, true
}

func (r *Registry) dropLocked(key string, e *entry) {
	delete(r.byKey, key)
	pid := e.ref.Value().Snapshot().PID
	if r.byPID[pid] == key {
		delete(r.byPID, pid)
	}
}

// Close releases every creation reference the registry still holds. Entities
// shared with other holders stay alive until those holders release them.
func (r *Registry) Close() {
	r.mu.Lock()
	refs := make([]Ref, 0, len(r.byKey))
	for _, e := range r.byKey {
		refs = append(refs, e.ref)
	}
	r.byKey = make(map[string]*entry)
	r.byPID = make(map[int]string)
	r.closed = true
	r.mu.Unlock()

	for _, ref := range refs {
		ref.Release()
	}
}

// Get returns the current snapshot for key.
func (r *Registry) Get(key string) (Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e := r.byKey[key]
	if e == nil {
		return Snapshot{}, false
	}
	return e.ref.Value().Snapshot(), true
}

// LookupPID returns the entity currently associated with pid.
func (r *Registry) LookupPID(pid int) (Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	key, ok := r.byPID[pid]
	if !ok {
		return Snapshot{}, false
	}
	return r.byKey[key].ref.Value().Snapshot(), true
}

// Len returns the number of live entities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byKey)
}

// List returns matching snapshots sorted by key.
func (r *Registry) List(f ListFilter) []Snapshot {
	r.mu.RLock()
	out := make([]Snapshot, 0, len(r.byKey))
	for _, e := range r.byKey {
		out = append(out, e.ref.Value().Snapshot())
	}
	r.mu.RUnlock()

	out = Filter(out, f)
	SortSnapshots(out)
	return out
}

// Filter applies f to snaps in place and returns the kept prefix.
func Filter(snaps []Snapshot, f ListFilter) []Snapshot {
	if len(f.Keys) > 0 {
		set := toSet(f.Keys)
		snaps = filterSnaps(snaps, func(s Snapshot) bool { return set.has(s.Key) })
	}
	if len(f.PIDs) > 0 {
		pids := make(map[int]struct{}, len(f.PIDs))
		for _, p := range f.PIDs {
			pids[p] = struct{}{}
		}
		snaps = filterSnaps(snaps, func(s Snapshot) bool {
			_, ok := pids[s.PID]
			return ok
		})
	}
	if len(f.States) > 0 {
		set := toSet(f.States)
		snaps = filterSnaps(snaps, func(s Snapshot) bool { return set.has(s.State) })
	}
	if q := strings.TrimSpace(f.TextSearch); q != "" {
		snaps = filterSnaps(snaps, func(s Snapshot) bool {
			return strings.Contains(s.Name, q) || strings.Contains(s.Cmd, q)
		})
	}
	return snaps
}

// SortSnapshots orders processes by pid and services by key.
func SortSnapshots(snaps []Snapshot) {
	sort.Slice(snaps, func(i, j int) bool {
		a, b := snaps[i], snaps[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Kind == KindProcess && a.PID != b.PID {
			return a.PID < b.PID
		}
		return a.Key < b.Key
	})
}

// reused reports whether the same key now identifies a different entity,
// which happens when the kernel recycles a pid.
func reused(old, cur Snapshot) bool {
	if old.StartedAt.IsZero() || cur.StartedAt.IsZero() {
		return false
	}
	return !old.StartedAt.Equal(cur.StartedAt)
}

func (r *Registry) finalize(e *Entity) {
	if r.onFinalize != nil {
		r.onFinalize(e)
	}
}

// --- helpers ---

type strset map[string]struct{}

func toSet(xs []string) strset {
	m := make(strset, len(xs))
	for _, x := range xs {
		m[strings.TrimSpace(x)] = struct{}{}
	}
	return m
}

func (s strset) has(v string) bool {
	_, ok := s[v]
	return ok
}

func filterSnaps(snaps []Snapshot, keep func(Snapshot) bool) []Snapshot {
	dst := snaps[:0]
	for _, s := range snaps {
		if keep(s) {
			dst = append(dst, s)
		}
	}
	return dst
}

var now = func() time.Time {
	return time.Now().UTC()
}
