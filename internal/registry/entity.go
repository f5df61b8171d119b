package registry

import (
	"sync/atomic"

	"procview/internal/handle"
)

// Entity is the canonical record a provider keeps for one observed process or
// service. The provider refreshes it in place by swapping the snapshot; any
// goroutine holding a reference may read the current snapshot.
type Entity struct {
	key  string
	kind Kind
	snap atomic.Pointer[Snapshot]
}

// Ref is a counted reference to an Entity.
type Ref = *handle.Handle[*Entity]

func newEntity(s Snapshot) *Entity {
	e := &Entity{key: s.Key, kind: s.Kind}
	e.snap.Store(&s)
	return e
}

// Key returns the stable identity key.
func (e *Entity) Key() string { return e.key }

// Kind returns the entity family.
func (e *Entity) Kind() Kind { return e.kind }

// Snapshot returns the most recent snapshot published by the provider.
func (e *Entity) Snapshot() Snapshot {
	return *e.snap.Load()
}

func (e *Entity) store(s Snapshot) Snapshot {
	old := e.snap.Swap(&s)
	return *old
}
