// Package presenter applies entity events to a displayed collection on the
// UI goroutine.
package presenter

import (
	"procview/internal/registry"
)

// VisualState is the transient style of a displayed row.
type VisualState uint8

const (
	Normal VisualState = iota
	RecentlyAdded
	PendingRemoval
	Changed
)

func (s VisualState) String() string {
	switch s {
	case Normal:
		return "normal"
	case RecentlyAdded:
		return "added"
	case PendingRemoval:
		return "removing"
	case Changed:
		return "changed"
	default:
		return "unknown"
	}
}

// Item is the presentation-side projection of an entity. It holds one
// counted reference to the entity for as long as the row exists.
type Item struct {
	Key   string
	State VisualState
	// Snapshot is what the row currently shows.
	Snapshot registry.Snapshot

	ref registry.Ref
	// seq identifies the latest transition; stale settle actions compare it.
	seq uint64
	// Index is a slot for the collection to remember the row position.
	Index int
}

// Ref returns the item's back-reference, or nil once released.
func (it *Item) Ref() registry.Ref {
	return it.ref
}

func (it *Item) release() {
	if it.ref == nil {
		return
	}
	it.ref.Release()
	it.ref = nil
}

// Collection is the list or tree control the synchronizer drives.
type Collection interface {
	BeginUpdate()
	EndUpdate()
	Live() bool

	Insert(it *Item)
	Update(it *Item)
	Restyle(it *Item)
	Remove(it *Item)
	// Refresh re-renders derived columns of every row.
	Refresh()
}
