// Package events carries entity notifications from provider goroutines to
// the UI goroutine.
package events

import (
	"fmt"

	"procview/internal/registry"
)

// Type enumerates the notifications a provider can emit.
type Type uint8

const (
	Added Type = iota + 1
	Modified
	Removed
	ServicesBatchUpdated
)

func (t Type) String() string {
	switch t {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Removed:
		return "removed"
	case ServicesBatchUpdated:
		return "services-updated"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// ServiceDelta is the payload of a service Modified event. It is owned by
// the event until the consumer is done with it.
type ServiceDelta struct {
	Old registry.Snapshot
	New registry.Snapshot
}

// Changed lists the fields that differ between Old and New.
func (d *ServiceDelta) Changed() []string {
	if d == nil {
		return nil
	}
	return d.Old.Diff(d.New)
}

// Event is one notification. Every event except ServicesBatchUpdated owns
// exactly one counted reference in Handle, released by the consumer.
type Event struct {
	Type   Type
	Handle registry.Ref
	Delta  *ServiceDelta

	// Initial marks Added events from a provider's first cycle.
	Initial bool
	// Source names the provider that published the event.
	Source string
}

// Key returns the identity key of the entity the event refers to.
func (e Event) Key() string {
	if e.Handle == nil {
		return ""
	}
	return e.Handle.Value().Key()
}

// Kind returns the entity kind, or 0 for ServicesBatchUpdated.
func (e Event) Kind() registry.Kind {
	if e.Handle == nil {
		if e.Type == ServicesBatchUpdated {
			return registry.KindService
		}
		return 0
	}
	return e.Handle.Value().Kind()
}

// Release drops the event's reference. Safe to call on batch markers.
func (e Event) Release() {
	if e.Handle != nil {
		e.Handle.Release()
	}
}

func (e Event) String() string {
	if e.Handle == nil {
		return e.Type.String()
	}
	return fmt.Sprintf("%s %s/%s", e.Type, e.Kind(), e.Key())
}
