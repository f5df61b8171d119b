// Package handle provides a reference-counted ownership wrapper for values
// that cross from provider goroutines to the UI goroutine.
package handle

import (
	"fmt"
	"log/slog"
	"sync/atomic"
)

// Handle shares ownership of a value. The finalizer runs exactly once, when
// the last reference is released.
//
// A producer that hands a Handle to another goroutine must call Acquire
// before the handoff and must not touch the handle afterwards unless it holds
// a reference of its own.
type Handle[T any] struct {
	refs     atomic.Int64
	value    T
	finalize func(T)
	done     atomic.Bool
}

// New returns a handle holding its creation reference.
func New[T any](value T, finalize func(T)) *Handle[T] {
	h := &Handle[T]{value: value, finalize: finalize}
	h.refs.Store(1)
	live.Add(1)
	return h
}

// Acquire adds a reference and returns the same handle for the new holder.
func (h *Handle[T]) Acquire() *Handle[T] {
	for {
		n := h.refs.Load()
		if n <= 0 {
			misuse("acquire after final release", n)
			return h
		}
		if h.refs.CompareAndSwap(n, n+1) {
			return h
		}
	}
}

// Release drops one reference. The call that takes the count to zero runs
// the finalizer. Extra releases never take the count below zero.
func (h *Handle[T]) Release() {
	for {
		n := h.refs.Load()
		if n <= 0 {
			misuse("release without matching acquire", n)
			return
		}
		if !h.refs.CompareAndSwap(n, n-1) {
			continue
		}
		if n == 1 && h.done.CompareAndSwap(false, true) {
			live.Add(-1)
			if h.finalize != nil {
				h.finalize(h.value)
			}
		}
		return
	}
}

// Value returns the wrapped value. Callers must hold a reference.
func (h *Handle[T]) Value() T {
	return h.value
}

// Refs reports the current reference count.
func (h *Handle[T]) Refs() int64 {
	return h.refs.Load()
}

// Finalized reports whether the finalizer has run.
func (h *Handle[T]) Finalized() bool {
	return h.done.Load()
}

var live atomic.Int64

// Live returns the number of handles that have not been finalized yet.
func Live() int64 {
	return live.Load()
}

// ErrMisuse is the panic value used in strict builds.
type ErrMisuse struct {
	Op   string
	Refs int64
}

func (e ErrMisuse) Error() string {
	return fmt.Sprintf("handle: %s (refs=%d)", e.Op, e.Refs)
}

// OnMisuse is called for every saturated acquire/release in non-strict
// builds. Metrics hook in here.
var OnMisuse func(op string)

func misuse(op string, refs int64) {
	if strict {
		panic(ErrMisuse{Op: op, Refs: refs})
	}
	slog.Warn("handle misuse ignored", "op", op, "refs", refs)
	if OnMisuse != nil {
		OnMisuse(op)
	}
}
