// Package host adapts the UI goroutine's run loop and timers to the core.
package host

import (
	"sync"
	"time"
)

// Poster queues a task for the UI goroutine. Post never blocks and never
// runs the task on the caller's stack.
type Poster interface {
	Post(task func())
}

// Timer is a one-shot timer that can be stopped before it fires.
type Timer interface {
	Stop() bool
}

// Clock provides time and one-shot timers.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// RealClock is the wall clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Loop is an unbounded task queue drained on the UI goroutine. The notify
// hook fires when the first task lands in an empty queue; the host answers
// it by arranging for RunPending to be called on the UI goroutine.
type Loop struct {
	mu       sync.Mutex
	tasks    []func()
	signaled bool
	notify   func()
	closed   bool
}

// NewLoop returns a loop with the given notify hook. The hook must not block.
func NewLoop(notify func()) *Loop {
	return &Loop{notify: notify}
}

// SetNotify replaces the notify hook. Used when the host is created after
// the loop, as with a bubbletea program that needs its model first.
func (l *Loop) SetNotify(notify func()) {
	l.mu.Lock()
	l.notify = notify
	pending := len(l.tasks) > 0 && !l.signaled
	if pending {
		l.signaled = true
	}
	l.mu.Unlock()
	if pending && notify != nil {
		notify()
	}
}

// Post implements Poster. Tasks posted after Close are dropped.
func (l *Loop) Post(task func()) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.tasks = append(l.tasks, task)
	var notify func()
	if !l.signaled && l.notify != nil {
		l.signaled = true
		notify = l.notify
	}
	l.mu.Unlock()

	if notify != nil {
		notify()
	}
}

// RunPending runs every task queued so far, in order, and returns how many
// ran. Tasks posted while running wait for the next call.
func (l *Loop) RunPending() int {
	l.mu.Lock()
	batch := l.tasks
	l.tasks = nil
	l.signaled = false
	l.mu.Unlock()

	for _, task := range batch {
		task()
	}
	return len(batch)
}

// Pending returns the number of queued tasks.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tasks)
}

// Close drops queued tasks and rejects new ones.
func (l *Loop) Close() {
	l.mu.Lock()
	l.tasks = nil
	l.closed = true
	l.mu.Unlock()
}
