// Package scheduler implements a binary-heap timer wheel for one-shot,
// periodic, daily and weekly jobs. A single dispatcher goroutine pops due
// events off the heap; THREAD-flagged events run detached on a dynamically
// sized worker pool, everything else runs inline on the dispatcher.
package scheduler

import (
	"github.com/naviserver-project/naviserver-sub002/pkg/nstime"
)

// Flags control an Event's scheduling policy.
type Flags uint32

const (
	// Once marks a one-shot event, removed from the registry after it runs.
	Once Flags = 1 << iota
	// Thread marks an event that runs detached on the worker pool instead
	// of inline on the dispatcher.
	Thread
	// Daily reschedules the event for the next occurrence of a
	// time-of-day.
	Daily
	// Weekly reschedules the event for the next occurrence of a
	// day-of-week + time-of-day.
	Weekly
	// Paused marks an event that is dequeued and will not fire until
	// resumed.
	Paused
	// Running marks an event currently executing.
	Running
)

// Proc is a scheduled callback; it receives the Arg the event was
// registered with.
type Proc func(arg interface{})

// DeleteProc is invoked, if set, when an Event is finally freed (cancelled
// or a Once event completes).
type DeleteProc func(arg interface{})

// Event is one entry in the scheduler's registry and heap.
type Event struct {
	ID  int
	qid int // heap index + 1; 0 means "not queued"

	NextQueue nstime.Time
	LastQueue nstime.Time
	LastStart nstime.Time
	LastEnd   nstime.Time
	Scheduled nstime.Time
	Interval  nstime.Time

	Proc       Proc
	Arg        interface{}
	DeleteProc DeleteProc
	Flags      Flags

	deleted bool
}

func (e *Event) has(f Flags) bool { return e.Flags&f != 0 }
