// Package nsthread provides instrumented concurrency primitives: a Mutex
// and RWLock that record contention and hold-time statistics, a counting
// Semaphore, thread-local storage slots with LIFO cleanup, and a reentrant
// critical section. Every Mutex and RWLock registers itself in a
// process-wide list, guarded by the registry's own lock, so an operator can dump live
// contention statistics the way the original server's "ns_mutex list"
// command does.
package nsthread

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/naviserver-project/naviserver-sub002/pkg/nstime"
)

// NameSize bounds the length of a primitive's display name, matching the
// original NS_THREAD_NAMESIZE budget.
const NameSize = 31

var (
	nextID   uint64
	registry = struct {
		sync.Mutex
		mutexes  []*Mutex
		rwlocks  []*RWLock
		critical []*CriticalSection
	}{}
)

func allocID() uint64 {
	return atomic.AddUint64(&nextID, 1)
}

func truncName(name string) string {
	if len(name) > NameSize {
		return name[:NameSize]
	}
	return name
}

// Name2 joins prefix and suffix as "prefix:suffix", truncated to NameSize.
func Name2(prefix, suffix string) string {
	return truncName(prefix + ":" + suffix)
}

// MutexStats is a point-in-time snapshot of a Mutex's counters.
type MutexStats struct {
	Name              string
	ID                uint64
	NLock             uint64
	NBusy             uint64
	TotalWaitingTime  nstime.Time
	MaxWaitingTime    nstime.Time
	TotalLockTime     nstime.Time
}

// Mutex is a sync.Mutex instrumented with contention and hold-time
// counters. The zero value is not usable; construct with NewMutex.
type Mutex struct {
	name string
	id   uint64

	mu sync.Mutex

	nlock atomic.Uint64
	nbusy atomic.Uint64

	statsMu          sync.Mutex
	totalWaitingTime nstime.Time
	maxWaitingTime   nstime.Time
	totalLockTime    nstime.Time

	lockedAt nstime.Time
}

// NewMutex creates and registers a named Mutex.
func NewMutex(name string) *Mutex {
	m := &Mutex{name: truncName(name), id: allocID()}
	registry.Lock()
	registry.mutexes = append(registry.mutexes, m)
	registry.Unlock()
	return m
}

// Name returns the mutex's display name.
func (m *Mutex) Name() string { return m.name }

// SetName renames the mutex.
func (m *Mutex) SetName(name string) { m.name = truncName(name) }

// TryLock attempts to acquire the mutex without blocking. It returns true
// on success; the caller owns the lock on success just like Lock.
func (m *Mutex) TryLock() bool {
	if m.mu.TryLock() {
		m.nlock.Add(1)
		m.statsMu.Lock()
		m.lockedAt = nstime.Now()
		m.statsMu.Unlock()
		return true
	}
	return false
}

// Lock acquires the mutex, accounting busy/wait statistics when the fast
// try-lock path fails.
func (m *Mutex) Lock() {
	if m.TryLock() {
		return
	}

	waitStart := nstime.Now()
	m.nbusy.Add(1)
	m.mu.Lock()
	now := nstime.Now()

	var wait nstime.Time
	nstime.Diff(now, waitStart, &wait)

	m.nlock.Add(1)
	m.statsMu.Lock()
	nstime.Incr(&m.totalWaitingTime, wait.Sec, wait.Usec, nil)
	if nstime.Diff(wait, m.maxWaitingTime, nil) > 0 {
		m.maxWaitingTime = wait
	}
	m.lockedAt = now
	m.statsMu.Unlock()
}

// Unlock releases the mutex, accounting the hold-time counter.
func (m *Mutex) Unlock() {
	m.statsMu.Lock()
	var held nstime.Time
	nstime.Diff(nstime.Now(), m.lockedAt, &held)
	nstime.Incr(&m.totalLockTime, held.Sec, held.Usec, nil)
	m.statsMu.Unlock()
	m.mu.Unlock()
}

// Stats returns a snapshot of the mutex's counters.
func (m *Mutex) Stats() MutexStats {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	return MutexStats{
		Name:             m.name,
		ID:               m.id,
		NLock:            m.nlock.Load(),
		NBusy:            m.nbusy.Load(),
		TotalWaitingTime: m.totalWaitingTime,
		MaxWaitingTime:   m.maxWaitingTime,
		TotalLockTime:    m.totalLockTime,
	}
}

// String formats the mutex like the original inspection routine,
// Ns_MutexList: "{name {} id nlock nbusy total_wait max_wait
// total_hold}". The empty element between name and id mirrors
// Ns_MutexList's own Tcl_DStringAppendElement(dsPtr, "") — an unused
// placeholder the original still emits, preserved here for format
// compatibility with anything parsing the introspection output.
func (s MutexStats) String() string {
	return fmt.Sprintf("{%s {} %d %d %d %s %s %s}",
		s.Name, s.ID, s.NLock, s.NBusy,
		s.TotalWaitingTime, s.MaxWaitingTime, s.TotalLockTime)
}

// WalkMutexes invokes fn once per registered Mutex's current stats, holding
// the registry lock for the duration of the walk so the set of mutexes
// cannot change mid-iteration. pkg/metrics' Prometheus collector is its
// caller.
func WalkMutexes(fn func(MutexStats)) {
	registry.Lock()
	defer registry.Unlock()
	for _, m := range registry.mutexes {
		fn(m.Stats())
	}
}
