package nsthread

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/naviserver-project/naviserver-sub002/pkg/nstime"
)

// RWLockStats is a point-in-time snapshot of an RWLock's counters.
type RWLockStats struct {
	Name             string
	ID               uint64
	NReadLock        uint64
	NWriteLock       uint64
	NBusy            uint64
	TotalWaitingTime nstime.Time
	MaxWaitingTime   nstime.Time
	TotalLockTime    nstime.Time
}

// RWLock is a reader/writer lock instrumented like Mutex, discriminating
// read-lock from write-lock operations in its counters. It is built on
// sync.RWMutex, which gives writer preference on the runtimes this module
// targets (a blocked writer keeps out new readers), matching the original
// server's preference semantics without a hand-rolled condition-variable
// fallback.
type RWLock struct {
	name string
	id   uint64

	mu sync.RWMutex

	nrlock atomic.Uint64
	nwlock atomic.Uint64
	nbusy  atomic.Uint64

	statsMu          sync.Mutex
	totalWaitingTime nstime.Time
	maxWaitingTime   nstime.Time
	totalLockTime    nstime.Time

	lockedAt nstime.Time
}

// NewRWLock creates and registers a named RWLock.
func NewRWLock(name string) *RWLock {
	rw := &RWLock{name: truncName(name), id: allocID()}
	registry.Lock()
	registry.rwlocks = append(registry.rwlocks, rw)
	registry.Unlock()
	return rw
}

// Name returns the lock's display name.
func (rw *RWLock) Name() string { return rw.name }

// RLock acquires a read lock, accounting wait time when it must block.
func (rw *RWLock) RLock() {
	start := nstime.Now()
	if !rw.mu.TryRLock() {
		rw.nbusy.Add(1)
		rw.mu.RLock()
	}
	rw.accountAcquire(start, false)
}

// RUnlock releases a previously acquired read lock.
func (rw *RWLock) RUnlock() {
	rw.mu.RUnlock()
}

// Lock acquires an exclusive write lock, accounting wait and, on Unlock,
// hold time (only write holds are timed, since only writes are exclusive).
func (rw *RWLock) Lock() {
	start := nstime.Now()
	if !rw.mu.TryLock() {
		rw.nbusy.Add(1)
		rw.mu.Lock()
	}
	rw.accountAcquire(start, true)
}

// Unlock releases a previously acquired write lock.
func (rw *RWLock) Unlock() {
	rw.statsMu.Lock()
	var held nstime.Time
	nstime.Diff(nstime.Now(), rw.lockedAt, &held)
	nstime.Incr(&rw.totalLockTime, held.Sec, held.Usec, nil)
	rw.statsMu.Unlock()
	rw.mu.Unlock()
}

func (rw *RWLock) accountAcquire(start nstime.Time, write bool) {
	now := nstime.Now()
	var wait nstime.Time
	nstime.Diff(now, start, &wait)

	if write {
		rw.nwlock.Add(1)
	} else {
		rw.nrlock.Add(1)
	}

	rw.statsMu.Lock()
	nstime.Incr(&rw.totalWaitingTime, wait.Sec, wait.Usec, nil)
	if nstime.Diff(wait, rw.maxWaitingTime, nil) > 0 {
		rw.maxWaitingTime = wait
	}
	if write {
		rw.lockedAt = now
	}
	rw.statsMu.Unlock()
}

// Stats returns a snapshot of the lock's counters.
func (rw *RWLock) Stats() RWLockStats {
	rw.statsMu.Lock()
	defer rw.statsMu.Unlock()
	return RWLockStats{
		Name:             rw.name,
		ID:               rw.id,
		NReadLock:        rw.nrlock.Load(),
		NWriteLock:       rw.nwlock.Load(),
		NBusy:            rw.nbusy.Load(),
		TotalWaitingTime: rw.totalWaitingTime,
		MaxWaitingTime:   rw.maxWaitingTime,
		TotalLockTime:    rw.totalLockTime,
	}
}

func (s RWLockStats) String() string {
	return fmt.Sprintf("{%s %d r=%d w=%d busy=%d %s %s %s}",
		s.Name, s.ID, s.NReadLock, s.NWriteLock, s.NBusy,
		s.TotalWaitingTime, s.MaxWaitingTime, s.TotalLockTime)
}

// WalkRWLocks invokes fn once per registered RWLock's current stats.
func WalkRWLocks(fn func(RWLockStats)) {
	registry.Lock()
	defer registry.Unlock()
	for _, rw := range registry.rwlocks {
		fn(rw.Stats())
	}
}
