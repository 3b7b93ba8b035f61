package scheduler

import (
	"container/heap"
	"time"

	"github.com/naviserver-project/naviserver-sub002/pkg/nstime"
)

// minWorkerIdle is how long an idle worker goroutine waits for a new job
// before exiting, shrinking the pool back down between bursts.
const minWorkerIdle = 5 * time.Second

// maxWorkers bounds the detached worker pool; the dispatcher never spins
// up more than this many goroutines regardless of backlog.
const maxWorkers = 32

// dispatchLoop pops due events off the heap and either runs them inline or
// hands them to the detached worker pool, sleeping until the next
// NextQueue (or a wake signal) in between.
func (s *Scheduler) dispatchLoop() {
	defer s.dispatcherDone.Done()

	for {
		s.mu.Lock()
		if s.shutdownPending {
			s.mu.Unlock()
			return
		}

		now := nstime.Now()
		var sleep time.Duration
		if s.heap.Len() == 0 {
			sleep = time.Hour
		} else {
			top := s.heap[0]
			if top.has(Paused) {
				sleep = time.Hour
			} else {
				d := cmpTime(top.NextQueue, now)
				if d <= 0 {
					s.fireLocked(top, now)
					s.mu.Unlock()
					continue
				}
				var diff nstime.Time
				nstime.Diff(top.NextQueue, now, &diff)
				sleep = diff.Duration()
			}
		}
		s.mu.Unlock()

		timer := time.NewTimer(sleep)
		select {
		case <-s.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// fireLocked pops the top event, updates its bookkeeping, and dispatches
// it inline or to the worker pool. Called with s.mu held; it releases and
// reacquires the lock around inline execution.
func (s *Scheduler) fireLocked(e *Event, now nstime.Time) {
	heap.Pop(&s.heap)
	e.LastQueue = now
	e.Flags |= Running

	if e.has(Thread) {
		// The worker that runs e clears Running and frees or requeues it.
		s.mu.Unlock()
		s.dispatchToWorker(e)
		s.mu.Lock()
		return
	} else {
		s.mu.Unlock()
		s.runEvent(e)
		s.mu.Lock()
	}

	e.Flags &^= Running
	if e.has(Once) || e.deleted {
		delete(s.byID, e.ID)
		if e.DeleteProc != nil {
			e.DeleteProc(e.Arg)
		}
		return
	}
	if e.deleted || e.has(Paused) {
		return
	}
	e.NextQueue = s.computeNext(e, nstime.Now())
	heap.Push(&s.heap, e)
}

// runEvent executes e.Proc inline, tracking start/end and logging an
// overrun warning past cfg.MaxElapsed.
func (s *Scheduler) runEvent(e *Event) {
	e.LastStart = nstime.Now()
	func() {
		defer func() {
			if r := recover(); r != nil {
				s.log.Errorf("scheduler: event %d proc panicked: %v", e.ID, r)
			}
		}()
		e.Proc(e.Arg)
	}()
	e.LastEnd = nstime.Now()

	if s.cfg.MaxElapsed > 0 {
		var elapsed nstime.Time
		nstime.Diff(e.LastEnd, e.LastStart, &elapsed)
		if elapsed.Duration() > s.cfg.MaxElapsed {
			s.log.Warnf("scheduler: event %d took %s, exceeding max elapsed %s",
				e.ID, elapsed.Duration(), s.cfg.MaxElapsed)
		}
	}
}

// waitForReady blocks until an event is available in s.ready, shutdown is
// requested, or idle elapses with nothing to do. ok is false in the
// latter two cases.
func (s *Scheduler) waitForReady(idle time.Duration) (*Event, bool) {
	deadline := time.Now().Add(idle)
	for {
		s.readyMu.Lock()
		if len(s.ready) > 0 {
			e := s.ready[0]
			s.ready = s.ready[1:]
			s.readyMu.Unlock()
			return e, true
		}
		s.readyMu.Unlock()

		s.mu.Lock()
		shutdown := s.shutdownPending
		s.mu.Unlock()
		if shutdown {
			return nil, false
		}
		if time.Now().After(deadline) {
			return nil, false
		}

		s.readyMu.Lock()
		s.nIdleThreads++
		s.readyMu.Unlock()

		select {
		case <-time.After(10 * time.Millisecond):
		}

		s.readyMu.Lock()
		s.nIdleThreads--
		s.readyMu.Unlock()
	}
}

// dispatchToWorker hands e to the detached worker pool, growing the pool
// if every existing worker is busy.
func (s *Scheduler) dispatchToWorker(e *Event) {
	s.readyMu.Lock()
	s.ready = append(s.ready, e)
	needWorker := s.nIdleThreads == 0 && s.nThreads < maxWorkers
	if needWorker {
		s.nThreads++
	}
	s.readyMu.Unlock()

	if needWorker {
		s.workersDone.Add(1)
		go s.workerLoop()
	}
}

// workerLoop pulls ready events off the queue and runs them until idle for
// minWorkerIdle, then exits, shrinking the pool.
func (s *Scheduler) workerLoop() {
	defer s.workersDone.Done()
	defer func() {
		s.readyMu.Lock()
		s.nThreads--
		s.readyMu.Unlock()
	}()

	jobs := 0
	for {
		e, ok := s.waitForReady(minWorkerIdle)
		if !ok {
			return
		}

		s.runEvent(e)

		s.mu.Lock()
		e.Flags &^= Running
		if e.has(Once) || e.deleted {
			delete(s.byID, e.ID)
			if e.DeleteProc != nil {
				e.DeleteProc(e.Arg)
			}
		} else if !e.has(Paused) {
			e.NextQueue = s.computeNext(e, nstime.Now())
			heap.Push(&s.heap, e)
		}
		s.mu.Unlock()
		s.signalDispatcher()

		jobs++
		if s.cfg.JobsPerThread > 0 && jobs >= s.cfg.JobsPerThread {
			return
		}
	}
}
