package scheduler

import (
	"container/heap"
	"sync"
	"time"

	"github.com/naviserver-project/naviserver-sub002/pkg/logging"
	"github.com/naviserver-project/naviserver-sub002/pkg/nstime"
)

func cmpTime(a, b nstime.Time) int {
	return nstime.Diff(a, b, nil)
}

// Logger is the narrow logging surface the scheduler needs; *logging.Logger
// satisfies it.
type Logger interface {
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Config tunes dispatcher/worker behavior.
type Config struct {
	// MaxElapsed is the threshold above which a completed event, inline
	// or on a worker, logs an overrun warning. Zero disables the check.
	MaxElapsed time.Duration
	// JobsPerThread caps how many detached events a single worker runs
	// before exiting (0 = unbounded).
	JobsPerThread int
	// ShutdownTimeout is stored for callers; the Scheduler never reads
	// it, and WaitShutdown blocks for the deadline it is passed.
	ShutdownTimeout time.Duration
}

// Scheduler owns the heap, the registry, and the dispatcher/worker
// goroutines.
type Scheduler struct {
	cfg Config
	log Logger

	mu      sync.Mutex
	byID    map[int]*Event
	heap    eventHeap
	nextID  int
	wake    chan struct{}
	ready   []*Event // THREAD events waiting for a worker
	readyMu sync.Mutex

	nThreads     int
	nIdleThreads int

	shutdownPending bool

	dispatcherDone sync.WaitGroup
	workersDone    sync.WaitGroup
}

// New creates a Scheduler. Call Start to launch the dispatcher goroutine.
func New(cfg Config, log Logger) *Scheduler {
	if log == nil {
		log = logging.GetGlobalLogger()
	}
	return &Scheduler{
		cfg:  cfg,
		log:  log,
		byID: make(map[int]*Event),
		wake: make(chan struct{}, 1),
	}
}

// Start launches the dispatcher goroutine.
func (s *Scheduler) Start() {
	s.dispatcherDone.Add(1)
	go s.dispatchLoop()
}

func (s *Scheduler) signalDispatcher() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// After schedules a one-shot event to run after interval.
func (s *Scheduler) After(interval nstime.Time, proc Proc, arg interface{}, del DeleteProc) int {
	return s.ScheduleProcEx(proc, arg, Once, interval, del)
}

// ScheduleProc schedules proc to run every interval, optionally detached
// (thread=true runs it on the worker pool instead of inline).
func (s *Scheduler) ScheduleProc(proc Proc, arg interface{}, thread bool, interval nstime.Time) int {
	var flags Flags
	if thread {
		flags |= Thread
	}
	return s.ScheduleProcEx(proc, arg, flags, interval, nil)
}

// ScheduleDaily schedules proc to run once a day at hour:minute.
func (s *Scheduler) ScheduleDaily(proc Proc, arg interface{}, flags Flags, hour, minute int, del DeleteProc) int {
	interval := nstime.Time{Sec: int64(hour*3600 + minute*60)}
	return s.ScheduleProcEx(proc, arg, flags|Daily, interval, del)
}

// ScheduleWeekly schedules proc to run once a week on the given
// day-of-week (0=Sunday) at hour:minute.
func (s *Scheduler) ScheduleWeekly(proc Proc, arg interface{}, flags Flags, weekday time.Weekday, hour, minute int, del DeleteProc) int {
	interval := nstime.Time{Sec: int64(weekday)*86400 + int64(hour*3600+minute*60)}
	return s.ScheduleProcEx(proc, arg, flags|Weekly, interval, del)
}

// ScheduleProcEx is the fully general registration entry point.
func (s *Scheduler) ScheduleProcEx(proc Proc, arg interface{}, flags Flags, interval nstime.Time, del DeleteProc) int {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	e := &Event{
		ID:         id,
		Proc:       proc,
		Arg:        arg,
		DeleteProc: del,
		Flags:      flags,
		Interval:   interval,
		Scheduled:  nstime.Now(),
	}
	e.NextQueue = s.computeNext(e, nstime.Now())
	s.byID[id] = e
	heap.Push(&s.heap, e)
	s.mu.Unlock()
	s.signalDispatcher()
	return id
}

// computeNext derives the next firing time for e given now, per the
// DAILY / WEEKLY / periodic policy.
func (s *Scheduler) computeNext(e *Event, now nstime.Time) nstime.Time {
	switch {
	case e.has(Daily):
		return nextDaily(now, e.Interval)
	case e.has(Weekly):
		return nextWeekly(now, e.Interval)
	default:
		base := e.NextQueue
		if base == (nstime.Time{}) {
			base = e.Scheduled
		}
		next := base
		nstime.Incr(&next, e.Interval.Sec, e.Interval.Usec, nil)
		if cmpTime(next, now) < 0 {
			s.log.Warnf("scheduler: event %d missed its interval, rescheduling 10ms out", e.ID)
			late := now
			nstime.Incr(&late, 0, 10_000, nil)
			return late
		}
		return next
	}
}

func nextDaily(now nstime.Time, interval nstime.Time) nstime.Time {
	t := time.Unix(now.Sec, 0).UTC()
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	target := midnight.Add(time.Duration(interval.Sec) * time.Second)
	if !target.After(t) {
		target = target.AddDate(0, 0, 1)
	}
	return nstime.Time{Sec: target.Unix()}
}

func nextWeekly(now nstime.Time, interval nstime.Time) nstime.Time {
	weekday := time.Weekday(interval.Sec / 86400)
	timeOfDay := interval.Sec % 86400

	t := time.Unix(now.Sec, 0).UTC()
	sundayMidnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).
		AddDate(0, 0, -int(t.Weekday()))
	target := sundayMidnight.AddDate(0, 0, int(weekday)).Add(time.Duration(timeOfDay) * time.Second)
	if !target.After(t) {
		target = target.AddDate(0, 0, 7)
	}
	return nstime.Time{Sec: target.Unix()}
}

// Cancel removes an event permanently. It returns false if no such event
// exists.
func (s *Scheduler) Cancel(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[id]
	if !ok {
		return false
	}
	s.dequeueLocked(e)
	delete(s.byID, id)
	e.deleted = true
	if e.has(Running) {
		// Whoever is running e frees it once the run ends.
		return true
	}
	if e.DeleteProc != nil {
		e.DeleteProc(e.Arg)
	}
	return true
}

// Unschedule is an alias of Cancel kept for parity with the original
// naming (Ns_UnscheduleProc).
func (s *Scheduler) Unschedule(id int) { s.Cancel(id) }

func (s *Scheduler) dequeueLocked(e *Event) {
	if e.qid == 0 {
		return
	}
	heap.Remove(&s.heap, e.qid-1)
}

// Pause marks an event paused and dequeues it. It returns false if no such
// event exists.
func (s *Scheduler) Pause(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[id]
	if !ok {
		return false
	}
	e.Flags |= Paused
	s.dequeueLocked(e)
	return true
}

// Resume clears an event's paused flag and requeues it. It returns false
// if no such event exists.
func (s *Scheduler) Resume(id int) bool {
	s.mu.Lock()
	e, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	e.Flags &^= Paused
	e.NextQueue = s.computeNext(e, nstime.Now())
	heap.Push(&s.heap, e)
	s.mu.Unlock()
	s.signalDispatcher()
	return true
}

// NextRuns previews the next n firing times for id without mutating the
// heap. It supplements the spec's mutation-only API; nothing outside this
// package's tests calls it.
func (s *Scheduler) NextRuns(id int, n int) []nstime.Time {
	s.mu.Lock()
	e, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	cur := e.NextQueue
	interval := e.Interval
	daily := e.has(Daily)
	weekly := e.has(Weekly)
	s.mu.Unlock()

	out := make([]nstime.Time, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, cur)
		switch {
		case daily:
			cur = nextDaily(cur, interval)
		case weekly:
			cur = nextWeekly(cur, interval)
		default:
			nstime.Incr(&cur, interval.Sec, interval.Usec, nil)
		}
	}
	return out
}

// StartShutdown requests the dispatcher and all workers stop.
func (s *Scheduler) StartShutdown() {
	s.mu.Lock()
	s.shutdownPending = true
	s.mu.Unlock()
	s.signalDispatcher()
}

// WaitShutdown blocks until the dispatcher and all workers have exited, or
// deadline elapses.
func (s *Scheduler) WaitShutdown(deadline time.Duration) bool {
	done := make(chan struct{})
	go func() {
		s.dispatcherDone.Wait()
		s.workersDone.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(deadline):
		return false
	}
}
