package nsthread

import "sync"

// Semaphore is a counting semaphore: Wait blocks while the count is zero,
// Post adds n to the count and wakes waiters (Signal semantics for n==1,
// Broadcast for n>1), matching the {count, mutex, cond} shape of the
// original thread primitive.
type Semaphore struct {
	mu    sync.Mutex
	cond  *sync.Cond
	count int64
}

// NewSemaphore creates a Semaphore with the given initial count.
func NewSemaphore(initial int64) *Semaphore {
	s := &Semaphore{count: initial}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Wait blocks until the count is positive, then decrements it.
func (s *Semaphore) Wait() {
	s.mu.Lock()
	for s.count == 0 {
		s.cond.Wait()
	}
	s.count--
	s.mu.Unlock()
}

// TryWait decrements the count and returns true iff it was positive.
func (s *Semaphore) TryWait() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.count == 0 {
		return false
	}
	s.count--
	return true
}

// Post adds n to the count and wakes waiters: a single waiter for n == 1,
// all waiters for n > 1 (mirroring the original's signal-vs-broadcast
// split).
func (s *Semaphore) Post(n int64) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	s.count += n
	s.mu.Unlock()
	if n == 1 {
		s.cond.Signal()
	} else {
		s.cond.Broadcast()
	}
}

// Count returns the current count.
func (s *Semaphore) Count() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}
