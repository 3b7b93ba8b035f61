package jobqueue

import "golang.org/x/sync/semaphore"

// Queue is a named bucket of jobs with its own concurrency cap, enforced
// by a weighted semaphore sized to MaxThreads (the pool-wide sem in
// pool.go bounds total worker goroutines; this one bounds how many of
// them may run jobs from this particular queue at once). All fields are
// protected by the owning Pool's mutex; Queue carries no lock of its own.
type Queue struct {
	Name        string
	Desc        string
	MaxThreads  int
	nRunning    int
	jobs        map[string]*Job
	markDeleted bool
	sem         *semaphore.Weighted
}

func newQueue(name, desc string, maxThreads int) *Queue {
	return &Queue{
		Name:       name,
		Desc:       desc,
		MaxThreads: maxThreads,
		jobs:       make(map[string]*Job),
		sem:        semaphore.NewWeighted(int64(maxThreads)),
	}
}

// tryAcquire reports whether the queue has a free run slot, claiming it
// on success. release must be paired with every successful tryAcquire.
func (q *Queue) tryAcquire() bool { return q.sem.TryAcquire(1) }

func (q *Queue) release() { q.sem.Release(1) }

func (q *Queue) empty() bool { return len(q.jobs) == 0 }
