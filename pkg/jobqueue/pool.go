package jobqueue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/naviserver-project/naviserver-sub002/pkg/logging"
	"github.com/naviserver-project/naviserver-sub002/pkg/nstime"
)

// Config tunes pool-wide behavior.
type Config struct {
	// JobsPerThread caps how many jobs a worker executes before exiting
	// (0 = unbounded).
	JobsPerThread int
	// Timeout is the default Wait timeout when the caller doesn't supply
	// one.
	Timeout time.Duration
	// LogMinDuration is the floor above which a completed job's duration
	// is logged.
	LogMinDuration time.Duration
}

// Pool owns every named Queue plus the shared worker goroutines that drain
// them. Capacity is tracked with a weighted semaphore sized to the sum of
// every queue's MaxThreads, so queue creation/deletion grows and shrinks
// the pool's ceiling without needing to resize goroutines directly.
type Pool struct {
	cfg  Config
	log  Logger
	eval Evaluator

	mu      sync.Mutex
	queues  map[string]*Queue
	fifo    []*Job
	byID    map[string]*Job // jobID -> job, keyed "queue/job" for genid uniqueness
	nextID  int64
	nThreads int
	nIdle    int
	sem      *semaphore.Weighted
	capacity int64
	stopReq  bool

	wake  chan struct{}
	wg    sync.WaitGroup
	index *jobIndex
}

// Logger is the narrow logging surface jobqueue needs.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// New creates an empty Pool. eval supplies the scripting runtime that
// actually executes a Job's script.
func New(cfg Config, eval Evaluator, log Logger) *Pool {
	if log == nil {
		log = logging.GetGlobalLogger()
	}
	return &Pool{
		cfg:    cfg,
		log:    log,
		eval:   eval,
		queues: make(map[string]*Queue),
		byID:   make(map[string]*Job),
		sem:    semaphore.NewWeighted(0),
		wake:   make(chan struct{}, 1),
		index:  newJobIndex(),
	}
}

func (p *Pool) key(queueName, jobID string) string { return queueName + "/" + jobID }

// Create registers a new named queue. It rejects duplicates.
func (p *Pool) Create(name, desc string, maxThreads int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.queues[name]; exists {
		return fmt.Errorf("jobqueue: queue %q already exists", name)
	}
	p.queues[name] = newQueue(name, desc, maxThreads)
	p.capacity += int64(maxThreads)
	p.sem = semaphore.NewWeighted(p.capacity)
	return nil
}

// Delete marks a queue for deletion; it is actually removed once its job
// map is empty and nothing still references it.
func (p *Pool) Delete(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	q, ok := p.queues[name]
	if !ok {
		return ErrQueueNotFound
	}
	q.markDeleted = true
	if q.empty() {
		p.releaseQueueLocked(q)
	}
	return nil
}

func (p *Pool) releaseQueueLocked(q *Queue) {
	if !q.markDeleted || !q.empty() {
		return
	}
	delete(p.queues, q.Name)
	p.capacity -= int64(q.MaxThreads)
	if p.capacity < 0 {
		p.capacity = 0
	}
	p.sem = semaphore.NewWeighted(p.capacity)
}

// QueueOpts configures an individual Queue call.
type QueueOpts struct {
	Detached bool
	Head     bool
	JobID    string
}

// Queue enqueues script against queueName, returning the job id. A
// worker is spawned immediately if the pool is below its thread ceiling
// and every existing worker is busy.
func (p *Pool) Queue(queueName, script string, opts QueueOpts) (string, error) {
	p.mu.Lock()
	q, ok := p.queues[queueName]
	if !ok || q.markDeleted {
		p.mu.Unlock()
		return "", ErrQueueNotFound
	}

	id := opts.JobID
	if id == "" {
		p.nextID++
		id = fmt.Sprintf("job%d", p.nextID)
	}
	k := p.key(queueName, id)
	if _, exists := p.byID[k]; exists {
		p.mu.Unlock()
		return "", ErrDuplicateID
	}

	job := newJob(id, queueName, script, opts.Detached)
	q.jobs[id] = job
	p.byID[k] = job

	if opts.Head {
		p.fifo = append([]*Job{job}, p.fifo...)
	} else {
		p.fifo = append(p.fifo, job)
	}

	sem := p.sem
	needWorker := p.nIdle == 0 && sem.TryAcquire(1)
	if needWorker {
		p.nThreads++
	}
	p.mu.Unlock()

	p.index.add(queueName, id, script)

	if needWorker {
		p.wg.Add(1)
		go p.workerLoop()
	}
	p.signal()
	return id, nil
}

// GenID returns a pool-unique job id without queueing anything.
func (p *Pool) GenID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	return fmt.Sprintf("job%d", p.nextID)
}

func (p *Pool) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Wait blocks until jobId reaches Done (or timeout elapses), returning its
// result. A zero timeout uses Config.Timeout; a negative timeout blocks
// indefinitely.
func (p *Pool) Wait(ctx context.Context, queueName, jobID string, timeout time.Duration) (result, errorCode, errorInfo string, err error) {
	p.mu.Lock()
	job, ok := p.byID[p.key(queueName, jobID)]
	if !ok {
		p.mu.Unlock()
		return "", "", "", ErrJobNotFound
	}
	if job.Detached {
		p.mu.Unlock()
		return "", "", "", ErrDetachedWait
	}
	if job.waited {
		p.mu.Unlock()
		return "", "", "", ErrAlreadyWaited
	}
	job.waited = true
	p.mu.Unlock()

	if timeout == 0 {
		timeout = p.cfg.Timeout
	}

	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case <-job.done:
		return job.Result, job.ErrorCode, job.ErrorInfo, job.Err
	case <-timeoutCh:
		return "", "", "", ErrTimeout
	case <-ctx.Done():
		return "", "", "", ctx.Err()
	}
}

// WaitAny blocks until at least one job in queueName is Done and returns
// its id.
func (p *Pool) WaitAny(ctx context.Context, queueName string, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	for {
		p.mu.Lock()
		q, ok := p.queues[queueName]
		if !ok {
			p.mu.Unlock()
			return "", ErrQueueNotFound
		}
		for id, j := range q.jobs {
			if j.State == Done {
				p.mu.Unlock()
				return id, nil
			}
		}
		p.mu.Unlock()

		if timeout > 0 && time.Now().After(deadline) {
			return "", ErrTimeout
		}
		select {
		case <-time.After(10 * time.Millisecond):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// Cancel asks a running job's evaluator to stop at its next safepoint. It
// forbids cancelling a job that already has a waiter blocked on it in the
// WAIT state transition, matching the no-cancel-while-waiting rule.
func (p *Pool) Cancel(queueName, jobID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	job, ok := p.byID[p.key(queueName, jobID)]
	if !ok {
		return false, ErrJobNotFound
	}
	if job.State != Running {
		return false, nil
	}
	if job.waited {
		return false, ErrWaitForbidden
	}
	if job.cancel != nil {
		job.cancel()
	}
	return true, nil
}

// Exists reports whether jobID is registered in queueName.
func (p *Pool) Exists(queueName, jobID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.byID[p.key(queueName, jobID)]
	return ok
}

// JobList returns a snapshot of every job's id and state in queueName.
func (p *Pool) JobList(queueName string) ([]*Job, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	q, ok := p.queues[queueName]
	if !ok {
		return nil, ErrQueueNotFound
	}
	out := make([]*Job, 0, len(q.jobs))
	for _, j := range q.jobs {
		cp := *j
		out = append(out, &cp)
	}
	return out, nil
}

// JobsMatching runs a bleve query string (e.g. "script:sleep*" or a bare
// free-text term) against the script/queue/id of every currently indexed
// job and returns the matching jobs still live in the pool. This is
// richer than a glob over job ids: query supports the full bleve query
// string syntax against script text.
func (p *Pool) JobsMatching(query string) ([]*Job, error) {
	keys, err := p.index.search(query)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Job, 0, len(keys))
	for _, k := range keys {
		if j, ok := p.byID[k]; ok {
			cp := *j
			out = append(out, &cp)
		}
	}
	return out, nil
}

// QueueList returns a snapshot of every registered queue.
func (p *Pool) QueueList() []*Queue {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Queue, 0, len(p.queues))
	for _, q := range p.queues {
		cp := *q
		out = append(out, &cp)
	}
	return out
}

// ThreadList reports the pool's current worker counts.
func (p *Pool) ThreadList() (nThreads, nIdle int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.nThreads, p.nIdle
}

// Configure updates runtime-tunable pool settings.
func (p *Pool) Configure(cfg Config) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg = cfg
}

// Shutdown requests every worker stop after its current job.
func (p *Pool) Shutdown(deadline time.Duration) bool {
	p.mu.Lock()
	p.stopReq = true
	p.mu.Unlock()
	p.signal()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(deadline):
		return false
	}
}

// getNextJobLocked scans the FIFO for the first job whose queue still has a
// free run slot, claiming that slot and removing the job from the list.
// Called with p.mu held.
func (p *Pool) getNextJobLocked() *Job {
	for i, j := range p.fifo {
		q, ok := p.queues[j.Queue]
		if !ok {
			continue
		}
		if q.tryAcquire() {
			p.fifo = append(p.fifo[:i:i], p.fifo[i+1:]...)
			return j
		}
	}
	return nil
}

func (p *Pool) workerLoop() {
	defer p.wg.Done()
	defer func() {
		p.mu.Lock()
		p.nThreads--
		sem := p.sem
		p.mu.Unlock()
		sem.Release(1)
	}()

	idleDeadline := time.Now().Add(5 * time.Second)
	jobs := 0
	for {
		p.mu.Lock()
		job := p.getNextJobLocked()
		if job == nil {
			if p.stopReq {
				p.mu.Unlock()
				return
			}
			if time.Now().After(idleDeadline) {
				p.mu.Unlock()
				return
			}
			p.nIdle++
			p.mu.Unlock()
			select {
			case <-p.wake:
			case <-time.After(10 * time.Millisecond):
			}
			p.mu.Lock()
			p.nIdle--
			p.mu.Unlock()
			continue
		}

		q := p.queues[job.Queue]
		q.nRunning++
		job.State = Running
		job.StartTime = nstime.Now()
		p.mu.Unlock()

		p.runJob(job)

		p.mu.Lock()
		q.nRunning--
		q.release()
		idleDeadline = time.Now().Add(5 * time.Second)
		if job.Detached {
			delete(q.jobs, job.ID)
			delete(p.byID, p.key(job.Queue, job.ID))
			p.index.remove(job.Queue, job.ID)
		}
		if q.markDeleted {
			p.releaseQueueLocked(q)
		}
		p.mu.Unlock()

		jobs++
		if p.cfg.JobsPerThread > 0 && jobs >= p.cfg.JobsPerThread {
			return
		}
	}
}

func (p *Pool) runJob(job *Job) {
	ctx, cancel := context.WithCancel(context.Background())
	p.mu.Lock()
	job.cancel = cancel
	p.mu.Unlock()
	defer cancel()

	var result, errorCode, errorInfo string
	var err error
	if p.eval != nil {
		result, errorCode, errorInfo, err = p.eval.Eval(ctx, job.Script)
	}

	job.EndTime = nstime.Now()
	var elapsed nstime.Time
	nstime.Diff(job.EndTime, job.StartTime, &elapsed)
	if p.cfg.LogMinDuration > 0 && elapsed.Duration() > p.cfg.LogMinDuration {
		p.log.Infof("jobqueue: job %s/%s ran %s", job.Queue, job.ID, elapsed.Duration())
	}

	job.Result, job.ErrorCode, job.ErrorInfo, job.Err = result, errorCode, errorInfo, err
	if err != nil && job.Detached {
		p.log.Warnf("jobqueue: detached job %s/%s failed: %v", job.Queue, job.ID, err)
	}

	job.State = Done
	close(job.done)
}
