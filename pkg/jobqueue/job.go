// Package jobqueue implements named job queues backed by a shared worker
// pool: each queue caps its own concurrency, while idle workers are drawn
// from one pool sized to the sum of every queue's maxThreads.
package jobqueue

import (
	"context"
	"fmt"

	"github.com/naviserver-project/naviserver-sub002/pkg/nstime"
)

// State is a Job's lifecycle stage.
type State int

const (
	Scheduled State = iota
	Running
	Done
)

func (s State) String() string {
	switch s {
	case Scheduled:
		return "scheduled"
	case Running:
		return "running"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// Evaluator runs a job's script and returns its textual result. It is the
// scripting-evaluator seam the request driver wires up; jobqueue never
// assumes a concrete language runtime.
type Evaluator interface {
	Eval(ctx context.Context, script string) (result string, errorCode, errorInfo string, err error)
}

// Job is one unit queued against a named Queue.
type Job struct {
	ID       string
	Queue    string
	Script   string
	Detached bool

	State State

	Req        nstime.Time
	StartTime  nstime.Time
	EndTime    nstime.Time

	Result    string
	ErrorCode string
	ErrorInfo string
	Err       error

	cancel context.CancelFunc
	waited bool
	done   chan struct{}
}

func newJob(id, queueName, script string, detached bool) *Job {
	return &Job{
		ID:       id,
		Queue:    queueName,
		Script:   script,
		Detached: detached,
		State:    Scheduled,
		Req:      nstime.Now(),
		done:     make(chan struct{}),
	}
}

// ErrJobNotFound, ErrQueueNotFound, ErrAlreadyWaited and ErrDetachedWait are
// the error sentinels the pool's introspection and wait operations return.
var (
	ErrJobNotFound   = fmt.Errorf("jobqueue: job not found")
	ErrQueueNotFound = fmt.Errorf("jobqueue: queue not found")
	ErrAlreadyWaited = fmt.Errorf("jobqueue: job already has a waiter")
	ErrDetachedWait  = fmt.Errorf("jobqueue: cannot wait on a detached job")
	ErrDuplicateID   = fmt.Errorf("jobqueue: job id already in use")
	ErrTimeout       = fmt.Errorf("jobqueue: wait timed out")
	ErrWaitForbidden = fmt.Errorf("jobqueue: job is waiting and cannot be cancelled")
)
