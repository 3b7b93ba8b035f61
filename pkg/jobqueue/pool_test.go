package jobqueue

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoEvaluator struct {
	delay time.Duration
	fail  bool
}

func (e echoEvaluator) Eval(ctx context.Context, script string) (string, string, string, error) {
	if e.delay > 0 {
		select {
		case <-time.After(e.delay):
		case <-ctx.Done():
			return "", "CANCELLED", "cancelled at safepoint", ctx.Err()
		}
	}
	if e.fail {
		return "", "EFAIL", "forced failure", errors.New("forced failure")
	}
	return strings.ToUpper(script), "", "", nil
}

type nopLogger struct{}

func (nopLogger) Infof(format string, args ...interface{})  {}
func (nopLogger) Warnf(format string, args ...interface{})  {}
func (nopLogger) Errorf(format string, args ...interface{}) {}

func newTestPool(eval Evaluator) *Pool {
	return New(Config{Timeout: time.Second}, eval, nopLogger{})
}

func TestQueueAndWait(t *testing.T) {
	p := newTestPool(echoEvaluator{})
	require.NoError(t, p.Create("default", "default queue", 2))

	id, err := p.Queue("default", "hello", QueueOpts{})
	require.NoError(t, err)

	result, _, _, err := p.Wait(context.Background(), "default", id, 0)
	require.NoError(t, err)
	assert.Equal(t, "HELLO", result)
}

func TestWaitTwiceRejected(t *testing.T) {
	p := newTestPool(echoEvaluator{})
	require.NoError(t, p.Create("q", "", 1))
	id, err := p.Queue("q", "x", QueueOpts{})
	require.NoError(t, err)

	_, _, _, err = p.Wait(context.Background(), "q", id, 0)
	require.NoError(t, err)

	_, _, _, err = p.Wait(context.Background(), "q", id, 0)
	assert.ErrorIs(t, err, ErrAlreadyWaited)
}

func TestDetachedJobCannotBeWaited(t *testing.T) {
	p := newTestPool(echoEvaluator{})
	require.NoError(t, p.Create("q", "", 1))
	id, err := p.Queue("q", "x", QueueOpts{Detached: true})
	require.NoError(t, err)

	_, _, _, err = p.Wait(context.Background(), "q", id, 0)
	assert.ErrorIs(t, err, ErrDetachedWait)
}

func TestWaitTimeout(t *testing.T) {
	p := newTestPool(echoEvaluator{delay: 200 * time.Millisecond})
	require.NoError(t, p.Create("q", "", 1))
	id, err := p.Queue("q", "slow", QueueOpts{})
	require.NoError(t, err)

	_, _, _, err = p.Wait(context.Background(), "q", id, 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestQueueConcurrencyCap(t *testing.T) {
	p := newTestPool(echoEvaluator{delay: 80 * time.Millisecond})
	require.NoError(t, p.Create("limited", "", 1))

	id1, _ := p.Queue("limited", "a", QueueOpts{})
	id2, _ := p.Queue("limited", "b", QueueOpts{})

	time.Sleep(20 * time.Millisecond)
	nThreads, _ := p.ThreadList()
	assert.LessOrEqual(t, nThreads, 1, "queue with maxThreads=1 must not run two jobs at once")

	_, _, _, err := p.Wait(context.Background(), "limited", id1, time.Second)
	require.NoError(t, err)
	_, _, _, err = p.Wait(context.Background(), "limited", id2, time.Second)
	require.NoError(t, err)
}

func TestWaitAnyReturnsFirstDone(t *testing.T) {
	p := newTestPool(echoEvaluator{})
	require.NoError(t, p.Create("q", "", 4))

	id, err := p.Queue("q", "fast", QueueOpts{})
	require.NoError(t, err)

	done, err := p.WaitAny(context.Background(), "q", time.Second)
	require.NoError(t, err)
	assert.Equal(t, id, done)
}

func TestCancelRunningJob(t *testing.T) {
	p := newTestPool(echoEvaluator{delay: time.Second})
	require.NoError(t, p.Create("q", "", 1))
	id, err := p.Queue("q", "slow", QueueOpts{})
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	ok, err := p.Cancel("q", id)
	require.NoError(t, err)
	assert.True(t, ok)

	_, errorCode, _, _ := p.Wait(context.Background(), "q", id, time.Second)
	assert.Equal(t, "CANCELLED", errorCode)
}

func TestDeleteQueueDefersUntilEmpty(t *testing.T) {
	p := newTestPool(echoEvaluator{})
	require.NoError(t, p.Create("q", "", 1))
	id, err := p.Queue("q", "x", QueueOpts{})
	require.NoError(t, err)

	require.NoError(t, p.Delete("q"))
	_, _, _, err = p.Wait(context.Background(), "q", id, time.Second)
	require.NoError(t, err)

	assert.False(t, p.Exists("q", id))
}

func TestDuplicateJobIDRejected(t *testing.T) {
	p := newTestPool(echoEvaluator{})
	require.NoError(t, p.Create("q", "", 2))
	_, err := p.Queue("q", "x", QueueOpts{JobID: "fixed"})
	require.NoError(t, err)

	_, err = p.Queue("q", "y", QueueOpts{JobID: "fixed"})
	assert.ErrorIs(t, err, ErrDuplicateID)
}
