package scheduler

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naviserver-project/naviserver-sub002/pkg/nstime"
)

type testLogger struct{}

func (testLogger) Warnf(format string, args ...interface{})  {}
func (testLogger) Errorf(format string, args ...interface{}) {}

func newTestScheduler() *Scheduler {
	s := New(Config{}, testLogger{})
	s.Start()
	return s
}

func TestAfterFiresOnceAndIsRemoved(t *testing.T) {
	s := newTestScheduler()
	defer func() { s.StartShutdown(); s.WaitShutdown(time.Second) }()

	done := make(chan struct{})
	id := s.After(nstime.Time{Usec: 10_000}, func(arg interface{}) {
		close(done)
	}, nil, nil)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("event never fired")
	}

	time.Sleep(10 * time.Millisecond)
	s.mu.Lock()
	_, exists := s.byID[id]
	s.mu.Unlock()
	assert.False(t, exists, "once event should be removed from the registry after firing")
}

// TestPeriodicIntervalMonotonic exercises the property that NextQueue
// timestamps for a periodic event form a strictly increasing sequence
// with delta >= the configured interval whenever the proc does not
// overrun it.
func TestPeriodicIntervalMonotonic(t *testing.T) {
	s := newTestScheduler()
	defer func() { s.StartShutdown(); s.WaitShutdown(time.Second) }()

	var mu sync.Mutex
	var fires []time.Time

	interval := nstime.Time{Usec: 100_000} // 100ms
	id := s.ScheduleProc(func(arg interface{}) {
		mu.Lock()
		fires = append(fires, time.Now())
		mu.Unlock()
	}, nil, false, interval)

	time.Sleep(550 * time.Millisecond)
	s.Cancel(id)

	mu.Lock()
	defer mu.Unlock()

	require.True(t, len(fires) >= 5 && len(fires) <= 6,
		"expected 5 or 6 fires in 550ms at 100ms interval, got %d", len(fires))

	for i := 1; i < len(fires); i++ {
		delta := fires[i].Sub(fires[i-1])
		assert.Greater(t, delta, 85*time.Millisecond,
			"fire %d came too soon after fire %d: delta=%s", i, i-1, delta)
	}
}

func TestCancelPreventsFutureFires(t *testing.T) {
	s := newTestScheduler()
	defer func() { s.StartShutdown(); s.WaitShutdown(time.Second) }()

	var count int64
	id := s.ScheduleProc(func(arg interface{}) {
		atomic.AddInt64(&count, 1)
	}, nil, false, nstime.Time{Usec: 20_000})

	time.Sleep(70 * time.Millisecond)
	ok := s.Cancel(id)
	require.True(t, ok)

	after := atomic.LoadInt64(&count)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, after, atomic.LoadInt64(&count), "cancelled event must not fire again")
}

func TestPauseResume(t *testing.T) {
	s := newTestScheduler()
	defer func() { s.StartShutdown(); s.WaitShutdown(time.Second) }()

	var count int64
	id := s.ScheduleProc(func(arg interface{}) {
		atomic.AddInt64(&count, 1)
	}, nil, false, nstime.Time{Usec: 20_000})

	time.Sleep(50 * time.Millisecond)
	require.True(t, s.Pause(id))

	paused := atomic.LoadInt64(&count)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, paused, atomic.LoadInt64(&count), "paused event must not fire")

	require.True(t, s.Resume(id))
	time.Sleep(50 * time.Millisecond)
	assert.Greater(t, atomic.LoadInt64(&count), paused, "resumed event should fire again")

	s.Cancel(id)
}

func TestThreadEventRunsOnWorkerPool(t *testing.T) {
	s := newTestScheduler()
	defer func() { s.StartShutdown(); s.WaitShutdown(time.Second) }()

	done := make(chan struct{})
	id := s.ScheduleProc(func(arg interface{}) {
		close(done)
	}, nil, true, nstime.Time{Usec: 10_000})
	defer s.Cancel(id)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("threaded event never fired")
	}
}

func TestNextRunsPreview(t *testing.T) {
	s := newTestScheduler()
	defer func() { s.StartShutdown(); s.WaitShutdown(time.Second) }()

	id := s.ScheduleProc(func(arg interface{}) {}, nil, false, nstime.Time{Sec: 1})
	defer s.Cancel(id)

	runs := s.NextRuns(id, 3)
	require.Len(t, runs, 3)
	for i := 1; i < len(runs); i++ {
		assert.Greater(t, cmpTime(runs[i], runs[i-1]), 0)
	}
}

func TestScheduleDailyComputesNextMidnightOffset(t *testing.T) {
	s := New(Config{}, testLogger{})
	now := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	next := nextDaily(nstime.Time{Sec: now.Unix()}, nstime.Time{Sec: 9 * 3600})
	got := time.Unix(next.Sec, 0).UTC()
	assert.Equal(t, 2026, got.Year())
	assert.Equal(t, time.August, got.Month())
	assert.Equal(t, 1, got.Day())
	assert.Equal(t, 9, got.Hour())
	_ = s
}

func TestScheduleWeeklyComputesNextOccurrence(t *testing.T) {
	now := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC) // Friday
	interval := nstime.Time{Sec: int64(time.Sunday)*86400 + 8*3600}
	next := nextWeekly(nstime.Time{Sec: now.Unix()}, interval)
	got := time.Unix(next.Sec, 0).UTC()
	assert.Equal(t, time.Sunday, got.Weekday())
	assert.Equal(t, 8, got.Hour())
	assert.True(t, got.After(now))
}
