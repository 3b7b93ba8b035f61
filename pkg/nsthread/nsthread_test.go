package nsthread

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestName2TruncatesWithSeparator(t *testing.T) {
	assert.Equal(t, "prefix:suffix", Name2("prefix", "suffix"))
}

func TestMutexSingleThreadNeverBusy(t *testing.T) {
	m := NewMutex("test-single")
	for i := 0; i < 1000; i++ {
		m.Lock()
		m.Unlock()
	}
	stats := m.Stats()
	assert.EqualValues(t, 0, stats.NBusy)
	assert.EqualValues(t, 1000, stats.NLock)
}

func TestMutexContentionAccounting(t *testing.T) {
	m := NewMutex("test-contended")
	m.Lock()

	done := make(chan struct{})
	go func() {
		m.Lock()
		m.Unlock()
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	m.Unlock()
	<-done

	stats := m.Stats()
	assert.EqualValues(t, 1, stats.NBusy)
	assert.EqualValues(t, 2, stats.NLock)
}

func TestRWLockReadersConcurrent(t *testing.T) {
	rw := NewRWLock("test-rw")
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rw.RLock()
			time.Sleep(time.Millisecond)
			rw.RUnlock()
		}()
	}
	wg.Wait()
	stats := rw.Stats()
	assert.EqualValues(t, 10, stats.NReadLock)
}

func TestRWLockWriteExclusive(t *testing.T) {
	rw := NewRWLock("test-rw-excl")
	rw.Lock()
	defer rw.Unlock()

	acquired := make(chan struct{})
	go func() {
		rw.RLock()
		close(acquired)
		rw.RUnlock()
	}()

	select {
	case <-acquired:
		t.Fatal("reader should not acquire while writer holds the lock")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestSemaphoreWaitBlocksUntilPost(t *testing.T) {
	s := NewSemaphore(0)
	done := make(chan struct{})
	go func() {
		s.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Wait returned before Post")
	case <-time.After(10 * time.Millisecond):
	}

	s.Post(1)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not unblock after Post")
	}
}

func TestSemaphoreTryWait(t *testing.T) {
	s := NewSemaphore(1)
	require.True(t, s.TryWait())
	require.False(t, s.TryWait())
	s.Post(2)
	assert.EqualValues(t, 2, s.Count())
}

func TestTLSCleanupLIFOOrder(t *testing.T) {
	var order []int

	k1 := NewTLSKey(func(v interface{}) { order = append(order, v.(int)) })
	k2 := NewTLSKey(func(v interface{}) { order = append(order, v.(int)) })

	tls := NewTLS()
	tls.Set(k1, 1)
	tls.Set(k2, 2)
	tls.Cleanup()

	require.Equal(t, []int{2, 1}, order)
}

func TestTLSCleanupHandlesRepopulation(t *testing.T) {
	var calls int
	var k2 TLSKey
	var tls *TLS

	k1 := NewTLSKey(func(v interface{}) {
		calls++
		if calls == 1 {
			tls.Set(k2, "late")
		}
	})
	k2 = NewTLSKey(func(v interface{}) { calls++ })

	tls = NewTLS()
	tls.Set(k1, "first")
	tls.Cleanup()

	assert.Equal(t, 2, calls)
}

func TestCriticalSectionReentrant(t *testing.T) {
	cs := NewCriticalSection()
	cs.Enter("owner")
	cs.Enter("owner")
	cs.Leave("owner")
	cs.Leave("owner")
}

func TestCriticalSectionBlocksOtherOwner(t *testing.T) {
	cs := NewCriticalSection()
	cs.Enter("a")

	acquired := make(chan struct{})
	go func() {
		cs.Enter("b")
		close(acquired)
		cs.Leave("b")
	}()

	select {
	case <-acquired:
		t.Fatal("second owner should not enter while first holds the section")
	case <-time.After(20 * time.Millisecond):
	}

	cs.Leave("a")
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second owner never acquired after release")
	}
}

func TestWalkMutexesSeesRegistered(t *testing.T) {
	NewMutex("walk-target")
	found := false
	WalkMutexes(func(s MutexStats) {
		if s.Name == "walk-target" {
			found = true
		}
	})
	assert.True(t, found)
}
