package nsthread

import (
	"fmt"
	"sync"
)

// MaxTLS bounds the number of distinct thread-local slots a process may
// allocate, matching the original's fixed-size per-thread slot array.
const MaxTLS = 128

// maxCleanupPasses is the number of sweeps TLSCleanup performs to
// accommodate a cleanup callback that repopulates slots for another key
// during its own teardown.
const maxCleanupPasses = 5

// Cleanup is invoked, in LIFO order of first assignment, for any slot that still
// holds a non-nil value when TLSCleanup runs.
type Cleanup func(value interface{})

var tlsKeys = struct {
	sync.Mutex
	next     int
	cleanups []Cleanup
}{}

// TLSKey identifies one thread-local slot, monotonically allocated.
type TLSKey int

// NewTLSKey allocates a new slot with an optional cleanup callback invoked
// at thread exit. It aborts the process if MaxTLS would be exceeded,
// matching the original's fatal-on-exhaustion behavior for a primitive
// failure.
func NewTLSKey(cleanup Cleanup) TLSKey {
	tlsKeys.Lock()
	defer tlsKeys.Unlock()
	if tlsKeys.next >= MaxTLS {
		panic(fmt.Sprintf("nsthread: TLS slot exhaustion, MAX_TLS=%d", MaxTLS))
	}
	key := TLSKey(tlsKeys.next)
	tlsKeys.next++
	tlsKeys.cleanups = append(tlsKeys.cleanups, cleanup)
	return key
}

// TLS is a per-goroutine slot array. Go has no native concept of "current
// OS thread" for userspace code, so callers own one TLS value per
// goroutine (typically stored in a goroutine-local via context or a
// worker-loop closure) and call Cleanup explicitly when that goroutine
// exits, which is the direct analogue of the original's thread-exit
// destructor sweep.
type TLS struct {
	mu     sync.Mutex
	values map[TLSKey]interface{}
	order  []TLSKey // order of first Set, for LIFO cleanup
}

// NewTLS creates an empty slot array.
func NewTLS() *TLS {
	return &TLS{values: make(map[TLSKey]interface{})}
}

// Get returns the value stored at key, or nil if unset.
func (t *TLS) Get(key TLSKey) interface{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.values[key]
}

// Set stores value at key.
func (t *TLS) Set(key TLSKey, value interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.values[key]; !exists {
		t.order = append(t.order, key)
	}
	t.values[key] = value
}

// Cleanup runs each populated slot's cleanup callback in LIFO order of
// first assignment, then clears it. Because a cleanup routine may
// repopulate a slot (its own or another's) during teardown, the sweep
// repeats until either nothing remains or maxCleanupPasses is reached.
func (t *TLS) Cleanup() {
	tlsKeys.Lock()
	cleanups := make([]Cleanup, len(tlsKeys.cleanups))
	copy(cleanups, tlsKeys.cleanups)
	tlsKeys.Unlock()

	for pass := 0; pass < maxCleanupPasses; pass++ {
		t.mu.Lock()
		if len(t.order) == 0 {
			t.mu.Unlock()
			return
		}
		// Snapshot in LIFO order, then clear before invoking callbacks so
		// a callback that repopulates a slot is picked up by the next
		// pass rather than re-triggering this one.
		order := make([]TLSKey, len(t.order))
		copy(order, t.order)
		values := make(map[TLSKey]interface{}, len(t.values))
		for k, v := range t.values {
			values[k] = v
		}
		t.values = make(map[TLSKey]interface{})
		t.order = nil
		t.mu.Unlock()

		for i := len(order) - 1; i >= 0; i-- {
			key := order[i]
			v := values[key]
			if v == nil {
				continue
			}
			if int(key) < len(cleanups) && cleanups[key] != nil {
				cleanups[key](v)
			}
		}
	}
}
