package sockbind

import (
	"context"
	"net"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// osSocketPair is a SocketPair backed by os.Pipe, standing in for a
// real driver's self-pipe wakeup mechanism in tests.
type osSocketPair struct {
	r, w *os.File
}

func newOSSocketPair(t *testing.T) *osSocketPair {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	return &osSocketPair{r: r, w: w}
}

func (p *osSocketPair) Trigger() error    { _, err := p.w.Write([]byte{0}); return err }
func (p *osSocketPair) ReadFD() int       { return int(p.r.Fd()) }
func (p *osSocketPair) WriteFD() int      { return int(p.w.Fd()) }
func (p *osSocketPair) Close() error {
	err1 := p.r.Close()
	err2 := p.w.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

func TestSocketPairTriggerWakesReader(t *testing.T) {
	pair := newOSSocketPair(t)
	defer pair.Close()

	var sp SocketPair = pair
	done := make(chan struct{})
	go func() {
		buf := make([]byte, 1)
		pair.r.Read(buf)
		close(done)
	}()

	require.NoError(t, sp.Trigger())
	<-done
}

// fakeReactor is a minimal map-backed Reactor used to exercise the
// Register/Unregister contract without a real event loop.
type fakeReactor struct {
	mu   sync.Mutex
	regs map[int]map[EventKind]Callback
}

func newFakeReactor() *fakeReactor {
	return &fakeReactor{regs: make(map[int]map[EventKind]Callback)}
}

func (r *fakeReactor) Register(fd int, kind EventKind, cb Callback) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.regs[fd] == nil {
		r.regs[fd] = make(map[EventKind]Callback)
	}
	r.regs[fd][kind] = cb
	return nil
}

func (r *fakeReactor) Unregister(fd int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.regs, fd)
	return nil
}

func (r *fakeReactor) fire(fd int, kind EventKind) {
	r.mu.Lock()
	cb, ok := r.regs[fd][kind]
	r.mu.Unlock()
	if !ok {
		return
	}
	if !cb(fd, kind) {
		r.Unregister(fd)
	}
}

func TestReactorDeregistersWhenCallbackReturnsFalse(t *testing.T) {
	var reactor Reactor = newFakeReactor()
	fired := 0
	require.NoError(t, reactor.Register(5, EventReadable, func(fd int, kind EventKind) bool {
		fired++
		return false
	}))

	fr := reactor.(*fakeReactor)
	fr.fire(5, EventReadable)
	assert.Equal(t, 1, fired)

	fr.fire(5, EventReadable)
	assert.Equal(t, 1, fired, "callback should not fire again after returning false")
}

// fakeResolver resolves synchronously from a fixed table, invoking done
// on its own goroutine the way a real async resolver would.
type fakeResolver struct {
	table map[string][]net.IP
}

func (r *fakeResolver) ResolveAsync(ctx context.Context, host string, done func([]net.IP, error)) {
	go func() {
		ips, ok := r.table[host]
		if !ok {
			done(nil, net.UnknownNetworkError("no such host"))
			return
		}
		done(ips, nil)
	}()
}

func TestResolverAsyncDeliversResult(t *testing.T) {
	resolver := &fakeResolver{table: map[string][]net.IP{
		"example.internal": {net.ParseIP("10.0.0.5")},
	}}

	resultCh := make(chan []net.IP, 1)
	errCh := make(chan error, 1)
	resolver.ResolveAsync(context.Background(), "example.internal", func(ips []net.IP, err error) {
		resultCh <- ips
		errCh <- err
	})

	ips := <-resultCh
	err := <-errCh
	require.NoError(t, err)
	require.Len(t, ips, 1)
	assert.Equal(t, "10.0.0.5", ips[0].String())
}
