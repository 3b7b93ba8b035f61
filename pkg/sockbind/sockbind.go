// Package sockbind defines the driver-facing socket seam: socket-pair
// wakeups, async DNS resolution, and the readable/writable/exception/
// exit callback registrations a reactor-style driver would implement.
// As with pkg/driver, this module states the interfaces only; the
// owning driver (external per spec.md §1) supplies the concrete
// event loop and I/O.
package sockbind

import (
	"context"
	"net"
)

// EventKind names which condition triggered a callback.
type EventKind int

const (
	EventReadable EventKind = iota
	EventWritable
	EventException
	EventExit
)

// Callback is invoked by the driver's event loop when fd meets kind.
// Returning false deregisters the callback for fd.
type Callback func(fd int, kind EventKind) (keepRegistered bool)

// Reactor is the event-loop seam: callbacks register interest in a
// file descriptor's readability/writability/exceptional state, or in
// the loop's own shutdown (EventExit).
type Reactor interface {
	// Register arms cb for fd on the given kind; it fires at most once
	// per matching loop iteration.
	Register(fd int, kind EventKind, cb Callback) error

	// Unregister removes every callback previously armed for fd.
	Unregister(fd int) error
}

// SocketPair is a connected pair of local sockets used to wake a
// blocked event loop from another thread (the classic self-pipe
// trick).
type SocketPair interface {
	// Trigger writes one byte to the pair's write end, waking any
	// Reactor blocked reading the read end.
	Trigger() error
	ReadFD() int
	WriteFD() int
	Close() error
}

// Resolver performs DNS lookups off the event-loop thread, delivering
// the result via the supplied callback so the reactor is never blocked
// on name resolution.
type Resolver interface {
	// ResolveAsync looks up host and invokes done with the result once
	// available. It returns immediately.
	ResolveAsync(ctx context.Context, host string, done func([]net.IP, error))
}

// Listener accepts inbound connections and hands each to accept; the
// driver owns the socket lifecycle, so Listener only wraps the
// listen+accept-loop seam, so a caller can react to new connections
// without depending on net.Listener directly.
type Listener interface {
	// Serve blocks, calling accept for every accepted connection, until
	// ctx is cancelled or Close is called.
	Serve(ctx context.Context, accept func(net.Conn)) error
	Close() error
}
