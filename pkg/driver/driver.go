// Package driver defines the seams between the core runtime services
// (scheduler, job queue, ADP, fast path) and the two external
// collaborators spec.md places out of scope: the connection driver
// that owns sockets and HTTP framing, and the embedded scripting
// interpreter. Neither has a concrete implementation here; callers
// supply their own and the rest of the module depends only on these
// interfaces.
package driver

import (
	"context"
	"io"
	"net/url"
	"time"
)

// Conn is one in-flight request/response exchange, as handed to
// Dispatch by the owning driver.
type Conn interface {
	Method() string
	URL() *url.URL
	Header(name string) string
	RemoteAddr() string
}

// Result is the outcome of dispatching a connection.
type Result int

const (
	ResultOK Result = iota
	ResultError
)

// Handler dispatches a connection and returns OK/ERROR, mirroring
// dispatch(conn) in spec.md §6.
type Handler interface {
	Dispatch(ctx context.Context, conn Conn) Result
}

// ReturnStatus is the outcome of a return_* call.
type ReturnStatus int

const (
	ReturnOK ReturnStatus = iota
	ReturnNotFound
	ReturnError
)

// ResponseWriter is the request-side interface a handler uses to
// produce a response: file delivery, raw bytes, an already-open fd,
// conditional responses, redirects, and 404s.
type ResponseWriter interface {
	ReturnFile(conn Conn, status int, mimeType, path string) ReturnStatus
	ReturnData(conn Conn, status int, data []byte, mimeType string)
	ReturnOpenFile(conn Conn, status int, mimeType string, f io.ReaderAt, size int64)
	ReturnNotModified(conn Conn)
	ReturnPreconditionFailed(conn Conn)
	ReturnRedirect(conn Conn, url string)
	ReturnNotFound(conn Conn)
}

// ConditionalHeaders carries the driver's already-parsed date headers;
// date-format parsing itself is the driver's responsibility (an
// external collaborator per spec.md §1), not this module's.
type ConditionalHeaders struct {
	IfModifiedSince   time.Time
	IfUnmodifiedSince time.Time
}

// Evaluator is the embedded scripting interpreter's seam: allocate/free
// per worker, set/read named variables, evaluate a script with a file
// association for tracebacks or a pre-compiled handle, and support
// async cancellation from another thread.
type Evaluator interface {
	// SetVar/GetVar manipulate a named variable in the evaluator's
	// current scope.
	SetVar(name, value string) error
	GetVar(name string) (string, bool)

	// EvalString runs script, associating it with file for tracebacks
	// (file may be empty for inline strings).
	EvalString(ctx context.Context, script, file string) (result string, err error)

	// EvalCompiled runs a handle previously returned by Compile.
	EvalCompiled(ctx context.Context, handle CompiledScript) (result string, err error)

	// Compile pre-compiles script for repeated EvalCompiled calls.
	Compile(script, file string) (CompiledScript, error)

	// Cancel raises an async cancellation visible to the evaluator's
	// next safe point, callable from another thread while EvalString
	// or EvalCompiled is in flight.
	Cancel()

	// ErrorCode and ErrorInfo mirror the evaluator's last error state;
	// IsTimeout reports whether ErrorCode names a TIMEOUT condition.
	ErrorCode() string
	ErrorInfo() string
	IsTimeout() bool
}

// CompiledScript is an opaque handle to a pre-compiled script, scoped
// to the Evaluator that produced it.
type CompiledScript interface {
	// Source returns the original script text, for trace/debug output.
	Source() string
}

// Pool allocates and frees per-worker Evaluators; the scheduler and job
// queue both depend only on this, never a concrete interpreter.
type Pool interface {
	Acquire(ctx context.Context) (Evaluator, error)
	Release(Evaluator)
}
