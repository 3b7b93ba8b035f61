// Package limits implements per-request admission control: named Limits
// records installed against (method, url) patterns, with live and
// cumulative counters the request driver consults on admission.
package limits

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
)

// Limits is one named admission-control record.
type Limits struct {
	Name       string
	MaxRun     int
	MaxWait    int
	MaxUpload  int64
	Timeout    time.Duration

	nrunning  int64
	nwaiting  int64
	ndropped  int64
	noverflow int64
	ntimeout  int64
}

// State is a point-in-time snapshot of a Limits' live counters.
type State struct {
	NRunning int64
	NWaiting int64
}

// Stats is a snapshot of a Limits' cumulative counters.
type Stats struct {
	NDropped  int64
	NOverflow int64
	NTimeout  int64
}

func (l *Limits) State() State {
	return State{
		NRunning: atomic.LoadInt64(&l.nrunning),
		NWaiting: atomic.LoadInt64(&l.nwaiting),
	}
}

func (l *Limits) Stats() Stats {
	return Stats{
		NDropped:  atomic.LoadInt64(&l.ndropped),
		NOverflow: atomic.LoadInt64(&l.noverflow),
		NTimeout:  atomic.LoadInt64(&l.ntimeout),
	}
}

// binding installs a Limits under a (method, url pattern) route. noInherit
// is recorded as passed to Register; Resolve never reads it, since a
// binding only matches its own path and longer paths never inherit it.
type binding struct {
	limits    *Limits
	noInherit bool
}

// Registry resolves (method, url) to a Limits record via a gorilla/mux
// route matcher, the same pattern-matching engine the rest of the module
// uses for URL-space dispatch.
type Registry struct {
	mu       sync.RWMutex
	named    map[string]*Limits
	router   *mux.Router
	bindings map[*mux.Route]*binding
	def      *Limits
}

// DefaultLimits is the process-wide fallback returned when no URL-space
// binding matches.
var DefaultLimits = &Limits{Name: "default", MaxRun: 100, MaxWait: 100, Timeout: 30 * time.Second}

// NewRegistry creates an empty limits registry.
func NewRegistry() *Registry {
	return &Registry{
		named:    make(map[string]*Limits),
		router:   mux.NewRouter(),
		bindings: make(map[*mux.Route]*binding),
		def:      DefaultLimits,
	}
}

// Set creates or updates a named Limits record.
func (r *Registry) Set(name string, maxRun, maxWait int, maxUpload int64, timeout time.Duration) *Limits {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.named[name]
	if !ok {
		l = &Limits{Name: name}
		r.named[name] = l
	}
	l.MaxRun, l.MaxWait, l.MaxUpload, l.Timeout = maxRun, maxWait, maxUpload, timeout
	return l
}

// Get returns a named Limits record, or nil if it doesn't exist.
func (r *Registry) Get(name string) *Limits {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.named[name]
}

// List returns every named Limits whose name matches pattern (a glob-style
// shell pattern; "" matches everything).
func (r *Registry) List(pattern string) []*Limits {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Limits, 0, len(r.named))
	for name, l := range r.named {
		if pattern == "" {
			out = append(out, l)
			continue
		}
		if ok, _ := matchGlob(pattern, name); ok {
			out = append(out, l)
		}
	}
	return out
}

func matchGlob(pattern, name string) (bool, error) {
	return pathMatch(pattern, name)
}

// Register installs limitsName against method+url. The binding is a mux
// route on exactly url: a longer path under url does not match it and
// resolves to the default instead, and where several bindings match, the
// first one registered wins. noInherit is stored with the binding and has
// no effect on resolution.
func (r *Registry) Register(limitsName, method, url string, noInherit bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.named[limitsName]
	if !ok {
		return fmt.Errorf("limits: unknown limits name %q", limitsName)
	}
	route := r.router.NewRoute().Methods(method).Path(url)
	r.bindings[route] = &binding{limits: l, noInherit: noInherit}
	return nil
}

// Resolve finds the Limits installed for method+url, falling back to the
// process default.
func (r *Registry) Resolve(method, url string) *Limits {
	r.mu.RLock()
	defer r.mu.RUnlock()

	req := &mux.RouteMatch{}
	httpReq := newMatchRequest(method, url)
	if r.router.Match(httpReq, req) && req.Route != nil {
		if b, ok := r.bindings[req.Route]; ok {
			return b.limits
		}
	}
	return r.def
}

// Admit attempts to begin a request against l without blocking. Below
// MaxRun (or with MaxRun 0) it bumps nrunning and succeeds. Otherwise it
// rejects: with ErrOverflow, counting noverflow, when the requests being
// turned away at that moment (this one included) exceed MaxWait, and with
// ErrDropped, counting ndropped, when they do not. nwaiting only counts
// those in-flight rejections; no request waits. release must be called
// exactly once when the admitted request finishes.
func (l *Limits) Admit() (release func(), err error) {
	running := atomic.AddInt64(&l.nrunning, 1)
	if int(running) <= l.MaxRun || l.MaxRun == 0 {
		return func() { atomic.AddInt64(&l.nrunning, -1) }, nil
	}
	atomic.AddInt64(&l.nrunning, -1)

	waiting := atomic.AddInt64(&l.nwaiting, 1)
	defer atomic.AddInt64(&l.nwaiting, -1)
	if int(waiting) > l.MaxWait {
		atomic.AddInt64(&l.noverflow, 1)
		return nil, ErrOverflow
	}
	atomic.AddInt64(&l.ndropped, 1)
	return nil, ErrDropped
}

// MarkTimeout records a request that was admitted but exceeded l.Timeout.
func (l *Limits) MarkTimeout() { atomic.AddInt64(&l.ntimeout, 1) }

var (
	ErrOverflow = fmt.Errorf("limits: maxwait exceeded")
	ErrDropped  = fmt.Errorf("limits: request dropped")
)
