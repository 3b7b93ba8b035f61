// Package urlspace wraps a gorilla/mux router for pure pattern matching
// over a URL space: registering a handler name against a path pattern
// and resolving a request path back to the longest (most specific)
// matching registration. It never serves HTTP itself; the fast path
// dispatch table (directoryproc/directoryadp) and anything else that
// needs longest-match URL-space lookups builds on this instead of
// reimplementing pattern matching.
package urlspace

import (
	"net/http"
	"sync"

	"github.com/gorilla/mux"
)

// Space is a registered set of (method, pattern) -> value bindings.
// Resolve tries every registered route and keeps the match whose path
// template is longest; between matches with equally long templates,
// which one wins is not defined.
type Space struct {
	mu     sync.RWMutex
	router *mux.Router
	routes map[*mux.Route]interface{}
}

// New creates an empty Space.
func New() *Space {
	return &Space{
		router: mux.NewRouter(),
		routes: make(map[*mux.Route]interface{}),
	}
}

// Register binds value to every request matching method and pattern.
// An empty method matches any method.
func (s *Space) Register(method, pattern string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	route := s.router.NewRoute().Path(pattern)
	if method != "" {
		route = route.Methods(method)
	}
	s.routes[route] = value
}

// Resolve returns the value bound to the most specific pattern matching
// method and path, or nil if nothing matches.
func (s *Space) Resolve(method, path string) interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, err := http.NewRequest(method, path, nil)
	if err != nil {
		return nil
	}
	var best interface{}
	bestLen := -1
	for route, value := range s.routes {
		var match mux.RouteMatch
		if !route.Match(req, &match) {
			continue
		}
		tpl, err := route.GetPathTemplate()
		if err == nil && len(tpl) > bestLen {
			best, bestLen = value, len(tpl)
		}
	}
	return best
}
