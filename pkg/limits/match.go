package limits

import (
	"net/http"
	"path"
)

// newMatchRequest builds a minimal *http.Request suitable for
// mux.Router.Match, which only inspects Method and URL.
func newMatchRequest(method, url string) *http.Request {
	req, _ := http.NewRequest(method, url, nil)
	return req
}

// pathMatch is a thin wrapper around path.Match for Limits-name glob
// filtering (the registry's names are flat strings, not filesystem
// paths, but the shell-glob semantics are exactly what "list ?pattern"
// needs).
func pathMatch(pattern, name string) (bool, error) {
	return path.Match(pattern, name)
}
