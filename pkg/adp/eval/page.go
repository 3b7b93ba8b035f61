// Package eval implements the ADP page cache and execution frame: a
// server-wide shared Page cache keyed by path and compile flags, a per-interpreter
// bytecode cache layered on top of it, an optional result cache with
// expiration, and the nested-frame execution loop that walks a parsed
// Code's blocks.
package eval

import (
	"os"
	"sync"
	"time"

	"github.com/naviserver-project/naviserver-sub002/pkg/adp/parser"
	"github.com/naviserver-project/naviserver-sub002/pkg/fsstat"
)

// Stat is the subset of file metadata used to validate a cached Page.
type Stat struct {
	ModTime time.Time
	Size    int64
	Dev     uint64
	Ino     uint64
}

func statFile(path string) (Stat, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Stat{}, err
	}
	dev, ino := fsstat.DevIno(info)
	return Stat{ModTime: info.ModTime(), Size: info.Size(), Dev: dev, Ino: ino}, nil
}

// Page is a parsed template: the shared cache stores these keyed by
// path and the Flags they were compiled with.
type Page struct {
	Path  string
	Stat  Stat
	Code  *parser.Code
	Flags parser.Flags

	mu         sync.Mutex
	cache      *cacheEntry // optional result cache
	rebuilding bool
}

// cacheEntry is the optional result-cache payload: a previous pure run's
// rendered output, valid until expires.
type cacheEntry struct {
	output  string
	expires time.Time
	refs    int
}

// InterpPage is the per-interpreter view of a shared Page: it mirrors the
// Page's Stat at the time it was adopted so a later mismatch triggers
// eviction without consulting the shared cache's lock.
type InterpPage struct {
	Page     *Page
	Stat     Stat
	objCache map[int]interface{} // per-block compiled-object slot, lazily filled
}

func (ip *InterpPage) stale() bool {
	cur, err := statFile(ip.Page.Path)
	if err != nil {
		return true
	}
	return cur != ip.Stat
}
