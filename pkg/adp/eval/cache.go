package eval

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/naviserver-project/naviserver-sub002/pkg/adp/parser"
	"github.com/naviserver-project/naviserver-sub002/pkg/fsstat"
)

// slot is one entry in the shared page cache: either a published Page, or
// nil while a ParseFile call is in flight for it.
type slot struct {
	page    *Page
	parsing bool
	refs    int
}

// PageCache is the server-wide shared cache of parsed ADP pages, keyed by
// (absolute path, compile flags) — the same file parsed with different
// Flags (e.g. SAFE vs not) is a distinct Page, since flags are baked into
// the compiled block list at parse time. Concurrent source() calls on the
// same missing or stale key collapse into a single ParseFile invocation;
// the rest wait on parsed and observe the published result.
type PageCache struct {
	mu     sync.Mutex
	parsed *sync.Cond
	slots  map[cacheKey]*slot

	registry parser.TagRegistry
}

// cacheKey identifies one cached Page by its source path and the exact
// Flags it was (or will be) compiled with.
type cacheKey struct {
	path  string
	flags parser.Flags
}

// NewPageCache creates an empty shared page cache.
func NewPageCache(registry parser.TagRegistry) *PageCache {
	c := &PageCache{slots: make(map[cacheKey]*slot), registry: registry}
	c.parsed = sync.NewCond(&c.mu)
	return c
}

// Acquire resolves path to a validated *Page compiled with flags, parsing
// it (at most once across concurrent callers) if it is missing or stale.
// isNew reports whether this call performed the parse.
func (c *PageCache) Acquire(path string, flags parser.Flags) (page *Page, isNew bool, err error) {
	key := cacheKey{path: path, flags: flags}
	c.mu.Lock()
	for {
		s, ok := c.slots[key]
		if !ok {
			s = &slot{parsing: true}
			c.slots[key] = s
			c.mu.Unlock()
			return c.parseAndPublish(key, s)
		}

		if s.parsing {
			c.parsed.Wait()
			continue
		}

		st, statErr := statFile(path)
		if statErr != nil {
			c.mu.Unlock()
			return nil, false, statErr
		}
		if st != s.page.Stat {
			s.page = nil
			s.parsing = true
			c.mu.Unlock()
			return c.parseAndPublish(key, s)
		}

		s.refs++
		p := s.page
		c.mu.Unlock()
		return p, false, nil
	}
}

func (c *PageCache) parseAndPublish(key cacheKey, s *slot) (*Page, bool, error) {
	page, err := ParseFile(key.path, key.flags, c.registry)

	c.mu.Lock()
	defer c.mu.Unlock()
	s.parsing = false
	if err != nil {
		delete(c.slots, key)
		c.parsed.Broadcast()
		return nil, true, err
	}
	s.page = page
	s.refs++
	c.parsed.Broadcast()
	return page, true, nil
}

// Release drops a reference acquired via Acquire for (path, flags); it
// must be called with the same flags the matching Acquire used.
func (c *PageCache) Release(path string, flags parser.Flags) {
	key := cacheKey{path: path, flags: flags}
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.slots[key]; ok && !s.parsing {
		s.refs--
	}
}

const maxParseRetries = 10

// ParseFile reads path, transcodes it (assumed already UTF-8 here; a real
// deployment would consult the server's configured encoding), and invokes
// the ADP parser. A file that's still being written can report a size
// that disagrees with what was actually read; this is retried up to
// maxParseRetries times, yielding between attempts.
func ParseFile(path string, flags parser.Flags, registry parser.TagRegistry) (*Page, error) {
	var lastErr error
	for attempt := 0; attempt < maxParseRetries; attempt++ {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, err
		}
		size := info.Size()
		buf := make([]byte, size+1)
		n, err := io.ReadFull(f, buf[:size])
		f.Close()
		if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
			return nil, err
		}
		if int64(n) != size {
			lastErr = fmt.Errorf("adp: short read of %s: got %d want %d", path, n, size)
			time.Sleep(time.Millisecond)
			continue
		}

		code, perr := parser.Parse(string(buf[:n]), flags, registry)
		if perr != nil {
			return nil, perr
		}
		dev, ino := fsstat.DevIno(info)
		return &Page{
			Path:  path,
			Stat:  Stat{ModTime: info.ModTime(), Size: size, Dev: dev, Ino: ino},
			Code:  code,
			Flags: flags,
		}, nil
	}
	return nil, lastErr
}
