// Package fdpool manages a small LIFO pool of reusable temp-file
// descriptors so hot paths (ADP result caching, upload spooling) avoid
// repeated open/unlink churn.
package fdpool

import (
	"fmt"
	"os"
	"sync"
)

const maxEexistRetries = 10

var pool = struct {
	sync.Mutex
	files []*os.File
}{}

// GetTemp pops a descriptor from the pool; if none is available it opens a
// new temp file exclusively, unlinks it immediately (POSIX) so its storage
// is reclaimed the moment every descriptor referencing it closes, and
// marks it close-on-exec. EEXIST races against another process are retried
// up to maxEexistRetries times.
func GetTemp() (*os.File, error) {
	pool.Lock()
	if n := len(pool.files); n > 0 {
		f := pool.files[n-1]
		pool.files = pool.files[:n-1]
		pool.Unlock()
		return f, nil
	}
	pool.Unlock()

	dir := os.TempDir()
	var lastErr error
	for attempt := 0; attempt < maxEexistRetries; attempt++ {
		now := nowSecUsec()
		name := fmt.Sprintf("%s/nstmp.%d.%d", dir, now.sec, now.usec)
		f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC|os.O_EXCL, 0o600)
		if err == nil {
			if rmErr := os.Remove(name); rmErr != nil {
				f.Close()
				return nil, fmt.Errorf("fdpool: unlink temp file: %w", rmErr)
			}
			if err := CloseOnExec(f); err != nil {
				f.Close()
				return nil, err
			}
			return f, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("fdpool: create temp file: %w", err)
		}
		lastErr = err
	}
	return nil, fmt.Errorf("fdpool: exhausted %d EEXIST retries: %w", maxEexistRetries, lastErr)
}

// ReleaseTemp seeks to 0, truncates to empty, and returns fd to the pool.
// If either operation fails the descriptor is closed instead of pooled.
func ReleaseTemp(f *os.File) {
	if _, err := f.Seek(0, 0); err != nil {
		f.Close()
		return
	}
	if err := f.Truncate(0); err != nil {
		f.Close()
		return
	}
	pool.Lock()
	pool.files = append(pool.files, f)
	pool.Unlock()
}

// CloseOnExec sets the close-on-exec flag on f.
func CloseOnExec(f *os.File) error {
	return setCloExec(f, true)
}

// NoCloseOnExec clears the close-on-exec flag on f.
func NoCloseOnExec(f *os.File) error {
	return setCloExec(f, false)
}

type secUsec struct {
	sec  int64
	usec int64
}
