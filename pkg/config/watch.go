package config

import (
	"context"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/naviserver-project/naviserver-sub002/pkg/logging"
)

// Logger is the narrow logging surface the watcher needs.
type Logger interface {
	Warnf(format string, args ...interface{})
	Infof(format string, args ...interface{})
}

// Watcher reloads a config file whenever it changes on disk, debouncing
// the rapid write-then-rename sequence many editors and deploy tools
// produce, and delivers each successfully reloaded Config to onChange.
type Watcher struct {
	path     string
	onChange func(*Config)
	log      Logger

	fs     *fsnotify.Watcher
	cancel context.CancelFunc
	done   sync.WaitGroup
}

const debounce = 100 * time.Millisecond

// Watch starts watching path for changes, calling onChange with each
// successfully reloaded configuration. The caller owns the returned
// Watcher and must call Stop to release the fsnotify handle.
func Watch(path string, onChange func(*Config), log Logger) (*Watcher, error) {
	if log == nil {
		log = logging.GetGlobalLogger()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{path: path, onChange: onChange, log: log, fs: fsw, cancel: cancel}

	w.done.Add(1)
	go w.loop(ctx)
	return w, nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.done.Done()

	var timer *time.Timer
	reload := func() {
		cfg, err := Load(w.path)
		if err != nil {
			w.log.Warnf("config: reload of %s failed, keeping previous config: %v", w.path, err)
			return
		}
		w.log.Infof("config: reloaded %s", w.path)
		w.onChange(cfg)
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, reload)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.Warnf("config: watcher error on %s: %v", w.path, err)
		}
	}
}

// Stop halts the watcher and releases its fsnotify handle.
func (w *Watcher) Stop() error {
	w.cancel()
	err := w.fs.Close()
	w.done.Wait()
	return err
}
