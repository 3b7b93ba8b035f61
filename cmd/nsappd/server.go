package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/net/netutil"

	"github.com/naviserver-project/naviserver-sub002/pkg/adp/eval"
	"github.com/naviserver-project/naviserver-sub002/pkg/adp/parser"
	"github.com/naviserver-project/naviserver-sub002/pkg/config"
	"github.com/naviserver-project/naviserver-sub002/pkg/fastpath"
	"github.com/naviserver-project/naviserver-sub002/pkg/jobqueue"
	"github.com/naviserver-project/naviserver-sub002/pkg/limits"
	"github.com/naviserver-project/naviserver-sub002/pkg/logging"
	"github.com/naviserver-project/naviserver-sub002/pkg/metrics"
	"github.com/naviserver-project/naviserver-sub002/pkg/scheduler"
)

// serverOptions carries the parsed command-line surface into the
// composition root.
type serverOptions struct {
	server      string
	configPath  string
	user        string
	group       string
	chroot      string
	binds       []string
	bindFile    string
	interactive bool
	watchdog    bool
	inittab     bool
}

// noopEvaluator is the scripting-evaluator seam's default binding: this
// module implements no scripting language of its own (spec.md §1
// non-goal), so a real deployment injects its own Evaluator; absent one,
// scripts and ADP script blocks simply produce no output.
type noopEvaluator struct{}

func (noopEvaluator) Eval(ctx context.Context, script string) (string, error) { return "", nil }

type noopJobEvaluator struct{}

func (noopJobEvaluator) Eval(ctx context.Context, script string) (result, errorCode, errorInfo string, err error) {
	return "", "", "", nil
}

// runServer builds every component named in the module list, binds the
// configured listeners, serves until a signal arrives, and drains
// in-flight work before exiting. It returns the process exit code:
// 0 on a graceful SIGTERM/SIGINT, the trapped signal number otherwise.
func runServer(cfg *config.Config, configPath string, log *logging.Logger, opts serverOptions) int {
	if err := dropPrivileges(opts, log); err != nil {
		fmt.Fprintln(os.Stderr, "nsappd:", err)
		return 1
	}

	sched := scheduler.New(scheduler.Config{
		ShutdownTimeout: time.Duration(cfg.Global.ShutdownTimeoutSecs) * time.Second,
	}, log.WithComponent("scheduler"))
	sched.Start()
	defer sched.StartShutdown()

	pool := jobqueue.New(jobqueue.Config{
		Timeout: 30 * time.Second,
	}, noopJobEvaluator{}, log.WithComponent("jobqueue"))
	_ = pool.Create("default", "default job queue", 4)

	lims := limits.NewRegistry()

	pageCache := eval.NewPageCache(parser.TagRegistry(nil))

	docroot := cfg.FastPath.ServerDir
	if docroot == "" {
		docroot = "."
	}
	fp := fastpath.New(fastpath.Config{
		DirectoryFiles: cfg.FastPath.DirectoryFile,
		GzipStatic:     cfg.FastPath.GzipStatic,
		GzipRefresh:    cfg.FastPath.GzipRefresh,
		CacheMaxSize:   cfg.FastPath.CacheMaxSize,
		CacheMaxEntry:  cfg.FastPath.CacheMaxEntry,
	}, urlToFile(docroot), log.WithComponent("fastpath"), 10000)

	metricsReg := metrics.New(pool, lims)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metricsReg.Handler())
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		release, err := lims.Resolve(r.Method, r.URL.Path).Admit()
		if err != nil {
			http.Error(w, "server too busy", http.StatusServiceUnavailable)
			return
		}
		defer release()

		if strings.HasSuffix(r.URL.Path, ".adp") {
			serveADP(w, r, pageCache, docroot, cfg)
			return
		}
		_ = fp.Dispatch(w, r, r.URL.Path)
	})

	httpServer := &http.Server{Handler: mux}

	listeners, err := bindListeners(opts, cfg, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "nsappd:", err)
		return 1
	}
	if len(listeners) == 0 {
		listeners = append(listeners, ":8080")
	}

	pidPath := pidFilePath(cfg)
	if pidPath != "" {
		if err := writePIDFile(pidPath); err != nil {
			log.Warnf("nsappd: pid file: %v", err)
		}
		defer removePIDFile(pidPath)
	}

	serveErrs := make(chan error, len(listeners))
	for _, addr := range listeners {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			fmt.Fprintln(os.Stderr, "nsappd: listen", addr, err)
			return 1
		}
		if maxRun := limits.DefaultLimits.MaxRun; maxRun > 0 {
			ln = netutil.LimitListener(ln, maxRun)
		}
		log.Infof("nsappd: listening on %s", addr)
		go func(ln net.Listener) { serveErrs <- httpServer.Serve(ln) }(ln)
	}

	if opts.interactive {
		go runInteractiveConsole(pool, sched, lims)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, terminationSignals()...)

	var gotSignal os.Signal
	select {
	case gotSignal = <-sigCh:
	case err := <-serveErrs:
		if err != nil && err != http.ErrServerClosed {
			log.Errorf("nsappd: serve: %v", err)
			return 1
		}
	}

	return shutdown(httpServer, pool, sched, log, cfg, gotSignal)
}

// shutdown drains in-flight HTTP requests, scheduled events, and queued
// jobs within the configured deadline, showing a progress bar on stderr
// while the HTTP server drains.
func shutdown(httpServer *http.Server, pool *jobqueue.Pool, sched *scheduler.Scheduler, log *logging.Logger, cfg *config.Config, sig os.Signal) int {
	deadline := time.Duration(cfg.Global.ShutdownTimeoutSecs) * time.Second
	if deadline <= 0 {
		deadline = 10 * time.Second
	}

	bar := progressbar.NewOptions(100,
		progressbar.OptionSetDescription("shutting down"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
	)

	ctx, cancel := context.WithTimeout(context.Background(), deadline)
	defer cancel()

	done := make(chan struct{})
	go func() {
		_ = httpServer.Shutdown(ctx)
		close(done)
	}()

	ticker := time.NewTicker(deadline / 100)
	defer ticker.Stop()
	pct := 0
loop:
	for {
		select {
		case <-done:
			break loop
		case <-ticker.C:
			if pct < 99 {
				pct++
				_ = bar.Set(pct)
			}
		}
	}
	_ = bar.Set(100)

	pool.Shutdown(deadline)
	sched.WaitShutdown(deadline)

	if sig == nil || isGracefulSignal(sig) {
		log.Infof("nsappd: graceful shutdown complete")
		return 0
	}
	if signum, ok := sig.(syscall.Signal); ok {
		log.Warnf("nsappd: exiting on signal %d", int(signum))
		return int(signum)
	}
	return 0
}

// serveADP renders an ADP page through the shared page cache and the
// frame execution loop, using the no-op scripting evaluator placeholder
// (§7 propagates evaluator errors as the rendered body on failure).
func serveADP(w http.ResponseWriter, r *http.Request, cache *eval.PageCache, docroot string, cfg *config.Config) {
	path := docroot + r.URL.Path

	var flags parser.Flags
	if cfg.ADP.Cache {
		flags |= parser.CACHE
	}
	if cfg.ADP.SafeEval {
		flags |= parser.SAFE
	}
	if cfg.ADP.SingleScript {
		flags |= parser.SINGLE
	}

	page, _, err := cache.Acquire(path, flags)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer cache.Release(path, flags)

	out, err := eval.Exec(r.Context(), page, noopEvaluator{}, cfg.ADP.StrictError, nil)
	if err != nil {
		http.Error(w, fmt.Sprintf("adp error: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(out))
}

// urlToFile builds the simplest possible docroot resolver: join the URL
// path onto docroot. The real NaviServer url-to-file mapping also
// consults per-virtual-server aliases, which live with the request
// driver (out of scope here, §6).
func urlToFile(docroot string) fastpath.URLToFile {
	return func(url string) (string, error) {
		return docroot + url, nil
	}
}
