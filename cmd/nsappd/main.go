// Command nsappd is the application server's command-line entry point:
// flag parsing, configuration loading, and graceful startup/shutdown of
// the scheduler, job queue, limits registry, fast path, and ADP
// evaluator wired behind an HTTP listener.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	flag "github.com/spf13/pflag"

	"github.com/naviserver-project/naviserver-sub002/pkg/config"
	"github.com/naviserver-project/naviserver-sub002/pkg/logging"
)

var (
	version = "dev"
	commit  = "unknown"
)

// modeFlags mirrors spec.md §6's mutually exclusive run modes.
type modeFlags struct {
	interactive bool // -c
	foreground  bool // -f
	inittab     bool // -i
	watchdog    bool // -w
	winInstall  bool // -I
	winRemove   bool // -R
	winStart    bool // -S
}

func (m modeFlags) count() int {
	n := 0
	for _, set := range []bool{m.interactive, m.foreground, m.inittab, m.watchdog, m.winInstall, m.winRemove, m.winStart} {
		if set {
			n++
		}
	}
	return n
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("nsappd", flag.ContinueOnError)
	fs.Usage = func() { printUsage(fs) }

	var (
		showHelp    = fs.BoolP("help", "h", false, "Show this help and exit")
		showVersion = fs.BoolP("version", "V", false, "Show version and exit")

		modeInteractive = fs.BoolP("interactive", "c", false, "Run interactively, reading commands from stdin")
		modeForeground  = fs.BoolP("foreground", "f", false, "Run in the foreground (no daemonizing)")
		modeInittab     = fs.BoolP("inittab", "i", false, "Inittab mode; runs the server in the foreground, with no restart on exit")
		modeWatchdog    = fs.BoolP("watchdog", "w", false, "Watchdog mode; runs the server in the foreground, with no worker restart")
		modeWinInstall  = fs.BoolP("install", "I", false, "Install as a Windows service (Windows only)")
		modeWinRemove   = fs.BoolP("remove", "R", false, "Remove the Windows service (Windows only)")
		modeWinStart    = fs.BoolP("start-service", "S", false, "Start the installed Windows service (Windows only)")

		server       = fs.StringP("server", "s", "", "Virtual server name")
		configFile   = fs.StringP("config", "t", "", "Path to the configuration file")
		checkConfig  = fs.BoolP("check-config", "T", false, "Parse and validate the configuration, then exit")
		user         = fs.StringP("user", "u", "", "Run as this user after binding")
		group        = fs.StringP("group", "g", "", "Run as this group after binding")
		chroot       = fs.StringP("chroot", "r", "", "chroot(2) to this directory after binding")
		binds        = fs.StringP("bind", "b", "", "Comma-separated addr:port list to listen on")
		bindFile     = fs.StringP("bind-file", "B", "", "File containing addr:port entries, one per line")
	)

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	if *showHelp {
		printUsage(fs)
		return 0
	}
	if *showVersion {
		fmt.Printf("nsappd version %s (commit %s)\n", version, commit)
		return 0
	}

	modes := modeFlags{
		interactive: *modeInteractive,
		foreground:  *modeForeground,
		inittab:     *modeInittab,
		watchdog:    *modeWatchdog,
		winInstall:  *modeWinInstall,
		winRemove:   *modeWinRemove,
		winStart:    *modeWinStart,
	}
	if modes.count() > 1 {
		fmt.Fprintln(os.Stderr, "nsappd: -c, -f, -i, -w, -I, -R, -S are mutually exclusive")
		return 2
	}

	if modes.winInstall || modes.winRemove || modes.winStart {
		if err := runWindowsServiceMode(modes); err != nil {
			fmt.Fprintln(os.Stderr, "nsappd:", err)
			return 1
		}
		return 0
	}

	path := *configFile
	if path == "" {
		home, _ := os.UserHomeDir()
		path = config.DefaultPath(home)
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "nsappd: configuration error:", err)
		return 1
	}

	if *checkConfig {
		fmt.Printf("nsappd: %s is valid\n", path)
		return 0
	}

	level, err := logging.ParseLogLevel(cfg.Global.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "nsappd: configuration error:", err)
		return 1
	}
	format, err := logging.ParseLogFormat(cfg.Global.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, "nsappd: configuration error:", err)
		return 1
	}

	var output io.Writer = os.Stderr
	if cfg.Global.LogDir != "" {
		output, err = logging.CreateCombinedOutput(filepath.Join(cfg.Global.LogDir, "nsappd.log"))
		if err != nil {
			fmt.Fprintln(os.Stderr, "nsappd:", err)
			return 1
		}
	}

	log := logging.NewLogger(&logging.Config{Level: level, Format: format, Output: output, Component: "nsappd"})

	opts := serverOptions{
		server:      *server,
		configPath:  path,
		user:        *user,
		group:       *group,
		chroot:      *chroot,
		binds:       splitNonEmpty(*binds, ','),
		bindFile:    *bindFile,
		interactive: modes.interactive,
		watchdog:    modes.watchdog,
		inittab:     modes.inittab,
	}

	return runServer(cfg, path, log, opts)
}

func splitNonEmpty(s string, sep byte) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `nsappd - application server daemon

Usage:
  nsappd [options]

Modes (mutually exclusive):
  -c    Interactive: read commands from stdin
  -f    Foreground: run without daemonizing
  -i    Inittab: run in the foreground (no restart on exit)
  -w    Watchdog: run in the foreground (no worker restart)
  -I    Install as a Windows service
  -R    Remove the Windows service
  -S    Start the installed Windows service

Options:
`)
	fs.PrintDefaults()
}
