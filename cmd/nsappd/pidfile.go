package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/naviserver-project/naviserver-sub002/pkg/config"
)

// pidFilePath builds the conventional PID file location under the
// configured home directory, matching the persisted-state surface
// (spec.md §6 "Persisted state").
func pidFilePath(cfg *config.Config) string {
	if cfg.Global.Home == "" {
		return ""
	}
	return filepath.Join(cfg.Global.Home, "log", "nsappd.pid")
}

// writePIDFile writes the current process id to path, creating parent
// directories as needed.
func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("pidfile: mkdir: %w", err)
	}
	return os.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644)
}

// removePIDFile deletes the PID file on shutdown; a missing file is not
// an error.
func removePIDFile(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		fmt.Fprintln(os.Stderr, "nsappd: removing pid file:", err)
	}
}
