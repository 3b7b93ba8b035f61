//go:build unix

package main

import (
	"os"
	"syscall"
)

// terminationSignals lists the signals nsappd traps to begin graceful
// shutdown: SIGTERM and SIGINT exit 0 (spec.md §6); SIGHUP also starts
// the same shutdown rather than a config reload, but is not graceful, so
// the process exits with its signal number.
func terminationSignals() []os.Signal {
	return []os.Signal{syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP}
}

func isGracefulSignal(sig os.Signal) bool {
	return sig == syscall.SIGTERM || sig == syscall.SIGINT
}
