//go:build windows

package main

import (
	"os"
)

// terminationSignals is limited to os.Interrupt on Windows, where
// syscall doesn't expose SIGTERM/SIGHUP.
func terminationSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}

func isGracefulSignal(sig os.Signal) bool {
	return sig == os.Interrupt
}
