//go:build windows

package main

import (
	"fmt"

	"github.com/naviserver-project/naviserver-sub002/pkg/logging"
)

// dropPrivileges is a no-op on Windows: -u/-g/-r model POSIX
// setuid/setgid/chroot semantics that don't apply there.
func dropPrivileges(opts serverOptions, log *logging.Logger) error {
	if opts.user != "" || opts.group != "" || opts.chroot != "" {
		log.Warnf("nsappd: -u/-g/-r have no effect on Windows")
	}
	return nil
}

// runWindowsServiceMode handles -I/-R/-S: install, remove, or start the
// Windows service. The service-manager registration itself is left to
// golang.org/x/sys/windows/svc in a full deployment; this module only
// owns the composition root that the installed service would invoke.
func runWindowsServiceMode(modes modeFlags) error {
	switch {
	case modes.winInstall:
		return fmt.Errorf("service installation requires svc.IsAnInteractiveSession tooling not wired in this build")
	case modes.winRemove:
		return fmt.Errorf("service removal requires svc.IsAnInteractiveSession tooling not wired in this build")
	case modes.winStart:
		return fmt.Errorf("service start requires svc.IsAnInteractiveSession tooling not wired in this build")
	}
	return nil
}
