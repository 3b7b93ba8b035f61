//go:build unix

package main

import (
	"fmt"
	"os/user"
	"strconv"
	"syscall"

	"github.com/naviserver-project/naviserver-sub002/pkg/logging"
)

// dropPrivileges applies -r/-u/-g: chroot first (it needs the caller's
// original root-relative paths resolved), then drop group before user
// (dropping user first would forfeit the permission to change group).
func dropPrivileges(opts serverOptions, log *logging.Logger) error {
	if opts.chroot != "" {
		if err := syscall.Chroot(opts.chroot); err != nil {
			return fmt.Errorf("chroot %s: %w", opts.chroot, err)
		}
		if err := syscall.Chdir("/"); err != nil {
			return fmt.Errorf("chdir after chroot: %w", err)
		}
		log.Infof("nsappd: chrooted to %s", opts.chroot)
	}

	if opts.group != "" {
		gid, err := resolveGID(opts.group)
		if err != nil {
			return err
		}
		if err := syscall.Setgid(gid); err != nil {
			return fmt.Errorf("setgid %d: %w", gid, err)
		}
		log.Infof("nsappd: dropped group to %s", opts.group)
	}

	if opts.user != "" {
		uid, err := resolveUID(opts.user)
		if err != nil {
			return err
		}
		if err := syscall.Setuid(uid); err != nil {
			return fmt.Errorf("setuid %d: %w", uid, err)
		}
		log.Infof("nsappd: dropped user to %s", opts.user)
	}

	return nil
}

func resolveUID(name string) (int, error) {
	if n, err := strconv.Atoi(name); err == nil {
		return n, nil
	}
	u, err := user.Lookup(name)
	if err != nil {
		return 0, fmt.Errorf("lookup user %s: %w", name, err)
	}
	return strconv.Atoi(u.Uid)
}

func resolveGID(name string) (int, error) {
	if n, err := strconv.Atoi(name); err == nil {
		return n, nil
	}
	g, err := user.LookupGroup(name)
	if err != nil {
		return 0, fmt.Errorf("lookup group %s: %w", name, err)
	}
	return strconv.Atoi(g.Gid)
}

// runWindowsServiceMode is what -I/-R/-S reach on unix: it always
// returns an error, so run exits with status 1 before runServer is called.
func runWindowsServiceMode(modes modeFlags) error {
	return fmt.Errorf("windows service management is not available on this platform")
}
