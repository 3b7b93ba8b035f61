//go:build unix

package fdpool

import (
	"fmt"
	"os"
	"syscall"
	"time"
)

func fcntl(fd int, cmd int, arg int) (int, error) {
	return syscall.FcntlInt(uintptr(fd), cmd, arg)
}

func nowSecUsec() secUsec {
	now := time.Now()
	return secUsec{sec: now.Unix(), usec: int64(now.Nanosecond() / 1000)}
}

func setCloExec(f *os.File, on bool) error {
	fd := f.Fd()
	flags, err := fcntl(int(fd), syscall.F_GETFD, 0)
	if err != nil {
		return fmt.Errorf("fdpool: F_GETFD: %w", err)
	}
	if on {
		flags |= syscall.FD_CLOEXEC
	} else {
		flags &^= syscall.FD_CLOEXEC
	}
	if _, err := fcntl(int(fd), syscall.F_SETFD, flags); err != nil {
		return fmt.Errorf("fdpool: F_SETFD: %w", err)
	}
	return nil
}
