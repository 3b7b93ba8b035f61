//go:build windows

package fdpool

import (
	"os"
	"time"
)

// Windows has no close-on-exec/FD_CLOEXEC concept; handle inheritance is
// controlled at CreateFile/CreateProcess time instead, so these are no-ops
// here (temp files on Windows are additionally opened with delete-on-close
// semantics by the caller, matching the original's short-lived/no-inherit
// flags).
func fcntl(fd int, cmd int, arg int) (int, error) {
	return 0, nil
}

func nowSecUsec() secUsec {
	now := time.Now()
	return secUsec{sec: now.Unix(), usec: int64(now.Nanosecond() / 1000)}
}

func setCloExec(f *os.File, on bool) error {
	return nil
}
