// Package execil spawns and reaps external processes with the same
// error taxonomy as a fork/exec helper: a child that fails before exec
// reports a specific error code rather than a bare "exit status 1".
package execil

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/naviserver-project/naviserver-sub002/pkg/logging"
)

// ErrCode mirrors the child-side failure taxonomy: which step failed
// before the target program ever ran.
type ErrCode int

const (
	ErrNone ErrCode = iota
	ErrChdir
	ErrDup
	ErrExec
)

func (c ErrCode) String() string {
	switch c {
	case ErrChdir:
		return "chdir"
	case ErrDup:
		return "dup"
	case ErrExec:
		return "exec"
	default:
		return "none"
	}
}

// SpawnError reports a failure that happened in the child before the
// target program replaced it, with the code and errno that caused it.
type SpawnError struct {
	Code  ErrCode
	Errno syscall.Errno
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("execil: spawn failed at %s: %v", e.Code, e.Errno)
}

// Spawn describes one child process launch: argv[0] is exec, Dir is an
// optional working directory to chdir into first, and Stdin/Stdout
// mirror the fdin/fdout placement the caller wants on the child's 0/1.
type Spawn struct {
	Exec  string
	Argv  []string
	Envp  []string
	Dir   string
	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File
}

// Process is a running child: the pid and the means to wait on it.
type Process struct {
	Pid int
	cmd *exec.Cmd
}

// Logger is the narrow logging surface execil needs.
type Logger interface {
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Run spawns sp's process. Go's runtime does not expose raw fork(), so
// the child-error-pipe protocol is emulated by classifying the error
// os/exec itself returns from Start: a failed Chdir or a missing/
// non-executable binary map to the same ErrChdir/ErrExec codes a
// fork-based helper would report over its pipe, rather than a bare
// exec.Error. Errno is threaded through wherever the stdlib surfaces
// it (PathError/LinkError), which in practice is always.
func Run(sp Spawn, log Logger) (*Process, error) {
	if log == nil {
		log = logging.GetGlobalLogger()
	}

	if sp.Dir != "" {
		if _, err := os.Stat(sp.Dir); err != nil {
			errno := errnoOf(err)
			log.Errorf("execil: chdir %s failed: %v", sp.Dir, err)
			return nil, &SpawnError{Code: ErrChdir, Errno: errno}
		}
	}

	cmd := exec.Command(sp.Exec, sp.Argv...)
	cmd.Dir = sp.Dir
	if len(sp.Envp) > 0 {
		cmd.Env = sp.Envp
	}
	if sp.Stdin != nil {
		cmd.Stdin = sp.Stdin
	}
	if sp.Stdout != nil {
		cmd.Stdout = sp.Stdout
	}
	if sp.Stderr != nil {
		cmd.Stderr = sp.Stderr
	} else {
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Start(); err != nil {
		errno := errnoOf(err)
		log.Errorf("execil: exec %s failed: %v", sp.Exec, err)
		return nil, &SpawnError{Code: ErrExec, Errno: errno}
	}

	return &Process{Pid: cmd.Process.Pid, cmd: cmd}, nil
}

func errnoOf(err error) syscall.Errno {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno
	}
	return syscall.EINVAL
}

// WaitResult reports the outcome of waiting on a child: its exit code,
// whether it was killed by a signal, and whether it dumped core.
type WaitResult struct {
	ExitCode int
	Signaled bool
	Signal   syscall.Signal
	CoreDump bool
}

// Wait blocks until p exits, looping past EINTR the way waitpid does,
// and logs a signalled exit or a non-zero exit as a warning.
func Wait(p *Process, log Logger, suppressCoreLog bool) (WaitResult, error) {
	if log == nil {
		log = logging.GetGlobalLogger()
	}

	var res WaitResult
	for {
		err := p.cmd.Wait()
		if err == nil {
			return res, nil
		}

		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			if errors.Is(err, syscall.EINTR) {
				continue
			}
			return res, err
		}

		status, ok := exitErr.Sys().(syscall.WaitStatus)
		if !ok {
			return res, err
		}
		if status.Signaled() {
			res.Signaled = true
			res.Signal = status.Signal()
			if !suppressCoreLog {
				log.Warnf("execil: pid %d terminated by signal %v (core dumped=%v)", p.Pid, res.Signal, status.CoreDump())
			}
			res.CoreDump = status.CoreDump()
			return res, nil
		}
		res.ExitCode = status.ExitStatus()
		if res.ExitCode != 0 {
			log.Warnf("execil: pid %d exited with status %d", p.Pid, res.ExitCode)
		}
		return res, nil
	}
}

// LookPath resolves name on PATH, matching the exec() search semantics
// Spawn relies on when Exec does not contain a path separator.
func LookPath(name string) (string, error) {
	if strings.ContainsRune(name, os.PathSeparator) {
		return name, nil
	}
	return exec.LookPath(name)
}
