package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/naviserver-project/naviserver-sub002/pkg/jobqueue"
	"github.com/naviserver-project/naviserver-sub002/pkg/limits"
	"github.com/naviserver-project/naviserver-sub002/pkg/scheduler"
)

// runInteractiveConsole implements the -c mode's debug console: a tiny
// read-eval-print loop over stdin reporting live state from the job
// queue and limits registry (no command reads the scheduler that is
// passed in). It degrades to plain line
// reading when stdin isn't a terminal (e.g. piped input in tests or
// scripted use).
func runInteractiveConsole(pool *jobqueue.Pool, sched *scheduler.Scheduler, lims *limits.Registry) {
	fmt.Fprintln(os.Stderr, "nsappd interactive console. Commands: threads, queues, limits <name>, quit")

	if term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprint(os.Stderr, "nsappd> ")
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !dispatchConsoleCommand(line, pool, sched, lims) {
			return
		}
		if term.IsTerminal(int(os.Stdin.Fd())) {
			fmt.Fprint(os.Stderr, "nsappd> ")
		}
	}
}

// dispatchConsoleCommand runs one console command, returning false when
// the console should stop reading further input.
func dispatchConsoleCommand(line string, pool *jobqueue.Pool, sched *scheduler.Scheduler, lims *limits.Registry) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "quit", "exit":
		return false
	case "threads":
		n, idle := pool.ThreadList()
		fmt.Fprintf(os.Stderr, "job queue threads: %d running, %d idle\n", n, idle)
	case "queues":
		for _, q := range pool.QueueList() {
			fmt.Fprintf(os.Stderr, "  %s: max=%d\n", q.Name, q.MaxThreads)
		}
	case "limits":
		if len(fields) < 2 {
			fmt.Fprintln(os.Stderr, "usage: limits <name>")
			break
		}
		l := lims.Get(fields[1])
		if l == nil {
			fmt.Fprintf(os.Stderr, "no such limits record: %s\n", fields[1])
			break
		}
		state := l.State()
		fmt.Fprintf(os.Stderr, "  %s: running=%d waiting=%d\n", l.Name, state.NRunning, state.NWaiting)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", fields[0])
	}
	return true
}
