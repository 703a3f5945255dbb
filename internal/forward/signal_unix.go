// SPDX-License-Identifier: MPL-2.0

//go:build unix

package forward

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

//nolint:gochecknoglobals // Read-only.
var (
	// relayedSignals reach only the launcher when sent with kill(2), so they
	// are passed on to the child.
	relayedSignals = []os.Signal{unix.SIGTERM, unix.SIGHUP, unix.SIGUSR1, unix.SIGUSR2}

	// absorbedSignals come from the terminal and already reach the whole
	// foreground process group, the child included.
	absorbedSignals = []os.Signal{unix.SIGINT, unix.SIGQUIT}
)

func statusOf(ps *os.ProcessState) Status {
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		sig := ws.Signal()
		return Status{Code: 128 + int(sig), Signal: sig}
	}
	return Status{Code: ps.ExitCode()}
}

// Reraise delivers sig to the launcher itself with the default disposition
// restored, so the parent shell sees the same termination the child had.
// It returns only if the signal did not terminate the process.
func Reraise(sig os.Signal) {
	s, ok := sig.(syscall.Signal)
	if !ok {
		return
	}
	signal.Reset(s)
	if err := unix.Kill(unix.Getpid(), s); err != nil {
		return
	}
	// Delivery is asynchronous.
	time.Sleep(100 * time.Millisecond)
}
