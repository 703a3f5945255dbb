// SPDX-License-Identifier: MPL-2.0

package forward

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"os/signal"

	"github.com/azbin/azbin/internal/issue"
)

func spawn(ctx context.Context, entry string, argv, env []string, req Request) (Status, error) {
	cmd := exec.Command(entry, argv[1:]...)
	cmd.Args[0] = argv[0]
	cmd.Env = env
	cmd.Stdin = req.Stdin
	if cmd.Stdin == nil {
		cmd.Stdin = os.Stdin
	}
	cmd.Stdout = req.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = req.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	// Register before Start so no signal arrives between start and relay.
	// Absorbed signals are caught rather than ignored: an ignored disposition
	// would be inherited by the child.
	sigs := make(chan os.Signal, 8)
	signal.Notify(sigs, append(append([]os.Signal{}, relayedSignals...), absorbedSignals...)...)
	defer signal.Stop(sigs)

	if err := cmd.Start(); err != nil {
		return Status{}, issue.New(issue.LaunchFailed, "start", entry, err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	for {
		select {
		case sig := <-sigs:
			if absorbed(sig) {
				continue
			}
			// The child may already be gone; Wait reports how it ended.
			_ = cmd.Process.Signal(sig)
		case <-ctx.Done():
			_ = cmd.Process.Signal(os.Interrupt)
			ctx = context.Background()
		case err := <-done:
			return waitStatus(cmd, err, entry)
		}
	}
}

func waitStatus(cmd *exec.Cmd, err error, entry string) (Status, error) {
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return Status{}, issue.New(issue.LaunchFailed, "wait", entry, err)
	}
	return statusOf(cmd.ProcessState), nil
}

func absorbed(sig os.Signal) bool {
	for _, s := range absorbedSignals {
		if s == sig {
			return true
		}
	}
	return false
}
