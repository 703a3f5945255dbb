// SPDX-License-Identifier: MPL-2.0

//go:build !unix

package forward

import "os"

//nolint:gochecknoglobals // Read-only.
var (
	relayedSignals []os.Signal

	// Console control events reach every attached process, the child included.
	absorbedSignals = []os.Signal{os.Interrupt}
)

func statusOf(ps *os.ProcessState) Status { return Status{Code: ps.ExitCode()} }

// Reraise is a no-op: there is no signal to re-raise on this platform.
func Reraise(os.Signal) {}
