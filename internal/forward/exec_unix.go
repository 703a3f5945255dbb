// SPDX-License-Identifier: MPL-2.0

//go:build unix

package forward

import "golang.org/x/sys/unix"

const canExec = true

//nolint:gochecknoglobals // Test seam, replaced in tests.
var execve = unix.Exec
