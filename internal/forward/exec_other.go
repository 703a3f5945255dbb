// SPDX-License-Identifier: MPL-2.0

//go:build !unix

package forward

import "errors"

const canExec = false

//nolint:gochecknoglobals // Kept symmetric with the unix seam.
var execve = func(string, []string, []string) error {
	return errors.New("process image replacement is not supported on this platform")
}
