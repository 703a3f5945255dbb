// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"runtime"
	"testing"
)

// StubScript returns a POSIX shell script that prints its arguments (one per
// line, prefixed with "arg:"), echoes "PYTHONPATH=" and "PYTHONNOUSERSITE="
// lines from its environment, answers --version and --help with fixed text,
// and exits with the status held in the STUB_EXIT variable (0 by default).
func StubScript() string {
	return `#!/bin/sh
case "$3" in
--version) echo "azure-cli 2.67.0 (stub)"; exit 0 ;;
--help) echo "Group az"; echo "  stub help text"; exit 0 ;;
esac
for a in "$@"; do echo "arg:$a"; done
echo "PYTHONPATH=$PYTHONPATH"
echo "PYTHONNOUSERSITE=$PYTHONNOUSERSITE"
exit ${STUB_EXIT:-0}
`
}

// SkipIfNoShell skips tests that execute POSIX shell stubs.
func SkipIfNoShell(t testing.TB) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub entry-points are POSIX shell scripts")
	}
}
