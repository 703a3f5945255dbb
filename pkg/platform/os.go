// SPDX-License-Identifier: MPL-2.0

package platform

import "runtime"

// OS name constants for runtime.GOOS comparisons.
// Centralizes the string literals to avoid scattered magic strings.
const (
	Windows = "windows"
	Darwin  = "darwin"
	Linux   = "linux"
)

// IsWindows reports whether the binary was built for Windows.
func IsWindows() bool { return runtime.GOOS == Windows }

// ExeName appends the platform executable suffix to name.
// On Windows ".exe" is added unless already present; elsewhere name is returned unchanged.
func ExeName(name string) string {
	return exeNameFor(runtime.GOOS, name)
}

func exeNameFor(goos, name string) string {
	if goos != Windows {
		return name
	}
	if len(name) >= 4 && equalFoldASCII(name[len(name)-4:], ".exe") {
		return name
	}
	return name + ".exe"
}

func equalFoldASCII(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range len(a) {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
