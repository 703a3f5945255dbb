// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"runtime"
	"testing"
)

// SetHomeDir sets the appropriate HOME environment variable based on platform
// and returns a cleanup function to restore the original value.
//
// Platform handling:
//   - Windows: Sets USERPROFILE and LOCALAPPDATA
//   - Linux/macOS: Sets HOME and clears XDG_CACHE_HOME / XDG_CONFIG_HOME
//
// Usage:
//
//	func TestSomething(t *testing.T) {
//	    t.Cleanup(testutil.SetHomeDir(t, t.TempDir()))
//	    // Code that resolves os.UserCacheDir() now lands under the temp dir.
//	}
func SetHomeDir(t testing.TB, dir string) func() {
	t.Helper()

	var cleanups []func()
	switch runtime.GOOS {
	case "windows":
		cleanups = append(cleanups,
			MustSetenv(t, "USERPROFILE", dir),
			MustSetenv(t, "LOCALAPPDATA", dir+`\AppData\Local`),
			MustSetenv(t, "APPDATA", dir+`\AppData\Roaming`),
		)
	default:
		cleanups = append(cleanups,
			MustSetenv(t, "HOME", dir),
			MustUnsetenv(t, "XDG_CACHE_HOME"),
			MustUnsetenv(t, "XDG_CONFIG_HOME"),
		)
	}
	return func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
}
