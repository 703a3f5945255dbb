// SPDX-License-Identifier: MPL-2.0

package forward

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/azbin/azbin/pkg/platform"
)

const (
	envPythonPath   = "PYTHONPATH"
	envPythonHome   = "PYTHONHOME"
	envNoUserSite   = "PYTHONNOUSERSITE"
	sitePackagesDir = "site-packages"
)

//nolint:gochecknoglobals // Compiled once.
var pythonLibRE = regexp.MustCompile(`^python[0-9]+\.[0-9]+t?$`)

// LibraryPaths returns the bundled import directories of the environment at
// root, site-packages before the standard library, for the top-level tree
// and for a pixi environment unpacked under env/. Only existing directories
// are returned.
func LibraryPaths(root string) []string {
	var paths []string
	for _, base := range []string{root, filepath.Join(root, "env")} {
		if lib := findPythonLib(base); lib != "" {
			paths = appendDir(paths, filepath.Join(lib, sitePackagesDir))
			paths = appendDir(paths, lib)
		}
	}
	return paths
}

// findPythonLib returns base/lib/pythonX.Y (Unix layout) or base/Lib
// (Windows layout), or "" when neither exists.
func findPythonLib(base string) string {
	if entries, err := os.ReadDir(filepath.Join(base, "lib")); err == nil {
		for _, e := range entries {
			if e.IsDir() && pythonLibRE.MatchString(e.Name()) {
				return filepath.Join(base, "lib", e.Name())
			}
		}
	}
	if platform.IsWindows() {
		win := filepath.Join(base, "Lib")
		if info, err := os.Stat(win); err == nil && info.IsDir() {
			return win
		}
	}
	return ""
}

func appendDir(paths []string, dir string) []string {
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		return append(paths, dir)
	}
	return paths
}

// BuildEnv derives the interpreter environment from environ: bundled library
// paths first on PYTHONPATH (an inherited value is appended after them),
// PYTHONNOUSERSITE=1, and PYTHONHOME removed.
func BuildEnv(root string, environ []string) []string {
	var inherited string
	out := make([]string, 0, len(environ)+2)
	for _, kv := range environ {
		key, value, _ := strings.Cut(kv, "=")
		switch {
		case sameKey(key, envPythonPath):
			inherited = value
		case sameKey(key, envPythonHome), sameKey(key, envNoUserSite):
		default:
			out = append(out, kv)
		}
	}

	paths := LibraryPaths(root)
	if inherited != "" {
		paths = append(paths, inherited)
	}
	if len(paths) > 0 {
		out = append(out, envPythonPath+"="+strings.Join(paths, string(os.PathListSeparator)))
	}
	return append(out, envNoUserSite+"=1")
}

// sameKey compares environment variable names; Windows names are
// case-insensitive.
func sameKey(a, b string) bool {
	if platform.IsWindows() {
		return strings.EqualFold(a, b)
	}
	return a == b
}
