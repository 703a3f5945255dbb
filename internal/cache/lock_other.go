// SPDX-License-Identifier: MPL-2.0

//go:build !unix && !windows

package cache

import "os"

// Platforms without advisory locks fall back to marker-last publication alone.
func lockFile(*os.File, bool) error { return nil }

func unlockFile(*os.File) error { return nil }

func syncDir(string) {}
