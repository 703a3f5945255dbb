// SPDX-License-Identifier: MPL-2.0

package config

// configDirOverride replaces the platform config directory when set.
// os.UserHomeDir() doesn't reliably respect HOME on all platforms (e.g., macOS in CI).
//
//nolint:gochecknoglobals // Test seam.
var configDirOverride string
