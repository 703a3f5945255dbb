// SPDX-License-Identifier: MPL-2.0

// Package platform provides cross-platform compatibility utilities.
//
// It centralizes GOOS comparisons, executable naming, and the rules for
// names that end up as directory components on every supported platform
// (cache namespaces, slot directories).
package platform
