// SPDX-License-Identifier: MPL-2.0

// Package fingerprint models the integrity fingerprint compiled into the
// launcher and verifies runtime archives against it.
//
// A Fingerprint pairs the SHA-256 digest of the packed runtime archive with a
// monotonically increasing build id. Both are supplied as string literals at
// build time and parsed once at startup; nothing here derives them from
// runtime input.
package fingerprint
