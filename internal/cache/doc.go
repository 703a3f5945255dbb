// SPDX-License-Identifier: MPL-2.0

// Package cache manages the on-disk slots that hold extracted runtime
// environments.
//
// Each launcher build owns exactly one slot, named after its build id and
// the first twelve hex digits of its archive digest:
//
//	<root>/<tool>/b<build>-<digest12>/      extracted tree
//	<root>/<tool>/b<build>-<digest12>.lock  cross-process lock
//
// A slot becomes visible as validated only when its marker file is renamed
// into place, which always happens last. Readers that find a matching marker
// use the slot without locking; writers hold the slot lock for the whole
// extract-verify-mark sequence and re-probe after acquiring it.
package cache
