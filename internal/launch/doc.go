// SPDX-License-Identifier: MPL-2.0

// Package launch runs the launcher state machine: find or build the cache
// slot for the embedded fingerprint, then hand off to the interpreter.
//
//	Start -> Probe slot
//	  validated           -> Forward
//	  missing or invalid  -> Lock -> Probe again -> Extract -> Verify
//	    ok                -> (hook) -> Manifest -> Marker -> Forward
//	    fail, first time  -> Discard -> Extract -> Verify
//	    fail again        -> abort with IntegrityMismatch or ExtractionFailed
//
// Only ExtractionFailed and IntegrityMismatch are retried, exactly once.
// CacheUnwritable, CacheCorrupt and LaunchFailed abort immediately.
package launch
