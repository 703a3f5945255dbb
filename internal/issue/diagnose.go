// SPDX-License-Identifier: MPL-2.0

package issue

import "errors"

// Diagnose converts a launcher failure into the ActionableError printed to
// stderr. A LaunchError is unpacked: its Path becomes the resource, its Op
// the step and its Err the cause, so nothing is printed twice. cacheRoot is
// shown in hints that ask the user to inspect or clear the cache.
func Diagnose(err error, cacheRoot string) *ActionableError {
	if err == nil {
		return nil
	}
	var ae *ActionableError
	if errors.As(err, &ae) {
		return ae
	}

	kind := KindOf(err)
	ctx := NewErrorContext().WithKind(kind).Wrap(err)
	var le *LaunchError
	if errors.As(err, &le) {
		ctx.WithResource(le.Path).WithStep(le.Op)
		if le.Err != nil {
			ctx.Wrap(le.Err)
		}
	}

	switch kind {
	case CacheUnwritable:
		ctx.WithOperation("prepare the runtime cache").
			WithSuggestion("Make sure the cache directory is writable: " + cacheRoot).
			WithSuggestion("Point AZBIN_CACHE_DIR at a writable location")
	case CacheCorrupt:
		ctx.WithOperation("repair the cached runtime environment").
			WithSuggestion("Remove the slot with 'azbin cache prune --all' and run again")
	case ExtractionFailed:
		ctx.WithOperation("extract the bundled runtime environment").
			WithSuggestion("Check free disk space under " + cacheRoot).
			WithSuggestion("If the runtime archive sits next to the binary, download it again")
	case IntegrityMismatch:
		ctx.WithOperation("verify the bundled runtime environment").
			WithSuggestion("The binary or its runtime archive is corrupted or was modified").
			WithSuggestion("Download this release again from a trusted source")
	case LaunchFailed:
		ctx.WithOperation("start the bundled tool").
			WithSuggestion("Remove the cached environment with 'azbin cache prune --all' and run again")
	case KindUnknown:
		ctx.WithOperation("run the launcher")
	}

	return ctx.Build()
}
