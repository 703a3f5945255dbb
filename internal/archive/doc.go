// SPDX-License-Identifier: MPL-2.0

// Package archive unpacks runtime environment archives into a directory.
//
// Three container formats are supported: tar+gzip, tar+zstd and zip. A
// compiled launcher only ever ships one of them; Native returns the format
// selected by build constraints (zip on Windows, tar+gzip elsewhere,
// tar+zstd with the payloadzstd tag).
//
// Extraction refuses entries that would land outside the destination,
// including through previously extracted symlinks, and enforces entry-count
// and size limits. Every regular file is hashed with BLAKE3 while it is
// written so callers can record a manifest of the extracted tree without a
// second pass.
package archive
