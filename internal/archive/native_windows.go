// SPDX-License-Identifier: MPL-2.0

//go:build windows

package archive

// NativeFormat is the archive format shipped with this build.
const NativeFormat = FormatZip
