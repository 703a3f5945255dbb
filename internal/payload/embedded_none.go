// SPDX-License-Identifier: MPL-2.0

//go:build !embedpayload

package payload

import "github.com/azbin/azbin/internal/archive"

func embedded(archive.Format) (Source, bool) { return nil, false }

// Embedded reports whether the archive is compiled into this binary.
func Embedded() bool { return false }
