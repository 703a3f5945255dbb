// SPDX-License-Identifier: MPL-2.0

//go:build embedpayload

package payload

import (
	"embed"

	"github.com/azbin/azbin/internal/archive"
)

//go:embed runtime.*
var runtimeFS embed.FS

func embedded(format archive.Format) (Source, bool) {
	name := "runtime" + format.Ext()
	data, err := runtimeFS.ReadFile(name)
	if err != nil {
		return nil, false
	}
	return FromBytes("embedded:"+name, data, format), true
}

// Embedded reports whether the archive is compiled into this binary.
func Embedded() bool { return true }
