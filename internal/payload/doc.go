// SPDX-License-Identifier: MPL-2.0

// Package payload locates the packed runtime environment archive that a
// launcher carries.
//
// The archive is either compiled into the binary (build tag embedpayload,
// with the archive stored as runtime.<ext> in this directory) or shipped
// next to the executable as <exe-name>.runtime.<ext>. AZBIN_PAYLOAD (passed
// in through Options.Override) points at an explicit file and wins over both.
package payload
