// SPDX-License-Identifier: MPL-2.0

// Package issue provides the launcher's error taxonomy and actionable,
// user-facing error messages.
//
// LaunchError classifies every failure the launcher itself can produce
// (cache, extraction, integrity, launch). ActionableError adds the operation,
// resource and remediation hints shown to the user before the launcher exits
// with its reserved status code. Errors produced by the forwarded tool never
// pass through this package.
package issue
