// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPathComponent is the sentinel error wrapped by InvalidPathComponentError.
var ErrInvalidPathComponent = errors.New("invalid path component")

// windowsReservedNames are filenames that cannot be used on Windows.
// These names are reserved by the operating system regardless of file extension.
//
//nolint:gochecknoglobals // Immutable lookup table.
var windowsReservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true,
	"COM5": true, "COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true,
	"LPT5": true, "LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// InvalidPathComponentError is returned when a name cannot be used as a single
// directory component on every supported platform.
type InvalidPathComponentError struct {
	Value  string
	Reason string
}

// Error implements the error interface.
func (e *InvalidPathComponentError) Error() string {
	return fmt.Sprintf("invalid path component %q: %s", e.Value, e.Reason)
}

// Unwrap returns ErrInvalidPathComponent so callers can use errors.Is.
func (e *InvalidPathComponentError) Unwrap() error { return ErrInvalidPathComponent }

// IsWindowsReservedName checks if a filename is a Windows reserved name.
// It handles filenames with extensions by checking just the base name portion.
func IsWindowsReservedName(name string) bool {
	upper := strings.ToUpper(name)
	if idx := strings.LastIndex(upper, "."); idx != -1 {
		upper = upper[:idx]
	}
	return windowsReservedNames[upper]
}

// ValidatePathComponent checks that name is usable as a portable directory
// name: non-empty, no separators or dot-only names, restricted to
// [A-Za-z0-9._-], and not a Windows reserved device name.
func ValidatePathComponent(name string) error {
	switch {
	case name == "":
		return &InvalidPathComponentError{Value: name, Reason: "must not be empty"}
	case name == "." || name == "..":
		return &InvalidPathComponentError{Value: name, Reason: "must not be a relative directory reference"}
	case IsWindowsReservedName(name):
		return &InvalidPathComponentError{Value: name, Reason: "reserved device name on Windows"}
	}
	for _, c := range name {
		ok := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') ||
			c == '.' || c == '_' || c == '-'
		if !ok {
			return &InvalidPathComponentError{Value: name, Reason: fmt.Sprintf("unsupported character %q", c)}
		}
	}
	return nil
}
