// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// KindUnknown is the zero value and never produced by the launcher.
	KindUnknown Kind = iota
	// CacheUnwritable means the cache location cannot be created or written.
	CacheUnwritable
	// CacheCorrupt means a slot exists but its contents are unusable and could
	// not be repaired.
	CacheCorrupt
	// ExtractionFailed means the runtime archive could not be unpacked.
	ExtractionFailed
	// IntegrityMismatch means the archive digest differs from the embedded one.
	IntegrityMismatch
	// LaunchFailed means the entry-point could not be located or started.
	LaunchFailed
)

// Sentinel errors, one per Kind, so callers can classify with errors.Is.
var (
	ErrCacheUnwritable   = errors.New("cache unwritable")
	ErrCacheCorrupt      = errors.New("cache corrupt")
	ErrExtractionFailed  = errors.New("extraction failed")
	ErrIntegrityMismatch = errors.New("integrity mismatch")
	ErrLaunchFailed      = errors.New("launch failed")
)

type (
	// Kind classifies a launcher-internal failure.
	Kind int

	// LaunchError is a classified launcher failure. Op is a short verb phrase
	// ("extract runtime"), Path the file or directory involved, Err the cause.
	LaunchError struct {
		Kind Kind
		Op   string
		Path string
		Err  error
	}
)

// String returns the taxonomy name of the kind.
func (k Kind) String() string {
	switch k {
	case CacheUnwritable:
		return "CacheUnwritable"
	case CacheCorrupt:
		return "CacheCorrupt"
	case ExtractionFailed:
		return "ExtractionFailed"
	case IntegrityMismatch:
		return "IntegrityMismatch"
	case LaunchFailed:
		return "LaunchFailed"
	case KindUnknown:
		return "Unknown"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Sentinel returns the sentinel error matching the kind, or nil for KindUnknown.
func (k Kind) Sentinel() error {
	switch k {
	case CacheUnwritable:
		return ErrCacheUnwritable
	case CacheCorrupt:
		return ErrCacheCorrupt
	case ExtractionFailed:
		return ErrExtractionFailed
	case IntegrityMismatch:
		return ErrIntegrityMismatch
	case LaunchFailed:
		return ErrLaunchFailed
	case KindUnknown:
		return nil
	}
	return nil
}

// Retryable reports whether the launcher recovers from the kind locally by
// discarding the slot and extracting once more.
func (k Kind) Retryable() bool {
	return k == ExtractionFailed || k == IntegrityMismatch
}

// New creates a LaunchError.
func New(kind Kind, op, path string, err error) *LaunchError {
	return &LaunchError{Kind: kind, Op: op, Path: path, Err: err}
}

// Error implements the error interface.
func (e *LaunchError) Error() string {
	var msg strings.Builder
	msg.WriteString(e.Op)
	if e.Path != "" {
		msg.WriteString(" ")
		msg.WriteString(e.Path)
	}
	if e.Err != nil {
		msg.WriteString(": ")
		msg.WriteString(e.Err.Error())
	}
	return msg.String()
}

// Unwrap returns the underlying cause.
func (e *LaunchError) Unwrap() error { return e.Err }

// Is matches the sentinel of the error's kind.
func (e *LaunchError) Is(target error) bool {
	s := e.Kind.Sentinel()
	return s != nil && target == s
}

// KindOf returns the Kind of the first LaunchError in err's chain, or
// KindUnknown if there is none.
func KindOf(err error) Kind {
	var le *LaunchError
	if errors.As(err, &le) {
		return le.Kind
	}
	return KindUnknown
}
