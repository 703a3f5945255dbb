// SPDX-License-Identifier: MPL-2.0

package fingerprint

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

var (
	// ErrMismatch indicates the computed digest does not match the fingerprint.
	ErrMismatch = errors.New("digest mismatch")

	// ErrInvalidFingerprint is returned by Validate and New for unusable values.
	ErrInvalidFingerprint = errors.New("invalid fingerprint")
)

type (
	// BuildID identifies one build of the launcher. It increases monotonically
	// across releases and allows re-releasing the same tool version with a new
	// launcher.
	BuildID uint64

	// Fingerprint is the immutable identity of the bundled runtime archive.
	Fingerprint struct {
		// Digest is the SHA-256 of the packed archive.
		Digest Digest
		// BuildID is the launcher build number.
		BuildID BuildID
		// ToolVersion is the version of the packaged tool (informational, may be empty).
		ToolVersion string
	}

	// MismatchError reports a failed comparison. It wraps ErrMismatch.
	MismatchError struct {
		Name     string
		Expected Digest
		Got      Digest
	}
)

// ParseBuildID parses a decimal build id. Zero is rejected.
func ParseBuildID(s string) (BuildID, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: build id %q: %w", ErrInvalidFingerprint, s, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("%w: build id must be positive", ErrInvalidFingerprint)
	}
	return BuildID(n), nil
}

// String returns the decimal form of the build id.
func (b BuildID) String() string { return strconv.FormatUint(uint64(b), 10) }

// New parses the literal values compiled into the launcher.
func New(digestHex, buildID, toolVersion string) (Fingerprint, error) {
	d, err := ParseDigest(digestHex)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("%w: %w", ErrInvalidFingerprint, err)
	}
	id, err := ParseBuildID(buildID)
	if err != nil {
		return Fingerprint{}, err
	}
	fp := Fingerprint{Digest: d, BuildID: id, ToolVersion: strings.TrimSpace(toolVersion)}
	if err := fp.Validate(); err != nil {
		return Fingerprint{}, err
	}
	return fp, nil
}

// Validate checks the fingerprint is usable: non-zero digest, positive build
// id, and a semantic ToolVersion when one is set.
func (f Fingerprint) Validate() error {
	if f.Digest.IsZero() {
		return fmt.Errorf("%w: digest is zero", ErrInvalidFingerprint)
	}
	if f.BuildID == 0 {
		return fmt.Errorf("%w: build id must be positive", ErrInvalidFingerprint)
	}
	if f.ToolVersion != "" && !semver.IsValid(canonicalVersion(f.ToolVersion)) {
		return fmt.Errorf("%w: tool version %q is not a semantic version", ErrInvalidFingerprint, f.ToolVersion)
	}
	return nil
}

// ReleaseTag returns "<tool version>+<build id>", the tag a release of this
// build is published under. Without a tool version only the build id is used.
func (f Fingerprint) ReleaseTag() string {
	if f.ToolVersion == "" {
		return "build." + f.BuildID.String()
	}
	return f.ToolVersion + "+" + f.BuildID.String()
}

// Matches reports whether d equals the fingerprint digest.
func (f Fingerprint) Matches(d Digest) bool {
	return subtle.ConstantTimeCompare(f.Digest[:], d[:]) == 1
}

// Verify hashes everything read from r and compares it with the fingerprint.
// name identifies the archive in the error.
func (f Fingerprint) Verify(name string, r io.Reader) error {
	got, err := Sum(r)
	return f.check(name, got, err)
}

// VerifyReaderAt is Verify over the first size bytes of r.
func (f Fingerprint) VerifyReaderAt(name string, r io.ReaderAt, size int64) error {
	got, err := SumReaderAt(r, size)
	return f.check(name, got, err)
}

func (f Fingerprint) check(name string, got Digest, err error) error {
	if err != nil {
		return fmt.Errorf("hashing %s: %w", name, err)
	}
	if !f.Matches(got) {
		return &MismatchError{Name: name, Expected: f.Digest, Got: got}
	}
	return nil
}

// Error returns a description with both digests for debugging.
func (e *MismatchError) Error() string {
	return fmt.Sprintf("sha256 mismatch for %s: expected %s, got %s", e.Name, e.Expected, e.Got)
}

// Unwrap returns ErrMismatch so callers can use errors.Is.
func (e *MismatchError) Unwrap() error { return ErrMismatch }

// canonicalVersion adds the "v" prefix required by the semver package.
func canonicalVersion(v string) string {
	if strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}
