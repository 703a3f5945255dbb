// SPDX-License-Identifier: MPL-2.0

package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// DigestSize is the size of a SHA-256 digest in bytes.
const DigestSize = sha256.Size

// shortLen is the number of hex characters used by Digest.Short.
const shortLen = 12

// ErrInvalidDigest is returned when a digest string is not 64 hex characters.
var ErrInvalidDigest = errors.New("invalid sha256 digest")

// Digest is a raw SHA-256 digest.
type Digest [DigestSize]byte

// ParseDigest parses a hex-encoded SHA-256 digest. Upper- and lower-case hex
// are accepted; surrounding whitespace is ignored.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	s = strings.TrimSpace(s)
	if len(s) != hex.EncodedLen(DigestSize) {
		return d, fmt.Errorf("%w: want %d hex characters, got %d", ErrInvalidDigest, hex.EncodedLen(DigestSize), len(s))
	}
	if _, err := hex.Decode(d[:], []byte(s)); err != nil {
		return Digest{}, fmt.Errorf("%w: %w", ErrInvalidDigest, err)
	}
	return d, nil
}

// String returns the lowercase hex encoding of the digest.
func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// Short returns the first 12 hex characters, used in directory names.
func (d Digest) Short() string { return d.String()[:shortLen] }

// IsZero reports whether every byte of the digest is zero.
func (d Digest) IsZero() bool { return d == Digest{} }

// MarshalText implements encoding.TextMarshaler.
func (d Digest) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := ParseDigest(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Sum streams r through SHA-256 and returns the digest.
func Sum(r io.Reader) (Digest, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return Digest{}, fmt.Errorf("hashing: %w", err)
	}
	var d Digest
	copy(d[:], h.Sum(nil))
	return d, nil
}

// SumReaderAt hashes the first size bytes of r.
func SumReaderAt(r io.ReaderAt, size int64) (Digest, error) {
	return Sum(io.NewSectionReader(r, 0, size))
}

// SumFile computes the digest of the file at path without loading it into memory.
func SumFile(path string) (Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return Digest{}, fmt.Errorf("opening %s for hashing: %w", path, err)
	}
	defer func() {
		// Read-only file handle; close errors are not actionable.
		_ = f.Close()
	}()

	d, err := Sum(f)
	if err != nil {
		return Digest{}, fmt.Errorf("hashing %s: %w", path, err)
	}
	return d, nil
}
