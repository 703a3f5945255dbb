// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
)

const (
	// FormatTarGz is a gzip-compressed tar archive.
	FormatTarGz Format = "tar.gz"
	// FormatTarZstd is a zstd-compressed tar archive.
	FormatTarZstd Format = "tar.zst"
	// FormatZip is a zip archive.
	FormatZip Format = "zip"
)

const (
	// EntryDir is a directory.
	EntryDir EntryType = "dir"
	// EntryFile is a regular file.
	EntryFile EntryType = "file"
	// EntrySymlink is a symbolic link.
	EntrySymlink EntryType = "symlink"
	// EntryHardlink is a hard link to a previously extracted file.
	EntryHardlink EntryType = "hardlink"
)

var (
	// ErrUnsupportedFormat is returned for format names this package cannot read.
	ErrUnsupportedFormat = errors.New("unsupported archive format")

	// ErrUnsafePath is returned when an entry would be written outside the destination.
	ErrUnsafePath = errors.New("unsafe archive path")

	// ErrLimitExceeded is returned when an archive exceeds the configured Limits.
	ErrLimitExceeded = errors.New("archive limit exceeded")

	// DefaultLimits bound extraction of a bundled interpreter environment.
	//
	//nolint:gochecknoglobals // Read-only defaults.
	DefaultLimits = Limits{
		MaxEntries:    1 << 20,
		MaxFileBytes:  2 << 30,
		MaxTotalBytes: 16 << 30,
	}
)

type (
	// Format names an archive container format.
	Format string

	// EntryType classifies an extracted entry.
	EntryType string

	// Limits caps what a single extraction may produce.
	Limits struct {
		MaxEntries    int
		MaxFileBytes  int64
		MaxTotalBytes int64
	}

	// Entry describes one extracted item. Path is slash-separated and relative
	// to the destination.
	Entry struct {
		Path     string
		Type     EntryType
		Mode     fs.FileMode
		Size     int64
		Linkname string
		// BLAKE3 is the content digest of regular files; zero otherwise.
		BLAKE3 [32]byte
	}

	// Result summarizes an extraction.
	Result struct {
		Format  Format
		Entries []Entry
		Files   int
		Bytes   int64
	}

	// Extractor unpacks one archive format. src holds size bytes of packed
	// archive; dest must be an existing, empty directory. Cancellation is
	// checked between entries.
	Extractor interface {
		Format() Format
		Extract(ctx context.Context, src io.ReaderAt, size int64, dest string) (*Result, error)
	}
)

// ParseFormat parses a format name. ".tgz" and "tar.zstd" aliases are accepted.
func ParseFormat(s string) (Format, error) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".") {
	case "tar.gz", "tgz":
		return FormatTarGz, nil
	case "tar.zst", "tar.zstd", "tzst":
		return FormatTarZstd, nil
	case "zip":
		return FormatZip, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// Ext returns the file extension, including the leading dot.
func (f Format) Ext() string { return "." + string(f) }

// String returns the format name.
func (f Format) String() string { return string(f) }

// DetectFormat guesses the format from a file name's extension.
func DetectFormat(name string) (Format, error) {
	lower := strings.ToLower(name)
	for _, f := range []Format{FormatTarGz, FormatTarZstd, FormatZip} {
		if strings.HasSuffix(lower, f.Ext()) {
			return f, nil
		}
	}
	if strings.HasSuffix(lower, ".tgz") {
		return FormatTarGz, nil
	}
	return "", fmt.Errorf("%w: cannot infer format of %q", ErrUnsupportedFormat, name)
}

// New returns the Extractor for f using limits.
func New(f Format, limits Limits) (Extractor, error) {
	switch f {
	case FormatTarGz:
		return &tarExtractor{format: f, limits: limits, decompress: gzipReader}, nil
	case FormatTarZstd:
		return &tarExtractor{format: f, limits: limits, decompress: zstdReader}, nil
	case FormatZip:
		return &zipExtractor{limits: limits}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
}

// Native returns the Extractor for the format this binary was built for.
func Native() Extractor {
	x, err := New(NativeFormat, DefaultLimits)
	if err != nil {
		// NativeFormat is a compile-time constant of a supported format.
		panic(err)
	}
	return x
}

// budget tracks Limits during one extraction.
type budget struct {
	limits  Limits
	entries int
	total   int64
}

func (b *budget) entry(name string) error {
	b.entries++
	if b.limits.MaxEntries > 0 && b.entries > b.limits.MaxEntries {
		return fmt.Errorf("%w: more than %d entries (at %s)", ErrLimitExceeded, b.limits.MaxEntries, name)
	}
	return nil
}

func (b *budget) file(name string, size int64) error {
	if size < 0 {
		return fmt.Errorf("%w: negative size for %s", ErrLimitExceeded, name)
	}
	if b.limits.MaxFileBytes > 0 && size > b.limits.MaxFileBytes {
		return fmt.Errorf("%w: %s is %d bytes (max %d)", ErrLimitExceeded, name, size, b.limits.MaxFileBytes)
	}
	b.total += size
	if b.limits.MaxTotalBytes > 0 && b.total > b.limits.MaxTotalBytes {
		return fmt.Errorf("%w: more than %d bytes uncompressed", ErrLimitExceeded, b.limits.MaxTotalBytes)
	}
	return nil
}
