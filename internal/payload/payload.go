// SPDX-License-Identifier: MPL-2.0

package payload

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/azbin/azbin/internal/archive"
)

// ErrNotFound is returned when no payload is embedded and none is found on disk.
var ErrNotFound = errors.New("runtime payload not found")

//nolint:gochecknoglobals // Test seam, replaced in tests.
var osExecutable = os.Executable

type (
	// Source is a packed archive ready for verification and extraction.
	// ReadAt may be called concurrently.
	Source interface {
		io.ReaderAt
		io.Closer
		// Size is the packed archive length in bytes.
		Size() int64
		// Name identifies the archive in logs and errors.
		Name() string
		// Format is the container format of the archive.
		Format() archive.Format
	}

	// Options controls where Locate looks.
	Options struct {
		// Override is an explicit archive path (AZBIN_PAYLOAD).
		Override string
		// Executable is the launcher path; os.Executable is used when empty.
		Executable string
		// Format is the expected format of embedded and colocated archives.
		// Defaults to archive.NativeFormat.
		Format archive.Format
	}

	fileSource struct {
		f      *os.File
		size   int64
		format archive.Format
	}

	memSource struct {
		*bytes.Reader
		name   string
		format archive.Format
	}
)

// Locate returns the payload for this launcher. The caller must Close it.
func Locate(opts Options) (Source, error) {
	format := opts.Format
	if format == "" {
		format = archive.NativeFormat
	}

	// The launcher decodes one format only; an override's file name does not
	// change it.
	if opts.Override != "" {
		return OpenFile(opts.Override, format)
	}

	if src, ok := embedded(format); ok {
		return src, nil
	}

	path, err := ColocatedPath(opts.Executable, format)
	if err != nil {
		return nil, err
	}
	src, err := OpenFile(path, format)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: no embedded archive and %s does not exist", ErrNotFound, path)
	}
	return src, err
}

// ColocatedPath returns where a payload shipped beside exe is expected:
// the executable name without any .exe suffix, followed by .runtime.<ext>.
func ColocatedPath(exe string, format archive.Format) (string, error) {
	if exe == "" {
		p, err := osExecutable()
		if err != nil {
			return "", fmt.Errorf("locating executable: %w", err)
		}
		if resolved, err := filepath.EvalSymlinks(p); err == nil {
			p = resolved
		}
		exe = p
	}
	base := filepath.Base(exe)
	if ext := filepath.Ext(base); strings.EqualFold(ext, ".exe") {
		base = strings.TrimSuffix(base, ext)
	}
	return filepath.Join(filepath.Dir(exe), base+".runtime"+format.Ext()), nil
}

// OpenFile opens path as a payload of the given format.
func OpenFile(path string, format archive.Format) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening payload: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close() // Read-only handle; the Stat error is what matters.
		return nil, fmt.Errorf("stat payload: %w", err)
	}
	if !info.Mode().IsRegular() {
		_ = f.Close()
		return nil, fmt.Errorf("payload %s is not a regular file", path)
	}
	return &fileSource{f: f, size: info.Size(), format: format}, nil
}

// FromBytes wraps an in-memory archive.
func FromBytes(name string, data []byte, format archive.Format) Source {
	return &memSource{Reader: bytes.NewReader(data), name: name, format: format}
}

func (s *fileSource) ReadAt(p []byte, off int64) (int, error) { return s.f.ReadAt(p, off) }
func (s *fileSource) Close() error { return s.f.Close() }
func (s *fileSource) Size() int64 { return s.size }
func (s *fileSource) Name() string { return s.f.Name() }
func (s *fileSource) Format() archive.Format { return s.format }

func (s *memSource) Close() error { return nil }
func (s *memSource) Name() string { return s.name }
func (s *memSource) Format() archive.Format { return s.format }
