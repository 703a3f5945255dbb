// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"math"
	"strings"

	"github.com/klauspost/compress/zip"
)

// maxLinkTarget bounds the size of a symlink target stored as zip entry content.
const maxLinkTarget = 4096

type zipExtractor struct {
	limits Limits
}

// Format returns FormatZip.
func (x *zipExtractor) Format() Format { return FormatZip }

// Extract unpacks the zip archive held in src into dest. Entry CRCs are
// checked by the zip reader as each file is consumed.
func (x *zipExtractor) Extract(ctx context.Context, src io.ReaderAt, size int64, dest string) (*Result, error) {
	w, err := newWriter(FormatZip, dest, x.limits)
	if err != nil {
		return nil, err
	}

	zr, err := zip.NewReader(src, size)
	if err != nil {
		return nil, fmt.Errorf("opening zip archive: %w", err)
	}

	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := x.extractOne(w, f); err != nil {
			return nil, err
		}
	}
	return w.result, nil
}

func (x *zipExtractor) extractOne(w *writer, f *zip.File) error {
	mode := f.Mode()
	switch {
	case strings.HasSuffix(f.Name, "/") || mode.IsDir():
		return w.dir(f.Name, mode)
	case mode&fs.ModeSymlink != 0:
		target, err := readSmall(f)
		if err != nil {
			return err
		}
		return w.symlink(f.Name, target)
	case mode.IsRegular():
		if f.UncompressedSize64 > math.MaxInt64 {
			return fmt.Errorf("%w: %s is too large", ErrLimitExceeded, f.Name)
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("opening %s: %w", f.Name, err)
		}
		// Read-only entry reader; the CRC check surfaces through Read.
		defer func() { _ = rc.Close() }()
		perm := mode.Perm()
		if perm == 0 {
			// Archives written on Windows carry no Unix permissions.
			perm = 0o644
		}
		return w.file(f.Name, perm, int64(f.UncompressedSize64), rc)
	}
	return nil
}

func readSmall(f *zip.File) (string, error) {
	if f.UncompressedSize64 > maxLinkTarget {
		return "", fmt.Errorf("%w: symlink %s target too long", ErrLimitExceeded, f.Name)
	}
	rc, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", f.Name, err)
	}
	defer func() { _ = rc.Close() }()
	b, err := io.ReadAll(io.LimitReader(rc, maxLinkTarget))
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", f.Name, err)
	}
	return string(b), nil
}
