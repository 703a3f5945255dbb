// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// tarExtractor handles compressed tar streams. decompress wraps the packed
// bytes and returns the tar stream plus a close function.
type tarExtractor struct {
	format     Format
	limits     Limits
	decompress func(io.Reader) (io.Reader, func(), error)
}

func gzipReader(r io.Reader) (io.Reader, func(), error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("creating gzip reader: %w", err)
	}
	// Gzip reader only reads; close errors are not actionable.
	return gz, func() { _ = gz.Close() }, nil
}

func zstdReader(r io.Reader) (io.Reader, func(), error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("creating zstd reader: %w", err)
	}
	return dec, dec.Close, nil
}

// Format returns the archive format handled by the extractor.
func (x *tarExtractor) Format() Format { return x.format }

// Extract unpacks the compressed tar stream held in src into dest.
func (x *tarExtractor) Extract(ctx context.Context, src io.ReaderAt, size int64, dest string) (*Result, error) {
	w, err := newWriter(x.format, dest, x.limits)
	if err != nil {
		return nil, err
	}

	stream, closeFn, err := x.decompress(io.NewSectionReader(src, 0, size))
	if err != nil {
		return nil, err
	}
	defer closeFn()

	tr := tar.NewReader(stream)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading tar header: %w", err)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			err = w.dir(hdr.Name, fs.FileMode(hdr.Mode))
		case tar.TypeReg, tar.TypeRegA: //nolint:staticcheck // TypeRegA still appears in old archives.
			err = w.file(hdr.Name, fs.FileMode(hdr.Mode), hdr.Size, tr)
		case tar.TypeSymlink:
			err = w.symlink(hdr.Name, hdr.Linkname)
		case tar.TypeLink:
			err = w.hardlink(hdr.Name, hdr.Linkname)
		default:
			// Device nodes, FIFOs and vendor extensions have no place in a
			// runtime environment tree.
			continue
		}
		if err != nil {
			return nil, err
		}
	}

	// Drain the compressed stream so trailing corruption (bad gzip CRC or
	// length) is reported rather than silently ignored.
	if _, err := io.Copy(io.Discard, stream); err != nil {
		return nil, fmt.Errorf("reading archive trailer: %w", err)
	}

	return w.result, nil
}
