// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"archive/tar"
	"bytes"
	"io"
	"io/fs"
	"sort"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
)

// ArchiveEntry is one item of an archive built by BuildArchive.
// Exactly one of Dir, Linkname (symlink) or Body (regular file) applies.
type ArchiveEntry struct {
	Name     string
	Body     string
	Mode     int64
	Dir      bool
	Linkname string
	Hardlink string
}

// BuildArchive returns an in-memory archive in the named format
// ("tar.gz", "tar.zst" or "zip") containing entries in order.
func BuildArchive(t testing.TB, format string, entries []ArchiveEntry) []byte {
	t.Helper()

	var buf bytes.Buffer
	switch format {
	case "tar.gz":
		gz := gzip.NewWriter(&buf)
		writeTar(t, gz, entries)
		if err := gz.Close(); err != nil {
			t.Fatalf("closing gzip writer: %v", err)
		}
	case "tar.zst":
		enc, err := zstd.NewWriter(&buf)
		if err != nil {
			t.Fatalf("creating zstd writer: %v", err)
		}
		writeTar(t, enc, entries)
		if err := enc.Close(); err != nil {
			t.Fatalf("closing zstd writer: %v", err)
		}
	case "zip":
		writeZip(t, &buf, entries)
	default:
		t.Fatalf("BuildArchive: unknown format %q", format)
	}
	return buf.Bytes()
}

func writeTar(t testing.TB, w io.Writer, entries []ArchiveEntry) {
	t.Helper()
	tw := tar.NewWriter(w)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.Name, Mode: e.Mode}
		switch {
		case e.Dir:
			hdr.Typeflag = tar.TypeDir
			if hdr.Mode == 0 {
				hdr.Mode = 0o755
			}
		case e.Linkname != "":
			hdr.Typeflag = tar.TypeSymlink
			hdr.Linkname = e.Linkname
		case e.Hardlink != "":
			hdr.Typeflag = tar.TypeLink
			hdr.Linkname = e.Hardlink
		default:
			hdr.Typeflag = tar.TypeReg
			hdr.Size = int64(len(e.Body))
			if hdr.Mode == 0 {
				hdr.Mode = 0o644
			}
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("writing tar header %s: %v", e.Name, err)
		}
		if hdr.Typeflag == tar.TypeReg {
			if _, err := io.WriteString(tw, e.Body); err != nil {
				t.Fatalf("writing tar body %s: %v", e.Name, err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("closing tar writer: %v", err)
	}
}

func writeZip(t testing.TB, w io.Writer, entries []ArchiveEntry) {
	t.Helper()
	zw := zip.NewWriter(w)
	for _, e := range entries {
		fh := &zip.FileHeader{Name: e.Name, Method: zip.Deflate}
		body := e.Body
		switch {
		case e.Dir:
			if fh.Name[len(fh.Name)-1] != '/' {
				fh.Name += "/"
			}
			fh.SetMode(fs.ModeDir | 0o755)
			body = ""
		case e.Linkname != "":
			fh.SetMode(fs.ModeSymlink | 0o777)
			body = e.Linkname
		default:
			mode := e.Mode
			if mode == 0 {
				mode = 0o644
			}
			fh.SetMode(fs.FileMode(mode).Perm())
		}
		fw, err := zw.CreateHeader(fh)
		if err != nil {
			t.Fatalf("creating zip entry %s: %v", e.Name, err)
		}
		if _, err := io.WriteString(fw, body); err != nil {
			t.Fatalf("writing zip entry %s: %v", e.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing zip writer: %v", err)
	}
}

// RuntimeTree returns the entries of a small but realistic environment: an
// interpreter entry-point at interpreter, a lib/python3.12 standard library
// and a site-packages module. Extra files are appended in sorted order.
func RuntimeTree(interpreter, script string, extra map[string]string) []ArchiveEntry {
	entries := []ArchiveEntry{
		{Name: "./", Dir: true},
		{Name: "bin/", Dir: true},
		{Name: interpreter, Body: script, Mode: 0o755},
		{Name: "lib/python3.12/", Dir: true},
		{Name: "lib/python3.12/os.py", Body: "# stdlib\n"},
		{Name: "lib/python3.12/site-packages/", Dir: true},
		{Name: "lib/python3.12/site-packages/azure/cli/__main__.py", Body: "print('az')\n"},
		{Name: "pyvenv.cfg", Body: "home = /usr/bin\ninclude-system-site-packages = false\n"},
	}
	names := make([]string, 0, len(extra))
	for name := range extra {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		entries = append(entries, ArchiveEntry{Name: name, Body: extra[name]})
	}
	return entries
}
