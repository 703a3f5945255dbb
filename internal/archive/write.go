// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/zeebo/blake3"
)

// writer materializes entries below dest and records them in result.
type writer struct {
	dest     string
	realDest string
	budget   budget
	result   *Result
}

func newWriter(format Format, dest string, limits Limits) (*writer, error) {
	info, err := os.Stat(dest)
	if err != nil {
		return nil, fmt.Errorf("destination: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("destination %s is not a directory", dest)
	}
	realDest, err := filepath.EvalSymlinks(dest)
	if err != nil {
		return nil, fmt.Errorf("resolving destination: %w", err)
	}
	return &writer{
		dest:     dest,
		realDest: realDest,
		budget:   budget{limits: limits},
		result:   &Result{Format: format},
	}, nil
}

// cleanName normalizes an archive entry name to a slash-separated relative
// path. It returns "" for the archive root ("./").
func cleanName(name string) (string, error) {
	n := strings.ReplaceAll(name, `\`, "/")
	if strings.HasPrefix(n, "/") || (len(n) >= 2 && n[1] == ':') {
		return "", fmt.Errorf("%w: absolute path %q", ErrUnsafePath, name)
	}
	n = path.Clean(n)
	if n == "." {
		return "", nil
	}
	if n == ".." || strings.HasPrefix(n, "../") {
		return "", fmt.Errorf("%w: %q escapes the destination", ErrUnsafePath, name)
	}
	return n, nil
}

// target joins a cleaned name onto dest and verifies that its parent
// directory, after resolving symlinks created earlier in the extraction,
// still lies inside dest. Missing parents are created.
func (w *writer) target(rel string) (string, error) {
	full := filepath.Join(w.dest, filepath.FromSlash(rel))
	parent := filepath.Dir(full)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", fmt.Errorf("creating parent of %s: %w", rel, err)
	}
	realParent, err := filepath.EvalSymlinks(parent)
	if err != nil {
		return "", fmt.Errorf("resolving parent of %s: %w", rel, err)
	}
	if !within(w.realDest, realParent) {
		return "", fmt.Errorf("%w: %q resolves outside the destination", ErrUnsafePath, rel)
	}
	return full, nil
}

func within(root, p string) bool {
	r, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return r == "." || (r != ".." && !strings.HasPrefix(r, ".."+string(filepath.Separator)))
}

// removeExisting removes whatever sits at full so that a new entry never writes
// through an existing symlink.
func removeExisting(full string) error {
	info, err := os.Lstat(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s already exists as a directory", full)
	}
	return os.Remove(full)
}

func (w *writer) dir(name string, mode fs.FileMode) error {
	rel, err := cleanName(name)
	if err != nil || rel == "" {
		return err
	}
	if err := w.budget.entry(rel); err != nil {
		return err
	}
	full, err := w.target(rel)
	if err != nil {
		return err
	}
	perm := mode.Perm() | 0o700
	if info, err := os.Lstat(full); err == nil {
		if !info.IsDir() {
			return fmt.Errorf("%s: exists and is not a directory", rel)
		}
		if err := os.Chmod(full, perm); err != nil {
			return fmt.Errorf("chmod %s: %w", rel, err)
		}
	} else if err := os.Mkdir(full, perm); err != nil {
		return fmt.Errorf("creating directory %s: %w", rel, err)
	}
	w.result.Entries = append(w.result.Entries, Entry{Path: rel, Type: EntryDir, Mode: perm | fs.ModeDir})
	return nil
}

func (w *writer) file(name string, mode fs.FileMode, size int64, r io.Reader) (err error) {
	rel, err := cleanName(name)
	if err != nil {
		return err
	}
	if rel == "" {
		return fmt.Errorf("%w: file entry %q has no name", ErrUnsafePath, name)
	}
	if err := w.budget.entry(rel); err != nil {
		return err
	}
	if err := w.budget.file(rel, size); err != nil {
		return err
	}
	full, err := w.target(rel)
	if err != nil {
		return err
	}
	if err := removeExisting(full); err != nil {
		return fmt.Errorf("replacing %s: %w", rel, err)
	}

	perm := mode.Perm() | 0o600
	out, err := os.OpenFile(full, os.O_CREATE|os.O_EXCL|os.O_WRONLY, perm)
	if err != nil {
		return fmt.Errorf("creating %s: %w", rel, err)
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", rel, closeErr)
		}
	}()
	// The umask must not narrow archived permissions.
	if err := out.Chmod(perm); err != nil {
		return fmt.Errorf("chmod %s: %w", rel, err)
	}

	h := blake3.New()
	n, err := io.Copy(io.MultiWriter(out, h), io.LimitReader(r, size+1))
	if err != nil {
		return fmt.Errorf("writing %s: %w", rel, err)
	}
	if n != size {
		return fmt.Errorf("writing %s: got %d bytes, header says %d: %w", rel, n, size, io.ErrUnexpectedEOF)
	}

	e := Entry{Path: rel, Type: EntryFile, Mode: perm, Size: size}
	copy(e.BLAKE3[:], h.Sum(nil))
	w.result.Entries = append(w.result.Entries, e)
	w.result.Files++
	w.result.Bytes += size
	return nil
}

func (w *writer) symlink(name, linkname string) error {
	rel, err := cleanName(name)
	if err != nil {
		return err
	}
	if rel == "" {
		return fmt.Errorf("%w: symlink entry %q has no name", ErrUnsafePath, name)
	}
	if err := w.budget.entry(rel); err != nil {
		return err
	}
	if linkname == "" || filepath.IsAbs(linkname) || strings.HasPrefix(linkname, "/") {
		return fmt.Errorf("%w: symlink %s -> %q", ErrUnsafePath, rel, linkname)
	}
	resolved := path.Join(path.Dir(rel), strings.ReplaceAll(linkname, `\`, "/"))
	if resolved == ".." || strings.HasPrefix(resolved, "../") {
		return fmt.Errorf("%w: symlink %s -> %q escapes the destination", ErrUnsafePath, rel, linkname)
	}
	full, err := w.target(rel)
	if err != nil {
		return err
	}
	// The parent may itself be reached through an earlier symlink.
	realParent, err := filepath.EvalSymlinks(filepath.Dir(full))
	if err != nil {
		return fmt.Errorf("resolving parent of %s: %w", rel, err)
	}
	if !within(w.realDest, filepath.Join(realParent, filepath.FromSlash(linkname))) {
		return fmt.Errorf("%w: symlink %s -> %q resolves outside the destination", ErrUnsafePath, rel, linkname)
	}
	if err := removeExisting(full); err != nil {
		return fmt.Errorf("replacing %s: %w", rel, err)
	}
	if err := os.Symlink(linkname, full); err != nil {
		return fmt.Errorf("creating symlink %s: %w", rel, err)
	}
	w.result.Entries = append(w.result.Entries, Entry{Path: rel, Type: EntrySymlink, Mode: fs.ModeSymlink | 0o777, Linkname: linkname})
	return nil
}

func (w *writer) hardlink(name, linkname string) error {
	rel, err := cleanName(name)
	if err != nil {
		return err
	}
	src, err := cleanName(linkname)
	if err != nil {
		return err
	}
	if rel == "" || src == "" {
		return fmt.Errorf("%w: hard link %q -> %q", ErrUnsafePath, name, linkname)
	}
	if err := w.budget.entry(rel); err != nil {
		return err
	}
	oldFull, err := w.target(src)
	if err != nil {
		return err
	}
	full, err := w.target(rel)
	if err != nil {
		return err
	}
	info, err := os.Lstat(oldFull)
	if err != nil {
		return fmt.Errorf("hard link %s: target %s: %w", rel, src, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: hard link %s -> %s is not a regular file", ErrUnsafePath, rel, src)
	}
	if err := removeExisting(full); err != nil {
		return fmt.Errorf("replacing %s: %w", rel, err)
	}
	if err := os.Link(oldFull, full); err != nil {
		return fmt.Errorf("creating hard link %s: %w", rel, err)
	}

	e := Entry{Path: rel, Type: EntryHardlink, Mode: info.Mode().Perm(), Size: info.Size(), Linkname: src}
	for i := len(w.result.Entries) - 1; i >= 0; i-- {
		if w.result.Entries[i].Path == src && w.result.Entries[i].Type == EntryFile {
			e.BLAKE3 = w.result.Entries[i].BLAKE3
			break
		}
	}
	w.result.Entries = append(w.result.Entries, e)
	return nil
}
