// SPDX-License-Identifier: MPL-2.0

package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"
	"golang.org/x/sync/errgroup"

	"github.com/azbin/azbin/internal/archive"
)

// ManifestFile is the name of the file manifest inside a slot.
const ManifestFile = ".azbin-manifest.cbor"

// ErrTreeModified is wrapped by the error VerifyTree returns when files differ
// from the manifest.
var ErrTreeModified = errors.New("extracted tree differs from its manifest")

type (
	// Manifest lists what an extraction produced, in archive order.
	Manifest struct {
		Format  string          `cbor:"1,keyasint"`
		Entries []ManifestEntry `cbor:"2,keyasint"`
	}

	// ManifestEntry is one regular file or symlink. BLAKE3 is empty for symlinks.
	ManifestEntry struct {
		Path     string      `cbor:"1,keyasint"`
		Mode     fs.FileMode `cbor:"2,keyasint"`
		Size     int64       `cbor:"3,keyasint"`
		BLAKE3   []byte      `cbor:"4,keyasint,omitempty"`
		Linkname string      `cbor:"5,keyasint,omitempty"`
	}

	// TreeProblem is one discrepancy found by VerifyTree.
	TreeProblem struct {
		Path   string
		Reason string
	}

	// TreeError lists every discrepancy. It wraps ErrTreeModified.
	TreeError struct {
		Slot     string
		Problems []TreeProblem
	}
)

// NewManifest converts an extraction result. Directories are omitted.
func NewManifest(res *archive.Result) *Manifest {
	m := &Manifest{Format: string(res.Format)}
	for _, e := range res.Entries {
		switch e.Type {
		case archive.EntryFile, archive.EntryHardlink:
			sum := e.BLAKE3
			m.Entries = append(m.Entries, ManifestEntry{Path: e.Path, Mode: e.Mode, Size: e.Size, BLAKE3: sum[:]})
		case archive.EntrySymlink:
			m.Entries = append(m.Entries, ManifestEntry{Path: e.Path, Mode: e.Mode, Linkname: e.Linkname})
		case archive.EntryDir:
		}
	}
	return m
}

// WriteManifest stores m in s atomically.
func WriteManifest(s Slot, m *Manifest) error {
	data, err := cbor.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	return writeFileAtomic(s.ManifestPath(), data, 0o644)
}

// ReadManifest loads the manifest of s.
func ReadManifest(s Slot) (*Manifest, error) {
	data, err := os.ReadFile(s.ManifestPath())
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := cbor.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding manifest %s: %w", s.ManifestPath(), err)
	}
	return &m, nil
}

// VerifyTree re-hashes every manifest entry of s with up to workers
// goroutines (GOMAXPROCS when workers <= 0). It returns a *TreeError listing
// every file that is missing, resized, retargeted or whose content changed.
func VerifyTree(ctx context.Context, s Slot, workers int) error {
	m, err := ReadManifest(s)
	if err != nil {
		return fmt.Errorf("reading manifest: %w", err)
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	var (
		mu       sync.Mutex
		problems []TreeProblem
	)
	report := func(path, reason string) {
		mu.Lock()
		problems = append(problems, TreeProblem{Path: path, Reason: reason})
		mu.Unlock()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, e := range m.Entries {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if reason := checkEntry(s, e); reason != "" {
				report(e.Path, reason)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if len(problems) == 0 {
		return nil
	}
	sort.Slice(problems, func(i, j int) bool { return problems[i].Path < problems[j].Path })
	return &TreeError{Slot: s.Dir, Problems: problems}
}

func checkEntry(s Slot, e ManifestEntry) string {
	full := s.Path(e.Path)
	info, err := os.Lstat(full)
	if err != nil {
		return err.Error()
	}
	if e.Linkname != "" {
		target, err := os.Readlink(full)
		if err != nil {
			return err.Error()
		}
		if target != e.Linkname {
			return fmt.Sprintf("symlink target %q, want %q", target, e.Linkname)
		}
		return ""
	}
	if !info.Mode().IsRegular() {
		return "no longer a regular file"
	}
	if info.Size() != e.Size {
		return fmt.Sprintf("size %d, want %d", info.Size(), e.Size)
	}
	sum, err := hashFile(full)
	if err != nil {
		return err.Error()
	}
	if !bytes.Equal(sum, e.BLAKE3) {
		return "content changed"
	}
	return ""
}

// Error summarizes the problems.
func (e *TreeError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d file(s) differ from the manifest", e.Slot, len(e.Problems))
	for i, p := range e.Problems {
		if i == 5 {
			fmt.Fprintf(&b, "; and %d more", len(e.Problems)-i)
			break
		}
		fmt.Fprintf(&b, "; %s: %s", p.Path, p.Reason)
	}
	return b.String()
}

// Unwrap returns ErrTreeModified.
func (e *TreeError) Unwrap() error { return ErrTreeModified }

// ScanTree builds a manifest by walking s, skipping the slot's own metadata
// files. It is used when a post-extraction hook may have rewritten the tree.
func ScanTree(s Slot, format string) (*Manifest, error) {
	m := &Manifest{Format: format}
	root := os.DirFS(s.Dir)
	err := fs.WalkDir(root, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == MarkerFile || p == ManifestFile || strings.HasPrefix(p, "."+MarkerFile) || strings.HasPrefix(p, "."+ManifestFile) {
			return nil
		}
		switch {
		case d.Type()&fs.ModeSymlink != 0:
			target, err := os.Readlink(s.Path(p))
			if err != nil {
				return err
			}
			m.Entries = append(m.Entries, ManifestEntry{Path: p, Mode: fs.ModeSymlink | 0o777, Linkname: target})
		case d.Type().IsRegular():
			info, err := d.Info()
			if err != nil {
				return err
			}
			sum, err := hashFile(s.Path(p))
			if err != nil {
				return err
			}
			m.Entries = append(m.Entries, ManifestEntry{Path: p, Mode: info.Mode().Perm(), Size: info.Size(), BLAKE3: sum})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", s.Dir, err)
	}
	return m, nil
}

func hashFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }() // Read-only.
	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}
