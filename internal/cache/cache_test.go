// SPDX-License-Identifier: MPL-2.0

package cache

import (
	"crypto/sha256"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/azbin/azbin/internal/fingerprint"
	"github.com/azbin/azbin/internal/issue"
	"github.com/azbin/azbin/internal/testutil"
)

func testFingerprint(build uint64, content string) fingerprint.Fingerprint {
	return fingerprint.Fingerprint{
		Digest:      fingerprint.Digest(sha256.Sum256([]byte(content))),
		BuildID:     fingerprint.BuildID(build),
		ToolVersion: "2.67.0",
	}
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(Options{Root: t.TempDir(), Tool: "az"})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	return m
}

// publish creates a validated slot for fp with an entry-point file.
func publish(t *testing.T, m *Manager, fp fingerprint.Fingerprint) Slot {
	t.Helper()
	s := m.SlotFor(fp)
	testutil.MustWriteFile(t, s.Path("bin/python"), []byte("#!/bin/sh\n"), 0o755)
	err := WriteMarker(s, &Marker{
		Tool:        "az",
		BuildID:     fp.BuildID,
		Digest:      fp.Digest,
		ToolVersion: fp.ToolVersion,
		Format:      "tar.gz",
		EntryPoint:  "bin/python",
		ExtractedAt: time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
		Bytes:       10,
	})
	if err != nil {
		t.Fatalf("WriteMarker() error = %v", err)
	}
	return s
}

func TestNewManagerRejectsBadTool(t *testing.T) {
	t.Parallel()

	for _, tool := range []string{"", "..", "a/b", "CON"} {
		if _, err := NewManager(Options{Root: t.TempDir(), Tool: tool}); err == nil {
			t.Errorf("NewManager(tool=%q) succeeded", tool)
		}
	}
}

func TestResolveRoot(t *testing.T) {
	origCache, origTemp := userCacheDir, tempDir
	t.Cleanup(func() { userCacheDir, tempDir = origCache, origTemp })

	tempDir = func() string { return filepath.FromSlash("/tmp") }

	userCacheDir = func() (string, error) { return filepath.FromSlash("/home/u/.cache"), nil }
	if got, want := ResolveRoot(""), filepath.FromSlash("/home/u/.cache/azbin"); got != want {
		t.Errorf("ResolveRoot(\"\") = %q, want %q", got, want)
	}

	userCacheDir = func() (string, error) { return "", errors.New("$HOME is not defined") }
	if got, want := ResolveRoot(""), filepath.FromSlash("/tmp/azbin"); got != want {
		t.Errorf("ResolveRoot(\"\") without user cache = %q, want %q", got, want)
	}

	configured := t.TempDir()
	if got := ResolveRoot(configured); got != configured {
		t.Errorf("ResolveRoot(%q) = %q", configured, got)
	}
}

func TestSlotFor(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	fp := testFingerprint(42, "payload")

	a, b := m.SlotFor(fp), m.SlotFor(fp)
	if a != b {
		t.Errorf("SlotFor is not stable: %+v != %+v", a, b)
	}
	want := filepath.Join(m.Root(), "az", "b42-"+fp.Digest.String()[:12])
	if a.Dir != want {
		t.Errorf("SlotFor().Dir = %q, want %q", a.Dir, want)
	}
	if a.LockPath() != want+".lock" {
		t.Errorf("LockPath() = %q", a.LockPath())
	}

	next := m.SlotFor(testFingerprint(43, "payload"))
	other := m.SlotFor(testFingerprint(42, "other payload"))
	if next.Dir == a.Dir || other.Dir == a.Dir {
		t.Error("different builds or digests share a slot")
	}
}

func TestEnsure(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	if err := m.Ensure(); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	if err := m.Ensure(); err != nil {
		t.Fatalf("second Ensure() error = %v", err)
	}
	entries, err := os.ReadDir(m.ToolDir())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("Ensure() left %d entries behind", len(entries))
	}
}

func TestEnsureUnwritable(t *testing.T) {
	t.Parallel()

	parent := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(parent, "file"), nil, 0o644)
	m, err := NewManager(Options{Root: filepath.Join(parent, "file"), Tool: "az"})
	if err != nil {
		t.Fatal(err)
	}
	err = m.Ensure()
	if !errors.Is(err, issue.ErrCacheUnwritable) {
		t.Errorf("Ensure() error = %v, want CacheUnwritable", err)
	}
}

func TestProbe(t *testing.T) {
	t.Parallel()

	fp := testFingerprint(7, "payload")

	tests := []struct {
		name   string
		setup  func(t *testing.T, m *Manager) Slot
		want   State
		reason string
	}{
		{
			name:  "missing",
			setup: func(_ *testing.T, m *Manager) Slot { return m.SlotFor(fp) },
			want:  StateMissing,
		},
		{
			name:  "validated",
			setup: func(t *testing.T, m *Manager) Slot { return publish(t, m, fp) },
			want:  StateValidated,
		},
		{
			name: "interrupted extraction",
			setup: func(t *testing.T, m *Manager) Slot {
				s := m.SlotFor(fp)
				testutil.MustWriteFile(t, s.Path("bin/python"), []byte("partial"), 0o755)
				return s
			},
			want:   StateInvalid,
			reason: "no validated marker",
		},
		{
			name: "marker of another build",
			setup: func(t *testing.T, m *Manager) Slot {
				s := publish(t, m, testFingerprint(6, "old payload"))
				target := m.SlotFor(fp)
				if err := os.Rename(s.Dir, target.Dir); err != nil {
					t.Fatal(err)
				}
				return target
			},
			want:   StateInvalid,
			reason: "another build",
		},
		{
			name: "entry-point removed",
			setup: func(t *testing.T, m *Manager) Slot {
				s := publish(t, m, fp)
				if err := os.Remove(s.Path("bin/python")); err != nil {
					t.Fatal(err)
				}
				return s
			},
			want:   StateInvalid,
			reason: "entry-point bin/python",
		},
		{
			name: "garbage marker",
			setup: func(t *testing.T, m *Manager) Slot {
				s := m.SlotFor(fp)
				testutil.MustWriteFile(t, s.MarkerPath(), []byte("schema = [oops"), 0o644)
				return s
			},
			want:   StateInvalid,
			reason: "decoding marker",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := newTestManager(t)
			s := tt.setup(t, m)
			got := Probe(s)
			if got.State != tt.want {
				t.Fatalf("Probe() state = %v (%s), want %v", got.State, got.Reason, tt.want)
			}
			if !strings.Contains(got.Reason, tt.reason) {
				t.Errorf("Probe() reason = %q, want it to contain %q", got.Reason, tt.reason)
			}
		})
	}
}

func TestMarkerRoundTrip(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	fp := testFingerprint(9, "payload")
	s := publish(t, m, fp)

	got, err := ReadMarker(s.MarkerPath())
	if err != nil {
		t.Fatalf("ReadMarker() error = %v", err)
	}
	want := &Marker{
		Schema:      MarkerSchema,
		Tool:        "az",
		BuildID:     9,
		Digest:      fp.Digest,
		ToolVersion: "2.67.0",
		Format:      "tar.gz",
		EntryPoint:  "bin/python",
		ExtractedAt: time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
		Bytes:       10,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("marker mismatch (-want +got):\n%s", diff)
	}

	raw, err := os.ReadFile(s.MarkerPath())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), fp.Digest.String()) {
		t.Errorf("marker does not store the digest as hex:\n%s", raw)
	}

	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Errorf("temp file %s left in slot", e.Name())
		}
	}
}

func TestDiscardAndPrepare(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	s := publish(t, m, testFingerprint(3, "p"))

	if err := m.Prepare(s); err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("Prepare() left %d entries", len(entries))
	}

	if err := m.Discard(s); err != nil {
		t.Fatalf("Discard() error = %v", err)
	}
	if err := m.Discard(s); err != nil {
		t.Errorf("Discard() of a missing slot error = %v", err)
	}
	if Probe(s).State != StateMissing {
		t.Error("slot still present after Discard")
	}
}

func TestDiscardUnpublishesBeforeRemoving(t *testing.T) {
	m := newTestManager(t)
	s := publish(t, m, testFingerprint(4, "d"))

	orig := removeAll
	t.Cleanup(func() { removeAll = orig })
	var seen State
	removeAll = func(string) error {
		seen = Probe(s).State
		return errors.New("device busy")
	}

	err := m.Discard(s)
	if !errors.Is(err, issue.ErrCacheCorrupt) {
		t.Fatalf("Discard() error = %v, want CacheCorrupt", err)
	}
	if seen == StateValidated {
		t.Error("slot still validated while its tree was being removed")
	}
	if got := Probe(s).State; got != StateInvalid {
		t.Errorf("Probe() after a failed removal = %v, want invalid", got)
	}
	if _, err := os.Stat(s.MarkerPath()); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("marker survived Discard: %v", err)
	}
}
