// SPDX-License-Identifier: MPL-2.0

package main

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rogpeppe/go-internal/testscript"

	"github.com/azbin/azbin/internal/issue"
	"github.com/azbin/azbin/internal/testutil"
)

func TestMain(m *testing.M) {
	testscript.Main(m, map[string]func(){
		// The fingerprint normally arrives through -ldflags.
		"az": func() {
			archiveSHA256 = os.Getenv("AZ_TEST_SHA256")
			buildID = os.Getenv("AZ_TEST_BUILD_ID")
			toolVersion = "2.67.0"
			main()
		},
	})
}

// runtimeArchive writes a stub runtime archive into dir and returns its
// path and SHA-256.
func runtimeArchive(t *testing.T, dir, name string, extra map[string]string) (string, string) {
	t.Helper()
	data := testutil.BuildArchive(t, "tar.gz", testutil.RuntimeTree("bin/python", testutil.StubScript(), extra))
	path := filepath.Join(dir, name)
	testutil.MustWriteFile(t, path, data, 0o644)
	sum := sha256.Sum256(data)
	return path, hex.EncodeToString(sum[:])
}

func TestScripts(t *testing.T) {
	testutil.SkipIfNoShell(t)

	dir := t.TempDir()
	v1, v1sum := runtimeArchive(t, dir, "runtime-1.tar.gz", nil)
	v2, v2sum := runtimeArchive(t, dir, "runtime-2.tar.gz", map[string]string{
		"lib/python3.12/site-packages/azure/cli/VERSION": "2.68.0\n",
	})

	testscript.Run(t, testscript.Params{
		Dir: filepath.Join("testdata", "script"),
		Setup: func(env *testscript.Env) error {
			env.Setenv("RUNTIME_1", v1)
			env.Setenv("RUNTIME_1_SHA", v1sum)
			env.Setenv("RUNTIME_2", v2)
			env.Setenv("RUNTIME_2_SHA", v2sum)
			env.Setenv("SLOT_1", "b1-"+v1sum[:12])
			env.Setenv("SLOT_2", "b2-"+v2sum[:12])
			env.Setenv("MISMATCH_SLOT", "b1-"+v2sum[:12])
			env.Setenv("AZBIN_CACHE_DIR", filepath.Join(env.WorkDir, "cache"))
			env.Setenv("AZBIN_CONFIG", "")
			env.Setenv("AZBIN_FORWARD_MODE", "spawn")
			env.Setenv("XDG_CONFIG_HOME", filepath.Join(env.WorkDir, "config"))
			return nil
		},
	})
}

func TestRenderDiagnostic(t *testing.T) {
	t.Parallel()

	err := issue.New(issue.IntegrityMismatch, "verify", "/tmp/runtime.tar.gz", errors.New("digest mismatch"))
	plain := renderDiagnostic(issue.Diagnose(err, "/cache"), false, false)
	if !strings.HasPrefix(plain, "az: failed to verify the bundled runtime environment") {
		t.Errorf("plain diagnostic = %q", plain)
	}
	if strings.Contains(plain, "\x1b[") {
		t.Errorf("plain diagnostic contains escape sequences: %q", plain)
	}
	if !strings.Contains(plain, "Download this release again") {
		t.Errorf("plain diagnostic lacks suggestions: %q", plain)
	}

	styled := renderDiagnostic(issue.Diagnose(err, "/cache"), true, false)
	if !strings.Contains(styled, "digest mismatch") {
		t.Errorf("styled diagnostic = %q", styled)
	}
	if verbose := renderDiagnostic(issue.Diagnose(err, "/cache"), false, true); !strings.Contains(verbose, "kind: IntegrityMismatch") {
		t.Errorf("verbose diagnostic lacks the kind: %q", verbose)
	}
	if renderDiagnostic(nil, true, false) != "" {
		t.Error("renderDiagnostic(nil) is not empty")
	}
}

func TestRunExitCodes(t *testing.T) {
	testutil.SkipIfNoShell(t)

	dir := t.TempDir()
	archive, sum := runtimeArchive(t, dir, "runtime.tar.gz", nil)
	t.Setenv("AZBIN_CACHE_DIR", filepath.Join(dir, "cache"))
	t.Setenv("AZBIN_CONFIG", "")
	t.Setenv("AZBIN_FORWARD_MODE", "spawn")
	t.Setenv("AZBIN_PAYLOAD", archive)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))

	orig := [3]string{archiveSHA256, buildID, toolVersion}
	t.Cleanup(func() { archiveSHA256, buildID, toolVersion = orig[0], orig[1], orig[2] })
	archiveSHA256, buildID, toolVersion = sum, "4", "2.67.0"

	var stdout, stderr strings.Builder
	s := streams{in: strings.NewReader(""), out: &stdout, err: &stderr}

	t.Setenv("STUB_EXIT", "7")
	if code := run(t.Context(), []string{"vm", "list"}, s); code != 7 {
		t.Errorf("run() = %d, want the child's 7; stderr:\n%s", code, stderr.String())
	}

	archiveSHA256 = strings.Repeat("ab", 32)
	stderr.Reset()
	if code := run(t.Context(), []string{"vm", "list"}, s); code != exitInternal {
		t.Errorf("run() with a foreign digest = %d, want %d", code, exitInternal)
	}
	if !strings.Contains(stderr.String(), "sha256 mismatch") {
		t.Errorf("stderr = %q, want the digest mismatch", stderr.String())
	}
}
