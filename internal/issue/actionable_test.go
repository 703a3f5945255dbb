// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestActionableError_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      *ActionableError
		expected string
	}{
		{
			name:     "operation only",
			err:      &ActionableError{Operation: "load configuration"},
			expected: "failed to load configuration",
		},
		{
			name: "operation with resource",
			err: &ActionableError{
				Operation: "load configuration",
				Resource:  "./config.cue",
			},
			expected: "failed to load configuration: ./config.cue",
		},
		{
			name: "full context",
			err: &ActionableError{
				Operation: "verify the bundled runtime environment",
				Resource:  "/cache/az/b2-45f711b17d42",
				Step:      "verify",
				Cause:     errors.New("digest differs"),
			},
			expected: "failed to verify the bundled runtime environment: /cache/az/b2-45f711b17d42: verify: digest differs",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestActionableError_IsAndUnwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("underlying error")
	err := &ActionableError{Kind: CacheCorrupt, Operation: "test", Cause: cause}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
	if !errors.Is(err, ErrCacheCorrupt) {
		t.Error("errors.Is should match the kind sentinel")
	}
	if errors.Is(err, ErrLaunchFailed) {
		t.Error("errors.Is matched another kind")
	}
	if (&ActionableError{Operation: "test"}).Unwrap() != nil {
		t.Error("Unwrap() should return nil when no cause")
	}
}

func TestActionableError_Format(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      *ActionableError
		verbose  bool
		contains []string
		excludes []string
	}{
		{
			name: "hints",
			err: &ActionableError{
				Operation:   "prepare the runtime cache",
				Suggestions: []string{"Check permissions", "Set AZBIN_CACHE_DIR"},
			},
			contains: []string{"failed to prepare the runtime cache\n  hint: Check permissions\n  hint: Set AZBIN_CACHE_DIR"},
		},
		{
			name: "cause chain in verbose mode",
			err: &ActionableError{
				Kind:      ExtractionFailed,
				Operation: "extract",
				Cause:     New(ExtractionFailed, "read tar header", "", errors.New("unexpected EOF")),
			},
			verbose:  true,
			contains: []string{"kind: ExtractionFailed", "cause 1: read tar header: unexpected EOF", "cause 2: unexpected EOF"},
		},
		{
			name: "no cause chain by default",
			err: &ActionableError{
				Operation: "extract",
				Cause:     errors.New("unexpected EOF"),
			},
			excludes: []string{"cause 1:", "kind:"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := tt.err.Format(tt.verbose)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("Format() missing %q in:\n%s", want, got)
				}
			}
			for _, unwanted := range tt.excludes {
				if strings.Contains(got, unwanted) {
					t.Errorf("Format() unexpectedly contains %q in:\n%s", unwanted, got)
				}
			}
		})
	}
}

func TestErrorContext_Build(t *testing.T) {
	t.Parallel()

	if NewErrorContext().WithResource("x").Build() != nil {
		t.Error("Build() without operation should return nil")
	}
	if err := NewErrorContext().BuildError(); err != nil {
		t.Errorf("BuildError() without operation = %v, want nil", err)
	}

	cause := errors.New("boom")
	ctx := NewErrorContext().
		WithKind(IntegrityMismatch).
		WithOperation("verify the bundled runtime environment").
		WithResource("runtime.tar.gz").
		WithStep("verify").
		WithSuggestion("one").
		WithSuggestion("two").
		Wrap(cause)
	ae := ctx.Build()
	ctx.WithSuggestion("three")

	want := &ActionableError{
		Kind:        IntegrityMismatch,
		Operation:   "verify the bundled runtime environment",
		Resource:    "runtime.tar.gz",
		Step:        "verify",
		Suggestions: []string{"one", "two"},
		Cause:       cause,
	}
	if diff := cmp.Diff(want, ae, cmpopts.EquateErrors()); diff != "" {
		t.Errorf("Build() mismatch (-want +got):\n%s", diff)
	}
}

func TestDiagnose(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind    Kind
		wantOp  string
		wantSub string
	}{
		{CacheUnwritable, "prepare the runtime cache", "AZBIN_CACHE_DIR"},
		{CacheCorrupt, "repair the cached runtime environment", "azbin cache prune"},
		{ExtractionFailed, "extract the bundled runtime environment", "disk space"},
		{IntegrityMismatch, "verify the bundled runtime environment", "trusted source"},
		{LaunchFailed, "start the bundled tool", "azbin cache prune"},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			t.Parallel()

			ae := Diagnose(New(tt.kind, "op", "/slot", errors.New("cause")), "/cache")
			if ae.Operation != tt.wantOp {
				t.Errorf("Operation = %q, want %q", ae.Operation, tt.wantOp)
			}
			if ae.Resource != "/slot" || ae.Step != "op" {
				t.Errorf("Resource, Step = %q, %q, want /slot, op", ae.Resource, ae.Step)
			}
			if strings.Count(ae.Error(), "/slot") != 1 {
				t.Errorf("Error() = %q, want the path exactly once", ae.Error())
			}
			if !strings.Contains(ae.Format(false), tt.wantSub) {
				t.Errorf("Format() missing %q:\n%s", tt.wantSub, ae.Format(false))
			}
			if !errors.Is(ae, tt.kind.Sentinel()) {
				t.Error("diagnosis should keep the kind sentinel reachable")
			}
		})
	}

	if Diagnose(nil, "/cache") != nil {
		t.Error("Diagnose(nil) should return nil")
	}

	pre := &ActionableError{Operation: "load configuration"}
	if Diagnose(pre, "/cache") != pre {
		t.Error("Diagnose should pass an ActionableError through unchanged")
	}
}
