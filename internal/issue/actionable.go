// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"
)

type (
	// ActionableError is the diagnostic printed when the launcher gives up:
	// the goal that failed, the file involved, the step that broke and the
	// hints shown below it. Kind keeps errors.Is working against the
	// taxonomy sentinels after the LaunchError wrapper is unpacked.
	//
	//	err := issue.NewErrorContext().
	//		WithKind(issue.CacheUnwritable).
	//		WithOperation("prepare the runtime cache").
	//		WithResource(dir).
	//		WithSuggestion("Point AZBIN_CACHE_DIR at a writable location").
	//		Wrap(cause).
	//		Build()
	ActionableError struct {
		Kind        Kind
		Operation   string
		Resource    string
		Step        string
		Suggestions []string
		Cause       error
	}

	// ErrorContext builds an ActionableError.
	ErrorContext struct {
		ae ActionableError
	}
)

// NewErrorContext starts an empty diagnostic.
func NewErrorContext() *ErrorContext {
	return &ErrorContext{}
}

// Error renders "failed to <operation>[: <resource>][: <step>][: <cause>]".
func (e *ActionableError) Error() string {
	parts := []string{"failed to " + e.Operation}
	for _, p := range []string{e.Resource, e.Step} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, ": ")
}

// Unwrap returns the cause.
func (e *ActionableError) Unwrap() error {
	return e.Cause
}

// Is matches the sentinel of the diagnostic's kind.
func (e *ActionableError) Is(target error) bool {
	s := e.Kind.Sentinel()
	return s != nil && target == s
}

// Format renders the message followed by one "hint:" line per suggestion.
// verbose appends every error in the cause chain.
func (e *ActionableError) Format(verbose bool) string {
	var b strings.Builder
	b.WriteString(e.Error())
	for _, s := range e.Suggestions {
		b.WriteString("\n  hint: ")
		b.WriteString(s)
	}
	if !verbose {
		return b.String()
	}
	if e.Kind != KindUnknown {
		fmt.Fprintf(&b, "\n  kind: %s", e.Kind)
	}
	for i, err := 1, e.Cause; err != nil; i, err = i+1, errors.Unwrap(err) {
		fmt.Fprintf(&b, "\n  cause %d: %s", i, err)
	}
	return b.String()
}

// WithKind classifies the diagnostic.
func (c *ErrorContext) WithKind(k Kind) *ErrorContext {
	c.ae.Kind = k
	return c
}

// WithOperation sets the user-level goal, phrased to follow "failed to".
func (c *ErrorContext) WithOperation(op string) *ErrorContext {
	c.ae.Operation = op
	return c
}

// WithResource sets the file or directory involved.
func (c *ErrorContext) WithResource(res string) *ErrorContext {
	c.ae.Resource = res
	return c
}

// WithStep names the internal step that failed.
func (c *ErrorContext) WithStep(step string) *ErrorContext {
	c.ae.Step = step
	return c
}

// WithSuggestion appends a hint.
func (c *ErrorContext) WithSuggestion(sug string) *ErrorContext {
	c.ae.Suggestions = append(c.ae.Suggestions, sug)
	return c
}

// Wrap sets the cause.
func (c *ErrorContext) Wrap(err error) *ErrorContext {
	c.ae.Cause = err
	return c
}

// Build returns the diagnostic, or nil when no operation was set.
func (c *ErrorContext) Build() *ActionableError {
	if c.ae.Operation == "" {
		return nil
	}
	ae := c.ae
	ae.Suggestions = append([]string(nil), c.ae.Suggestions...)
	return &ae
}

// BuildError is Build returning the error interface, so a missing operation
// yields a nil error rather than a typed nil.
func (c *ErrorContext) BuildError() error {
	if ae := c.Build(); ae != nil {
		return ae
	}
	return nil
}
