// SPDX-License-Identifier: MPL-2.0

// Package logging builds the charmbracelet loggers used by both binaries.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultLevel keeps the launcher quiet so forwarded output stays clean.
const DefaultLevel = log.WarnLevel

// Options configures New.
type Options struct {
	// Writer receives log lines; os.Stderr when nil.
	Writer io.Writer
	// Level is a level name ("debug", "info", "warn", "error"). Unknown or
	// empty names fall back to DefaultLevel.
	Level string
	// JSON switches to JSON output.
	JSON bool
	// Timestamps adds a time to every line.
	Timestamps bool
}

// New returns a logger prefixed with component.
func New(component string, opts Options) *log.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	logOpts := log.Options{
		Prefix:          component,
		Level:           ParseLevel(opts.Level),
		ReportTimestamp: opts.Timestamps,
		TimeFormat:      time.RFC3339,
	}
	if opts.JSON {
		logOpts.Formatter = log.JSONFormatter
	}
	return log.NewWithOptions(w, logOpts)
}

// ParseLevel maps a level name to a log.Level, defaulting to DefaultLevel.
func ParseLevel(name string) log.Level {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return DefaultLevel
	}
	lvl, err := log.ParseLevel(name)
	if err != nil {
		return DefaultLevel
	}
	return lvl
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.New(io.Discard)
}
