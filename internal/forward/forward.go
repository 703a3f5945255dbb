// SPDX-License-Identifier: MPL-2.0

package forward

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/azbin/azbin/internal/issue"
	"github.com/azbin/azbin/internal/logging"
	"github.com/azbin/azbin/pkg/platform"
)

const (
	// ModeExec replaces the launcher with the interpreter.
	ModeExec Mode = "exec"
	// ModeSpawn runs the interpreter as a child process and waits for it.
	ModeSpawn Mode = "spawn"
)

// ErrInvalidMode is returned by ParseMode for unknown names.
var ErrInvalidMode = errors.New("invalid forward mode")

type (
	// Mode selects how control is handed to the interpreter.
	Mode string

	// Target names the entry-point inside a runtime environment.
	Target struct {
		// Interpreters are candidate entry-point paths relative to the
		// environment root; the first that exists is used.
		Interpreters []string
		// Args precede the launcher's own arguments.
		Args []string
	}

	// Request is one hand-off.
	Request struct {
		// Root is the extracted runtime environment.
		Root string
		// Target selects the entry-point.
		Target Target
		// Args are the launcher's arguments, forwarded verbatim.
		Args []string
		// Environ is the base environment; os.Environ when nil.
		Environ []string
		// Stdin, Stdout and Stderr default to the launcher's own streams.
		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer
	}

	// Status is how the interpreter ended. Signal is set when it was killed
	// by a signal, in which case Code is 128 plus the signal number.
	Status struct {
		Code   int
		Signal os.Signal
	}

	// Forwarder performs hand-offs in one Mode.
	Forwarder struct {
		mode   Mode
		logger *log.Logger
	}
)

// DefaultTarget runs the bundled Azure CLI module. A pixi-unpacked
// environment keeps its interpreter under env/.
func DefaultTarget() Target {
	if platform.IsWindows() {
		return Target{Interpreters: []string{"python.exe", `env\python.exe`}, Args: []string{"-m", "azure.cli"}}
	}
	return Target{Interpreters: []string{"env/bin/python", "bin/python"}, Args: []string{"-m", "azure.cli"}}
}

// DefaultMode is exec where the platform can replace a process image and
// spawn elsewhere.
func DefaultMode() Mode {
	if platform.IsWindows() {
		return ModeSpawn
	}
	return ModeExec
}

// ParseMode parses "exec" or "spawn". The empty string yields DefaultMode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return DefaultMode(), nil
	case ModeExec:
		return ModeExec, nil
	case ModeSpawn:
		return ModeSpawn, nil
	}
	return "", fmt.Errorf("%w: %q (want exec or spawn)", ErrInvalidMode, s)
}

// New returns a Forwarder. A nil logger discards debug output.
func New(mode Mode, logger *log.Logger) *Forwarder {
	if logger == nil {
		logger = logging.Discard()
	}
	if mode == "" {
		mode = DefaultMode()
	}
	return &Forwarder{mode: mode, logger: logger}
}

// Mode returns the hand-off mode.
func (f *Forwarder) Mode() Mode { return f.mode }

// Resolve returns the absolute entry-point path for t inside root.
func (t Target) Resolve(root string) (string, error) {
	for _, rel := range t.Interpreters {
		p := filepath.Join(root, filepath.FromSlash(rel))
		info, err := os.Stat(p)
		if err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("no entry-point among %s: %w", strings.Join(t.Interpreters, ", "), fs.ErrNotExist)
}

// EntryPoint is the relative path Resolve would pick, for recording in the
// slot marker.
func (t Target) EntryPoint(root string) (string, error) {
	p, err := t.Resolve(root)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// Argv returns the full argument vector: entry-point, target args, then the
// launcher's arguments unmodified.
func Argv(entry string, t Target, args []string) []string {
	argv := make([]string, 0, 1+len(t.Args)+len(args))
	argv = append(argv, entry)
	argv = append(argv, t.Args...)
	return append(argv, args...)
}

// Run hands control to the interpreter. In ModeExec a successful call does
// not return. The returned error is always an *issue.LaunchError of kind
// LaunchFailed; a child that exits non-zero is reported through Status.
func (f *Forwarder) Run(ctx context.Context, req Request) (Status, error) {
	entry, err := req.Target.Resolve(req.Root)
	if err != nil {
		return Status{}, issue.New(issue.LaunchFailed, "locate entry-point", req.Root, err)
	}
	environ := req.Environ
	if environ == nil {
		environ = os.Environ()
	}
	env := BuildEnv(req.Root, environ)
	argv := Argv(entry, req.Target, req.Args)

	f.logger.Debug("forwarding", "mode", f.mode, "entry", entry, "args", len(req.Args))

	if f.mode == ModeExec && canExec {
		err := execve(entry, argv, env)
		return Status{}, issue.New(issue.LaunchFailed, "exec", entry, err)
	}
	return spawn(ctx, entry, argv, env, req)
}
