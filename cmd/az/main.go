// SPDX-License-Identifier: MPL-2.0

// Command az is the portable Azure CLI launcher. It carries a fingerprint of
// its bundled Python runtime, materializes that runtime once into the user
// cache and hands every invocation to it unchanged.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/azbin/azbin/internal/cache"
	"github.com/azbin/azbin/internal/config"
	"github.com/azbin/azbin/internal/fingerprint"
	"github.com/azbin/azbin/internal/forward"
	"github.com/azbin/azbin/internal/issue"
	"github.com/azbin/azbin/internal/launch"
	"github.com/azbin/azbin/internal/logging"
	"github.com/azbin/azbin/internal/payload"
)

// Set by the release build with -ldflags "-X main.archiveSHA256=...".
// 'azbin fingerprint <archive>' prints the matching flags.
var (
	archiveSHA256 string
	buildID       string
	toolVersion   string
)

const (
	// toolName groups the slots of this launcher below the cache root.
	toolName = "az"
	// exitInternal is returned when the launcher itself fails.
	exitInternal = 125
)

// streams are the process stdio, replaceable in tests.
type streams struct {
	in     io.Reader
	out    io.Writer
	err    io.Writer
	styled bool
	// verbose is set once the configured log level is known.
	verbose bool
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], streams{
		in:     os.Stdin,
		out:    os.Stdout,
		err:    os.Stderr,
		styled: term.IsTerminal(int(os.Stderr.Fd())),
	}))
}

// run launches the bundled tool with args and returns the exit code.
// Arguments are never interpreted here.
func run(ctx context.Context, args []string, s streams) int {
	cfg, _, err := config.Load(ctx, config.LoadOptions{})
	if err != nil {
		return fail(s, err, cache.ResolveRoot(""))
	}
	logger := logging.New(toolName, logging.Options{
		Writer:     s.err,
		Level:      string(cfg.Log.Level),
		JSON:       cfg.Log.Format == config.LogFormatJSON,
		Timestamps: cfg.Log.Timestamps,
	})
	s.verbose = cfg.Log.Level == config.LogLevelDebug
	root := cache.ResolveRoot(cfg.Cache.Dir)

	fp, err := fingerprint.New(archiveSHA256, buildID, toolVersion)
	if err != nil {
		return fail(s, issue.NewErrorContext().
			WithOperation("read the embedded runtime fingerprint").
			WithSuggestion("This binary was built without -ldflags for main.archiveSHA256 and main.buildID").
			WithSuggestion("Use 'azbin fingerprint <archive>' to print them").
			Wrap(err).
			Build(), root)
	}
	logger.Debug("starting", "release", fp.ReleaseTag(), "embedded", payload.Embedded(), "cache", root)

	mode, err := forward.ParseMode(string(cfg.Forward.Mode))
	if err != nil {
		return fail(s, err, root)
	}
	mgr, err := cache.NewManager(cache.Options{Root: root, Tool: toolName, Logger: logger})
	if err != nil {
		return fail(s, err, root)
	}

	l, err := launch.New(launch.Options{
		Fingerprint: fp,
		Cache:       mgr,
		OpenPayload: func() (payload.Source, error) {
			return payload.Locate(payload.Options{Override: cfg.Payload})
		},
		Forwarder:  forward.New(mode, logger),
		DeepVerify: cfg.Verify.Deep,
		Environ:    os.Environ(),
		Stdin:      s.in,
		Stdout:     s.out,
		Stderr:     s.err,
		Logger:     logger,
	})
	if err != nil {
		return fail(s, err, root)
	}

	status, err := l.Run(ctx, args)
	if err != nil {
		return fail(s, err, root)
	}
	if status.Signal != nil {
		logger.Debug("child terminated by signal", "signal", status.Signal)
		forward.Reraise(status.Signal)
	}
	return status.Code
}

// fail prints the diagnostic for a launcher-internal error.
func fail(s streams, err error, cacheRoot string) int {
	fmt.Fprintln(s.err, renderDiagnostic(issue.Diagnose(err, cacheRoot), s.styled, s.verbose))
	return exitInternal
}
