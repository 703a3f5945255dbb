// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/azbin/azbin/internal/cache"
	"github.com/azbin/azbin/internal/config"
	"github.com/azbin/azbin/internal/logging"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// App carries the state shared by every command of one invocation.
type App struct {
	// cfgFile is the --config flag.
	cfgFile string
	// tool is the --tool flag selecting the launcher whose slots are managed.
	tool    string
	verbose bool

	configs config.Provider
	cfg     *config.Config
	cfgPath string
	logger  *log.Logger
	stdout  io.Writer
	stderr  io.Writer
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// execute runs the command tree with args and returns the process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	app := &App{configs: config.NewProvider(), stdout: stdout, stderr: stderr}
	root := newRootCommand(app)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := fang.Execute(
		ctx,
		root,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return exitErr.Code
		}
		return 1
	}
	return 0
}

func newRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "azbin",
		Short: "Build and maintain portable az launchers",
		Long: TitleStyle.Render("azbin") + SubtitleStyle.Render(" - build and maintain portable az launchers") + `

The az launcher carries the SHA-256 of its bundled Python runtime and
extracts that runtime once into a versioned cache slot. azbin prints
the build flags for a runtime archive and manages the cache.

` + SubtitleStyle.Render("Examples:") + `
  azbin fingerprint runtime.tar.gz --build-id 12   Print -ldflags for a release
  azbin cache list                                 Show cached runtimes
  azbin cache verify --deep                        Re-hash every cached file
  azbin cache prune --keep 1                       Remove old runtimes`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.load(cmd.Context())
		},
	}

	root.PersistentFlags().StringVar(&app.cfgFile, "config", "", "config file (default is <config dir>/azbin/config.cue)")
	root.PersistentFlags().StringVar(&app.tool, "tool", "az", "launcher whose cache slots are managed")
	root.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "enable verbose output")

	root.AddCommand(newFingerprintCommand(app))
	root.AddCommand(newCacheCommand(app))
	root.AddCommand(newConfigCommand(app))
	return root
}

// load resolves the configuration and logger once per invocation.
func (a *App) load(ctx context.Context) error {
	cfg, path, err := a.configs.Load(ctx, config.LoadOptions{ConfigFilePath: a.cfgFile})
	if err != nil {
		return err
	}
	a.cfg, a.cfgPath = cfg, path

	level := string(cfg.Log.Level)
	if a.verbose {
		level = "debug"
	}
	a.logger = logging.New("azbin", logging.Options{
		Writer:     a.stderr,
		Level:      level,
		JSON:       cfg.Log.Format == config.LogFormatJSON,
		Timestamps: cfg.Log.Timestamps,
	})
	return nil
}

// cacheManager returns the manager for the selected tool.
func (a *App) cacheManager() (*cache.Manager, error) {
	return cache.NewManager(cache.Options{Root: a.cfg.Cache.Dir, Tool: a.tool, Logger: a.logger})
}
