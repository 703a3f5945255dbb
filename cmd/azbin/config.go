// SPDX-License-Identifier: MPL-2.0

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/azbin/azbin/internal/cache"
	"github.com/azbin/azbin/internal/config"
)

func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Show azbin configuration",
		Long: `Show azbin configuration.

Configuration is read from AZBIN_* environment variables and an optional
CUE file:
  - Linux: ~/.config/azbin/config.cue
  - macOS: ~/Library/Application Support/azbin/config.cue
  - Windows: %APPDATA%\azbin\config.cue`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var output string
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig(app, output)
		},
	}
	showCmd.Flags().StringVarP(&output, "output", "o", "cue", "output format: cue, json or yaml")
	cfgCmd.AddCommand(showCmd)

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.cfgPath != "" {
				fmt.Fprintln(app.stdout, app.cfgPath)
				return nil
			}
			dir, err := config.ConfigDir()
			if err != nil {
				return err
			}
			fmt.Fprintf(app.stdout, "%s/%s.%s %s\n", dir, config.ConfigFileName, config.ConfigFileExt,
				SubtitleStyle.Render("(not present, using defaults)"))
			return nil
		},
	})

	return cfgCmd
}

func showConfig(app *App, output string) error {
	switch output {
	case "json":
		enc := json.NewEncoder(app.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(app.cfg)
	case "yaml":
		data, err := yaml.Marshal(app.cfg)
		if err != nil {
			return err
		}
		_, err = app.stdout.Write(data)
		return err
	case "cue":
	default:
		return fmt.Errorf("unknown output %q (want cue, json or yaml)", output)
	}

	source := SubtitleStyle.Render("(defaults and environment)")
	if app.cfgPath != "" {
		source = app.cfgPath
	}
	fmt.Fprintf(app.stdout, "// %s %s\n", KeyStyle.Render("source:"), source)
	fmt.Fprintf(app.stdout, "// %s %s\n", KeyStyle.Render("cache root:"), cache.ResolveRoot(app.cfg.Cache.Dir))
	fmt.Fprint(app.stdout, config.GenerateCUE(app.cfg))
	return nil
}
