// SPDX-License-Identifier: MPL-2.0

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/azbin/azbin/internal/cache"
	"github.com/azbin/azbin/internal/fingerprint"
)

const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

func newCacheCommand(app *App) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the runtime cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the cache directory of the tool",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := app.cacheManager()
			if err != nil {
				return err
			}
			fmt.Fprintln(app.stdout, mgr.ToolDir())
			return nil
		},
	})

	var output string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List cached runtime slots, newest build first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listSlots(app, output)
		},
	}
	listCmd.Flags().StringVarP(&output, "output", "o", outputTable, "output format: table, json or yaml")
	cacheCmd.AddCommand(listCmd)

	var deep bool
	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Check every slot's marker and, with --deep, its files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return verifySlots(cmd, app, deep || app.cfg.Verify.Deep)
		},
	}
	verifyCmd.Flags().BoolVar(&deep, "deep", false, "re-hash every file against the slot manifest")
	cacheCmd.AddCommand(verifyCmd)

	var opts cache.PruneOptions
	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove runtime slots of older builds",
		Long: `Remove runtime slots of older builds. The newest --keep validated slots
survive; invalid slots are always removed. Slots in use by a running
launcher are skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("keep") {
				opts.Keep = app.cfg.Prune.Keep
			}
			return pruneSlots(app, opts)
		},
	}
	pruneCmd.Flags().IntVar(&opts.Keep, "keep", 1, "number of newest validated slots to keep (default from prune.keep)")
	pruneCmd.Flags().BoolVar(&opts.All, "all", false, "remove every slot")
	pruneCmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "only report what would be removed")
	cacheCmd.AddCommand(pruneCmd)

	return cacheCmd
}

func listSlots(app *App, output string) error {
	mgr, err := app.cacheManager()
	if err != nil {
		return err
	}
	infos, err := mgr.List(fingerprint.Fingerprint{})
	if err != nil {
		return err
	}
	if infos == nil {
		infos = []cache.SlotInfo{}
	}

	switch output {
	case outputJSON:
		enc := json.NewEncoder(app.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	case outputYAML:
		enc := yaml.NewEncoder(app.stdout)
		enc.SetIndent(2)
		if err := enc.Encode(infos); err != nil {
			return err
		}
		return enc.Close()
	case outputTable:
		return writeSlotTable(app.stdout, mgr.ToolDir(), infos)
	}
	return fmt.Errorf("unknown output %q (want %s, %s or %s)", output, outputTable, outputJSON, outputYAML)
}

func writeSlotTable(w io.Writer, dir string, infos []cache.SlotInfo) error {
	if len(infos) == 0 {
		fmt.Fprintln(w, SubtitleStyle.Render("no cached runtimes in "+dir))
		return nil
	}
	tw := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "SLOT\tBUILD\tVERSION\tSTATE\tSIZE\tEXTRACTED")
	for _, info := range infos {
		extracted := "-"
		if !info.ExtractedAt.IsZero() {
			extracted = info.ExtractedAt.Local().Format("2006-01-02 15:04")
		}
		version := info.ToolVersion
		if version == "" {
			version = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			info.Name, info.BuildID, version, info.State, humanBytes(info.Bytes), extracted)
	}
	return tw.Flush()
}

func verifySlots(cmd *cobra.Command, app *App, deep bool) error {
	mgr, err := app.cacheManager()
	if err != nil {
		return err
	}
	infos, err := mgr.List(fingerprint.Fingerprint{})
	if err != nil {
		return err
	}

	bad := 0
	for _, info := range infos {
		slot := info.Slot()
		probe := cache.Probe(slot)
		var problem error
		switch {
		case info.State != cache.StateValidated.String():
			problem = errors.New(info.Reason)
		case probe.State != cache.StateValidated:
			problem = errors.New(probe.Reason)
		case deep:
			problem = cache.VerifyTree(cmd.Context(), slot, 0)
		}
		if problem != nil {
			bad++
			fmt.Fprintf(app.stdout, "%s %s: %v\n", ErrorStyle.Render("FAIL"), info.Name, problem)
			continue
		}
		fmt.Fprintf(app.stdout, "%s %s\n", SuccessStyle.Render("ok"), info.Name)
	}
	if bad > 0 {
		return &ExitError{Code: 1, Err: fmt.Errorf("%d of %d slots failed verification; remove them with 'azbin cache prune'", bad, len(infos))}
	}
	return nil
}

func pruneSlots(app *App, opts cache.PruneOptions) error {
	mgr, err := app.cacheManager()
	if err != nil {
		return err
	}
	res, err := mgr.Prune(fingerprint.Fingerprint{}, opts)
	if res != nil {
		verb := "removed"
		if opts.DryRun {
			verb = "would remove"
		}
		for _, info := range res.Removed {
			fmt.Fprintf(app.stdout, "%s %s\n", verb, info.Name)
		}
		for _, info := range res.Busy {
			fmt.Fprintf(app.stdout, "%s %s\n", WarningStyle.Render("in use, skipped"), info.Name)
		}
		for _, info := range res.Kept {
			fmt.Fprintf(app.stdout, "%s %s\n", SubtitleStyle.Render("kept"), info.Name)
		}
	}
	return err
}

// humanBytes renders n with a binary unit.
func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
