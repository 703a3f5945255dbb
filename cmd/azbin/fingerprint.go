// SPDX-License-Identifier: MPL-2.0

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/azbin/azbin/internal/archive"
	"github.com/azbin/azbin/internal/fingerprint"
)

const (
	formatLdflags = "ldflags"
	formatEnv     = "env"
	formatTOML    = "toml"
)

// fingerprintRecord is the toml form of a release fingerprint.
type fingerprintRecord struct {
	Archive       string `toml:"archive"`
	Format        string `toml:"format"`
	Size          int64  `toml:"size"`
	ArchiveSHA256 string `toml:"archive_sha256"`
	BuildID       uint64 `toml:"build_id"`
	ToolVersion   string `toml:"tool_version,omitempty"`
	ReleaseTag    string `toml:"release_tag"`
}

func newFingerprintCommand(app *App) *cobra.Command {
	var (
		buildID     string
		toolVersion string
		output      string
	)
	cmd := &cobra.Command{
		Use:   "fingerprint <archive>",
		Short: "Print the build flags embedding a runtime archive's fingerprint",
		Long: `Hash a runtime archive and print the values the az launcher must be
built with. The default output is an -ldflags fragment:

  go build -ldflags "$(azbin fingerprint runtime.tar.gz --build-id 12)" ./cmd/az`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printFingerprint(app, args[0], buildID, toolVersion, output)
		},
	}
	cmd.Flags().StringVar(&buildID, "build-id", "", "launcher build number (positive integer)")
	cmd.Flags().StringVar(&toolVersion, "tool-version", "", "version of the packaged tool, e.g. 2.67.0")
	cmd.Flags().StringVarP(&output, "format", "f", formatLdflags, "output format: ldflags, env or toml")
	_ = cmd.MarkFlagRequired("build-id")
	return cmd
}

func printFingerprint(app *App, path, buildID, toolVersion, output string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("runtime archive: %w", err)
	}
	format, err := archive.DetectFormat(path)
	if err != nil {
		return err
	}
	digest, err := fingerprint.SumFile(path)
	if err != nil {
		return err
	}
	fp, err := fingerprint.New(digest.String(), buildID, toolVersion)
	if err != nil {
		return err
	}
	app.logger.Debug("hashed runtime archive", "archive", path, "bytes", info.Size(), "sha256", fp.Digest)

	switch strings.ToLower(output) {
	case formatLdflags:
		fmt.Fprintf(app.stdout, "-X main.archiveSHA256=%s -X main.buildID=%s -X main.toolVersion=%s\n",
			fp.Digest, fp.BuildID, fp.ToolVersion)
	case formatEnv:
		fmt.Fprintf(app.stdout, "AZBIN_ARCHIVE_SHA256=%s\nAZBIN_BUILD_ID=%s\nAZBIN_TOOL_VERSION=%s\nAZBIN_ARCHIVE_FORMAT=%s\nAZBIN_RELEASE_TAG=%s\n",
			fp.Digest, fp.BuildID, fp.ToolVersion, format, fp.ReleaseTag())
	case formatTOML:
		data, err := toml.Marshal(fingerprintRecord{
			Archive:       path,
			Format:        format.String(),
			Size:          info.Size(),
			ArchiveSHA256: fp.Digest.String(),
			BuildID:       uint64(fp.BuildID),
			ToolVersion:   fp.ToolVersion,
			ReleaseTag:    fp.ReleaseTag(),
		})
		if err != nil {
			return err
		}
		_, err = app.stdout.Write(data)
		return err
	default:
		return fmt.Errorf("unknown format %q (want %s, %s or %s)", output, formatLdflags, formatEnv, formatTOML)
	}
	return nil
}
