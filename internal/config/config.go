// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/viper"

	"github.com/azbin/azbin/internal/issue"
	"github.com/azbin/azbin/pkg/platform"
)

const (
	// AppName is the application name.
	AppName = "azbin"
	// EnvPrefix prefixes every environment override (AZBIN_CACHE_DIR, ...).
	EnvPrefix = "AZBIN"
	// EnvConfigFile names an explicit config file.
	EnvConfigFile = "AZBIN_CONFIG"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the azbin configuration directory using platform-specific
// conventions: Windows uses %APPDATA%, macOS uses ~/Library/Application Support,
// and Linux/others use $XDG_CONFIG_HOME (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var configDir string
	switch runtime.GOOS {
	case platform.Windows:
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case platform.Darwin:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default:
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}
	return filepath.Join(configDir, AppName), nil
}

// Load resolves the configuration and returns it with the path of the file
// it was read from ("" when only defaults and environment applied).
func Load(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	defaults := DefaultConfig()
	v.SetDefault("cache.dir", defaults.Cache.Dir)
	v.SetDefault("log.level", string(defaults.Log.Level))
	v.SetDefault("log.format", string(defaults.Log.Format))
	v.SetDefault("log.timestamps", defaults.Log.Timestamps)
	v.SetDefault("forward.mode", string(defaults.Forward.Mode))
	v.SetDefault("verify.deep", defaults.Verify.Deep)
	v.SetDefault("prune.keep", defaults.Prune.Keep)
	v.SetDefault("payload", defaults.Payload)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := opts.ConfigFilePath
	explicit := path != ""
	if !explicit {
		path = os.Getenv(EnvConfigFile)
		explicit = path != ""
	}
	if !explicit {
		cfgDir, err := configDirWithOverride(opts.ConfigDirPath)
		if err == nil {
			path = filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)
		}
	}

	resolvedPath := ""
	switch {
	case path != "" && fileExists(path):
		if err := loadCUEIntoViper(v, path); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(path).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				WithSuggestion("Use 'azbin config show' to see the effective configuration").
				Wrap(err).
				BuildError()
		}
		resolvedPath = path
	case explicit:
		return nil, "", issue.NewErrorContext().
			WithOperation("load configuration").
			WithResource(path).
			WithSuggestion("Verify the file path is correct").
			WithSuggestion("Unset " + EnvConfigFile + " to use the default location").
			Wrap(fmt.Errorf("config file not found: %s", path)).
			BuildError()
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Log.Level = LogLevel(strings.ToLower(strings.TrimSpace(string(cfg.Log.Level))))
	cfg.Log.Format = LogFormat(strings.ToLower(strings.TrimSpace(string(cfg.Log.Format))))
	cfg.Forward.Mode = ForwardMode(strings.ToLower(strings.TrimSpace(string(cfg.Forward.Mode))))

	if err := cfg.Validate(); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithSuggestion("Check " + EnvPrefix + "_* environment variables for typos").
			Wrap(err).
			BuildError()
	}
	return &cfg, resolvedPath, nil
}

// configDirWithOverride resolves the configuration directory, honoring
// explicit provider options before platform defaults.
func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}
	return ConfigDir()
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config schema,
// and merges its contents into Viper. Fields are optional, so validation uses
// Concrete(false).
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if len(data) > maxConfigFileSize {
		return fmt.Errorf("file size %d bytes exceeds maximum %d bytes", len(data), maxConfigFileSize)
	}

	ctx := cuecontext.New()
	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return formatCUEError(userValue.Err())
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return formatCUEError(err)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return formatCUEError(err)
	}

	// Merging preserves defaults and lets the environment override the file.
	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// GenerateCUE renders cfg in config file syntax.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder
	sb.WriteString("// azbin configuration\n\n")
	if cfg.Cache.Dir != "" {
		fmt.Fprintf(&sb, "cache: {\n\tdir: %q\n}\n", cfg.Cache.Dir)
	}
	fmt.Fprintf(&sb, "log: {\n\tlevel: %q\n\tformat: %q\n\ttimestamps: %v\n}\n", cfg.Log.Level, cfg.Log.Format, cfg.Log.Timestamps)
	fmt.Fprintf(&sb, "forward: {\n\tmode: %q\n}\n", cfg.Forward.Mode)
	fmt.Fprintf(&sb, "verify: {\n\tdeep: %v\n}\n", cfg.Verify.Deep)
	fmt.Fprintf(&sb, "prune: {\n\tkeep: %d\n}\n", cfg.Prune.Keep)
	if cfg.Payload != "" {
		fmt.Fprintf(&sb, "payload: %q\n", cfg.Payload)
	}
	return sb.String()
}
