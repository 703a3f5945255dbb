// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/azbin/azbin/internal/testutil"
)

// isolate clears AZBIN_* variables and points the config directory at an
// empty temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	for _, kv := range os.Environ() {
		if key, _, _ := strings.Cut(kv, "="); strings.HasPrefix(key, EnvPrefix+"_") {
			t.Cleanup(testutil.MustUnsetenv(t, key))
		}
	}
	dir := t.TempDir()
	configDirOverride = dir
	t.Cleanup(func() { configDirOverride = "" })
	return dir
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if cfg.Log.Level != LogLevelWarn || cfg.Log.Format != LogFormatText || cfg.Log.Timestamps {
		t.Errorf("default log config = %+v, want warn text without timestamps", cfg.Log)
	}
	if cfg.Forward.Mode != ForwardModeAuto {
		t.Errorf("default forward mode = %q, want auto", cfg.Forward.Mode)
	}
	if cfg.Cache.Dir != "" || cfg.Verify.Deep || cfg.Prune.Keep != 1 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() error = %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, path, err := Load(context.Background(), LoadOptions{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if path != "" {
		t.Errorf("Load() path = %q, want none", path)
	}
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := isolate(t)
	cfgPath := filepath.Join(dir, "config.cue")
	testutil.MustWriteFile(t, cfgPath, []byte(`
cache: dir: "/var/cache/azbin"
log: {
	level:      "debug"
	format:     "json"
	timestamps: true
}
forward: mode: "spawn"
verify: deep: true
prune: keep: 3
`), 0o644)

	cfg, path, err := Load(context.Background(), LoadOptions{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if path != cfgPath {
		t.Errorf("Load() path = %q, want %q", path, cfgPath)
	}
	want := &Config{
		Cache:   CacheConfig{Dir: "/var/cache/azbin"},
		Log:     LogConfig{Level: LogLevelDebug, Format: LogFormatJSON, Timestamps: true},
		Forward: ForwardConfig{Mode: ForwardModeSpawn},
		Verify:  VerifyConfig{Deep: true},
		Prune:   PruneConfig{Keep: 3},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := isolate(t)
	testutil.MustWriteFile(t, filepath.Join(dir, "config.cue"), []byte(`log: level: "info"`), 0o644)

	cacheDir := filepath.Join(t.TempDir(), "cache")
	t.Cleanup(testutil.MustSetenv(t, "AZBIN_LOG_LEVEL", "ERROR"))
	t.Cleanup(testutil.MustSetenv(t, "AZBIN_CACHE_DIR", cacheDir))
	t.Cleanup(testutil.MustSetenv(t, "AZBIN_VERIFY_DEEP", "true"))
	t.Cleanup(testutil.MustSetenv(t, "AZBIN_PAYLOAD", "/opt/az.runtime.tar.gz"))

	cfg, _, err := Load(context.Background(), LoadOptions{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Log.Level != LogLevelError {
		t.Errorf("log.level = %q, want error", cfg.Log.Level)
	}
	if cfg.Cache.Dir != cacheDir {
		t.Errorf("cache.dir = %q, want %q", cfg.Cache.Dir, cacheDir)
	}
	if !cfg.Verify.Deep {
		t.Error("verify.deep not taken from the environment")
	}
	if cfg.Payload != "/opt/az.runtime.tar.gz" {
		t.Errorf("payload = %q", cfg.Payload)
	}
}

func TestLoadExplicitFile(t *testing.T) {
	isolate(t)
	cfgPath := filepath.Join(t.TempDir(), "custom.cue")
	testutil.MustWriteFile(t, cfgPath, []byte(`forward: mode: "exec"`), 0o644)

	t.Run("option", func(t *testing.T) {
		cfg, path, err := Load(context.Background(), LoadOptions{ConfigFilePath: cfgPath})
		if err != nil || path != cfgPath || cfg.Forward.Mode != ForwardModeExec {
			t.Errorf("Load() = %+v, %q, %v", cfg, path, err)
		}
	})
	t.Run("env", func(t *testing.T) {
		t.Cleanup(testutil.MustSetenv(t, EnvConfigFile, cfgPath))
		cfg, path, err := Load(context.Background(), LoadOptions{})
		if err != nil || path != cfgPath || cfg.Forward.Mode != ForwardModeExec {
			t.Errorf("Load() = %+v, %q, %v", cfg, path, err)
		}
	})
	t.Run("missing", func(t *testing.T) {
		_, _, err := Load(context.Background(), LoadOptions{ConfigFilePath: cfgPath + ".missing"})
		if err == nil || !strings.Contains(err.Error(), "config file not found") {
			t.Errorf("Load() error = %v, want not found", err)
		}
	})
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"syntax", `log: level: `, "config.cue"},
		{"unknown field", `colour: "red"`, "colour"},
		{"bad level", `log: level: "verbose"`, "log.level"},
		{"bad format", `log: format: "xml"`, "log.format"},
		{"negative keep", `prune: keep: -1`, "prune.keep"},
		{"wrong type", `verify: deep: "yes"`, "verify.deep"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := isolate(t)
			testutil.MustWriteFile(t, filepath.Join(dir, "config.cue"), []byte(tt.content), 0o644)

			_, _, err := Load(context.Background(), LoadOptions{})
			if err == nil {
				t.Fatal("Load() succeeded on an invalid file")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load() error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadRejectsInvalidEnv(t *testing.T) {
	isolate(t)
	t.Cleanup(testutil.MustSetenv(t, "AZBIN_FORWARD_MODE", "teleport"))

	t.Cleanup(testutil.MustSetenv(t, "AZBIN_LOG_FORMAT", "XML"))

	_, _, err := Load(context.Background(), LoadOptions{})
	for _, want := range []error{ErrInvalidConfig, ErrInvalidForwardMode, ErrInvalidLogFormat} {
		if !errors.Is(err, want) {
			t.Errorf("Load() error = %v, want errors.Is %v", err, want)
		}
	}
	if errors.Is(err, ErrInvalidLogLevel) {
		t.Errorf("Load() error = %v, unexpectedly matches ErrInvalidLogLevel", err)
	}
}

func TestLoadNamesFileOnce(t *testing.T) {
	dir := isolate(t)
	cfgPath := filepath.Join(dir, "config.cue")
	testutil.MustWriteFile(t, cfgPath, []byte(`prune: keep: "many"`), 0o644)

	_, _, err := Load(context.Background(), LoadOptions{})
	if err == nil {
		t.Fatal("Load() succeeded on an invalid file")
	}
	if n := strings.Count(err.Error(), cfgPath); n != 1 {
		t.Errorf("Load() error names %s %d times, want once: %v", cfgPath, n, err)
	}
}

func TestLogFormatNormalized(t *testing.T) {
	isolate(t)
	t.Cleanup(testutil.MustSetenv(t, "AZBIN_LOG_FORMAT", " JSON "))
	t.Cleanup(testutil.MustSetenv(t, "AZBIN_LOG_TIMESTAMPS", "true"))

	cfg, _, err := Load(context.Background(), LoadOptions{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if diff := cmp.Diff(LogConfig{Level: LogLevelWarn, Format: LogFormatJSON, Timestamps: true}, cfg.Log); diff != "" {
		t.Errorf("log config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := Load(ctx, LoadOptions{ConfigDirPath: t.TempDir()}); !errors.Is(err, context.Canceled) {
		t.Errorf("Load() error = %v, want context.Canceled", err)
	}
}

func TestGenerateCUERoundTrip(t *testing.T) {
	dir := isolate(t)
	want := &Config{
		Cache:   CacheConfig{Dir: "/srv/cache"},
		Log:     LogConfig{Level: LogLevelInfo, Format: LogFormatJSON},
		Forward: ForwardConfig{Mode: ForwardModeSpawn},
		Verify:  VerifyConfig{Deep: true},
		Prune:   PruneConfig{Keep: 2},
	}
	testutil.MustWriteFile(t, filepath.Join(dir, "config.cue"), []byte(GenerateCUE(want)), 0o644)

	got, _, err := Load(context.Background(), LoadOptions{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestConfigDir(t *testing.T) {
	configDirOverride = ""
	if runtime.GOOS != "linux" {
		t.Skip("XDG lookup applies to Linux")
	}
	t.Cleanup(testutil.MustSetenv(t, "XDG_CONFIG_HOME", "/tmp/test-xdg-config"))

	dir, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir() error = %v", err)
	}
	if want := filepath.Join("/tmp/test-xdg-config", AppName); dir != want {
		t.Errorf("ConfigDir() = %q, want %q", dir, want)
	}
}

func TestProvider(t *testing.T) {
	isolate(t)

	cfgPath := filepath.Join(t.TempDir(), "provider.cue")
	testutil.MustWriteFile(t, cfgPath, []byte(`prune: keep: 4`), 0o644)

	cfg, path, err := NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: cfgPath})
	if err != nil {
		t.Fatalf("Provider.Load() error = %v", err)
	}
	if path != cfgPath || cfg.Prune.Keep != 4 {
		t.Errorf("Provider.Load() = %+v, %q", cfg, path)
	}
}
