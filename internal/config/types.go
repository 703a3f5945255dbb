// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// LogLevelDebug traces every launcher step.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo reports extraction and pruning.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn reports recoverable problems only.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError reports failures only.
	LogLevelError LogLevel = "error"

	// LogFormatText renders logfmt-style lines.
	LogFormatText LogFormat = "text"
	// LogFormatJSON renders one JSON object per line.
	LogFormatJSON LogFormat = "json"

	// ForwardModeAuto picks exec where available and spawn elsewhere.
	ForwardModeAuto ForwardMode = ""
	// ForwardModeExec replaces the launcher process with the interpreter.
	ForwardModeExec ForwardMode = "exec"
	// ForwardModeSpawn runs the interpreter as a child process.
	ForwardModeSpawn ForwardMode = "spawn"
)

var (
	// ErrInvalidLogLevel is returned when a LogLevel value is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidLogFormat is returned when a LogFormat value is not recognized.
	ErrInvalidLogFormat = errors.New("invalid log format")
	// ErrInvalidForwardMode is returned when a ForwardMode value is not recognized.
	ErrInvalidForwardMode = errors.New("invalid forward mode")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// LogLevel is the minimum level the launcher logs at.
	LogLevel string

	// LogFormat selects the log line encoding.
	LogFormat string

	// ForwardMode selects how control is handed to the interpreter.
	ForwardMode string

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the azbin configuration.
	Config struct {
		// Cache configures the runtime cache location.
		Cache CacheConfig `json:"cache" mapstructure:"cache" yaml:"cache"`
		// Log configures diagnostics.
		Log LogConfig `json:"log" mapstructure:"log" yaml:"log"`
		// Forward configures the hand-off to the interpreter.
		Forward ForwardConfig `json:"forward" mapstructure:"forward" yaml:"forward"`
		// Verify configures integrity checks beyond the archive digest.
		Verify VerifyConfig `json:"verify" mapstructure:"verify" yaml:"verify"`
		// Prune configures 'azbin cache prune'.
		Prune PruneConfig `json:"prune" mapstructure:"prune" yaml:"prune"`
		// Payload is an explicit archive path, overriding the embedded or
		// colocated one.
		Payload string `json:"payload,omitempty" mapstructure:"payload" yaml:"payload,omitempty"`
	}

	// CacheConfig configures the runtime cache.
	CacheConfig struct {
		// Dir is the cache root; empty means the user cache directory.
		Dir string `json:"dir" mapstructure:"dir" yaml:"dir"`
	}

	// LogConfig configures diagnostics.
	LogConfig struct {
		Level  LogLevel  `json:"level" mapstructure:"level" yaml:"level"`
		Format LogFormat `json:"format" mapstructure:"format" yaml:"format"`

		// Timestamps prefixes every line with the time.
		Timestamps bool `json:"timestamps" mapstructure:"timestamps" yaml:"timestamps"`
	}

	// ForwardConfig configures the hand-off.
	ForwardConfig struct {
		Mode ForwardMode `json:"mode" mapstructure:"mode" yaml:"mode"`
	}

	// VerifyConfig configures integrity checks.
	VerifyConfig struct {
		// Deep re-hashes the extracted tree on every launch.
		Deep bool `json:"deep" mapstructure:"deep" yaml:"deep"`
	}

	// PruneConfig configures slot pruning.
	PruneConfig struct {
		// Keep is the number of older validated slots to retain.
		Keep int `json:"keep" mapstructure:"keep" yaml:"keep"`
	}
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Log:     LogConfig{Level: LogLevelWarn, Format: LogFormatText},
		Forward: ForwardConfig{Mode: ForwardModeAuto},
		Prune:   PruneConfig{Keep: 1},
	}
}

// Validate returns an error if the level is not recognized.
func (l LogLevel) Validate() error {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return nil
	}
	return fmt.Errorf("%w: %q (want debug, info, warn or error)", ErrInvalidLogLevel, string(l))
}

// String returns the level name.
func (l LogLevel) String() string { return string(l) }

// Validate returns an error if the format is not recognized.
func (f LogFormat) Validate() error {
	switch f {
	case LogFormatText, LogFormatJSON:
		return nil
	}
	return fmt.Errorf("%w: %q (want text or json)", ErrInvalidLogFormat, string(f))
}

// Validate returns an error if the mode is not recognized.
func (m ForwardMode) Validate() error {
	switch m {
	case ForwardModeAuto, ForwardModeExec, ForwardModeSpawn:
		return nil
	}
	return fmt.Errorf("%w: %q (want exec or spawn)", ErrInvalidForwardMode, string(m))
}

// String returns the mode name.
func (m ForwardMode) String() string { return string(m) }

// Validate checks values that bypass the CUE schema, such as environment
// overrides.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Log.Level.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if err := c.Log.Format.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("log.format: %w", err))
	}
	if err := c.Forward.Mode.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("forward.mode: %w", err))
	}
	if c.Prune.Keep < 0 {
		errs = append(errs, fmt.Errorf("prune.keep: must not be negative, got %d", c.Prune.Keep))
	}
	if c.Cache.Dir != "" && strings.TrimSpace(c.Cache.Dir) == "" {
		errs = append(errs, errors.New("cache.dir: must not be whitespace-only"))
	}
	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, 0, len(e.FieldErrors))
	for _, fe := range e.FieldErrors {
		msgs = append(msgs, fe.Error())
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig followed by the field errors, so
// errors.Is matches both the sentinel and the per-field causes.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}
