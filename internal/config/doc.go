// SPDX-License-Identifier: MPL-2.0

// Package config handles azbin configuration using Viper with CUE as the file format.
//
// Values come, from lowest to highest precedence, from built-in defaults, an
// optional config.cue file (validated against the embedded #Config schema in
// config_schema.cue) and AZBIN_* environment variables. The file is looked up
// at AZBIN_CONFIG, then in the platform configuration directory
// (~/.config/azbin/config.cue on Linux, ~/Library/Application Support/azbin
// on macOS, %APPDATA%\azbin on Windows).
package config
