// Package config loads the glance configuration from baseDir/config.json,
// merging file values over defaults. A missing file is not an error.
package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

// Config holds application configuration.
type Config struct {
	// CaptureTimeoutMs is the default transport timeout for a capture
	// attempt when the caller does not pass one.
	CaptureTimeoutMs int `json:"capture_timeout_ms"`

	// TransportCommand is the helper executable that talks to the browser
	// extension (native messaging host or AppleScript shim). The request
	// envelope is written to its stdin as one JSON line; the response is
	// read from its stdout.
	TransportCommand string `json:"transport_command,omitempty"`

	// TransportArgs are extra arguments passed to TransportCommand.
	TransportArgs []string `json:"transport_args,omitempty"`

	// HistoryKeep is how many capture records Prune keeps by default.
	HistoryKeep int `json:"history_keep"`

	// DisabledTools is a list of MCP tool names to exclude from
	// registration. Unknown names are reported at startup.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		CaptureTimeoutMs: 4000,
		HistoryKeep:      200,
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.glance.
func Load(baseDir string) (*Config, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, "config.json"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs. Overlay values take precedence
// for scalars; list values are taken from the overlay when non-empty.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.CaptureTimeoutMs = overlay.CaptureTimeoutMs
	if result.CaptureTimeoutMs == 0 {
		result.CaptureTimeoutMs = base.CaptureTimeoutMs
	}

	result.HistoryKeep = overlay.HistoryKeep
	if result.HistoryKeep == 0 {
		result.HistoryKeep = base.HistoryKeep
	}

	result.TransportCommand = overlay.TransportCommand
	if result.TransportCommand == "" {
		result.TransportCommand = base.TransportCommand
	}

	result.TransportArgs = overlay.TransportArgs
	if len(result.TransportArgs) == 0 {
		result.TransportArgs = base.TransportArgs
	}

	result.DisabledTools = overlay.DisabledTools
	if len(result.DisabledTools) == 0 {
		result.DisabledTools = base.DisabledTools
	}

	return result
}
