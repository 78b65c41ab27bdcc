// Package procconfig provides process-wide configuration for smithy-ls,
// distinct from the per-project configuration resolved by internal/buildconfig.
package procconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the server-wide configuration loaded at process start.
type Config struct {
	Logging     LoggingConfig     `toml:"logging"`
	Diagnostics DiagnosticsConfig `toml:"diagnostics"`
	Sync        SyncConfig        `toml:"sync"`
}

// LoggingConfig controls the process-wide structured logger.
type LoggingConfig struct {
	Level      string      `toml:"level"`
	Format     string      `toml:"format"`
	Output     StringSlice `toml:"output"`
	DataDir    string      `toml:"data_dir"`
	TimeFormat string      `toml:"time_format"`
	MaxSizeMB  int         `toml:"max_size_mb"`
	MaxBackups int         `toml:"max_backups"`
}

// DiagnosticsConfig mirrors the default of the LSP initializationOptions
// diagnostics.minimumSeverity (spec.md §6). It is loaded but not consulted:
// neither this value nor the client's initialize option filters the
// diagnostics the server publishes.
type DiagnosticsConfig struct {
	MinimumSeverity string `toml:"minimum_severity"`
}

// SyncConfig mirrors the initializationOptions.onlyReloadOnSave default.
type SyncConfig struct {
	OnlyReloadOnSave bool `toml:"only_reload_on_save"`
}

// StringSlice unmarshals from either a bare string or an array of strings,
// matching the flexibility the teacher config affords its "output" field.
type StringSlice []string

// UnmarshalTOML implements toml.Unmarshaler.
func (s *StringSlice) UnmarshalTOML(data interface{}) error {
	switch v := data.(type) {
	case string:
		*s = []string{v}
	case []interface{}:
		result := make([]string, len(v))
		for i, item := range v {
			str, ok := item.(string)
			if !ok {
				return fmt.Errorf("expected string in array, got %T", item)
			}
			result[i] = str
		}
		*s = result
	default:
		return fmt.Errorf("expected string or array, got %T", data)
	}
	return nil
}

// DefaultConfig returns the configuration used when no config file is
// present and no initializationOptions override anything yet.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:      envOr("SMITHY_LS_LOG_LEVEL", "info"),
			Format:     envOr("SMITHY_LS_LOG_FORMAT", "json"),
			Output:     StringSlice{"stderr"},
			DataDir:    DefaultDataDir(),
			TimeFormat: "15:04:05.000",
			MaxSizeMB:  50,
			MaxBackups: 3,
		},
		Diagnostics: DiagnosticsConfig{
			MinimumSeverity: "WARNING",
		},
		Sync: SyncConfig{
			OnlyReloadOnSave: false,
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// DefaultDataDir returns the default directory for logs and cache data.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "smithy-ls")
	}
	return filepath.Join(home, ".smithy-ls")
}

// Load reads a TOML config file at path and overlays it onto DefaultConfig.
// A missing file is not an error; Load returns the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg, nil
}

// EnsureDirectories creates the data directory used for log output.
func (c *Config) EnsureDirectories() error {
	return os.MkdirAll(c.Logging.DataDir, 0o755)
}

// HasFileOutput reports whether file-based log output is configured.
func (c *Config) HasFileOutput() bool {
	for _, o := range c.Logging.Output {
		if o == "file" {
			return true
		}
	}
	return false
}

// HasConsoleOutput reports whether console log output is configured.
func (c *Config) HasConsoleOutput() bool {
	for _, o := range c.Logging.Output {
		if o == "console" || o == "stderr" || o == "stdout" {
			return true
		}
	}
	return false
}

// ParseSeverity normalizes a configured minimum-severity string.
func ParseSeverity(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
