// Package config handles configuration loading, validation, and management for keyscribe.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"keyscribe/internal/emulate"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete tool configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Output configuration for input synthesis.
	Output OutputConfig `toml:"output" json:"output" yaml:"output"`

	// Capture configuration for keyboard observation.
	Capture CaptureConfig `toml:"capture" json:"capture" yaml:"capture"`

	// Journal configuration for the emission journal.
	Journal JournalConfig `toml:"journal" json:"journal" yaml:"journal"`

	// Metrics configuration for the scrape endpoint.
	Metrics MetricsConfig `toml:"metrics" json:"metrics" yaml:"metrics"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	// mu protects concurrent access to the config.
	mu sync.RWMutex `toml:"-" json:"-" yaml:"-"`
}

// OutputConfig holds input synthesis configuration.
type OutputConfig struct {
	// Backend picks the synthesis mechanism: "auto", "uinput" or
	// "wayland". "auto" prefers uinput and falls back to wayland.
	Backend string `toml:"backend" json:"backend" yaml:"backend"`

	// DeviceName is the name given to the created uinput device.
	// Capture discovery skips devices carrying this name.
	DeviceName string `toml:"device_name" json:"device_name" yaml:"device_name"`
}

// CaptureConfig holds keyboard observation configuration.
type CaptureConfig struct {
	// Backend picks the capture mechanism: "auto", "evdev" or "wayland".
	// Wayland capture is not supported and fails with a clear error.
	Backend string `toml:"backend" json:"backend" yaml:"backend"`

	// Devices pins the device nodes to capture. When empty, keyboards
	// are discovered by scanning /dev/input.
	Devices []string `toml:"devices" json:"devices" yaml:"devices"`

	// Hotplug attaches keyboards that appear while capture is running.
	Hotplug bool `toml:"hotplug" json:"hotplug" yaml:"hotplug"`

	// SuppressKeys lists keys swallowed during capture, by name.
	// Single characters ("a", "/"), key aliases ("enter", "space") and
	// KEY_* names are all accepted.
	SuppressKeys []string `toml:"suppress_keys" json:"suppress_keys" yaml:"suppress_keys"`
}

// JournalConfig holds emission journal configuration.
type JournalConfig struct {
	// Enabled determines whether emissions are journaled.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// Path is the path to the journal database file.
	Path string `toml:"path" json:"path" yaml:"path"`

	// BusyTimeoutMs is the SQLite busy timeout in milliseconds.
	BusyTimeoutMs int `toml:"busy_timeout_ms" json:"busy_timeout_ms" yaml:"busy_timeout_ms"`

	// RetentionDays is how long journal entries are kept. Zero keeps
	// them forever.
	RetentionDays int `toml:"retention_days" json:"retention_days" yaml:"retention_days"`
}

// MetricsConfig holds metrics endpoint configuration.
type MetricsConfig struct {
	// Enabled determines whether the scrape endpoint is served.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// ListenAddr is the address the endpoint listens on.
	ListenAddr string `toml:"listen_addr" json:"listen_addr" yaml:"listen_addr"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is the log format: "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is the log output: "stdout", "stderr", "file" or "both".
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the path to the log file (when Output includes a file).
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: Version,
		Output: OutputConfig{
			Backend:    "auto",
			DeviceName: emulate.DefaultDeviceName,
		},
		Capture: CaptureConfig{
			Backend:      "auto",
			Devices:      []string{},
			Hotplug:      true,
			SuppressKeys: []string{},
		},
		Journal: JournalConfig{
			Enabled:       true,
			Path:          filepath.Join(KeyscribeDir(), "journal.db"),
			BusyTimeoutMs: 5000,
			RetentionDays: 30,
		},
		Metrics: MetricsConfig{
			Enabled:    false,
			ListenAddr: "127.0.0.1:9639",
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "text",
			Output:   "stderr",
			FilePath: filepath.Join(PlatformLogDir(), "keyscribe.log"),
		},
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(PlatformConfigDir(), "config.toml")
}

// Load reads configuration from the specified path. An empty path means
// the default location; a missing file yields the defaults. Environment
// overrides are applied after parsing.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg, err := loadConfigFromFile(path)
	if err != nil {
		return nil, err
	}

	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// EnsureDirectories creates the directories the configured paths live in.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		filepath.Dir(c.Journal.Path),
		filepath.Dir(c.Logging.FilePath),
	}

	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}

// KeyscribeDir returns the base keyscribe data directory.
// Uses the platform path or the KEYSCRIBE_DATA_DIR environment override.
func KeyscribeDir() string {
	if envDir := os.Getenv("KEYSCRIBE_DATA_DIR"); envDir != "" {
		return envDir
	}
	return PlatformDataDir()
}

// ApplyEnvOverrides applies environment variable overrides to the
// configuration. Variables are prefixed with KEYSCRIBE_.
func (c *Config) ApplyEnvOverrides() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v := os.Getenv("KEYSCRIBE_OUTPUT_BACKEND"); v != "" {
		c.Output.Backend = v
	}
	if v := os.Getenv("KEYSCRIBE_DEVICE_NAME"); v != "" {
		c.Output.DeviceName = v
	}
	if v := os.Getenv("KEYSCRIBE_CAPTURE_BACKEND"); v != "" {
		c.Capture.Backend = v
	}
	if v := os.Getenv("KEYSCRIBE_JOURNAL_PATH"); v != "" {
		c.Journal.Path = v
	}
	if v := os.Getenv("KEYSCRIBE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("KEYSCRIBE_LOG_PATH"); v != "" {
		c.Logging.FilePath = v
	}
	if v := os.Getenv("KEYSCRIBE_METRICS_ADDR"); v != "" {
		c.Metrics.ListenAddr = v
	}
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	clone := Config{
		Version: c.Version,
		Output:  c.Output,
		Capture: c.Capture,
		Journal: c.Journal,
		Metrics: c.Metrics,
		Logging: c.Logging,
	}

	clone.Capture.Devices = append([]string{}, c.Capture.Devices...)
	clone.Capture.SuppressKeys = append([]string{}, c.Capture.SuppressKeys...)

	return &clone
}
