package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SaveConfig writes the configuration to the specified path.
// The format is chosen from the file extension, defaulting to TOML.
func SaveConfig(cfg *Config, path string) error {
	ext := filepath.Ext(path)

	var data []byte
	var err error

	switch ext {
	case ".json":
		data, err = json.MarshalIndent(cfg, "", "  ")
	case ".toml":
		data, err = encodeToTOML(cfg)
	case ".yaml", ".yml":
		// JSON is a YAML subset, so this parses back cleanly
		data, err = json.MarshalIndent(cfg, "", "  ")
	default:
		data, err = encodeToTOML(cfg)
	}

	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	// Write with secure permissions
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// encodeToTOML encodes the config to TOML format.
func encodeToTOML(cfg *Config) ([]byte, error) {
	// Generate a commented template rather than bare encoder output
	return []byte(generateTOML(cfg)), nil
}

// generateTOML generates a well-formatted TOML configuration file.
func generateTOML(cfg *Config) string {
	return fmt.Sprintf(`# keyscribe configuration
# Version %d

version = %d

# Input synthesis.
[output]
# Backend: "auto" (prefer uinput, fall back to wayland), "uinput" or "wayland".
backend = "%s"
# Name of the created uinput device. Capture skips devices with this name.
device_name = "%s"

# Keyboard observation.
[capture]
# Backend: "auto", "evdev" or "wayland". Wayland capture is not supported.
backend = "%s"
# Device nodes to capture, e.g. ["/dev/input/event3"]. Empty discovers keyboards.
devices = %s
# Attach keyboards that appear while capture is running.
hotplug = %t
# Keys swallowed during capture, e.g. ["capslock", "f12"].
suppress_keys = %s

# Emission journal (records counts and timings, never content).
[journal]
enabled = %t
path = "%s"
busy_timeout_ms = %d
# Days to keep entries. 0 keeps them forever.
retention_days = %d

# Metrics scrape endpoint.
[metrics]
enabled = %t
listen_addr = "%s"

[logging]
# Level: debug, info, warn, error.
level = "%s"
# Format: text, json.
format = "%s"
# Output: stdout, stderr, file, both.
output = "%s"
file_path = "%s"
`,
		Version,
		cfg.Version,
		cfg.Output.Backend,
		cfg.Output.DeviceName,
		cfg.Capture.Backend,
		toTOMLArray(cfg.Capture.Devices),
		cfg.Capture.Hotplug,
		toTOMLArray(cfg.Capture.SuppressKeys),
		cfg.Journal.Enabled,
		cfg.Journal.Path,
		cfg.Journal.BusyTimeoutMs,
		cfg.Journal.RetentionDays,
		cfg.Metrics.Enabled,
		cfg.Metrics.ListenAddr,
		cfg.Logging.Level,
		cfg.Logging.Format,
		cfg.Logging.Output,
		cfg.Logging.FilePath,
	)
}

func toTOMLArray(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	result := "["
	for i, item := range items {
		if i > 0 {
			result += ", "
		}
		result += fmt.Sprintf("%q", item)
	}
	result += "]"
	return result
}
