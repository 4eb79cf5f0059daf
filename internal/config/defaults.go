package config

import (
	"os"
	"path/filepath"
)

// Path helpers follow the XDG Base Directory Specification. The tool is
// Linux-only, so there are no platform switches here.

// PlatformDataDir returns the data directory.
// XDG_DATA_HOME/keyscribe or ~/.local/share/keyscribe.
func PlatformDataDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "keyscribe")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return fallbackDataDir()
	}
	return filepath.Join(home, ".local", "share", "keyscribe")
}

// PlatformConfigDir returns the configuration directory.
// XDG_CONFIG_HOME/keyscribe or ~/.config/keyscribe.
func PlatformConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "keyscribe")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return fallbackDataDir()
	}
	return filepath.Join(home, ".config", "keyscribe")
}

// PlatformLogDir returns the log directory.
func PlatformLogDir() string {
	return filepath.Join(PlatformDataDir(), "logs")
}

// fallbackDataDir returns a last-resort directory when the home directory
// cannot be determined.
func fallbackDataDir() string {
	if cwd, err := os.Getwd(); err == nil {
		return filepath.Join(cwd, ".keyscribe")
	}
	return ".keyscribe"
}

// SupportedConfigFormats returns the list of supported config file formats.
func SupportedConfigFormats() []string {
	return []string{
		"toml",
		"json",
		"yaml",
		"yml",
	}
}

// FindConfigFile searches for a config file in standard locations.
// Returns the path to the first found config file, or empty string if none found.
func FindConfigFile() string {
	// Search order:
	// 1. Current directory
	// 2. Config directory
	// 3. Data directory
	searchDirs := []string{
		".",
		PlatformConfigDir(),
		PlatformDataDir(),
	}

	for _, dir := range searchDirs {
		for _, ext := range SupportedConfigFormats() {
			path := filepath.Join(dir, "config."+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}

	return ""
}
