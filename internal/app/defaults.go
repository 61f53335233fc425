package app

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - POUCH_CONFIG_PATH: config file location (default: $XDG_CONFIG_HOME/pouch.toml)
//   - POUCH_HOME: base directory for pouch data (default: $XDG_DATA_HOME/pouch)
func GetDefaults() map[string]string {
	configPath := getConfigPath()
	baseDir := getBaseDir()

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}
}

// getConfigPath returns the config file path, checking POUCH_CONFIG_PATH env
// var first, then falling back to the XDG config directory.
func getConfigPath() string {
	if path := os.Getenv("POUCH_CONFIG_PATH"); path != "" {
		return path
	}
	return filepath.Join(xdg.ConfigHome, "pouch.toml")
}

// getBaseDir returns the base directory for pouch data, checking POUCH_HOME
// env var first, then falling back to the XDG data directory.
func getBaseDir() string {
	if path := os.Getenv("POUCH_HOME"); path != "" {
		return path
	}
	return filepath.Join(xdg.DataHome, "pouch")
}
