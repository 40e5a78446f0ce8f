//go:build darwin

package config

import (
	"os"
	"path/filepath"
)

func defaultDataDir() string {
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, "Library", "Application Support", "remoteplayers")
	}
	return "remoteplayers-data"
}

// configDir is ignored by the UserDefaults backend.
func configDir() string {
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, "Library", "Preferences", "remoteplayers")
	}
	return "."
}

func backendHint() string {
	return " (macOS UserDefaults domain " + Domain + ")"
}
