//go:build !darwin

package config

import (
	"os"
	"path/filepath"
)

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "remoteplayers-data"
		}
	}
	return filepath.Join(dir, "remoteplayers")
}

func configDir() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "remoteplayers")
}

func backendHint() string {
	return " (" + filepath.Join(configDir(), "prefs.json") + ")"
}
