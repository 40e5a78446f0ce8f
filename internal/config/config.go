package config

import (
	"fmt"

	"github.com/retrylife/remoteplayers/internal/prefs"
)

// Domain is the preference node holding application settings.
const Domain = "ca.retrylife.remoteplayers"

type Config struct {
	Prefs   PrefsConfig
	Storage StorageConfig
	Server  ServerConfig
	Log     LogConfig
}

type PrefsConfig struct {
	// Backend selects where map links are kept: native, file or sqlite.
	Backend string
}

type StorageConfig struct {
	DataDir string
}

type ServerConfig struct {
	Port     int
	MaxConns int
	APIToken string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Prefs: PrefsConfig{
			Backend: prefs.KindNative,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Server: ServerConfig{
			Port:     4670,
			MaxConns: 16,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Settings owns the backend application settings are read from and written to.
type Settings struct {
	root    prefs.Root
	backend prefs.Backend
}

// OpenSettings opens the platform settings backend.
//
// On macOS settings live in the UserDefaults domain ca.retrylife.remoteplayers.
// Elsewhere they live in $XDG_CONFIG_HOME/remoteplayers/prefs.json.
func OpenSettings() (*Settings, error) {
	root, err := prefs.Open(prefs.KindNative, configDir())
	if err != nil {
		return nil, fmt.Errorf("opening settings%s: %w", backendHint(), err)
	}
	return NewSettings(root), nil
}

// NewSettings uses the Domain node of root for settings.
func NewSettings(root prefs.Root) *Settings {
	return &Settings{root: root, backend: root.Node(Domain)}
}

func (s *Settings) Close() error {
	return s.root.Close()
}

// Load reads configuration from the platform settings backend, then applies
// REMOTEPLAYERS_* environment variable overrides.
func Load() (Config, error) {
	s, err := OpenSettings()
	if err != nil {
		return Config{}, err
	}
	defer s.Close()
	return s.Load()
}

// Load reads configuration from s, then applies environment overrides.
func (s *Settings) Load() (Config, error) {
	return loadWith(s.backend)
}

func loadWith(b prefs.Backend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return Config{}, fmt.Errorf("invalid server.port %d", cfg.Server.Port)
	}
	return cfg, nil
}
