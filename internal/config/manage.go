package config

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/retrylife/remoteplayers/internal/prefs"
)

const tokenKey = "server.api_token"

// KeyInfo describes a config key for display purposes.
type KeyInfo struct {
	Key    string
	EnvVar string
	Value  string
}

// ShowAll returns all non-secret config key/value pairs from cfg.
func ShowAll(cfg Config) []KeyInfo {
	var result []KeyInfo
	for _, s := range keyDefs {
		if s.secret {
			continue
		}
		result = append(result, KeyInfo{
			Key:    s.key,
			EnvVar: s.env,
			Value:  fmt.Sprintf("%v", s.extract(cfg)),
		})
	}
	return result
}

// SetKey validates value against the key's type and writes it.
func (s *Settings) SetKey(key, value string) error {
	return setKey(s.backend, key, value)
}

func setKey(b prefs.Backend, key, value string) error {
	for _, s := range keyDefs {
		if s.key != key {
			continue
		}
		if s.secret {
			return fmt.Errorf("cannot set secret %q via config; use environment variable %s", key, s.env)
		}
		switch s.typ {
		case kString:
			if key == "prefs.backend" {
				if err := validBackend(value); err != nil {
					return err
				}
			}
			return b.SetString(key, value)
		case kInt:
			if _, err := strconv.Atoi(value); err != nil {
				return fmt.Errorf("invalid integer value for %s: %w", key, err)
			}
			return b.SetString(key, value)
		}
	}
	return fmt.Errorf("unknown config key: %q", key)
}

func validBackend(kind string) error {
	switch kind {
	case prefs.KindNative, prefs.KindFile, prefs.KindSQLite:
		return nil
	}
	return fmt.Errorf("%w: %q (want %s, %s or %s)", prefs.ErrUnknownBackend, kind,
		prefs.KindNative, prefs.KindFile, prefs.KindSQLite)
}

// ValidKeys returns the list of valid non-secret config key names.
func ValidKeys() []string {
	var keys []string
	for _, s := range keyDefs {
		if !s.secret {
			keys = append(keys, s.key)
		}
	}
	return keys
}

// APIToken returns the bearer token for the local API. cfg's token wins when
// set; otherwise the stored token is used, and one is generated and stored
// on first use.
func (s *Settings) APIToken(cfg Config) (string, error) {
	if cfg.Server.APIToken != "" {
		return cfg.Server.APIToken, nil
	}
	return ensureToken(s.backend)
}

func ensureToken(b prefs.Backend) (string, error) {
	token, ok, err := b.GetString(tokenKey)
	if err != nil {
		return "", fmt.Errorf("reading API token: %w", err)
	}
	if ok && token != "" {
		return token, nil
	}
	token = uuid.NewString()
	if err := b.SetString(tokenKey, token); err != nil {
		return "", fmt.Errorf("storing API token: %w", err)
	}
	return token, nil
}
