package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/retrylife/remoteplayers/internal/prefs"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keyDef struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var keyDefs = []keyDef{
	{
		key: "prefs.backend", typ: kString, env: "REMOTEPLAYERS_PREFS_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.Prefs.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.Prefs.Backend },
	},
	{
		key: "storage.data_dir", typ: kString, env: "REMOTEPLAYERS_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "server.port", typ: kInt, env: "REMOTEPLAYERS_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.max_conns", typ: kInt, env: "REMOTEPLAYERS_SERVER_MAX_CONNS",
		apply:   func(cfg *Config, v any) { cfg.Server.MaxConns = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.MaxConns },
	},
	{
		key: tokenKey, typ: kString, env: "REMOTEPLAYERS_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.APIToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.APIToken },
	},
	{
		key: "log.level", typ: kString, env: "REMOTEPLAYERS_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b prefs.Backend) error {
	for _, s := range keyDefs {
		v, ok, err := b.GetString(s.key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if !ok {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, v)
		case kInt:
			if i, err := strconv.Atoi(v); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from config key %s=%q: %v. Using default value.\n", s.key, v, err)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range keyDefs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
