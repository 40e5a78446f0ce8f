package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/retrylife/remoteplayers/internal/config"
	"github.com/retrylife/remoteplayers/internal/links"
	"github.com/retrylife/remoteplayers/internal/prefs"
)

// setupCLI points the commands at a temporary data dir and settings file
// and captures stdout and status output.
func setupCLI(t *testing.T, backend string) (dataDir string) {
	t.Helper()
	dataDir = t.TempDir()
	settingsDir := t.TempDir()

	origLoad, origSettings, origMsg := loadConfig, openSettings, msgOut
	t.Cleanup(func() {
		loadConfig, openSettings, msgOut = origLoad, origSettings, origMsg
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
	})

	openSettings = func() (*config.Settings, error) {
		root, err := prefs.OpenFile(settingsDir)
		if err != nil {
			return nil, err
		}
		return config.NewSettings(root), nil
	}
	loadConfig = func() (config.Config, error) {
		s, err := openSettings()
		if err != nil {
			return config.Config{}, err
		}
		defer s.Close()
		cfg, err := s.Load()
		if err != nil {
			return config.Config{}, err
		}
		cfg.Prefs.Backend = backend
		cfg.Storage.DataDir = dataDir
		return cfg, nil
	}
	msgOut = &bytes.Buffer{}
	noColor = true
	return dataDir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	require.NoError(t, err, "%v", args)
	return out
}

func TestIntegrationCommands(t *testing.T) {
	setupCLI(t, prefs.KindSQLite)

	assert.Equal(t, "disabled\n", mustRun(t, "integration", "status"))
	mustRun(t, "integration", "enable")
	assert.Equal(t, "enabled\n", mustRun(t, "integration", "status"))
	mustRun(t, "integration", "disable")
	assert.Equal(t, "disabled\n", mustRun(t, "integration", "status"))
}

func TestLinkCommands(t *testing.T) {
	for _, backend := range []string{prefs.KindFile, prefs.KindSQLite} {
		t.Run(backend, func(t *testing.T) {
			setupCLI(t, backend)

			mustRun(t, "link", "set", "survival", "https://map.example.com")
			assert.Equal(t, "https://map.example.com\n", mustRun(t, "link", "show", "survival"))

			mustRun(t, "link", "remove", "survival")
			_, err := run(t, "link", "show", "survival")
			require.ErrorContains(t, err, "no map linked")
		})
	}
}

func TestLinkRemoveMissing(t *testing.T) {
	setupCLI(t, prefs.KindSQLite)
	mustRun(t, "link", "rm", "ghost")

	assert.Contains(t, msgOut.(*bytes.Buffer).String(), "ghost had no map linked")
}

func TestLinkList(t *testing.T) {
	setupCLI(t, prefs.KindSQLite)
	mustRun(t, "link", "set", "zeta", "http://z")
	mustRun(t, "link", "set", "alpha", "http://a")

	assert.Equal(t, "alpha\thttp://a\nzeta\thttp://z\n", mustRun(t, "link", "list"))
}

func TestLinkArgsValidated(t *testing.T) {
	setupCLI(t, prefs.KindSQLite)
	_, err := run(t, "link", "set", "only-server")
	require.Error(t, err)
}

func TestLinksPersistAcrossInvocations(t *testing.T) {
	dataDir := setupCLI(t, prefs.KindFile)
	mustRun(t, "link", "set", "s", "http://m")

	data, err := os.ReadFile(filepath.Join(dataDir, "prefs.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"dynmap_s": "http://m"`)
}

// TestCLIWritesVisibleToOpenStore mirrors a running server holding the store
// open while the CLI edits links.
func TestCLIWritesVisibleToOpenStore(t *testing.T) {
	for _, backend := range []string{prefs.KindFile, prefs.KindSQLite} {
		t.Run(backend, func(t *testing.T) {
			setupCLI(t, backend)
			cfg, err := loadConfig()
			require.NoError(t, err)
			server, closeFn, err := openLinksWith(cfg)
			require.NoError(t, err)
			defer closeFn()

			mustRun(t, "link", "set", "survival", "http://s")
			url, ok, err := server.LinkedServiceURL("survival")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "http://s", url)

			require.NoError(t, server.SetLinkedServiceURL("creative", "http://c"))
			assert.Equal(t, "creative\thttp://c\nsurvival\thttp://s\n", mustRun(t, "link", "list"))
		})
	}
}

func TestExportJSON(t *testing.T) {
	setupCLI(t, prefs.KindSQLite)
	mustRun(t, "integration", "enable")
	mustRun(t, "link", "set", "survival", "http://m")

	out := mustRun(t, "export", "--format", "json", "--output", "")
	var doc exportDoc
	require.NoError(t, json.Unmarshal([]byte(out), &doc), out)
	assert.True(t, doc.IntegrationEnabled)
	assert.Equal(t, []links.Link{{Server: "survival", URL: "http://m"}}, doc.Links)
}

func TestExportYAMLToFile(t *testing.T) {
	setupCLI(t, prefs.KindSQLite)
	mustRun(t, "link", "set", "survival", "http://m")

	path := filepath.Join(t.TempDir(), "links.yaml")
	mustRun(t, "export", "--format", "yaml", "--output", path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc exportDoc
	require.NoError(t, yaml.Unmarshal(data, &doc))
	assert.False(t, doc.IntegrationEnabled)
	assert.Equal(t, []links.Link{{Server: "survival", URL: "http://m"}}, doc.Links)
}

func TestExportBadFormat(t *testing.T) {
	setupCLI(t, prefs.KindSQLite)
	_, err := run(t, "export", "--format", "xml", "--output", "")
	require.ErrorContains(t, err, "unsupported format")
}

func TestConfigSetAndShow(t *testing.T) {
	setupCLI(t, prefs.KindSQLite)
	t.Setenv("REMOTEPLAYERS_SERVER_PORT", "")

	mustRun(t, "config", "set", "server.port", "5123")
	out := mustRun(t, "config", "show")
	assert.Contains(t, out, "server.port = 5123")
	assert.NotContains(t, out, "api_token")
}

func TestConfigToken(t *testing.T) {
	setupCLI(t, prefs.KindSQLite)
	t.Setenv("REMOTEPLAYERS_API_TOKEN", "")

	first := mustRun(t, "config", "token")
	require.NotEqual(t, "\n", first)
	assert.Equal(t, first, mustRun(t, "config", "token"))
}

func TestPIDFileRoundTrip(t *testing.T) {
	path := pidFilePath(t.TempDir())
	require.NoError(t, writePIDFile(path))

	pid, err := readPIDFile(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	removePIDFile(path)
	_, err = readPIDFile(path)
	require.Error(t, err)
}
