package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/portwatch/internal/model"
)

// env returns a getenv function backed by a map, so tests never depend on
// the real process environment.
func env(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

// writeFile writes content into a temp file with the given name.
func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// TestDefault verifies the documented defaults.
func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.False(t, cfg.ForceConnect)
	assert.Equal(t, 1, cfg.Find.Retrieve)
	assert.False(t, cfg.Find.Consecutive)
	assert.Equal(t, 100*time.Millisecond, cfg.RetryInterval())
	assert.Equal(t, 5*time.Second, cfg.WaitTimeout())
	assert.Equal(t, time.Second, cfg.ConnectTimeout())
	assert.True(t, cfg.Wait.CheckAliases)
	assert.NoError(t, cfg.Validate())
}

// TestLoad_NoFile verifies that with no path and no env the defaults are
// returned unchanged.
func TestLoad_NoFile(t *testing.T) {
	cfg, err := load("", env(nil))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

// TestLoad_YAML verifies YAML decoding over defaults: keys present in the
// file win, absent keys keep their defaults.
func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "portwatch.yaml", `
host: 127.0.0.1
find:
  min: 50000
  max: 50010
  consecutive: true
wait:
  timeoutMs: 250
log:
  level: debug
`)

	cfg, err := load(path, env(nil))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 50000, cfg.Find.Min)
	assert.Equal(t, 50010, cfg.Find.Max)
	assert.True(t, cfg.Find.Consecutive)
	assert.Equal(t, 1, cfg.Find.Retrieve, "absent key keeps its default")
	assert.Equal(t, 250*time.Millisecond, cfg.WaitTimeout())
	assert.Equal(t, 100*time.Millisecond, cfg.RetryInterval())
	assert.True(t, cfg.Wait.CheckAliases)
	assert.Equal(t, "debug", cfg.Log.Level)
}

// TestLoad_JSONC verifies comments and trailing commas are accepted.
func TestLoad_JSONC(t *testing.T) {
	path := writeFile(t, "portwatch.jsonc", `{
  // probe remote hosts only
  "forceConnect": true,
  /* wait tuning */
  "wait": {"retryIntervalMs": 20, "checkAliases": false,},
}`)

	cfg, err := load(path, env(nil))
	require.NoError(t, err)

	assert.True(t, cfg.ForceConnect)
	assert.Equal(t, 20*time.Millisecond, cfg.RetryInterval())
	assert.False(t, cfg.Wait.CheckAliases)
	assert.Equal(t, 5*time.Second, cfg.WaitTimeout())
}

// TestLoad_PathFromEnv verifies PORTWATCH_CONFIG is used when no explicit
// path is given.
func TestLoad_PathFromEnv(t *testing.T) {
	path := writeFile(t, "portwatch.yml", "host: \"::1\"\n")

	cfg, err := load("", env(map[string]string{EnvConfigPath: path}))
	require.NoError(t, err)
	assert.Equal(t, "::1", cfg.Host)
}

// TestLoad_EnvOverrides verifies environment variables win over the file.
func TestLoad_EnvOverrides(t *testing.T) {
	path := writeFile(t, "portwatch.yaml", "host: 127.0.0.1\n")

	cfg, err := load(path, env(map[string]string{
		EnvHost:         "10.1.2.3",
		EnvForceConnect: "true",
		EnvLogLevel:     "warn",
	}))
	require.NoError(t, err)

	assert.Equal(t, "10.1.2.3", cfg.Host)
	assert.True(t, cfg.ForceConnect)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_InvalidForceConnectEnv(t *testing.T) {
	_, err := load("", env(map[string]string{EnvForceConnect: "maybe"}))
	assertConfigError(t, err)
}

// TestLoad_Errors verifies every file problem maps to ExitConfigError.
func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := load(filepath.Join(t.TempDir(), "nope.yaml"), env(nil))
		assertConfigError(t, err)
		assert.Contains(t, err.Error(), "not found")
	})

	t.Run("unsupported extension", func(t *testing.T) {
		_, err := load(writeFile(t, "portwatch.toml", "host = 1"), env(nil))
		assertConfigError(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := load(writeFile(t, "portwatch.yaml", "find: [unclosed"), env(nil))
		assertConfigError(t, err)
	})

	t.Run("invalid range", func(t *testing.T) {
		_, err := load(writeFile(t, "portwatch.yaml", "find:\n  min: 600\n  max: 500\n"), env(nil))
		assertConfigError(t, err)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative timeout", func(c *Config) { c.Wait.TimeoutMs = -1 }},
		{"negative connect timeout", func(c *Config) { c.ConnectTimeoutMs = -1 }},
		{"port out of range", func(c *Config) { c.Find.Max = 70000 }},
		{"unknown log format", func(c *Config) { c.Log.Format = "xml" }},
		{"unknown log output", func(c *Config) { c.Log.Output = "syslog" }},
		{"file output without path", func(c *Config) { c.Log.Output = "file" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func assertConfigError(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr), "expected a CLIError, got %T", err)
	assert.Equal(t, model.ExitConfigError, cliErr.Code)
}
