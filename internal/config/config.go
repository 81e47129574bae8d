// Package config loads portwatch settings.
//
// Settings come from three layers, later ones winning:
//  1. built-in defaults (Default)
//  2. an optional config file, YAML (.yaml/.yml) or JSON with comments
//     (.json/.jsonc)
//  3. PORTWATCH_* environment variables
//
// Command-line flags are applied on top by the cli package.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/shinji-kodama/portwatch/internal/model"
)

// Environment variables read by Load.
const (
	EnvConfigPath   = "PORTWATCH_CONFIG"
	EnvHost         = "PORTWATCH_HOST"
	EnvForceConnect = "PORTWATCH_FORCE_CONNECT"
	EnvLogLevel     = "PORTWATCH_LOG_LEVEL"
)

// Config is the complete portwatch configuration.
type Config struct {
	// Host is the default host for check, find and wait.
	Host string `yaml:"host" json:"host"`

	// ForceConnect probes every host with outbound connections, even
	// local ones.
	ForceConnect bool `yaml:"forceConnect" json:"forceConnect"`

	// ConnectTimeoutMs bounds a single connect probe.
	ConnectTimeoutMs int `yaml:"connectTimeoutMs" json:"connectTimeoutMs"`

	Find FindConfig `yaml:"find" json:"find"`
	Wait WaitConfig `yaml:"wait" json:"wait"`
	Log  LogConfig  `yaml:"log" json:"log"`
}

// FindConfig holds the defaults of the find command.
type FindConfig struct {
	Min         int  `yaml:"min" json:"min"`
	Max         int  `yaml:"max" json:"max"`
	Retrieve    int  `yaml:"retrieve" json:"retrieve"`
	Consecutive bool `yaml:"consecutive" json:"consecutive"`
}

// WaitConfig holds the defaults of the wait command.
type WaitConfig struct {
	RetryIntervalMs int  `yaml:"retryIntervalMs" json:"retryIntervalMs"`
	TimeoutMs       int  `yaml:"timeoutMs" json:"timeoutMs"`
	CheckAliases    bool `yaml:"checkAliases" json:"checkAliases"`
}

// LogConfig configures the logrus logger built by package logging.
type LogConfig struct {
	// Level is a logrus level name (debug, info, warn, error).
	Level string `yaml:"level" json:"level"`

	// Format is "text" or "json".
	Format string `yaml:"format" json:"format"`

	// Output is "stderr", "stdout" or "file".
	Output string `yaml:"output" json:"output"`

	// File is the log file path when Output is "file".
	File string `yaml:"file" json:"file"`

	// Rotation settings for file output, passed to lumberjack.
	MaxSizeMB  int  `yaml:"maxSizeMB" json:"maxSizeMB"`
	MaxBackups int  `yaml:"maxBackups" json:"maxBackups"`
	MaxAgeDays int  `yaml:"maxAgeDays" json:"maxAgeDays"`
	Compress   bool `yaml:"compress" json:"compress"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Host:             "0.0.0.0",
		ConnectTimeoutMs: 1000,
		Find: FindConfig{
			Min:      49152,
			Max:      model.MaxPort,
			Retrieve: 1,
		},
		Wait: WaitConfig{
			RetryIntervalMs: int(model.DefaultRetryInterval / time.Millisecond),
			TimeoutMs:       int(model.DefaultWaitTimeout / time.Millisecond),
			CheckAliases:    true,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load builds the configuration from defaults, the file at path (or at
// $PORTWATCH_CONFIG when path is empty; no file at all when both are
// empty) and the environment. The result is validated.
func Load(path string) (*Config, error) {
	return load(path, os.Getenv)
}

func load(path string, getenv func(string) string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = getenv(EnvConfigPath)
	}
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, model.WrapCLIError(model.ExitConfigError, "invalid configuration", err)
	}
	return cfg, nil
}

// mergeFile decodes the file over the current values, so keys absent from
// the file keep their defaults.
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.WrapCLIError(model.ExitConfigError,
				fmt.Sprintf("config file not found: %s", path), err)
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	case ".json", ".jsonc":
		// Strip // and /* */ comments and trailing commas first.
		err = json.Unmarshal(jsonc.ToJSON(data), c)
	default:
		return model.NewCLIError(model.ExitConfigError,
			fmt.Sprintf("unsupported config file extension %q (valid: .yaml, .yml, .json, .jsonc)", ext))
	}
	if err != nil {
		return model.WrapCLIError(model.ExitConfigError,
			fmt.Sprintf("failed to parse config file %s", path), err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv(EnvHost); v != "" {
		c.Host = v
	}
	if v := getenv(EnvForceConnect); v != "" {
		force, err := strconv.ParseBool(v)
		if err != nil {
			return model.WrapCLIError(model.ExitConfigError,
				fmt.Sprintf("invalid %s value %q", EnvForceConnect, v), err)
		}
		c.ForceConnect = force
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	return nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	req := model.FreePortRequest{Min: c.Find.Min, Max: c.Find.Max}
	if err := req.Validate(); err != nil {
		return fmt.Errorf("find: %w", err)
	}
	if c.Wait.TimeoutMs < 0 {
		return fmt.Errorf("wait: timeoutMs must not be negative, got %d", c.Wait.TimeoutMs)
	}
	if c.ConnectTimeoutMs < 0 {
		return fmt.Errorf("connectTimeoutMs must not be negative, got %d", c.ConnectTimeoutMs)
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log: unsupported format %q (valid: text, json)", c.Log.Format)
	}
	switch strings.ToLower(c.Log.Output) {
	case "stderr", "stdout":
	case "file":
		if c.Log.File == "" {
			return fmt.Errorf("log: file is required when output is file")
		}
	default:
		return fmt.Errorf("log: unsupported output %q (valid: stderr, stdout, file)", c.Log.Output)
	}
	return nil
}

// RetryInterval returns Wait.RetryIntervalMs as a duration.
func (c *Config) RetryInterval() time.Duration {
	return time.Duration(c.Wait.RetryIntervalMs) * time.Millisecond
}

// WaitTimeout returns Wait.TimeoutMs as a duration.
func (c *Config) WaitTimeout() time.Duration {
	return time.Duration(c.Wait.TimeoutMs) * time.Millisecond
}

// ConnectTimeout returns ConnectTimeoutMs as a duration.
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutMs) * time.Millisecond
}
