// Package config loads luathread settings from YAML and builds the logger.
package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/luathread/engine"
	"github.com/wippyai/luathread/errors"
	"github.com/wippyai/luathread/runtime"
)

// Config is the on-disk configuration.
type Config struct {
	// Module is the name scripts see the thread module under.
	Module string `yaml:"module"`

	// LockOSThread gives every spawned thread its own OS thread.
	LockOSThread bool `yaml:"lock_os_thread"`

	// ExitTimeout bounds how long the CLI waits for detached threads after
	// the main script returns. Zero waits forever.
	ExitTimeout time.Duration `yaml:"exit_timeout"`

	Lua     LuaConfig     `yaml:"lua"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LuaConfig sizes the interpreter state of spawned threads.
type LuaConfig struct {
	CallStackSize       int  `yaml:"call_stack_size"`
	RegistrySize        int  `yaml:"registry_size"`
	SkipOpenLibs        bool `yaml:"skip_open_libs"`
	IncludeGoStackTrace bool `yaml:"include_go_stack_trace"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Encoding    string `yaml:"encoding"`
	Development bool   `yaml:"development"`
}

type MetricsConfig struct {
	// Addr enables the /metrics endpoint when set, e.g. ":9090".
	Addr      string `yaml:"addr"`
	Namespace string `yaml:"namespace"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Module:       runtime.DefaultModuleName,
		LockOSThread: true,
		Log: LogConfig{
			Level:    "info",
			Encoding: "console",
		},
		Metrics: MetricsConfig{
			Namespace: "luathread",
		},
	}
}

// Load reads and validates a YAML file. Keys absent from the file keep their
// defaults; unknown keys are an error.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Load(fmt.Sprintf("open config %s", path), err)
	}
	defer f.Close()

	cfg, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates a YAML document.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, errors.Load("parse config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if c.Module == "" {
		return errors.InvalidInput(errors.PhaseConfig, "module name must not be empty")
	}
	if c.ExitTimeout < 0 {
		return errors.InvalidInput(errors.PhaseConfig, "exit_timeout must not be negative")
	}
	if c.Lua.CallStackSize < 0 || c.Lua.RegistrySize < 0 {
		return errors.InvalidInput(errors.PhaseConfig, "lua sizes must not be negative")
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "log.level")
	}
	switch c.Log.Encoding {
	case "", "console", "json":
	default:
		return errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("log.encoding %q is not console or json", c.Log.Encoding))
	}
	return nil
}

// NewLogger builds a zap logger from the log section.
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "log.level")
	}

	zc := zap.NewProductionConfig()
	if c.Log.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	if c.Log.Encoding != "" {
		zc.Encoding = c.Log.Encoding
	}
	return zc.Build()
}

// ContextOptions returns the interpreter sizing for spawned threads.
func (c *Config) ContextOptions() engine.Options {
	return engine.Options{
		CallStackSize:       c.Lua.CallStackSize,
		RegistrySize:        c.Lua.RegistrySize,
		SkipOpenLibs:        c.Lua.SkipOpenLibs,
		IncludeGoStackTrace: c.Lua.IncludeGoStackTrace,
	}
}

// Runtime returns a runtime configuration; the caller fills in the writers
// and metrics.
func (c *Config) Runtime(logger *zap.Logger) runtime.Config {
	return runtime.Config{
		Logger:          logger,
		ModuleName:      c.Module,
		Context:         c.ContextOptions(),
		SharedOSThreads: !c.LockOSThread,
	}
}
