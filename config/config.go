// Package config loads gtpbridge settings from defaults, an optional config
// file and GTPBRIDGE_* environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/spf13/viper"

	"github.com/a2y-d5l/gtpbridge/board"
	"github.com/a2y-d5l/gtpbridge/engine"
	"github.com/a2y-d5l/gtpbridge/session"
)

// ErrInvalid is wrapped by every validation error returned from Load.
var ErrInvalid = errors.New("invalid config")

// Config holds application configuration.
type Config struct {
	LogLevel       string          `mapstructure:"log_level"`
	Current        string          `mapstructure:"current"`
	Board          string          `mapstructure:"board"`
	Engines        []engine.Config `mapstructure:"engines"`
	Output         OutputConfig    `mapstructure:"output"`
	History        HistoryConfig   `mapstructure:"history"`
	AnalyzeOnStart bool            `mapstructure:"analyze_on_start"`
}

// HistoryConfig bounds the diagnostics history.
type HistoryConfig struct {
	MaxLines int `mapstructure:"max_lines"`
	MaxBytes int `mapstructure:"max_bytes"`
}

// OutputConfig holds presentation settings.
type OutputConfig struct {
	Prefix     string `mapstructure:"prefix"`
	TopN       int    `mapstructure:"top_n"`
	Timestamps bool   `mapstructure:"timestamps"`
}

// Load reads configuration. path names the config file; when empty,
// GTPBRIDGE_CONFIG is used, and failing that an optional "config.*" file in
// $HOME/.config/gtpbridge. Env var overrides use prefix GTPBRIDGE_.
func Load(path string) (Config, error) {
	v := viper.New()

	// default values
	v.SetDefault("log_level", "info")
	v.SetDefault("current", "")
	v.SetDefault("board", board.Gomoku.String())
	v.SetDefault("analyze_on_start", false)
	v.SetDefault("history.max_lines", 1000)
	v.SetDefault("history.max_bytes", 1<<20)
	v.SetDefault("output.prefix", "[%s]")
	v.SetDefault("output.timestamps", false)
	v.SetDefault("output.top_n", 3)

	if path == "" {
		path = os.Getenv("GTPBRIDGE_CONFIG")
	}
	explicit := path != ""
	if explicit {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "gtpbridge"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("GTPBRIDGE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks the settings that cannot be defaulted.
func (c *Config) Validate() error {
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log_level: %w", ErrInvalid, err)
	}
	if _, err := board.ParseVariant(c.Board); err != nil {
		return fmt.Errorf("%w: board: %w", ErrInvalid, err)
	}
	for i, e := range c.Engines {
		if strings.TrimSpace(e.Path) == "" {
			return fmt.Errorf("%w: engines[%d]: empty path", ErrInvalid, i)
		}
	}
	if dups := lo.FindDuplicatesBy(c.Engines, engine.Config.Label); len(dups) > 0 {
		return fmt.Errorf("%w: duplicate engine name %q", ErrInvalid, dups[0].Label())
	}
	if c.Current != "" {
		if _, ok := c.Engine(c.Current); !ok {
			return fmt.Errorf("%w: current engine %q is not configured", ErrInvalid, c.Current)
		}
	}
	return nil
}

// Engine returns the configured engine whose label is name.
func (c *Config) Engine(name string) (engine.Config, bool) {
	return lo.Find(c.Engines, func(e engine.Config) bool {
		return e.Label() == name
	})
}

// EngineNames returns the engine labels in configuration order.
func (c *Config) EngineNames() []string {
	return lo.Map(c.Engines, func(e engine.Config, _ int) string {
		return e.Label()
	})
}

// Selected returns the engine to start with: Current if set, otherwise the
// first configured engine.
func (c *Config) Selected() (engine.Config, bool) {
	if c.Current != "" {
		return c.Engine(c.Current)
	}
	if len(c.Engines) == 0 {
		return engine.Config{}, false
	}
	return c.Engines[0], true
}

// Variant returns the configured board variant, Gomoku if unparseable.
func (c *Config) Variant() board.Variant {
	v, err := board.ParseVariant(c.Board)
	if err != nil {
		return board.Gomoku
	}
	return v
}

// Level returns the configured log level, info if unparseable.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

// Session returns the session settings.
func (c *Config) Session() session.Config {
	return session.Config{
		HistoryMaxLines: c.History.MaxLines,
		HistoryMaxBytes: c.History.MaxBytes,
		AnalyzeOnStart:  c.AnalyzeOnStart,
	}
}
