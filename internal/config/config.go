// Package config loads biotutor's configuration from defaults, an optional
// YAML file, a .env file and BIOTUTOR_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/alex/biotutor/internal/detector"
	"github.com/alex/biotutor/internal/engine"
	"github.com/alex/biotutor/internal/llm"
	"github.com/alex/biotutor/internal/logging"
	"github.com/alex/biotutor/internal/observe"
)

// EnvPrefix prefixes every environment override, e.g. BIOTUTOR_ENGINE_MODE.
const EnvPrefix = "BIOTUTOR"

// Config holds all application configuration.
type Config struct {
	Engine   EngineConfig   `mapstructure:"engine"`
	Server   ServerConfig   `mapstructure:"server"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Detector DetectorConfig `mapstructure:"detector"`
	Scenes   ScenesConfig   `mapstructure:"scenes"`
	Log      LogConfig      `mapstructure:"log"`
}

// EngineConfig tunes the state controller and the observation scorer.
type EngineConfig struct {
	Window               time.Duration `mapstructure:"window"`
	RecencyWeight        float64       `mapstructure:"recency_weight"`
	NeutralPenalty       float64       `mapstructure:"neutral_penalty"`
	NeutralMinConfidence float64       `mapstructure:"neutral_min_confidence"`
	Cooldown             time.Duration `mapstructure:"cooldown"`
	Stability            float64       `mapstructure:"stability"`
	TickInterval         time.Duration `mapstructure:"tick_interval"`
	DriftInterval        time.Duration `mapstructure:"drift_interval"` // 0 disables periodic drift
	Mode                 string        `mapstructure:"mode"`
	Seed                 int64         `mapstructure:"seed"` // 0 seeds from the clock
}

// ServerConfig configures the dashboard HTTP server.
type ServerConfig struct {
	Addr              string        `mapstructure:"addr"`
	BroadcastInterval time.Duration `mapstructure:"broadcast_interval"`
}

// LLMConfig configures the tutor's language-model backend.
type LLMConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
	History int           `mapstructure:"history"`
}

// DetectorConfig configures the face-analysis backend.
type DetectorConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	BaseURL      string        `mapstructure:"base_url"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// ScenesConfig points at a scene script. Empty uses the built-in demo.
type ScenesConfig struct {
	File string `mapstructure:"file"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
}

// Default returns the default configuration.
func Default() *Config {
	llmDef := llm.DefaultConfig()
	detDef := detector.DefaultConfig()
	engDef := engine.DefaultConfig()
	return &Config{
		Engine: EngineConfig{
			Window:               engDef.Window,
			RecencyWeight:        engDef.Scoring.RecencyWeight,
			NeutralPenalty:       engDef.Scoring.NeutralPenalty,
			NeutralMinConfidence: engDef.NeutralMinConfidence,
			Cooldown:             engDef.Cooldown,
			Stability:            engDef.Stability,
			TickInterval:         50 * time.Millisecond,
			DriftInterval:        engDef.DriftInterval,
			Mode:                 string(engDef.Mode),
		},
		Server: ServerConfig{
			Addr:              ":8080",
			BroadcastInterval: 250 * time.Millisecond,
		},
		LLM: LLMConfig{
			Enabled: true,
			BaseURL: llmDef.BaseURL,
			Model:   llmDef.Model,
			Timeout: llmDef.Timeout,
			History: llm.DefaultHistory,
		},
		Detector: DetectorConfig{
			Enabled:      false,
			BaseURL:      detDef.BaseURL,
			PollInterval: detector.DefaultPollInterval,
			Timeout:      detDef.Timeout,
		},
		Log: LogConfig{
			Level:   "info",
			Console: true,
		},
	}
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("engine.window", d.Engine.Window)
	v.SetDefault("engine.recency_weight", d.Engine.RecencyWeight)
	v.SetDefault("engine.neutral_penalty", d.Engine.NeutralPenalty)
	v.SetDefault("engine.neutral_min_confidence", d.Engine.NeutralMinConfidence)
	v.SetDefault("engine.cooldown", d.Engine.Cooldown)
	v.SetDefault("engine.stability", d.Engine.Stability)
	v.SetDefault("engine.tick_interval", d.Engine.TickInterval)
	v.SetDefault("engine.drift_interval", d.Engine.DriftInterval)
	v.SetDefault("engine.mode", d.Engine.Mode)
	v.SetDefault("engine.seed", d.Engine.Seed)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.broadcast_interval", d.Server.BroadcastInterval)

	v.SetDefault("llm.enabled", d.LLM.Enabled)
	v.SetDefault("llm.base_url", d.LLM.BaseURL)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.timeout", d.LLM.Timeout)
	v.SetDefault("llm.history", d.LLM.History)

	v.SetDefault("detector.enabled", d.Detector.Enabled)
	v.SetDefault("detector.base_url", d.Detector.BaseURL)
	v.SetDefault("detector.poll_interval", d.Detector.PollInterval)
	v.SetDefault("detector.timeout", d.Detector.Timeout)

	v.SetDefault("scenes.file", d.Scenes.File)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.console", d.Log.Console)
}

// Load reads configuration. An empty path looks for biotutor.yaml in the
// working directory and carries on without it; an explicit path must
// exist. A .env file in the working directory is loaded into the
// environment first without overriding variables already set.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("biotutor")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Engine.Window > 0, "engine.window must be positive, got %s", c.Engine.Window)
	check(c.Engine.TickInterval > 0, "engine.tick_interval must be positive, got %s", c.Engine.TickInterval)
	check(c.Engine.DriftInterval >= 0, "engine.drift_interval must not be negative, got %s", c.Engine.DriftInterval)
	check(c.Engine.Cooldown >= 0, "engine.cooldown must not be negative, got %s", c.Engine.Cooldown)
	check(unit(c.Engine.Stability), "engine.stability must be in [0,1], got %v", c.Engine.Stability)
	check(unit(c.Engine.NeutralMinConfidence), "engine.neutral_min_confidence must be in [0,1], got %v", c.Engine.NeutralMinConfidence)
	check(unit(c.Engine.NeutralPenalty), "engine.neutral_penalty must be in [0,1], got %v", c.Engine.NeutralPenalty)
	check(c.Engine.RecencyWeight >= 0, "engine.recency_weight must not be negative, got %v", c.Engine.RecencyWeight)
	if _, err := engine.ParseMode(c.Engine.Mode); err != nil {
		errs = append(errs, fmt.Errorf("engine.mode: %w", err))
	}
	check(c.Server.BroadcastInterval > 0, "server.broadcast_interval must be positive, got %s", c.Server.BroadcastInterval)
	check(c.LLM.History > 0, "llm.history must be positive, got %d", c.LLM.History)
	if c.Detector.Enabled {
		check(c.Detector.PollInterval > 0, "detector.poll_interval must be positive, got %s", c.Detector.PollInterval)
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func unit(v float64) bool {
	return v >= 0 && v <= 1
}

// EngineOptions returns the controller settings. Mode must already have
// passed Validate.
func (c *Config) EngineOptions() engine.Config {
	mode, _ := engine.ParseMode(c.Engine.Mode)
	return engine.Config{
		Window: c.Engine.Window,
		Scoring: observe.Scoring{
			RecencyWeight:  c.Engine.RecencyWeight,
			NeutralPenalty: c.Engine.NeutralPenalty,
		},
		NeutralMinConfidence: c.Engine.NeutralMinConfidence,
		Mode:                 mode,
		Cooldown:             c.Engine.Cooldown,
		DriftInterval:        c.Engine.DriftInterval,
		Stability:            c.Engine.Stability,
	}
}

// LLMClient returns the LLM client settings.
func (c *Config) LLMClient() llm.Config {
	return llm.Config{BaseURL: c.LLM.BaseURL, Model: c.LLM.Model, Timeout: c.LLM.Timeout}
}

// DetectorClient returns the detector client settings.
func (c *Config) DetectorClient() detector.Config {
	return detector.Config{BaseURL: c.Detector.BaseURL, Timeout: c.Detector.Timeout}
}

// Logging returns the logger settings.
func (c *Config) Logging() logging.Config {
	return logging.Config{Level: c.Log.Level, Console: c.Log.Console}
}
