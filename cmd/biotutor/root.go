package main

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/alex/biotutor/internal/config"
	"github.com/alex/biotutor/internal/engine"
	"github.com/alex/biotutor/internal/logging"
	"github.com/alex/biotutor/internal/scenario"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	configPath string
	logLevel   string
}

var rootCmd = &cobra.Command{
	Use:   "biotutor",
	Short: "Bio-adaptive tutor state engine",
	Long: "biotutor tracks a learner's emotional and cognitive state from a scripted\n" +
		"demo, detector observations or autonomous drift, and serves it to a\n" +
		"dashboard and a chat tutor.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&rootFlags.configPath, "config", "", "config file (default: ./biotutor.yaml if present)")
	f.StringVar(&rootFlags.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(scenesCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration and builds the logger from it.
func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(rootFlags.configPath)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if rootFlags.logLevel != "" {
		cfg.Log.Level = rootFlags.logLevel
	}
	log, err := logging.New(cfg.Logging(), nil)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, log, nil
}

// loadScenes reads the configured scene file, or returns the built-in demo.
func loadScenes(path string) ([]scenario.Scene, error) {
	if path == "" {
		return scenario.Demo(), nil
	}
	return scenario.Load(path)
}

// newController builds the engine from cfg.
func newController(cfg *config.Config, log zerolog.Logger, listeners ...engine.Listener) (*engine.Controller, error) {
	scenes, err := loadScenes(cfg.Scenes.File)
	if err != nil {
		return nil, err
	}

	seed := cfg.Engine.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	opts := []engine.Option{
		engine.WithConfig(cfg.EngineOptions()),
		engine.WithRand(rand.New(rand.NewSource(seed))),
		engine.WithLogger(log.With().Str("component", "engine").Logger()),
		engine.WithScenes(scenes),
	}
	for _, l := range listeners {
		opts = append(opts, engine.WithListener(l))
	}

	ctrl, err := engine.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating controller: %w", err)
	}
	log.Info().
		Str("mode", string(ctrl.Mode())).
		Int("scenes", len(scenes)).
		Int64("seed", seed).
		Msg("controller ready")
	return ctrl, nil
}
