package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/alex/biotutor/internal/config"
	"github.com/alex/biotutor/internal/dashboard"
	"github.com/alex/biotutor/internal/detector"
	"github.com/alex/biotutor/internal/engine"
	"github.com/alex/biotutor/internal/llm"
	"github.com/alex/biotutor/internal/metrics"
)

var serveFlags struct {
	addr     string
	mode     string
	detector bool
	noLLM    bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the state engine with the dashboard, chat tutor and detector poller",
	RunE:  runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveFlags.addr, "addr", "", "override server.addr")
	f.StringVar(&serveFlags.mode, "mode", "", "override engine.mode (scripted, external, autonomous)")
	f.BoolVar(&serveFlags.detector, "detector", false, "poll the face-analysis backend")
	f.BoolVar(&serveFlags.noLLM, "no-llm", false, "disable the chat tutor")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if serveFlags.addr != "" {
		cfg.Server.Addr = serveFlags.addr
	}
	if serveFlags.mode != "" {
		cfg.Engine.Mode = serveFlags.mode
	}
	if serveFlags.detector {
		cfg.Detector.Enabled = true
	}
	if serveFlags.noLLM {
		cfg.LLM.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctrl, err := newController(cfg, log)
	if err != nil {
		return err
	}
	if ctrl.Mode() == engine.ModeScripted {
		if err := ctrl.ResetScenes(); err != nil {
			return err
		}
	}

	opts := []dashboard.ServerOption{
		dashboard.WithLogger(log),
		dashboard.WithMetrics(metrics.New()),
		dashboard.WithBroadcastInterval(cfg.Server.BroadcastInterval),
	}
	if cfg.LLM.Enabled {
		opts = append(opts, dashboard.WithTutor(newTutor(ctx, cfg, log)))
	}
	srv := dashboard.NewServer(cfg.Server.Addr, ctrl, opts...)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(ctx)
	})
	g.Go(func() error {
		tickLoop(ctx, ctrl, cfg.Engine.TickInterval)
		return nil
	})
	if cfg.Detector.Enabled {
		client := detector.NewClient(cfg.DetectorClient())
		poller := detector.NewPoller(client, ctrl, cfg.Detector.PollInterval, log)
		g.Go(func() error {
			return poller.Run(ctx)
		})
	}

	err = g.Wait()
	log.Info().Msg("shut down")
	return err
}

// newTutor connects the chat tutor. An unreachable backend is not fatal:
// the tutor answers with fallback replies until it comes up.
func newTutor(ctx context.Context, cfg *config.Config, log zerolog.Logger) *llm.Tutor {
	client := llm.NewClient(cfg.LLMClient())

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.EnsureModel(checkCtx); err != nil {
		log.Warn().Err(err).Str("model", client.Model()).Msg("llm not ready, using fallback replies until it is")
	} else {
		log.Info().Str("model", client.Model()).Msg("llm connected")
	}
	return llm.NewTutor(client, cfg.LLM.History, log)
}

// tickLoop advances the controller's clock-driven behavior.
func tickLoop(ctx context.Context, ctrl *engine.Controller, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ctrl.Tick()
		}
	}
}
