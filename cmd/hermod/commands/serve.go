package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jholhewres/hermod/pkg/hermod/auth"
	"github.com/jholhewres/hermod/pkg/hermod/config"
	"github.com/jholhewres/hermod/pkg/hermod/engine"
	"github.com/jholhewres/hermod/pkg/hermod/logging"
	"github.com/jholhewres/hermod/pkg/hermod/scheduler"
	"github.com/jholhewres/hermod/pkg/hermod/server"
	"github.com/jholhewres/hermod/pkg/hermod/store"
)

// newServeCmd creates the `hermod serve` command that starts the daemon.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the relay daemon",
		Long: `Start Hermod: open the transcript store, construct the engine
adapter, and serve the WebSocket relay plus the management API.

Examples:
  hermod serve
  hermod serve --config ./config.yaml`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	// ── Load config ──
	configPath, _ := cmd.Root().PersistentFlags().GetString("config")
	if configPath == "" {
		configPath = config.Find()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// ── Configure logger ──
	verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")
	logLevel := slog.LevelInfo
	if verbose || cfg.Logging.Level == "debug" {
		logLevel = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	}
	bootLogger := slog.New(handler)

	// ── Open store ──
	st, err := store.Open(cfg.Store.Path, bootLogger)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()
	if cfg.Store.TitleMaxLen > 0 {
		st.TitleMaxLen = cfg.Store.TitleMaxLen
	}

	// With the store open, records can also flow into the logs table.
	logger := slog.New(logging.NewStoreHandler(handler, st, logging.ParseLevel(cfg.Logging.StoreLevel)))

	// ── Auth ──
	authSvc, err := auth.New(cfg.Auth, logger)
	if err != nil {
		return err
	}

	// ── Engine ──
	applyConfigOverrides(cfg, st, logger)

	tools := engine.NewToolExecutor(logger)
	engine.RegisterBuiltins(tools, st)

	var eng engine.Engine
	adapter, err := engine.NewAdapter(engine.ClientConfig{
		BaseURL:     cfg.Engine.BaseURL,
		APIKey:      cfg.Engine.APIKey,
		Model:       cfg.Engine.Model,
		Temperature: cfg.Engine.Temperature,
	}, tools, logger)
	if err != nil {
		logger.Warn("engine unavailable", "error", err)
		eng = engine.NewUnavailable(err)
	} else {
		adapter.SystemPrompt = skillPrompt(st, logger)
		eng = adapter
	}

	// ── Scheduler ──
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		runner := func(ctx context.Context, command string) (string, error) {
			if adapter == nil {
				return "", fmt.Errorf("engine unavailable")
			}
			return adapter.Complete(ctx, command)
		}
		sched = scheduler.New(scheduler.NewSQLiteJobStorage(st.DB()), runner, logger)
		if err := sched.Start(); err != nil {
			return fmt.Errorf("starting scheduler: %w", err)
		}
		defer sched.Stop()
	}

	// ── Serve ──
	srv := server.New(cfg.Server, cfg.Engine, st, eng, authSvc, sched, tools, logger)
	srv.Start()

	logger.Info("Hermod running. Press Ctrl+C to stop.",
		"address", cfg.Server.Address,
		"engine_ready", eng.Ready(),
		"scheduler", cfg.Scheduler.Enabled,
	)

	// ── Wait for shutdown ──
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received, stopping...")

	done := make(chan struct{})
	go func() {
		srv.Stop()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
	case <-time.After(10 * time.Second):
		logger.Warn("shutdown timed out after 10s, forcing exit")
	}

	return nil
}

// applyConfigOverrides overlays saved /api/config values onto the engine
// config, matching how the original daemon let DB config shadow the file.
func applyConfigOverrides(cfg *config.Config, st *store.Store, logger *slog.Logger) {
	values, err := st.ConfigValues()
	if err != nil {
		logger.Warn("could not load config overrides", "error", err)
		return
	}

	if v := values["model"]; v != "" {
		cfg.Engine.Model = v
	}
	if v := values["base_url"]; v != "" {
		cfg.Engine.BaseURL = v
	}
	if v := values["temperature"]; v != "" {
		if t, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Engine.Temperature = t
		}
	}
}

// skillPrompt builds the system prompt from enabled skills, re-read on
// every turn so edits through the API apply immediately.
func skillPrompt(st *store.Store, logger *slog.Logger) func() string {
	return func() string {
		skills, err := st.ListSkills()
		if err != nil {
			logger.Warn("could not load skills for prompt", "error", err)
			return ""
		}

		var b strings.Builder
		for _, sk := range skills {
			if !sk.Enabled || sk.Content == "" {
				continue
			}
			if b.Len() > 0 {
				b.WriteString("\n\n")
			}
			b.WriteString(sk.Content)
		}
		return b.String()
	}
}
