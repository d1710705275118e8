// Package main provides the CLI entry point for the Kestrel Slack bot.
//
// Kestrel routes Slack channel messages and slash commands to LLM
// providers (Anthropic, OpenAI, Bedrock), optionally enriching the
// system prompt with live data such as weather and RSS feeds.
//
// # Basic Usage
//
// Start the bot:
//
//	kestrel serve --config kestrel.yaml
//
// Validate a configuration file without connecting:
//
//	kestrel validate --config kestrel.yaml
//
// # Environment Variables
//
//   - SLACK_BOT_TOKEN: Slack bot OAuth token (xoxb-)
//   - SLACK_APP_TOKEN: Slack app-level token for Socket Mode (xapp-)
//
// API keys inside the config file may reference environment variables
// with ${VAR} syntax.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/kestrelhq/kestrel/internal/bot"
	"github.com/kestrelhq/kestrel/internal/config"
	"github.com/kestrelhq/kestrel/internal/llm"
	"github.com/kestrelhq/kestrel/internal/observability"
	"github.com/kestrelhq/kestrel/internal/slackbridge"
)

// Build information, populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "kestrel",
		Short:        "Kestrel - Slack LLM relay bot",
		Long:         "Kestrel relays Slack messages and slash commands to LLM providers,\nwith per-channel rules, data enrichment tools, and input safety checks.",
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildServeCmd(),
		buildValidateCmd(),
	)
	return rootCmd
}

func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the bot",
		Long: `Start the bot with all configured channel and command rules.

The bot will:
1. Load and validate configuration from the specified file
2. Connect to Slack via Socket Mode
3. Route matching messages and slash commands to LLM providers

Graceful shutdown is handled on SIGINT/SIGTERM signals.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "kestrel.yaml", "Path to YAML configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

func buildValidateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration OK: %d channel rule(s), %d command rule(s)\n",
				len(cfg.Channels), len(cfg.Commands))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "kestrel.yaml", "Path to YAML configuration file")
	return cmd
}

func runServe(ctx context.Context, configPath string, debug bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	level := logLevel(cfg.Settings.LogLevel)
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	botToken := os.Getenv("SLACK_BOT_TOKEN")
	appToken := os.Getenv("SLACK_APP_TOKEN")
	if botToken == "" || appToken == "" {
		return errors.New("SLACK_BOT_TOKEN and SLACK_APP_TOKEN must be set")
	}

	logger.Info("starting kestrel",
		"version", version,
		"config", configPath,
		"channels", len(cfg.Channels),
		"commands", len(cfg.Commands),
	)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.New(registry)

	if cfg.Settings.MetricsPort > 0 {
		go serveMetrics(ctx, cfg.Settings.MetricsPort, registry, logger)
	}

	bridge := slackbridge.New(botToken, appToken, logger)
	botUserID, err := bridge.Authenticate(ctx)
	if err != nil {
		return err
	}

	handler, err := bot.New(bot.Options{
		Config:    cfg,
		Providers: llm.NewCache(),
		Metrics:   metrics,
		Logger:    logger,
		BotUserID: botUserID,
	})
	if err != nil {
		return fmt.Errorf("failed to build handler: %w", err)
	}

	err = bridge.Run(ctx, handler)
	if errors.Is(err, context.Canceled) {
		logger.Info("shutting down")
		return nil
	}
	return err
}

func serveMetrics(ctx context.Context, port int, registry *prometheus.Registry, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics server listening", "port", port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server failed", "error", err)
	}
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
