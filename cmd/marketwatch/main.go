package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/rickgao/marketwatch/internal/api"
	"github.com/rickgao/marketwatch/internal/config"
	"github.com/rickgao/marketwatch/internal/controller"
	"github.com/rickgao/marketwatch/internal/model"
	"github.com/rickgao/marketwatch/internal/quote"
	"github.com/rickgao/marketwatch/internal/server"
	"github.com/rickgao/marketwatch/internal/session"
	"github.com/rickgao/marketwatch/internal/stream"
	"github.com/rickgao/marketwatch/internal/subscription"
	"github.com/rickgao/marketwatch/internal/tracing"
	"github.com/rickgao/marketwatch/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/marketwatch.local.yaml", "path to config file")
	symbol := flag.String("symbol", "", "symbol to view on startup (optional)")
	flag.Parse()

	// .env is optional; variables already set in the environment win.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	// Load configuration; an empty path runs on defaults.
	var cfg *config.Config
	var err error
	if *configPath == "" {
		cfg = config.Default()
		err = cfg.Validate()
	} else {
		cfg, err = config.LoadAndValidate(*configPath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Set up structured logging
	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	logger.Info("starting marketwatch",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)
	logger.Info("configuration loaded",
		"api_url", cfg.API.RestURL,
		"stream_url", cfg.API.StreamURL,
		"session_source", cfg.Session.Source,
		"recheck_interval", cfg.Session.RecheckInterval,
	)

	if err := tracing.Init(cfg.Tracing.Enabled, cfg.Tracing.ServiceName); err != nil {
		logger.Error("failed to init tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		tracing.Shutdown(shutdownCtx)
	}()

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Create API client
	apiClient := api.NewClient(
		cfg.API.RestURL,
		cfg.API.APIKey,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, cfg.API.RetryBackoff),
	)

	var probe session.Probe
	switch cfg.Session.Source {
	case config.SourceCalendar:
		probe = session.NewCalendarProbe(logger)
	default:
		probe = session.NewAPIProbe(apiClient, cfg.Session.ProbeTimeout, logger)
	}

	dialer := stream.NewDialer(stream.Config{
		URL:          cfg.API.StreamURL,
		APIKey:       cfg.API.APIKey,
		PingInterval: cfg.Stream.PingInterval,
		PingTimeout:  cfg.Stream.PingTimeout,
		WriteTimeout: cfg.Stream.WriteTimeout,
	}, logger)

	hub := server.NewHub(logger)

	ctrl, err := controller.New(
		controller.Config{
			RecheckInterval: cfg.Session.RecheckInterval,
			HistorySize:     cfg.History.Size,
		},
		controller.Deps{
			Probe:  probe,
			Gate:   subscription.NewGate(apiClient, logger, subscription.WithTimeout(cfg.API.Timeout)),
			Poller: quote.NewPoller(quote.Config{Timeout: cfg.API.Timeout}, apiClient, logger),
			Stream: controller.DialerOpener(dialer),
		},
		logger,
		controller.WithObserver(hub.Publish),
	)
	if err != nil {
		logger.Error("failed to create controller", "error", err)
		os.Exit(1)
	}

	if err := ctrl.Start(ctx); err != nil {
		logger.Error("failed to start controller", "error", err)
		os.Exit(1)
	}

	srv := server.New(server.Config{
		Port: cfg.Server.Port,
		Mode: cfg.Server.Mode,
	}, ctrl, apiClient, hub, logger)

	if err := srv.Start(ctx); err != nil {
		logger.Error("failed to start server", "error", err)
		os.Exit(1)
	}

	if *symbol != "" {
		inst := model.Instrument{Symbol: strings.ToUpper(*symbol)}
		if err := ctrl.ViewSymbol(ctx, inst); err != nil {
			logger.Error("failed to view initial symbol", "symbol", inst.Symbol, "error", err)
		}
	}

	logger.Info("marketwatch running",
		"url", fmt.Sprintf("http://localhost:%d", cfg.Server.Port),
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Warn("server shutdown", "error", err)
	}
	if err := ctrl.Stop(shutdownCtx); err != nil {
		logger.Warn("controller shutdown", "error", err)
	}

	logger.Info("marketwatch stopped")
}

// newLogger builds the slog handler described by cfg.
func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
