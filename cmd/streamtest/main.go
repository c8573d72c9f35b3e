// streamtest connects to the market-data push feed for one symbol and prints
// normalized ticks to the console until interrupted or the stream fails.
// Usage: go run ./cmd/streamtest --symbol AAPL [--subscribe]
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
	"github.com/rickgao/marketwatch/internal/model"
	"github.com/rickgao/marketwatch/internal/stream"
	"github.com/rickgao/marketwatch/internal/subscription"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults when empty)")
	symbol := flag.String("symbol", "AAPL", "symbol to stream")
	subscribe := flag.Bool("subscribe", true, "subscribe via the REST API before connecting")
	verbose := flag.Bool("verbose", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	_ = godotenv.Load()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadWithDefaults(*configPath)
		if err != nil {
			logger.Error("failed to load config", "error", err)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	sym := strings.ToUpper(*symbol)

	if *subscribe {
		client := api.NewClient(cfg.API.RestURL, cfg.API.APIKey, api.WithLogger(logger))
		gate := subscription.NewGate(client, logger)
		if err := gate.EnsureSubscribed(ctx, sym); err != nil {
			logger.Error("subscribe failed", "symbol", sym, "error", err)
			os.Exit(1)
		}
	}

	dialer := stream.NewDialer(stream.Config{
		URL:          cfg.API.StreamURL,
		APIKey:       cfg.API.APIKey,
		PingInterval: cfg.Stream.PingInterval,
		PingTimeout:  cfg.Stream.PingTimeout,
		WriteTimeout: cfg.Stream.WriteTimeout,
	}, logger)

	failed := make(chan error, 1)
	conn, err := dialer.Open(ctx, sym,
		func(t model.Tick) {
			fmt.Printf("%s  %-8s  price=%-12s volume=%s\n",
				t.Timestamp.Format(time.RFC3339Nano), t.Symbol, optional(t.Price), optional(t.Volume))
		},
		func(err error) {
			failed <- err
		},
	)
	if err != nil {
		logger.Error("failed to open stream", "url", cfg.API.StreamURL, "error", err)
		os.Exit(1)
	}

	logger.Info("streaming", "symbol", sym, "url", cfg.API.StreamURL)

	statsTicker := time.NewTicker(30 * time.Second)
	defer statsTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close()
			printStats(logger, conn.Stats())
			return
		case err := <-failed:
			logger.Error("stream failed", "error", err)
			printStats(logger, conn.Stats())
			os.Exit(1)
		case <-statsTicker.C:
			printStats(logger, conn.Stats())
		}
	}
}

type stringer interface{ String() string }

func optional[T stringer](v *T) string {
	if v == nil {
		return "-"
	}
	return (*v).String()
}

func printStats(logger *slog.Logger, s stream.Stats) {
	logger.Info("stream stats",
		"frames", s.Frames,
		"ticks", s.Ticks,
		"filtered", s.Filtered,
		"malformed", s.Malformed,
	)
}
