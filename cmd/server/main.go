package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/devfeeds/bsky-keyword-feed/internal/config"
	"github.com/devfeeds/bsky-keyword-feed/internal/domain"
	"github.com/devfeeds/bsky-keyword-feed/internal/firehose"
	"github.com/devfeeds/bsky-keyword-feed/internal/httpserver"
	"github.com/devfeeds/bsky-keyword-feed/internal/sqlite"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := sqlite.Open(cfg.DatabasePath, cfg.FeedLimit)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()
	logger.Info("opened post store", "path", cfg.DatabasePath, "limit", cfg.FeedLimit)

	matcher, err := domain.NewMatcher(cfg.Lang, cfg.Keywords, cfg.Blocklist)
	if err != nil {
		return fmt.Errorf("build matcher: %w", err)
	}

	feedService := domain.NewFeedService(cfg.FeedURI(), matcher, store, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// The firehose subscriber runs for the lifetime of the process,
	// independent of any HTTP request.
	subscriber := firehose.NewSubscriber(cfg.FirehoseURL, feedService, cfg.ReconnectDelay, logger)
	go func() {
		if err := subscriber.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("firehose subscriber exited with error", "error", err)
		}
	}()

	server := httpserver.NewServer(cfg, feedService, logger)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server exited with error", "error", err)
		}
	}()

	logger.Info("server started", "port", cfg.Port, "hostname", cfg.Hostname, "feed", cfg.FeedURI())

	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)
	cancel()

	if err := server.Shutdown(context.Background()); err != nil {
		logger.Error("error shutting down http server", "error", err)
	}

	return nil
}
