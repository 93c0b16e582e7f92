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

	"github.com/lysyi3m/rss-scout/app/api"
	"github.com/lysyi3m/rss-scout/app/cfg"
	"github.com/lysyi3m/rss-scout/app/database"
	"github.com/lysyi3m/rss-scout/app/feed"
	"github.com/lysyi3m/rss-scout/app/metrics"
	"github.com/lysyi3m/rss-scout/app/monitor"
	"github.com/lysyi3m/rss-scout/app/pipeline"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	appCfg, err := cfg.Load()
	if err != nil {
		return err
	}
	if appCfg == nil {
		// Help was shown
		return nil
	}

	level := slog.LevelInfo
	if appCfg.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	slog.Info("Starting RSS Scout", "version", appCfg.Version, "timezone", appCfg.Location)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		return err
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "migration_version", version, "dirty", dirty)

	httpClient := &http.Client{}
	fetcher := feed.NewFetcher(httpClient, appCfg.UserAgent, appCfg.FetchTimeout, appCfg.FetchSpacing)

	registry := feed.NewRegistry(fetcher, database.NewFeedRepository(db))
	if err := registry.Restore(); err != nil {
		return err
	}

	seeded, err := feed.SeedRegistry(feed.NewSeedLoader(appCfg.FeedsDir), registry)
	if err != nil {
		return fmt.Errorf("failed to seed feeds: %w", err)
	}
	slog.Info("Feeds loaded", "total", len(registry.GetFeeds()), "seeded", seeded)

	contentPipeline, closePipeline, err := buildPipeline(appCfg, httpClient)
	if err != nil {
		return err
	}
	defer closePipeline()

	metrics.MustRegister(prometheus.DefaultRegisterer)

	parser := feed.NewParser(fetcher, feed.NewFilterer(), appCfg.MaxItems)
	mon := monitor.NewMonitor(registry, parser, feed.NewScorer(), contentPipeline, monitor.Config{
		TickInterval:   appCfg.TickInterval,
		ScoreThreshold: appCfg.ScoreThreshold,
		DailyCap:       appCfg.DailyCap,
		MaxItemAge:     appCfg.MaxItemAge,
		Location:       appCfg.Location,
	})
	mon.Start()
	defer mon.Stop()

	handler := api.NewHandler(registry, mon, appCfg.Version)
	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      api.NewServer(handler, appCfg.APIAccessKey),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig)
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	return nil
}

// buildPipeline assembles the content pipeline chain from configuration.
func buildPipeline(appCfg *cfg.Cfg, httpClient *http.Client) (pipeline.Pipeline, func(), error) {
	var p pipeline.Pipeline = pipeline.LogOnly{}
	if appCfg.PipelineURL != "" {
		p = pipeline.NewHTTPClient(appCfg.PipelineURL, httpClient, appCfg.UserAgent, 0)
		slog.Info("Content pipeline configured", "url", appCfg.PipelineURL)
	} else {
		slog.Warn("PIPELINE_URL not set, accepted items are only logged")
	}

	if appCfg.ExtractContent {
		pageFetcher := feed.NewPageFetcher(httpClient, appCfg.UserAgent, appCfg.FetchTimeout, appCfg.FetchSpacing)
		p = pipeline.NewExtracting(p, pageFetcher, feed.NewContentExtractor())
	}

	if appCfg.RedisAddr == "" {
		return p, func() {}, nil
	}

	client, err := pipeline.NewRedisClient(appCfg.RedisAddr)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("Durable link dedup enabled", "redis", appCfg.RedisAddr, "ttl", appCfg.DedupTTL)

	return pipeline.NewDurableGuard(p, client, appCfg.DedupTTL), func() { client.Close() }, nil
}
