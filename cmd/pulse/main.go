package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pulse-lab/project-pulse/internal/aggregation"
	"github.com/pulse-lab/project-pulse/internal/config"
	"github.com/pulse-lab/project-pulse/internal/core/storage/postgres"
	"github.com/pulse-lab/project-pulse/internal/ingestion"
	"github.com/pulse-lab/project-pulse/internal/migrations"
	"github.com/pulse-lab/project-pulse/internal/projection"
	"github.com/pulse-lab/project-pulse/internal/server"
)

func main() {
	configPath := flag.String("config", "pulse.yaml", "Path to configuration file")
	flag.Parse()

	// 0. Initialize Logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 1. Load Configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	cronInterval, err := time.ParseDuration(cfg.Aggregation.CronInterval)
	if err != nil {
		slog.Error("Invalid aggregation interval", "value", cfg.Aggregation.CronInterval, "error", err)
		os.Exit(1)
	}

	// 2. Initialize Storage (PostgreSQL)
	eventStore, err := postgres.NewAdapter(
		cfg.Database.DSN,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
	)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer eventStore.Close()

	// 2.1. Run Database Migrations
	if err := migrations.Run(eventStore.DB(), cfg.Database.AutoMigrate); err != nil {
		slog.Error("Failed to run database migrations", "error", err)
		os.Exit(1)
	}

	aggStore := postgres.NewAggregateAdapter(eventStore.DB())
	checkpoints := postgres.NewCheckpointAdapter(eventStore.DB())
	resolver := postgres.NewGroupsAdapter(eventStore.DB())

	// 3. Initialize Aggregation (cron-based batch processing)
	tracked, err := aggregation.LoadTrackedIntervals(cfg.Aggregation.ConfigDir)
	if err != nil {
		slog.Error("Failed to load tracked intervals", "dir", cfg.Aggregation.ConfigDir, "error", err)
		os.Exit(1)
	}

	dispatcher := aggregation.NewDispatcher()
	activity := aggregation.NewActivityAggregator(aggStore, logger)
	if err := dispatcher.Register(aggregation.EventTypeActivity, activity); err != nil {
		slog.Error("Failed to register aggregator", "error", err)
		os.Exit(1)
	}

	runner := aggregation.NewRunner(
		eventStore,
		aggStore,
		checkpoints,
		resolver,
		dispatcher,
		aggregation.RunnerConfig{
			BatchSize: cfg.Aggregation.BatchSize,
			Tracked:   tracked,
		},
		logger,
	)
	scheduler := aggregation.NewScheduler(cronInterval, runner, logger)

	slog.Info("Aggregation scheduler initialized",
		"interval", cronInterval,
		"enabled", cfg.Aggregation.Enabled,
		"tracked_intervals", len(tracked),
		"batch_size", cfg.Aggregation.BatchSize,
	)

	// 4. Initialize Ingestion and Projection services
	ingestionSvc := ingestion.NewService(eventStore, resolver, cfg.Server.MaxBodySizeMB)
	projectionSvc := projection.NewService(aggStore)

	// 5. Initialize Server
	srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), eventStore.DB(), cfg.Server.Mode, logger)
	ingestionSvc.RegisterRoutes(srv.Engine)
	projectionSvc.RegisterRoutes(srv.Engine)

	// 6. Start Services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Signal handler triggers the shutdown sequence below.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Aggregation.Enabled {
		g.Go(func() error {
			return scheduler.Start(gctx)
		})
	} else {
		slog.Info("Aggregation scheduler disabled by config")
	}

	g.Go(func() error {
		return srv.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("Service stopped with error", "error", err)
	}

	slog.Info("Shutdown complete")
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
