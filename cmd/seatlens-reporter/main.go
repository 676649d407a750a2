package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/seatlens/seatlens/pkg/analytics"
	"github.com/seatlens/seatlens/pkg/async"
	"github.com/seatlens/seatlens/pkg/config"
	"github.com/seatlens/seatlens/pkg/directory"
	"github.com/seatlens/seatlens/pkg/licensing"
	"github.com/seatlens/seatlens/pkg/observability"
	"github.com/seatlens/seatlens/pkg/snapshot"
)

var version = "dev"

var runOnce = flag.Bool("run-once", false, "Publish every snapshot window once and exit")

// reporter publishes summary snapshots and refreshes the seat gauges
type reporter struct {
	publisher *snapshot.Publisher
	licenses  *licensing.Service
	windows   []int
	timeout   time.Duration
	logger    *observability.Logger
}

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if !cfg.Snapshot.Enabled {
		log.Fatalf("Snapshots are disabled; set SEATLENS_REDIS_URL to run the reporter")
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("Reporter stopped with an error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	metrics := observability.NewMetrics(registry)

	creds := directory.NewCredentials(ctx, directory.CredentialsConfig{
		ClientID:     cfg.Directory.ClientID,
		ClientSecret: cfg.Directory.ClientSecret,
		TokenURL:     cfg.Directory.TokenURL,
		Scopes:       cfg.Directory.Scopes,
	})
	graphHTTP := creds.HTTPClient(cfg.Directory.RequestTimeout)
	graph := directory.NewClient(graphHTTP, directory.Config{
		BaseURL:           cfg.Directory.GraphBaseURL,
		RequestsPerSecond: cfg.Directory.RequestsPerSecond,
	}, logger, metrics)
	feed := analytics.NewFeedFetcher(graphHTTP, analytics.FeedConfig{
		URL:               cfg.Feed.URL,
		RequestsPerSecond: cfg.Feed.RequestsPerSecond,
	}, logger, metrics)
	usage := analytics.NewService(graph, feed, analytics.Config{
		LicenseSKU:     cfg.Directory.LicenseSKU,
		MaxConcurrency: cfg.Analytics.MaxConcurrency,
		FetchTimeout:   cfg.Analytics.FetchTimeout,
	}, logger, metrics)

	redisClient, err := snapshot.Connect(ctx, cfg.Snapshot.RedisURL)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	store := snapshot.NewStore(redisClient, cfg.Snapshot.TTL, metrics)
	rep := &reporter{
		publisher: snapshot.NewPublisher(usage, store, logger, metrics),
		licenses:  licensing.NewService(graph, cfg.Directory.LicenseSKU, logger, metrics),
		windows:   cfg.Snapshot.Days,
		// Each window walks the directory once
		timeout: cfg.Analytics.FetchTimeout*time.Duration(len(cfg.Snapshot.Days)) + time.Minute,
		logger:  logger,
	}

	if *runOnce {
		return rep.runJob(ctx)
	}

	cronLogger := cron.PrintfLogger(log.New(logger.Writer(), "cron: ", 0))
	c := cron.New(cron.WithChain(
		cron.Recover(cronLogger),
		cron.SkipIfStillRunning(cronLogger),
	))
	if _, err := c.AddFunc(cfg.Snapshot.Schedule, func() {
		defer observability.RecoverPanic(logger, "snapshot job")
		if err := rep.runJob(ctx); err != nil {
			logger.WithError(err).Error("Snapshot job failed")
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule snapshot job %q: %w", cfg.Snapshot.Schedule, err)
	}

	// Metrics and health for the scraper
	checker := observability.NewHealthChecker(redisClient, version)
	checker.AddCheck("directory_token", true, creds.CheckToken)
	router := mux.NewRouter()
	observability.RegisterHealthRoutes(router, checker)
	observability.RegisterMetricsEndpoint(router, registry)
	healthServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, healthServer)
	shutdown.RegisterShutdownFunc("cron", func(ctx context.Context) error {
		stopped := c.Stop()
		select {
		case <-stopped.Done():
			return nil
		case <-ctx.Done():
			return fmt.Errorf("waiting for running snapshot job: %w", ctx.Err())
		}
	})

	c.Start()
	logger.WithFields(map[string]interface{}{
		"schedule":    cfg.Snapshot.Schedule,
		"windows":     cfg.Snapshot.Days,
		"health_addr": healthServer.Addr,
	}).Info("Seatlens reporter started")

	// First snapshot without waiting for the schedule
	async.SafeGo(ctx, logger, rep.timeout, "initial snapshot job", rep.runJob)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving %s: %w", healthServer.Addr, err)
		}
		return nil
	})
	g.Go(func() error {
		err := shutdown.WaitForShutdown(gctx)
		cancel()
		return err
	})
	return g.Wait()
}

// runJob publishes every window, then refreshes the seat gauges
func (r *reporter) runJob(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	err := r.publisher.PublishAll(ctx, r.windows)

	if _, countErr := r.licenses.GetLicenseCounts(ctx); countErr != nil {
		err = errors.Join(err, fmt.Errorf("refreshing license counts: %w", countErr))
	}

	r.logger.WithFields(map[string]interface{}{
		"windows":     r.windows,
		"duration_ms": time.Since(start).Milliseconds(),
		"failed":      err != nil,
	}).Info("Snapshot job finished")
	return err
}
