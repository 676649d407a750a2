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

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/seatlens/seatlens/pkg/analytics"
	"github.com/seatlens/seatlens/pkg/api"
	"github.com/seatlens/seatlens/pkg/config"
	"github.com/seatlens/seatlens/pkg/directory"
	"github.com/seatlens/seatlens/pkg/licensing"
	"github.com/seatlens/seatlens/pkg/middleware"
	"github.com/seatlens/seatlens/pkg/observability"
	"github.com/seatlens/seatlens/pkg/snapshot"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "Print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Observability.OTelServiceVersion == "" {
		cfg.Observability.OTelServiceVersion = version
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("seatlens stopped with an error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
		SampleRatio:    cfg.Observability.OTelSampleRatio,
	}, logger)
	if err != nil {
		return fmt.Errorf("initializing OpenTelemetry: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)

	// Directory access
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
		LookupCacheSize:   cfg.Directory.LookupCacheSize,
		LookupCacheTTL:    cfg.Directory.LookupCacheTTL,
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
	licenses := licensing.NewService(graph, cfg.Directory.LicenseSKU, logger, metrics)

	var opts []api.Option
	if cfg.Observability.MetricsEnabled {
		opts = append(opts, api.WithMetrics(metrics))
	}
	if cfg.Directory.GroupID != "" {
		opts = append(opts, api.WithGroups(licensing.NewGroupService(graph, cfg.Directory.GroupID, logger)))
	}

	auth, err := newAuthenticator(ctx, cfg.Auth, logger)
	if err != nil {
		return err
	}
	if auth != nil {
		opts = append(opts, api.WithAuthenticator(auth))
	}

	var redisClient *redis.Client
	if cfg.Snapshot.Enabled {
		redisClient, err = snapshot.Connect(ctx, cfg.Snapshot.RedisURL)
		if err != nil {
			logger.WithError(err).Warn("Snapshot store unavailable, latest summaries will not be served")
		} else {
			opts = append(opts, api.WithSnapshots(snapshot.NewStore(redisClient, cfg.Snapshot.TTL, metrics)))
		}
	}

	server := api.NewServer(api.Config{
		DefaultDays: cfg.Analytics.DefaultDays,
		DefaultTop:  cfg.Analytics.DefaultTop,
		CORSOrigins: cfg.Server.CORSOrigins,
	}, usage, licenses, logger, opts...)

	httpServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ErrorLog:     log.New(logger.Writer(), "", 0),
	}

	// Health and metrics on their own port
	checker := observability.NewHealthChecker(redisClient, version)
	checker.AddCheck("directory_token", true, creds.CheckToken)
	healthRouter := mux.NewRouter()
	observability.RegisterHealthRoutes(healthRouter, checker)
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthRouter, registry)
	}
	healthServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:      healthRouter,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, httpServer, healthServer)
	shutdown.RegisterShutdownFunc("otel", func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, providers, logger)
	})
	if redisClient != nil {
		shutdown.RegisterShutdownFunc("redis", func(context.Context) error {
			return redisClient.Close()
		})
	}

	logger.WithFields(map[string]interface{}{
		"version":     version,
		"addr":        httpServer.Addr,
		"health_addr": healthServer.Addr,
		"sku":         cfg.Directory.LicenseSKU,
		"snapshots":   redisClient != nil,
	}).Info("Starting seatlens")

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range []*http.Server{httpServer, healthServer} {
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serving %s: %w", srv.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		return shutdown.WaitForShutdown(gctx)
	})
	return g.Wait()
}

// newAuthenticator builds the API guard. It returns nil when authentication
// is disabled.
func newAuthenticator(ctx context.Context, cfg config.AuthConfig, logger *observability.Logger) (*middleware.Authenticator, error) {
	if cfg.Disabled {
		logger.Warn("API authentication is disabled")
		return nil, nil
	}

	var verifier middleware.TokenVerifier
	if cfg.OIDCIssuer != "" {
		v, err := middleware.NewOIDCVerifier(ctx, cfg.OIDCIssuer, cfg.OIDCAudience)
		if err != nil {
			return nil, err
		}
		verifier = v
	}
	return middleware.NewAuthenticator(verifier, cfg.APIKeys), nil
}
