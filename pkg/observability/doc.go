// Package observability provides structured logging, Prometheus metrics, health checks
// and OpenTelemetry tracing.
//
// # Structured Logging
//
// Logger wraps logrus and writes one JSON object per line:
//
//	logger := observability.NewLogger(observability.ParseLogLevel(cfg.LogLevel), os.Stdout)
//	logger.WithField("days", 30).Info("Publishing usage snapshot")
//
// Request-scoped loggers carry the request id and authenticated principal:
//
//	observability.FromContext(r.Context()).WithError(err).Error("Query failed")
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.ActiveUsers.WithLabelValues("30").Set(float64(summary.ActiveUsers))
//
// HTTPMetricsMiddleware labels requests by mux route template.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(redisClient, version)
//	checker.AddCheck("directory_token", true, graph.CheckToken)
//
// Redis failures degrade the service; failing critical checks make it unhealthy.
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "seatlens",
//	}, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
//
// # Related Packages
//
//   - pkg/config: Observability configuration
//   - pkg/httputil: Request ID and logging middleware
package observability
