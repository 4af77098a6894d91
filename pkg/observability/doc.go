// Package observability provides structured logging, Prometheus metrics, health
// checks and OpenTelemetry tracing.
//
// # Structured Logging
//
// The Logger wraps logrus and writes JSON lines by default:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("account", "alice").Info("user created")
//
// WithContext attaches the request id, the request account and the active
// trace/span ids:
//
//	logger.WithContext(r.Context()).WithError(err).Warn("cache commit failed")
//
// # Prometheus Metrics
//
//	metrics := observability.NewMetrics(registry)
//	metrics.RecordLookup("store", observability.StatusSuccess)
//	metrics.RecordLogin(observability.StatusSuccess)
//
// All Record methods are safe on a nil *Metrics.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient, version)
//	observability.RegisterHealthRoutes(mux, checker)
//
// The database is required for readiness; a Redis outage reports "degraded".
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "couchuser",
//	}, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
//
// # Related Packages
//
//   - pkg/config: Observability configuration
//   - pkg/httputil: Request logging middleware
package observability
