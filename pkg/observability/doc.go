// Package observability provides structured logging, Prometheus metrics, and health probes.
//
// # Overview
//
// This package centralizes observability infrastructure: JSON logging, metrics
// collection, liveness/readiness probes, panic recovery, and graceful shutdown.
//
// # Logging
//
// Structured JSON logging built on log/slog:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("shop", shop.Domain).Info("collaboration enabled")
//
// Loggers are context-aware; FromContext attaches the request ID and actor
// identity. Secrets and token material must never be passed as fields.
//
// # Metrics
//
// Prometheus counters, histograms, and gauges for HTTP traffic, auth exchange
// outcomes, rate-limit decisions, webhook verifications, and collaboration
// operations:
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.AuthExchangesTotal.WithLabelValues("success").Inc()
//
// # Health Checks
//
// Liveness and readiness probes served on a dedicated port, checking
// PostgreSQL and Redis:
//
//	checker := observability.NewHealthChecker(db, redisClient)
//	observability.RegisterHealthRoutes(mux, checker)
//
// # Graceful Shutdown
//
// ShutdownManager coordinates SIGINT/SIGTERM handling, HTTP server drain, and
// registered cleanup functions with a bounded timeout.
//
// # Related Packages
//
//   - pkg/api: HTTP middleware wiring
//   - pkg/config: log level and metrics settings
package observability
