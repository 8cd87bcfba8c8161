package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/narissarah/wishcraft-sub004/pkg/activity"
	"github.com/narissarah/wishcraft-sub004/pkg/api"
	"github.com/narissarah/wishcraft-sub004/pkg/auth"
	"github.com/narissarah/wishcraft-sub004/pkg/collaboration"
	"github.com/narissarah/wishcraft-sub004/pkg/config"
	"github.com/narissarah/wishcraft-sub004/pkg/crypto"
	"github.com/narissarah/wishcraft-sub004/pkg/observability"
	"github.com/narissarah/wishcraft-sub004/pkg/permissions"
	"github.com/narissarah/wishcraft-sub004/pkg/ratelimit"
	"github.com/narissarah/wishcraft-sub004/pkg/registry"
	"github.com/narissarah/wishcraft-sub004/pkg/storage"
	"github.com/narissarah/wishcraft-sub004/pkg/webhooks"
)

const (
	permissionCacheSize = 4096
	permissionCacheTTL  = time.Minute
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.ParsedLogLevel(), os.Stdout)
	logger.Infof("Starting WishCraft collaboration core (version %s)", observability.Version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	promRegistry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(promRegistry)
	}

	// PostgreSQL is the system of record; refuse to start without it.
	db, err := storage.ConnectPostgres(ctx, storage.PostgresOptions{
		URL:      cfg.Database.URL,
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
		Timeout:  cfg.Database.Timeout.Std(),
	})
	if err != nil {
		logger.WithError(err).Error("Failed to connect to PostgreSQL")
		os.Exit(1)
	}

	registryStore := registry.NewStore(db)
	if err := registryStore.EnsureSchema(ctx); err != nil {
		logger.WithError(err).Error("Failed to ensure registry schema")
		os.Exit(1)
	}

	// Redis backs exchange state, session revocation, and the rate-limit
	// guard across instances. Without it the in-process fallbacks apply,
	// which only hold for a single replica.
	var (
		redisClient *redis.Client
		exchanges   auth.ExchangeStore
		revoked     auth.RevocationList
		guard       ratelimit.Guard
	)
	policy := ratelimit.Policy{
		MaxAttempts: cfg.RateLimit.MaxAttempts,
		Window:      cfg.RateLimit.Window.Std(),
		BaseDelay:   cfg.RateLimit.BaseDelay.Std(),
		MaxDelay:    cfg.RateLimit.MaxDelay.Std(),
	}
	if cfg.Redis.Enabled() {
		redisClient, err = storage.ConnectRedis(ctx, storage.RedisOptions{
			URL:      cfg.Redis.URL,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			logger.WithError(err).Error("Failed to connect to Redis")
			os.Exit(1)
		}
		exchanges = auth.NewRedisExchangeStore(redisClient, "")
		revoked = auth.NewRedisRevocationList(redisClient, "")
		guard = ratelimit.NewRedisGuard(redisClient, policy, "")
		logger.Info("Redis connected: distributed exchange, revocation, and rate-limit stores")
	} else {
		exchanges = auth.NewMemoryExchangeStore()
		revoked = auth.NewMemoryRevocationList()
		memGuard := ratelimit.NewMemoryGuard(policy)
		memGuard.StartCleanup(ctx)
		guard = memGuard
		logger.Warn("Redis not configured: using in-process stores (single instance only)")
	}

	// Purpose-bound keys: session payloads and PII columns never share a key.
	sessionCipher, err := newDerivedCipher(cfg, "session")
	if err != nil {
		logger.WithError(err).Error("Failed to derive session key")
		os.Exit(1)
	}
	piiCipher, err := newDerivedCipher(cfg, "pii")
	if err != nil {
		logger.WithError(err).Error("Failed to derive PII key")
		os.Exit(1)
	}

	sessions, err := auth.NewSessionManager(auth.ManagerConfig{
		ClientID:     cfg.Auth.ClientID,
		ClientSecret: cfg.Auth.ClientSecret,
		RedirectURL:  cfg.Auth.RedirectURL,
		Scopes:       cfg.Auth.Scopes,
		ExchangeTTL:  cfg.Auth.ExchangeTTL.Std(),
		SessionTTL:   cfg.Auth.SessionTTL.Std(),
	}, sessionCipher, exchanges, revoked)
	if err != nil {
		logger.WithError(err).Error("Failed to create session manager")
		os.Exit(1)
	}

	collabStore := collaboration.NewStore(db, piiCipher)
	if err := collabStore.EnsureSchema(ctx); err != nil {
		logger.WithError(err).Error("Failed to ensure collaborator schema")
		os.Exit(1)
	}
	resolver := permissions.NewResolver(collabStore, permissionCacheSize, permissionCacheTTL)

	dbActivities, err := activity.NewDBLogger(db)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize activity log")
		os.Exit(1)
	}
	var activities activity.Logger = dbActivities
	if metrics != nil {
		activities = activity.NewInstrumentedLogger(dbActivities, func(action activity.Action) {
			metrics.ActivityRecordsTotal.WithLabelValues(string(action)).Inc()
		})
	}

	var notifier collaboration.Notifier
	var dispatcher *webhooks.Dispatcher
	if cfg.Webhooks.SinkURL != "" {
		dispatcherConfig := webhooks.DispatcherConfig{
			SinkURL: cfg.Webhooks.SinkURL,
			Secret:  cfg.Webhooks.SinkSecret,
			Logger:  logger,
		}
		if metrics != nil {
			dispatcherConfig.OnDelivery = func(status webhooks.DeliveryStatus) {
				metrics.NotificationDeliveriesTotal.WithLabelValues(string(status)).Inc()
			}
		}
		dispatcher, err = webhooks.NewDispatcher(dispatcherConfig)
		if err != nil {
			logger.WithError(err).Error("Failed to create notification dispatcher")
			os.Exit(1)
		}
		dispatcher.StartRetryWorker(ctx)
		notifier = dispatcher
	} else {
		logger.Warn("No notification sink configured: collaboration notifications disabled")
	}

	manager := collaboration.NewManager(registryStore, collabStore, resolver, activities, notifier)

	janitor, err := collaboration.NewJanitor(manager, exchanges, cfg.Collaboration.CleanupSchedule, slog.Default())
	if err != nil {
		logger.WithError(err).Error("Failed to schedule cleanup")
		os.Exit(1)
	}
	if metrics != nil {
		janitor.OnExpired = func(count int64) {
			metrics.InvitationsExpiredTotal.Add(float64(count))
		}
	}
	janitor.Start()

	apiConfig := api.Config{
		Sessions:      sessions,
		Collaboration: manager,
		Shops:         registryStore,
		Registries:    registryStore,
		WebhookSecret: cfg.Webhooks.PlatformSecret,
		AuthGuard:     guard,
		AuthPolicy:    policy,
	}
	if cfg.Auth.OIDCIssuerURL != "" {
		operators, err := auth.NewOperatorVerifier(ctx, auth.OIDCConfig{
			IssuerURL: cfg.Auth.OIDCIssuerURL,
			ClientID:  cfg.Auth.OIDCClientID,
		})
		if err != nil {
			logger.WithError(err).Error("Failed to initialize operator SSO verifier")
			os.Exit(1)
		}
		apiConfig.Operators = operators
	}

	if metrics != nil {
		apiConfig.Metrics = metrics
		go pollConnectionGauges(ctx, metrics, db, redisClient)
	}

	server := api.NewServer(apiConfig)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
		IdleTimeout:  cfg.Server.IdleTimeout.Std(),
	}

	// Probes and metrics live on their own port so they stay reachable even
	// when the API listener is saturated.
	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(db, redisClient))
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, promRegistry)
	}
	healthServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.HealthPort),
		Handler: healthMux,
	}

	go func() {
		logger.Infof("Health/metrics listening on %s", healthServer.Addr)
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Health server failed")
		}
	}()
	go func() {
		logger.Infof("API listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("API server failed")
			cancel()
		}
	}()

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout.Std())
	shutdown.RegisterShutdownFunc(healthServer.Shutdown)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		janitor.Stop()
		return nil
	})
	if dispatcher != nil {
		shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
			dispatcher.StopRetryWorker()
			return nil
		})
	}
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		if redisClient != nil {
			redisClient.Close()
		}
		return db.Close()
	})

	if err := shutdown.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("Shutdown finished with errors")
		os.Exit(1)
	}
}

func newDerivedCipher(cfg *config.Config, purpose string) (*crypto.Cipher, error) {
	key, err := crypto.DeriveKey([]byte(cfg.Auth.MasterSecret), purpose, []byte(cfg.Auth.KeySalt))
	if err != nil {
		return nil, err
	}
	return crypto.NewCipher(key)
}

// pollConnectionGauges mirrors pool statistics into the connection gauges.
func pollConnectionGauges(ctx context.Context, metrics *observability.Metrics, db *sql.DB, redisClient *redis.Client) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			stats := db.Stats()
			metrics.DBConnectionsActive.Set(float64(stats.InUse))
			metrics.DBConnectionsIdle.Set(float64(stats.Idle))
			if redisClient != nil {
				metrics.RedisConnectionsActive.Set(float64(redisClient.PoolStats().TotalConns))
			}
		case <-ctx.Done():
			return
		}
	}
}
