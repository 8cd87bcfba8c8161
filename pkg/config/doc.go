// Package config provides application configuration management.
//
// # Overview
//
// Configuration is loaded in three layers: built-in defaults, an optional YAML
// file named by WISHCRAFT_CONFIG_FILE, then WISHCRAFT_* environment variables.
// Later layers override earlier ones, and the merged result is validated
// before the process starts serving.
//
// # Usage
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
// # Environment Variables
//
// Server: WISHCRAFT_HOST, WISHCRAFT_PORT, WISHCRAFT_HEALTH_PORT,
// WISHCRAFT_READ_TIMEOUT, WISHCRAFT_WRITE_TIMEOUT, WISHCRAFT_IDLE_TIMEOUT,
// WISHCRAFT_SHUTDOWN_TIMEOUT
//
// Database: WISHCRAFT_POSTGRES_URL, WISHCRAFT_POSTGRES_MAX_CONNS,
// WISHCRAFT_POSTGRES_MIN_CONNS, WISHCRAFT_POSTGRES_TIMEOUT
//
// Redis: WISHCRAFT_REDIS_URL, WISHCRAFT_REDIS_PASSWORD, WISHCRAFT_REDIS_DB,
// WISHCRAFT_REDIS_POOL_SIZE
//
// Auth: WISHCRAFT_OAUTH_CLIENT_ID, WISHCRAFT_OAUTH_CLIENT_SECRET,
// WISHCRAFT_OAUTH_REDIRECT_URL, WISHCRAFT_OAUTH_SCOPES,
// WISHCRAFT_MASTER_SECRET, WISHCRAFT_KEY_SALT, WISHCRAFT_SESSION_TTL,
// WISHCRAFT_EXCHANGE_TTL, WISHCRAFT_OIDC_ISSUER_URL, WISHCRAFT_OIDC_CLIENT_ID
//
// Webhooks: WISHCRAFT_WEBHOOK_SECRET, WISHCRAFT_NOTIFICATION_SINK_URL,
// WISHCRAFT_NOTIFICATION_SINK_SECRET
//
// Rate limiting: WISHCRAFT_RATELIMIT_MAX_ATTEMPTS, WISHCRAFT_RATELIMIT_WINDOW,
// WISHCRAFT_RATELIMIT_BASE_DELAY, WISHCRAFT_RATELIMIT_MAX_DELAY
//
// # Security Notes
//
// WISHCRAFT_MASTER_SECRET and WISHCRAFT_KEY_SALT must be set per deployment;
// the salt exists so key derivation is never predictable across installs.
// Validation rejects a master secret shorter than 32 bytes.
package config
