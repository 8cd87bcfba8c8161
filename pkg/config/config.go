package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/narissarah/wishcraft-sub004/pkg/observability"
)

// Duration is a time.Duration that unmarshals from YAML strings like "15m".
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the duration as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Auth          AuthConfig          `yaml:"auth"`
	Webhooks      WebhookConfig       `yaml:"webhooks"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Collaboration CollaborationConfig `yaml:"collaboration"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string   `yaml:"host"`
	Port            string   `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	IdleTimeout     Duration `yaml:"idle_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL      string   `yaml:"url"`
	MaxConns int      `yaml:"max_conns"`
	MinConns int      `yaml:"min_conns"`
	Timeout  Duration `yaml:"timeout"`
}

// RedisConfig holds Redis configuration. An empty URL disables Redis and
// falls back to in-process stores (single-instance deployments only).
type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// Enabled reports whether a Redis backend is configured.
func (c RedisConfig) Enabled() bool { return c.URL != "" }

// AuthConfig holds OAuth client credentials and session crypto settings
type AuthConfig struct {
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	RedirectURL  string   `yaml:"redirect_url"`
	Scopes       []string `yaml:"scopes"`

	// MasterSecret is the root key material; per-purpose keys are derived
	// from it. KeySalt is deployment-specific entropy for derivation and
	// must differ between installs.
	MasterSecret string `yaml:"master_secret"`
	KeySalt      string `yaml:"key_salt"`

	SessionTTL  Duration `yaml:"session_ttl"`
	ExchangeTTL Duration `yaml:"exchange_ttl"`

	// Operator SSO (optional).
	OIDCIssuerURL string `yaml:"oidc_issuer_url"`
	OIDCClientID  string `yaml:"oidc_client_id"`
}

// WebhookConfig holds inbound verification and outbound delivery settings
type WebhookConfig struct {
	// PlatformSecret verifies inbound event-callback signatures.
	PlatformSecret string `yaml:"platform_secret"`

	// SinkURL/SinkSecret configure the outbound notification dispatcher.
	// An empty SinkURL disables dispatch.
	SinkURL    string `yaml:"sink_url"`
	SinkSecret string `yaml:"sink_secret"`
}

// RateLimitConfig holds brute-force guard policy
type RateLimitConfig struct {
	MaxAttempts int      `yaml:"max_attempts"`
	Window      Duration `yaml:"window"`
	BaseDelay   Duration `yaml:"base_delay"`
	MaxDelay    Duration `yaml:"max_delay"`
}

// CollaborationConfig holds collaboration lifecycle settings
type CollaborationConfig struct {
	// CleanupSchedule is a cron expression for invitation expiry cleanup.
	CleanupSchedule string `yaml:"cleanup_schedule"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       string `yaml:"log_level"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`
}

// ParsedLogLevel maps the configured level string onto the logger's levels.
func (c ObservabilityConfig) ParsedLogLevel() observability.LogLevel {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// LoadConfig loads configuration in three layers: built-in defaults, an
// optional YAML file (WISHCRAFT_CONFIG_FILE), then environment variables.
func LoadConfig() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("WISHCRAFT_CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.loadEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     Duration(15 * time.Second),
			WriteTimeout:    Duration(15 * time.Second),
			IdleTimeout:     Duration(60 * time.Second),
			ShutdownTimeout: Duration(30 * time.Second),
			HealthPort:      "9090",
		},
		Database: DatabaseConfig{
			MaxConns: 25,
			MinConns: 5,
			Timeout:  Duration(5 * time.Second),
		},
		Auth: AuthConfig{
			Scopes:      []string{"read_customers", "write_customers"},
			SessionTTL:  Duration(24 * time.Hour),
			ExchangeTTL: Duration(10 * time.Minute),
		},
		RateLimit: RateLimitConfig{
			MaxAttempts: 5,
			Window:      Duration(15 * time.Minute),
			BaseDelay:   Duration(time.Second),
			MaxDelay:    Duration(15 * time.Minute),
		},
		Collaboration: CollaborationConfig{
			CleanupSchedule: "*/15 * * * *",
		},
		Observability: ObservabilityConfig{
			LogLevel:       "info",
			MetricsEnabled: true,
		},
	}
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() {
	// Server
	c.Server.Host = getEnv("WISHCRAFT_HOST", c.Server.Host)
	c.Server.Port = getEnv("WISHCRAFT_PORT", c.Server.Port)
	c.Server.HealthPort = getEnv("WISHCRAFT_HEALTH_PORT", c.Server.HealthPort)
	c.Server.ReadTimeout = getEnvDuration("WISHCRAFT_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvDuration("WISHCRAFT_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.IdleTimeout = getEnvDuration("WISHCRAFT_IDLE_TIMEOUT", c.Server.IdleTimeout)
	c.Server.ShutdownTimeout = getEnvDuration("WISHCRAFT_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)

	// Database
	c.Database.URL = getEnv("WISHCRAFT_POSTGRES_URL", c.Database.URL)
	c.Database.MaxConns = getEnvInt("WISHCRAFT_POSTGRES_MAX_CONNS", c.Database.MaxConns)
	c.Database.MinConns = getEnvInt("WISHCRAFT_POSTGRES_MIN_CONNS", c.Database.MinConns)
	c.Database.Timeout = getEnvDuration("WISHCRAFT_POSTGRES_TIMEOUT", c.Database.Timeout)

	// Redis
	c.Redis.URL = getEnv("WISHCRAFT_REDIS_URL", c.Redis.URL)
	c.Redis.Password = getEnv("WISHCRAFT_REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvInt("WISHCRAFT_REDIS_DB", c.Redis.DB)
	c.Redis.PoolSize = getEnvInt("WISHCRAFT_REDIS_POOL_SIZE", c.Redis.PoolSize)

	// Auth
	c.Auth.ClientID = getEnv("WISHCRAFT_OAUTH_CLIENT_ID", c.Auth.ClientID)
	c.Auth.ClientSecret = getEnv("WISHCRAFT_OAUTH_CLIENT_SECRET", c.Auth.ClientSecret)
	c.Auth.RedirectURL = getEnv("WISHCRAFT_OAUTH_REDIRECT_URL", c.Auth.RedirectURL)
	if scopes := getEnv("WISHCRAFT_OAUTH_SCOPES", ""); scopes != "" {
		c.Auth.Scopes = splitAndTrim(scopes)
	}
	c.Auth.MasterSecret = getEnv("WISHCRAFT_MASTER_SECRET", c.Auth.MasterSecret)
	c.Auth.KeySalt = getEnv("WISHCRAFT_KEY_SALT", c.Auth.KeySalt)
	c.Auth.SessionTTL = getEnvDuration("WISHCRAFT_SESSION_TTL", c.Auth.SessionTTL)
	c.Auth.ExchangeTTL = getEnvDuration("WISHCRAFT_EXCHANGE_TTL", c.Auth.ExchangeTTL)
	c.Auth.OIDCIssuerURL = getEnv("WISHCRAFT_OIDC_ISSUER_URL", c.Auth.OIDCIssuerURL)
	c.Auth.OIDCClientID = getEnv("WISHCRAFT_OIDC_CLIENT_ID", c.Auth.OIDCClientID)

	// Webhooks
	c.Webhooks.PlatformSecret = getEnv("WISHCRAFT_WEBHOOK_SECRET", c.Webhooks.PlatformSecret)
	c.Webhooks.SinkURL = getEnv("WISHCRAFT_NOTIFICATION_SINK_URL", c.Webhooks.SinkURL)
	c.Webhooks.SinkSecret = getEnv("WISHCRAFT_NOTIFICATION_SINK_SECRET", c.Webhooks.SinkSecret)

	// Rate limiting
	c.RateLimit.MaxAttempts = getEnvInt("WISHCRAFT_RATELIMIT_MAX_ATTEMPTS", c.RateLimit.MaxAttempts)
	c.RateLimit.Window = getEnvDuration("WISHCRAFT_RATELIMIT_WINDOW", c.RateLimit.Window)
	c.RateLimit.BaseDelay = getEnvDuration("WISHCRAFT_RATELIMIT_BASE_DELAY", c.RateLimit.BaseDelay)
	c.RateLimit.MaxDelay = getEnvDuration("WISHCRAFT_RATELIMIT_MAX_DELAY", c.RateLimit.MaxDelay)

	// Collaboration
	c.Collaboration.CleanupSchedule = getEnv("WISHCRAFT_CLEANUP_SCHEDULE", c.Collaboration.CleanupSchedule)

	// Observability
	c.Observability.LogLevel = getEnv("WISHCRAFT_LOG_LEVEL", c.Observability.LogLevel)
	c.Observability.MetricsEnabled = getEnvBool("WISHCRAFT_METRICS_ENABLED", c.Observability.MetricsEnabled)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	if c.Auth.ClientID == "" || c.Auth.ClientSecret == "" {
		return fmt.Errorf("oauth client credentials are required")
	}
	if c.Auth.RedirectURL == "" {
		return fmt.Errorf("oauth redirect URL is required")
	}
	if len(c.Auth.MasterSecret) < 32 {
		return fmt.Errorf("master secret must be at least 32 bytes")
	}
	if c.Auth.KeySalt == "" {
		return fmt.Errorf("key derivation salt is required")
	}
	if c.Auth.ExchangeTTL.Std() <= 0 || c.Auth.SessionTTL.Std() <= 0 {
		return fmt.Errorf("auth TTLs must be positive")
	}

	if c.Webhooks.PlatformSecret == "" {
		return fmt.Errorf("webhook platform secret is required")
	}

	if c.RateLimit.MaxAttempts <= 0 {
		return fmt.Errorf("rate limit max attempts must be positive")
	}
	if c.RateLimit.Window.Std() <= 0 {
		return fmt.Errorf("rate limit window must be positive")
	}
	if c.RateLimit.MaxDelay.Std() < c.RateLimit.BaseDelay.Std() {
		return fmt.Errorf("rate limit max delay must not be below base delay")
	}

	return nil
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue Duration) Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return Duration(duration)
		}
	}
	return defaultValue
}
