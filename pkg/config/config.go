package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pinkbeam/platform/pkg/observability"
)

// DefaultNotifyEmail receives quote notifications when no address is
// configured. Support notifications fall back to the quote address first.
const DefaultNotifyEmail = "team@pinkbeam.ai"

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Redis configuration (optional; caching degrades gracefully without it)
	Redis RedisConfig

	// Email configuration
	Email EmailConfig

	// Webhook configuration
	Webhooks WebhooksConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	URL         string
	ReplicaURLs string // comma-separated read replica URLs
	MaxConns    int
	MinConns    int
	Timeout     time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	URL      string
	Password string
	DB       int
	PoolSize int
}

// EmailConfig holds email provider and routing settings
type EmailConfig struct {
	// ResendAPIKey authenticates against the Resend API. Empty disables
	// email dispatch entirely; sends become logged no-ops.
	ResendAPIKey string

	// FromAddress is the sender for all outbound mail.
	FromAddress string

	// QuoteNotifyEmail receives internal notifications for new quote requests.
	QuoteNotifyEmail string

	// SupportNotifyEmail receives internal notifications for support tickets.
	SupportNotifyEmail string
}

// WebhooksConfig holds webhook endpoint configuration
type WebhooksConfig struct {
	// ConfigPath points at the YAML endpoint definitions. Empty disables
	// outbound webhooks.
	ConfigPath string

	// WatchConfig reloads endpoint definitions when the file changes.
	WatchConfig bool
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Redis:         loadRedisConfig(),
		Email:         loadEmailConfig(),
		Webhooks:      loadWebhooksConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("PINKBEAM_HOST", "0.0.0.0"),
		Port:            getEnv("PINKBEAM_PORT", "8080"),
		ReadTimeout:     getEnvDuration("PINKBEAM_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("PINKBEAM_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("PINKBEAM_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("PINKBEAM_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("PINKBEAM_HEALTH_PORT", "9090"),
	}
}

// loadDatabaseConfig loads PostgreSQL configuration from environment
func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:         getEnv("DATABASE_URL", ""),
		ReplicaURLs: getEnv("DATABASE_REPLICA_URLS", ""),
		MaxConns:    getEnvInt("PINKBEAM_POSTGRES_MAX_CONNS", 25),
		MinConns:    getEnvInt("PINKBEAM_POSTGRES_MIN_CONNS", 5),
		Timeout:     getEnvDuration("PINKBEAM_POSTGRES_TIMEOUT", 30*time.Second),
	}
}

// loadRedisConfig loads Redis configuration from environment
func loadRedisConfig() RedisConfig {
	return RedisConfig{
		URL:      getEnv("PINKBEAM_REDIS_URL", ""),
		Password: getEnv("PINKBEAM_REDIS_PASSWORD", ""),
		DB:       getEnvInt("PINKBEAM_REDIS_DB", 0),
		PoolSize: getEnvInt("PINKBEAM_REDIS_POOL_SIZE", 10),
	}
}

// loadEmailConfig loads email configuration from environment. The support
// notify address falls back to the quote notify address, which in turn falls
// back to the team default.
func loadEmailConfig() EmailConfig {
	quoteNotify := getEnv("QUOTE_NOTIFY_EMAIL", DefaultNotifyEmail)
	supportNotify := getEnv("SUPPORT_NOTIFY_EMAIL", quoteNotify)

	return EmailConfig{
		ResendAPIKey:       getEnv("RESEND_API_KEY", ""),
		FromAddress:        getEnv("PINKBEAM_EMAIL_FROM", "Pink Beam <hello@pinkbeam.ai>"),
		QuoteNotifyEmail:   quoteNotify,
		SupportNotifyEmail: supportNotify,
	}
}

// LoadEmailConfig loads only the email settings, for batch binaries that do
// not need the full server configuration.
func LoadEmailConfig() EmailConfig {
	return loadEmailConfig()
}

// loadWebhooksConfig loads webhook configuration from environment
func loadWebhooksConfig() WebhooksConfig {
	return WebhooksConfig{
		ConfigPath:  getEnv("PINKBEAM_WEBHOOK_CONFIG", ""),
		WatchConfig: getEnvBool("PINKBEAM_WEBHOOK_CONFIG_WATCH", true),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLevel(getEnv("PINKBEAM_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("PINKBEAM_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("PINKBEAM_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("PINKBEAM_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("PINKBEAM_OTEL_SERVICE_NAME", "pinkbeam-api"),
		OTelServiceVersion: getEnv("PINKBEAM_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("PINKBEAM_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	// Validate database config
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Database.MaxConns > 0 && c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("postgres min connections (%d) exceeds max connections (%d)",
			c.Database.MinConns, c.Database.MaxConns)
	}

	// Validate email config. A missing API key is valid (dispatch is
	// disabled) but the notify addresses must never be empty.
	if c.Email.QuoteNotifyEmail == "" {
		return fmt.Errorf("quote notify email must not be empty")
	}
	if c.Email.SupportNotifyEmail == "" {
		return fmt.Errorf("support notify email must not be empty")
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
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
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
