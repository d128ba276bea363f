// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings.
//
// # Configuration Structure
//
// Server settings:
//
//	PINKBEAM_HOST="0.0.0.0"
//	PINKBEAM_PORT="8080"
//	PINKBEAM_HEALTH_PORT="9090"
//	PINKBEAM_READ_TIMEOUT="15s"
//	PINKBEAM_WRITE_TIMEOUT="15s"
//
// Database settings:
//
//	DATABASE_URL="postgres://localhost/pinkbeam"
//	DATABASE_REPLICA_URLS="postgres://replica1/pinkbeam,postgres://replica2/pinkbeam"
//	PINKBEAM_POSTGRES_MAX_CONNS="25"
//
// Redis settings (optional, used for the unread-count cache):
//
//	PINKBEAM_REDIS_URL="redis://localhost:6379"
//	PINKBEAM_REDIS_POOL_SIZE="10"
//
// Email settings:
//
//	RESEND_API_KEY="re_..."           # empty disables email dispatch
//	QUOTE_NOTIFY_EMAIL="team@pinkbeam.ai"
//	SUPPORT_NOTIFY_EMAIL=""           # falls back to QUOTE_NOTIFY_EMAIL
//	PINKBEAM_EMAIL_FROM="Pink Beam <hello@pinkbeam.ai>"
//
// Webhook settings:
//
//	PINKBEAM_WEBHOOK_CONFIG="/etc/pinkbeam/webhooks.yaml"
//	PINKBEAM_WEBHOOK_CONFIG_WATCH="true"
//
// Observability settings:
//
//	PINKBEAM_LOG_LEVEL="info"  # debug, info, warn, error
//	PINKBEAM_METRICS_ENABLED="true"
//	PINKBEAM_OTEL_ENABLED="true"
//	PINKBEAM_OTEL_ENDPOINT="otel-collector:4317"
//
// # Usage Example
//
// Load configuration:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Server: %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//
// # Related Packages
//
//   - pkg/observability: Uses observability configuration
//   - pkg/email: Uses email configuration
package config
