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
//	COUCHUSER_HOST="0.0.0.0"
//	COUCHUSER_PORT="8080"
//	COUCHUSER_HEALTH_PORT="9090"
//	COUCHUSER_READ_TIMEOUT="15s"
//	COUCHUSER_WRITE_TIMEOUT="15s"
//
// Storage settings:
//
//	COUCHUSER_DB_DRIVER="postgres"  # postgres, sqlite3
//	COUCHUSER_DATABASE_URL="postgres://localhost:5432/couchuser?sslmode=disable"
//	COUCHUSER_DB_MAX_CONNS="20"
//	COUCHUSER_AUTO_MIGRATE="true"
//
// Cache settings:
//
//	COUCHUSER_REDIS_URL="redis://localhost:6379/0"
//	COUCHUSER_CACHE_PREFIX="couchuser:"
//	COUCHUSER_L1_CACHE_SIZE="0"  # in-process user snapshots, 0 disables
//
// Auth settings:
//
//	COUCHUSER_LOGIN_EXPIRE="24h"  # token TTL, 0 disables token caching
//	COUCHUSER_AUTHORITY_TYPE="static"  # oauth2, oidc, static
//	COUCHUSER_STATIC_DIRECTORY="/etc/couchuser/users.yaml"
//	COUCHUSER_OAUTH2_TOKEN_URL="https://idp.example.com/oauth2/token"
//	COUCHUSER_OIDC_ISSUER_URL="https://idp.example.com"
//
// Observability settings:
//
//	COUCHUSER_LOG_LEVEL="info"  # debug, info, warn, error
//	COUCHUSER_LOG_FORMAT="json"  # json, text
//	COUCHUSER_METRICS_ENABLED="true"
//	COUCHUSER_OTEL_ENABLED="true"
//	COUCHUSER_OTEL_ENDPOINT="otel-collector:4317"
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Server: %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//	fmt.Printf("Authority: %s\n", cfg.Auth.Authority.ProviderType)
//
// # Related Packages
//
//   - pkg/storage: Uses storage configuration
//   - pkg/sso: Uses the authority configuration
//   - pkg/observability: Uses observability configuration
package config
