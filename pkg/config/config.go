package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/couchuser/pkg/observability"
	"github.com/platinummonkey/couchuser/pkg/sso"
	"github.com/platinummonkey/couchuser/pkg/storage"
	"github.com/platinummonkey/couchuser/pkg/users"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Storage configuration
	Storage storage.Config

	// Auth configuration
	Auth AuthConfig

	// Observability configuration
	Observability ObservabilityConfig

	// Audit configuration
	Audit AuditConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// AuthConfig holds login and identity authority settings
type AuthConfig struct {
	// LoginExpire is the token TTL; 0 issues tokens that are never cached
	LoginExpire time.Duration
	// StoreWriteTimeout bounds store writes detached from the request
	StoreWriteTimeout time.Duration

	// LoginRateLimit is the number of logins allowed per account per
	// LoginRateWindow; 0 disables limiting
	LoginRateLimit  int
	LoginRateWindow time.Duration

	Authority sso.ProviderConfig
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel  observability.LogLevel
	LogFormat string

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
	OTelSampleRatio    float64
}

// AuditConfig holds login audit trail settings
type AuditConfig struct {
	Enabled bool

	// Dir receives JSON lines audit files; empty disables the file sink
	Dir      string
	MaxSize  int64
	MaxFiles int

	// Database writes events to the durable store's audit_events table
	Database bool

	Workers   int
	QueueSize int
	Timeout   time.Duration
}

// OTel returns the OpenTelemetry settings in the form InitOTel takes
func (c ObservabilityConfig) OTel() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        c.OTelEnabled,
		Endpoint:       c.OTelEndpoint,
		ServiceName:    c.OTelServiceName,
		ServiceVersion: c.OTelServiceVersion,
		Insecure:       c.OTelInsecure,
		SampleRatio:    c.OTelSampleRatio,
	}
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Storage:       loadStorageConfig(),
		Auth:          loadAuthConfig(),
		Observability: loadObservabilityConfig(),
		Audit:         loadAuditConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("COUCHUSER_HOST", "0.0.0.0"),
		Port:            getEnv("COUCHUSER_PORT", "8080"),
		ReadTimeout:     getEnvDuration("COUCHUSER_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("COUCHUSER_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("COUCHUSER_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("COUCHUSER_SHUTDOWN_TIMEOUT", 30*time.Second),
		MaxBodyBytes:    getEnvInt64("COUCHUSER_MAX_BODY_BYTES", 1<<20),
		HealthPort:      getEnv("COUCHUSER_HEALTH_PORT", "9090"),
	}
}

// loadStorageConfig loads storage configuration from environment
func loadStorageConfig() storage.Config {
	cfg := storage.DefaultConfig()

	// Durable store
	if driver := getEnv("COUCHUSER_DB_DRIVER", ""); driver != "" {
		cfg.Driver = driver
	}
	if dbURL := getEnv("COUCHUSER_DATABASE_URL", ""); dbURL != "" {
		cfg.DatabaseURL = dbURL
	}
	if maxConns := getEnvInt("COUCHUSER_DB_MAX_CONNS", 0); maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	if minConns := getEnvInt("COUCHUSER_DB_MIN_CONNS", 0); minConns > 0 {
		cfg.MinConns = minConns
	}
	if timeout := getEnvDuration("COUCHUSER_DB_TIMEOUT", 0); timeout > 0 {
		cfg.Timeout = timeout
	}
	cfg.AutoMigrate = getEnvBool("COUCHUSER_AUTO_MIGRATE", cfg.AutoMigrate)

	// Redis config
	if redisURL := getEnv("COUCHUSER_REDIS_URL", ""); redisURL != "" {
		cfg.RedisURL = redisURL
	}
	if redisPassword := getEnv("COUCHUSER_REDIS_PASSWORD", ""); redisPassword != "" {
		cfg.RedisPassword = redisPassword
	}
	if redisDB := getEnvInt("COUCHUSER_REDIS_DB", -1); redisDB >= 0 {
		cfg.RedisDB = redisDB
	}
	if redisMaxRetries := getEnvInt("COUCHUSER_REDIS_MAX_RETRIES", 0); redisMaxRetries > 0 {
		cfg.RedisMaxRetries = redisMaxRetries
	}
	if redisPoolSize := getEnvInt("COUCHUSER_REDIS_POOL_SIZE", 0); redisPoolSize > 0 {
		cfg.RedisPoolSize = redisPoolSize
	}

	// Cache config
	if prefix := getEnv("COUCHUSER_CACHE_PREFIX", ""); prefix != "" {
		cfg.CachePrefix = prefix
	}
	if l1CacheSize := getEnvInt("COUCHUSER_L1_CACHE_SIZE", 0); l1CacheSize > 0 {
		cfg.L1CacheSize = l1CacheSize
	}
	if l1CacheTTL := getEnvDuration("COUCHUSER_L1_CACHE_TTL", 0); l1CacheTTL > 0 {
		cfg.L1CacheTTL = l1CacheTTL
	}

	return cfg
}

// loadAuthConfig loads login and identity authority configuration
func loadAuthConfig() AuthConfig {
	providerType := sso.ProviderType(strings.ToLower(getEnv("COUCHUSER_AUTHORITY_TYPE", string(sso.ProviderTypeStatic))))

	authority := sso.ProviderConfig{
		Name:             getEnv("COUCHUSER_AUTHORITY_NAME", string(providerType)),
		ProviderType:     providerType,
		Timeout:          getEnvDuration("COUCHUSER_AUTHORITY_TIMEOUT", sso.DefaultTimeout),
		AttributeMapping: loadAttributeMap(),
	}

	switch providerType {
	case sso.ProviderTypeOAuth2:
		authority.OAuth2Config = &sso.OAuth2Config{
			ClientID:     getEnv("COUCHUSER_OAUTH2_CLIENT_ID", ""),
			ClientSecret: getEnv("COUCHUSER_OAUTH2_CLIENT_SECRET", ""),
			TokenURL:     getEnv("COUCHUSER_OAUTH2_TOKEN_URL", ""),
			UserInfoURL:  getEnv("COUCHUSER_OAUTH2_USERINFO_URL", ""),
			Scopes:       getEnvList("COUCHUSER_OAUTH2_SCOPES", nil),
			AccountURL:   getEnv("COUCHUSER_OAUTH2_ACCOUNT_URL", ""),
		}
	case sso.ProviderTypeOIDC:
		authority.OIDCConfig = &sso.OIDCConfig{
			ClientID:        getEnv("COUCHUSER_OIDC_CLIENT_ID", ""),
			ClientSecret:    getEnv("COUCHUSER_OIDC_CLIENT_SECRET", ""),
			IssuerURL:       getEnv("COUCHUSER_OIDC_ISSUER_URL", ""),
			Scopes:          getEnvList("COUCHUSER_OIDC_SCOPES", []string{"openid", "profile", "email"}),
			SkipIssuerCheck: getEnvBool("COUCHUSER_OIDC_SKIP_ISSUER_CHECK", false),
			UseUserInfo:     getEnvBool("COUCHUSER_OIDC_USE_USERINFO", false),
			AccountURL:      getEnv("COUCHUSER_OIDC_ACCOUNT_URL", ""),
		}
	case sso.ProviderTypeStatic:
		authority.StaticConfig = &sso.StaticConfig{
			Path:  getEnv("COUCHUSER_STATIC_DIRECTORY", "/etc/couchuser/users.yaml"),
			Watch: getEnvBool("COUCHUSER_STATIC_WATCH", true),
		}
	}

	return AuthConfig{
		LoginExpire:       getEnvDuration("COUCHUSER_LOGIN_EXPIRE", 24*time.Hour),
		StoreWriteTimeout: getEnvDuration("COUCHUSER_STORE_WRITE_TIMEOUT", users.DefaultWriteTimeout),
		LoginRateLimit:    getEnvInt("COUCHUSER_LOGIN_RATE_LIMIT", 10),
		LoginRateWindow:   getEnvDuration("COUCHUSER_LOGIN_RATE_WINDOW", time.Minute),
		Authority:         authority,
	}
}

func loadAttributeMap() sso.AttributeMap {
	defaults := sso.DefaultAttributeMap()
	return sso.AttributeMap{
		Username: getEnv("COUCHUSER_ATTR_USERNAME", defaults.Username),
		Email:    getEnv("COUCHUSER_ATTR_EMAIL", defaults.Email),
		FullName: getEnv("COUCHUSER_ATTR_FULL_NAME", defaults.FullName),
		Avatar:   getEnv("COUCHUSER_ATTR_AVATAR", defaults.Avatar),
		Groups:   getEnv("COUCHUSER_ATTR_GROUPS", defaults.Groups),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLogLevel(getEnv("COUCHUSER_LOG_LEVEL", "info")),
		LogFormat:          strings.ToLower(getEnv("COUCHUSER_LOG_FORMAT", observability.FormatJSON)),
		MetricsEnabled:     getEnvBool("COUCHUSER_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("COUCHUSER_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("COUCHUSER_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("COUCHUSER_OTEL_SERVICE_NAME", "couchuser"),
		OTelServiceVersion: getEnv("COUCHUSER_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("COUCHUSER_OTEL_INSECURE", true),
		OTelSampleRatio:    getEnvFloat("COUCHUSER_OTEL_SAMPLE_RATIO", 1.0),
	}
}

// loadAuditConfig loads audit configuration from environment
func loadAuditConfig() AuditConfig {
	return AuditConfig{
		Enabled:   getEnvBool("COUCHUSER_AUDIT_ENABLED", false),
		Dir:       getEnv("COUCHUSER_AUDIT_DIR", ""),
		MaxSize:   getEnvInt64("COUCHUSER_AUDIT_MAX_SIZE", 100*1024*1024),
		MaxFiles:  getEnvInt("COUCHUSER_AUDIT_MAX_FILES", 10),
		Database:  getEnvBool("COUCHUSER_AUDIT_DATABASE", true),
		Workers:   getEnvInt("COUCHUSER_AUDIT_WORKERS", 2),
		QueueSize: getEnvInt("COUCHUSER_AUDIT_QUEUE_SIZE", 1000),
		Timeout:   getEnvDuration("COUCHUSER_AUDIT_TIMEOUT", 5*time.Second),
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

	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	if err := c.Auth.validate(); err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	if err := c.Audit.validate(); err != nil {
		return fmt.Errorf("audit: %w", err)
	}

	switch c.Observability.LogFormat {
	case observability.FormatJSON, observability.FormatText:
	default:
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Observability.LogFormat)
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
		if c.Observability.OTelSampleRatio < 0 || c.Observability.OTelSampleRatio > 1 {
			return fmt.Errorf("OpenTelemetry sample ratio must be between 0 and 1")
		}
	}

	return nil
}

func (a AuditConfig) validate() error {
	if !a.Enabled {
		return nil
	}
	if a.Dir == "" && !a.Database {
		return fmt.Errorf("audit enabled without a sink: set a directory or enable the database sink")
	}
	if a.Workers <= 0 || a.QueueSize <= 0 {
		return fmt.Errorf("audit workers and queue size must be positive")
	}
	if a.Timeout <= 0 {
		return fmt.Errorf("audit timeout must be positive")
	}
	return nil
}

func (a AuthConfig) validate() error {
	if a.LoginExpire < 0 {
		return fmt.Errorf("login expire must not be negative")
	}
	if a.StoreWriteTimeout <= 0 {
		return fmt.Errorf("store write timeout must be positive")
	}
	if a.LoginRateLimit < 0 {
		return fmt.Errorf("login rate limit must not be negative")
	}
	if a.LoginRateLimit > 0 && a.LoginRateWindow <= 0 {
		return fmt.Errorf("login rate window must be positive when rate limiting is enabled")
	}

	switch a.Authority.ProviderType {
	case sso.ProviderTypeOAuth2:
		o := a.Authority.OAuth2Config
		if o == nil || o.ClientID == "" || o.TokenURL == "" || o.UserInfoURL == "" {
			return fmt.Errorf("oauth2 authority requires client id, token URL and userinfo URL")
		}
	case sso.ProviderTypeOIDC:
		o := a.Authority.OIDCConfig
		if o == nil || o.ClientID == "" || o.IssuerURL == "" {
			return fmt.Errorf("oidc authority requires client id and issuer URL")
		}
	case sso.ProviderTypeStatic:
		if a.Authority.StaticConfig == nil || a.Authority.StaticConfig.Path == "" {
			return fmt.Errorf("static authority requires a directory file")
		}
	default:
		return fmt.Errorf("invalid authority type: %s (must be oauth2, oidc, or static)", a.Authority.ProviderType)
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

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
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

// getEnvList returns a comma separated list or a default
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
