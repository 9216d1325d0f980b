// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// AuthServiceConfig provides settings needed by the auth service.
type AuthServiceConfig interface {
	JWTConfig
	GetJWTRefreshSecret() string
	GetAccessTokenTTL() time.Duration
	GetRefreshTokenTTL() time.Duration
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// EvolutionConfig provides settings for the Evolution WhatsApp gateway.
type EvolutionConfig interface {
	GetEvolutionURL() string
	GetEvolutionAPIKey() string
	GetEvolutionWebhookSecret() string
	IsEvolutionEnabled() bool
}

// SchedulerConfig provides settings for the asynq scheduler.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// CacheConfig provides settings for the redis-backed metrics cache.
type CacheConfig interface {
	GetRedisURL() string
	GetMetricsCacheTTL() time.Duration
}

// SMTPConfig provides settings for outbound email.
type SMTPConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
	IsEmailEnabled() bool
}

// StorageConfig provides settings for MinIO S3-compatible storage.
type StorageConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMediaBucket() string
	IsStorageEnabled() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                    string
	HTTPAddr               string
	DatabaseURL            string
	JWTAccessSecret        string
	JWTRefreshSecret       string
	AccessTokenTTL         time.Duration
	RefreshTokenTTL        time.Duration
	CORSAllowAll           bool
	CORSOrigins            []string
	CORSAllowCreds         bool
	EvolutionURL           string
	EvolutionAPIKey        string
	EvolutionWebhookSecret string
	RedisURL               string
	RedisTLSInsecure       bool
	AsynqQueueName         string
	AsynqConcurrency       int
	MetricsCacheTTL        time.Duration
	SMTPHost               string
	SMTPPort               int
	SMTPUsername           string
	SMTPPassword           string
	EmailFromName          string
	EmailFromAddress       string
	EmailEnabled           bool
	MinIOEndpoint          string
	MinIOAccessKey         string
	MinIOSecretKey         string
	MinIOUseSSL            bool
	MediaBucket            string
}

// =============================================================================
// Interface Implementations
// =============================================================================

func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

func (c *Config) GetJWTAccessSecret() string        { return c.JWTAccessSecret }
func (c *Config) GetJWTRefreshSecret() string       { return c.JWTRefreshSecret }
func (c *Config) GetAccessTokenTTL() time.Duration  { return c.AccessTokenTTL }
func (c *Config) GetRefreshTokenTTL() time.Duration { return c.RefreshTokenTTL }

func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

func (c *Config) GetEvolutionURL() string           { return c.EvolutionURL }
func (c *Config) GetEvolutionAPIKey() string        { return c.EvolutionAPIKey }
func (c *Config) GetEvolutionWebhookSecret() string { return c.EvolutionWebhookSecret }
func (c *Config) IsEvolutionEnabled() bool          { return c.EvolutionURL != "" }

func (c *Config) GetRedisURL() string               { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool         { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string         { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int          { return c.AsynqConcurrency }
func (c *Config) GetMetricsCacheTTL() time.Duration { return c.MetricsCacheTTL }

func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }
func (c *Config) IsEmailEnabled() bool        { return c.EmailEnabled && c.SMTPHost != "" }

func (c *Config) GetMinIOEndpoint() string  { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool      { return c.MinIOUseSSL }
func (c *Config) GetMediaBucket() string    { return c.MediaBucket }
func (c *Config) IsStorageEnabled() bool    { return c.MinIOEndpoint != "" }

// Load reads configuration from the environment. A .env file is applied when
// present so local development does not need exported variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:                    getEnv("APP_ENV", "development"),
		HTTPAddr:               getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		JWTAccessSecret:        os.Getenv("JWT_ACCESS_SECRET"),
		JWTRefreshSecret:       os.Getenv("JWT_REFRESH_SECRET"),
		AccessTokenTTL:         getDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL:        getDuration("REFRESH_TOKEN_TTL", 30*24*time.Hour),
		CORSAllowAll:           getBool("CORS_ALLOW_ALL", false),
		CORSOrigins:            splitCSV(os.Getenv("CORS_ORIGINS")),
		CORSAllowCreds:         getBool("CORS_ALLOW_CREDENTIALS", true),
		EvolutionURL:           os.Getenv("EVOLUTION_API_URL"),
		EvolutionAPIKey:        os.Getenv("EVOLUTION_API_KEY"),
		EvolutionWebhookSecret: os.Getenv("EVOLUTION_WEBHOOK_SECRET"),
		RedisURL:               os.Getenv("REDIS_URL"),
		RedisTLSInsecure:       getBool("REDIS_TLS_INSECURE", false),
		AsynqQueueName:         getEnv("ASYNQ_QUEUE", "conviaq"),
		AsynqConcurrency:       getInt("ASYNQ_CONCURRENCY", 10),
		MetricsCacheTTL:        getDuration("METRICS_CACHE_TTL", time.Minute),
		SMTPHost:               os.Getenv("SMTP_HOST"),
		SMTPPort:               getInt("SMTP_PORT", 587),
		SMTPUsername:           os.Getenv("SMTP_USERNAME"),
		SMTPPassword:           os.Getenv("SMTP_PASSWORD"),
		EmailFromName:          getEnv("EMAIL_FROM_NAME", "CONVIAQ"),
		EmailFromAddress:       getEnv("EMAIL_FROM_ADDRESS", "no-reply@conviaq.app"),
		EmailEnabled:           getBool("EMAIL_ENABLED", false),
		MinIOEndpoint:          os.Getenv("MINIO_ENDPOINT"),
		MinIOAccessKey:         os.Getenv("MINIO_ACCESS_KEY"),
		MinIOSecretKey:         os.Getenv("MINIO_SECRET_KEY"),
		MinIOUseSSL:            getBool("MINIO_USE_SSL", false),
		MediaBucket:            getEnv("MINIO_BUCKET_MEDIA", "conviaq-media"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.JWTRefreshSecret == "" {
		cfg.JWTRefreshSecret = cfg.JWTAccessSecret
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
