// Package config loads application configuration from environment variables.
//
// All variables share the EDUSHIELD_ prefix. Every setting has a sane
// default so a bare `edushield` invocation starts against localhost
// dependencies.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/edushield/edushield/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Postgres      PostgresConfig
	Redis         RedisConfig
	Auth          AuthConfig
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
	AllowedOrigins  []string
	MaxBodyBytes    int64

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// PostgresConfig holds database connection settings
type PostgresConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration
}

// RedisConfig holds session/cache store settings
type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	MaxRetries int
	PoolSize   int
}

// AuthConfig holds authentication settings
type AuthConfig struct {
	SessionTTL      time.Duration
	BcryptCost      int
	SweepSchedule   string
	PermissionCache PermissionCacheConfig
}

// PermissionCacheConfig holds the in-process permission cache settings
type PermissionCacheConfig struct {
	Enabled bool
	Size    int
	TTL     time.Duration
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
	ServiceVersion string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Postgres:      loadPostgresConfig(),
		Redis:         loadRedisConfig(),
		Auth:          loadAuthConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("EDUSHIELD_HOST", "0.0.0.0"),
		Port:            getEnv("EDUSHIELD_PORT", "8080"),
		ReadTimeout:     getEnvDuration("EDUSHIELD_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("EDUSHIELD_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("EDUSHIELD_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("EDUSHIELD_SHUTDOWN_TIMEOUT", 30*time.Second),
		AllowedOrigins:  splitNonEmpty(getEnv("EDUSHIELD_ALLOWED_ORIGINS", "*")),
		MaxBodyBytes:    getEnvInt64("EDUSHIELD_MAX_BODY_BYTES", 1<<20),
		HealthPort:      getEnv("EDUSHIELD_HEALTH_PORT", "9090"),
	}
}

func loadPostgresConfig() PostgresConfig {
	return PostgresConfig{
		URL:             getEnv("EDUSHIELD_POSTGRES_URL", "postgres://localhost:5432/edushield?sslmode=disable"),
		MaxOpenConns:    getEnvInt("EDUSHIELD_POSTGRES_MAX_CONNS", 25),
		MaxIdleConns:    getEnvInt("EDUSHIELD_POSTGRES_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvDuration("EDUSHIELD_POSTGRES_CONN_LIFETIME", 30*time.Minute),
		ConnectTimeout:  getEnvDuration("EDUSHIELD_POSTGRES_TIMEOUT", 10*time.Second),
	}
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:       getEnv("EDUSHIELD_REDIS_ADDR", "localhost:6379"),
		Password:   getEnv("EDUSHIELD_REDIS_PASSWORD", ""),
		DB:         getEnvInt("EDUSHIELD_REDIS_DB", 0),
		MaxRetries: getEnvInt("EDUSHIELD_REDIS_MAX_RETRIES", 3),
		PoolSize:   getEnvInt("EDUSHIELD_REDIS_POOL_SIZE", 10),
	}
}

func loadAuthConfig() AuthConfig {
	return AuthConfig{
		SessionTTL:    getEnvDuration("EDUSHIELD_SESSION_TTL", 24*time.Hour),
		BcryptCost:    getEnvInt("EDUSHIELD_BCRYPT_COST", 12),
		SweepSchedule: getEnv("EDUSHIELD_SESSION_SWEEP_SCHEDULE", "@every 15m"),
		PermissionCache: PermissionCacheConfig{
			Enabled: getEnvBool("EDUSHIELD_PERMISSION_CACHE_ENABLED", true),
			Size:    getEnvInt("EDUSHIELD_PERMISSION_CACHE_SIZE", 1024),
			TTL:     getEnvDuration("EDUSHIELD_PERMISSION_CACHE_TTL", time.Minute),
		},
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       observability.ParseLogLevel(getEnv("EDUSHIELD_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("EDUSHIELD_METRICS_ENABLED", true),
		ServiceVersion: getEnv("EDUSHIELD_SERVICE_VERSION", "dev"),
	}
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

	if c.Postgres.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required")
	}

	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("bcrypt cost must be between 4 and 31")
	}
	if c.Auth.PermissionCache.Enabled {
		if c.Auth.PermissionCache.Size <= 0 {
			return fmt.Errorf("permission cache size must be positive")
		}
		if c.Auth.PermissionCache.TTL <= 0 {
			return fmt.Errorf("permission cache TTL must be positive")
		}
	}

	return nil
}

func splitNonEmpty(s string) []string {
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

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
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
