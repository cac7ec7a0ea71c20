// Package config provides configuration management for the listing trust scorer.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Storage    StorageConfig
	Engine     EngineConfig
	Pricing    PricingConfig
	Collection CollectionConfig
	Registry   RegistryConfig
	RateLimit  RateLimitConfig
	Logging    LoggingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// ClickHouseConfig holds ClickHouse configuration. Analysis events are only
// recorded when Enabled is set.
type ClickHouseConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled        bool
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
	PriceTTL       time.Duration
}

// StorageConfig selects the persistence backend ("postgres" or "memory")
type StorageConfig struct {
	Backend string
}

// EngineConfig holds filter engine settings
type EngineConfig struct {
	MaxWorkers    int
	FilterTimeout time.Duration
}

// PricingConfig holds market price resolver settings
type PricingConfig struct {
	RefreshWindow time.Duration
	SeedPath      string
	// MinSamplesOverrides maps "make:model" (normalized) to a sample threshold
	MinSamplesOverrides map[string]int
}

// CollectionConfig holds collection job queue settings
type CollectionConfig struct {
	MaxAttempts         int
	AssignTimeout       time.Duration
	ExpandCooldown      time.Duration
	CooldownCapacity    int
	RecycleAfter        time.Duration
	LowDataThreshold    int
	LowDataWindow       time.Duration
	BonusJobs           int
	DefaultCountry      string
	MaintenanceInterval time.Duration
}

// RegistryConfig holds company registry client settings
type RegistryConfig struct {
	BaseURL string
	Timeout time.Duration
	// QuotaPerMinute caps calls across every replica; it needs Redis and 0
	// disables it
	QuotaPerMinute int
}

// RateLimitConfig holds API rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// .env file is optional - environment variables can be set directly
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	overrides, err := parseMinSamplesOverrides(getEnv("PRICING_MIN_SAMPLES_OVERRIDES", ""))
	if err != nil {
		return nil, err
	}

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "listing_trust"),
				User:           getEnv("POSTGRES_USER", "trust"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 20),
			},
			ClickHouse: ClickHouseConfig{
				Enabled:  getEnvAsBool("CLICKHOUSE_ENABLED", false),
				Host:     getEnv("CLICKHOUSE_HOST", "localhost"),
				Port:     getEnv("CLICKHOUSE_PORT", "9000"),
				Database: getEnv("CLICKHOUSE_DB", "listing_trust"),
				User:     getEnv("CLICKHOUSE_USER", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			},
			Redis: RedisConfig{
				Enabled:        getEnvAsBool("REDIS_ENABLED", false),
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 20),
				PriceTTL:       getEnvAsDuration("REDIS_PRICE_TTL", 5*time.Minute),
			},
		},
		Storage: StorageConfig{
			Backend: strings.ToLower(getEnv("STORAGE_BACKEND", "postgres")),
		},
		Engine: EngineConfig{
			MaxWorkers:    getEnvAsInt("ENGINE_MAX_WORKERS", 8),
			FilterTimeout: getEnvAsDuration("ENGINE_FILTER_TIMEOUT", 10*time.Second),
		},
		Pricing: PricingConfig{
			RefreshWindow:       getEnvAsDuration("PRICING_REFRESH_WINDOW", 7*24*time.Hour),
			SeedPath:            getEnv("PRICING_SEED_PATH", ""),
			MinSamplesOverrides: overrides,
		},
		Collection: CollectionConfig{
			MaxAttempts:         getEnvAsInt("COLLECTION_MAX_ATTEMPTS", 3),
			AssignTimeout:       getEnvAsDuration("COLLECTION_ASSIGN_TIMEOUT", 30*time.Minute),
			ExpandCooldown:      getEnvAsDuration("COLLECTION_EXPAND_COOLDOWN", 10*time.Minute),
			CooldownCapacity:    getEnvAsInt("COLLECTION_COOLDOWN_CAPACITY", 10000),
			RecycleAfter:        getEnvAsDuration("COLLECTION_RECYCLE_AFTER", 24*time.Hour),
			LowDataThreshold:    getEnvAsInt("COLLECTION_LOW_DATA_THRESHOLD", 3),
			LowDataWindow:       getEnvAsDuration("COLLECTION_LOW_DATA_WINDOW", 7*24*time.Hour),
			BonusJobs:           getEnvAsInt("COLLECTION_BONUS_JOBS", 2),
			DefaultCountry:      strings.ToUpper(getEnv("COLLECTION_DEFAULT_COUNTRY", "FR")),
			MaintenanceInterval: getEnvAsDuration("COLLECTION_MAINTENANCE_INTERVAL", time.Minute),
		},
		Registry: RegistryConfig{
			BaseURL:        getEnv("REGISTRY_BASE_URL", ""),
			Timeout:        getEnvAsDuration("REGISTRY_TIMEOUT", 3*time.Second),
			QuotaPerMinute: getEnvAsInt("REGISTRY_QUOTA_PER_MINUTE", 0),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 600),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 50),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate rejects settings the queue and engine cannot run with
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unsupported STORAGE_BACKEND %q", c.Storage.Backend)
	}
	if c.Engine.MaxWorkers < 1 {
		return fmt.Errorf("ENGINE_MAX_WORKERS must be >= 1, got %d", c.Engine.MaxWorkers)
	}
	if c.Collection.MaxAttempts < 1 {
		return fmt.Errorf("COLLECTION_MAX_ATTEMPTS must be >= 1, got %d", c.Collection.MaxAttempts)
	}
	if c.Collection.BonusJobs < 0 {
		return fmt.Errorf("COLLECTION_BONUS_JOBS must be >= 0, got %d", c.Collection.BonusJobs)
	}
	return nil
}

// PostgresDSN builds the pgx connection string
func (c PostgresConfig) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// parseMinSamplesOverrides parses "bmw:m3=6,alpine:a110=8"
func parseMinSamplesOverrides(raw string) (map[string]int, error) {
	overrides := make(map[string]int)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		if !ok || !strings.Contains(key, ":") {
			return nil, fmt.Errorf("invalid min samples override %q, want make:model=n", part)
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid min samples override %q: threshold must be a positive integer", part)
		}
		overrides[strings.ToLower(strings.TrimSpace(key))] = n
	}
	return overrides, nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
