package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Ingest        IngestConfig
	Storage       StorageConfig
	Observability ObservabilityConfig
	LogLevel      slog.Level
}

type ServerConfig struct {
	Host               string
	Port               int
	AllowedOrigins     []string
	MaxUploadBytes     int64
	RateLimitPerSecond int
	RateLimitBurst     int
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

type IngestConfig struct {
	Workers                 int
	ExtractTimeout          time.Duration
	InboxDir                string
	Schedule                string
	MinTransferContributors int
	FuzzyThreshold          int
}

type StorageConfig struct {
	ArchiveEnabled bool
	LocalPath      string
}

type ObservabilityConfig struct {
	MetricsEnabled bool
	MetricsPort    int
}

// Load reads configuration from environment variables, after merging a .env
// file from the working directory when one exists.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:               getEnv("SERVER_HOST", "localhost"),
			Port:               getEnvAsInt("SERVER_PORT", 8080),
			AllowedOrigins:     getEnvAsList("SERVER_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			MaxUploadBytes:     int64(getEnvAsInt("SERVER_MAX_UPLOAD_MB", 20)) << 20,
			RateLimitPerSecond: getEnvAsInt("SERVER_RATE_LIMIT_PER_SECOND", 5),
			RateLimitBurst:     getEnvAsInt("SERVER_RATE_LIMIT_BURST", 10),
		},
		Database: DatabaseConfig{
			Host:            getEnv("POSTGRES_HOST", "localhost"),
			Port:            getEnvAsInt("POSTGRES_PORT", 5432),
			User:            getEnv("POSTGRES_USER", "postgres"),
			Password:        getEnv("POSTGRES_PASSWORD", "postgres"),
			Database:        getEnv("POSTGRES_DB", "budget"),
			SSLMode:         getEnv("POSTGRES_SSLMODE", "disable"),
			MaxConns:        getEnvAsInt("POSTGRES_MAX_CONNS", 10),
			MaxConnLifetime: getEnvAsDuration("POSTGRES_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime: getEnvAsDuration("POSTGRES_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:     getEnvAsDuration("POSTGRES_DIAL_TIMEOUT", 5*time.Second),
		},
		Ingest: IngestConfig{
			Workers:                 getEnvAsInt("INGEST_WORKERS", runtime.GOMAXPROCS(0)),
			ExtractTimeout:          getEnvAsDuration("EXTRACT_TIMEOUT", 30*time.Second),
			InboxDir:                getEnv("INGEST_INBOX_DIR", "./inbox"),
			Schedule:                getEnv("INGEST_SCHEDULE", "*/15 * * * *"),
			MinTransferContributors: getEnvAsInt("DEDUP_MIN_TRANSFER_CONTRIBUTORS", 1),
			FuzzyThreshold:          getEnvAsInt("CATEGORIZATION_FUZZY_THRESHOLD", 80),
		},
		Storage: StorageConfig{
			ArchiveEnabled: getEnvAsBool("STORAGE_ARCHIVE_ENABLED", false),
			LocalPath:      getEnv("STORAGE_LOCAL_PATH", "./statements"),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
			MetricsPort:    getEnvAsInt("METRICS_PORT", 9090),
		},
		LogLevel: getEnvAsLevel("LOG_LEVEL", slog.LevelInfo),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Ingest.Workers < 1 {
		return errors.New("INGEST_WORKERS must be at least 1")
	}
	if c.Ingest.MinTransferContributors < 1 {
		return errors.New("DEDUP_MIN_TRANSFER_CONTRIBUTORS must be at least 1")
	}
	if c.Ingest.FuzzyThreshold < 0 || c.Ingest.FuzzyThreshold > 100 {
		return errors.New("CATEGORIZATION_FUZZY_THRESHOLD must be between 0 and 100")
	}
	if c.Storage.ArchiveEnabled && c.Storage.LocalPath == "" {
		return errors.New("STORAGE_LOCAL_PATH is required when archiving is enabled")
	}
	return nil
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Addr returns the HTTP listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvAsLevel(key string, defaultValue slog.Level) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(os.Getenv(key))); err != nil {
		return defaultValue
	}
	return level
}
