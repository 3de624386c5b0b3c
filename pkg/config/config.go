package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Log           LogConfig
	Database      DatabaseConfig
	Observability ObservabilityConfig
	Import        ImportConfig
}

type LogConfig struct {
	Level  slog.Level
	Format string // "text" or "json"
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

type ObservabilityConfig struct {
	MetricsEnabled bool
	MetricsPort    int
}

type ImportConfig struct {
	// VocabularyPath is an optional YAML file overriding the built-in tables.
	VocabularyPath  string
	DefaultCurrency string
	HistoryLimit    int
	MaxFileBytes    int64
	// ArchivePath keeps the source file of every committed import. Empty disables it.
	ArchivePath   string
	WatchSchedule string
}

// Load reads configuration from environment variables. Variables already set win over
// the given .env files; missing files are ignored.
func Load(envFiles ...string) (*Config, error) {
	if err := loadEnvFiles(envFiles...); err != nil {
		return nil, err
	}

	level, err := parseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Log: LogConfig{
			Level:  level,
			Format: strings.ToLower(getEnv("LOG_FORMAT", "text")),
		},
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvAsInt("POSTGRES_PORT", 5469),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", "postgres"),
			Database: getEnv("POSTGRES_DB", "echo-dev"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", false),
			MetricsPort:    getEnvAsInt("METRICS_PORT", 9090),
		},
		Import: ImportConfig{
			VocabularyPath:  getEnv("IMPORT_VOCABULARY_PATH", ""),
			DefaultCurrency: strings.ToUpper(getEnv("IMPORT_DEFAULT_CURRENCY", "EUR")),
			HistoryLimit:    getEnvAsInt("IMPORT_HISTORY_LIMIT", 5000),
			MaxFileBytes:    int64(getEnvAsInt("IMPORT_MAX_FILE_BYTES", 10<<20)),
			ArchivePath:     getEnv("IMPORT_ARCHIVE_PATH", ""),
			WatchSchedule:   getEnv("IMPORT_WATCH_SCHEDULE", "@every 5m"),
		},
	}

	if cfg.Log.Format != "text" && cfg.Log.Format != "json" {
		return nil, fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.Log.Format)
	}
	if cfg.Observability.MetricsPort <= 0 || cfg.Observability.MetricsPort > 65535 {
		return nil, fmt.Errorf("METRICS_PORT out of range: %d", cfg.Observability.MetricsPort)
	}
	if cfg.Import.HistoryLimit < 0 {
		return nil, errors.New("IMPORT_HISTORY_LIMIT must not be negative")
	}
	if cfg.Import.MaxFileBytes <= 0 {
		return nil, errors.New("IMPORT_MAX_FILE_BYTES must be positive")
	}

	return cfg, nil
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// MetricsAddr is the listen address of the metrics endpoint.
func (c *ObservabilityConfig) MetricsAddr() string {
	return fmt.Sprintf(":%d", c.MetricsPort)
}

func loadEnvFiles(files ...string) error {
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load env files: %w", err)
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q: %w", s, err)
	}
	return level, nil
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
