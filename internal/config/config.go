package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration for the search service
type Config struct {
	Port        string
	Environment string

	LogLevel string
	LogFile  string

	Elasticsearch ElasticsearchConfig
	Search        SearchConfig
	Analytics     AnalyticsConfig
	Redis         RedisConfig
	Telemetry     TelemetryConfig

	// Comma-separated list of services that must validate at startup
	RequiredServices []string
}

// ElasticsearchConfig configures the search backend connection
type ElasticsearchConfig struct {
	Addresses  []string
	Username   string
	Password   string
	MaxRetries int
}

// SearchConfig holds index naming and request bounds
type SearchConfig struct {
	IndexPrefix     string
	DefaultLimit    int
	MaxLimit        int
	MaxResultWindow int
	MaxRadiusKm     float64
	SuggestTimeout  time.Duration
	ReindexBatch    int
	ReindexWorkers  int
}

// AnalyticsConfig configures analytics retention
type AnalyticsConfig struct {
	RetentionDays   int
	CleanupInterval time.Duration
}

// RedisConfig configures the Redis connection used for the rebuild lock
type RedisConfig struct {
	Host     string
	Port     string
	Password string
}

// TelemetryConfig configures OpenTelemetry tracing
type TelemetryConfig struct {
	Enabled      bool
	Endpoint     string
	SamplingRate float64
}

// Load reads configuration from environment variables.
// Call godotenv.Load() beforehand to pick up a .env file.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnvOrDefault("PORT", "8787"),
		Environment: getEnvOrDefault("ENVIRONMENT", "development"),
		LogLevel:    getEnvOrDefault("LOG_LEVEL", "info"),
		LogFile:     getEnvOrDefault("LOG_FILE", "server.log"),
		Elasticsearch: ElasticsearchConfig{
			Addresses: splitList(getEnvOrDefault("ELASTICSEARCH_URL", "http://localhost:9200")),
			Username:  os.Getenv("ELASTICSEARCH_USERNAME"),
			Password:  os.Getenv("ELASTICSEARCH_PASSWORD"),
		},
		Search: SearchConfig{
			IndexPrefix: getEnvOrDefault("SEARCH_INDEX_PREFIX", "petfinder"),
		},
		Redis: RedisConfig{
			Host:     getEnvOrDefault("REDIS_HOST", "localhost"),
			Port:     getEnvOrDefault("REDIS_PORT", "6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
		Telemetry: TelemetryConfig{
			Enabled:  getEnvOrDefault("OTEL_ENABLED", "false") == "true",
			Endpoint: getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		},
		RequiredServices: splitList(os.Getenv("REQUIRED_SERVICES")),
	}

	var err error
	if cfg.Elasticsearch.MaxRetries, err = getEnvInt("ELASTICSEARCH_MAX_RETRIES", 3); err != nil {
		return nil, err
	}
	if cfg.Search.DefaultLimit, err = getEnvInt("SEARCH_DEFAULT_LIMIT", 12); err != nil {
		return nil, err
	}
	if cfg.Search.MaxLimit, err = getEnvInt("SEARCH_MAX_LIMIT", 100); err != nil {
		return nil, err
	}
	if cfg.Search.MaxResultWindow, err = getEnvInt("SEARCH_MAX_RESULT_WINDOW", 10000); err != nil {
		return nil, err
	}
	if cfg.Search.MaxRadiusKm, err = getEnvFloat("SEARCH_MAX_RADIUS_KM", 500); err != nil {
		return nil, err
	}
	if cfg.Search.SuggestTimeout, err = getEnvDuration("SUGGEST_TIMEOUT", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.Search.ReindexBatch, err = getEnvInt("REINDEX_BATCH_SIZE", 500); err != nil {
		return nil, err
	}
	if cfg.Search.ReindexWorkers, err = getEnvInt("REINDEX_WORKERS", 4); err != nil {
		return nil, err
	}
	if cfg.Analytics.RetentionDays, err = getEnvInt("ANALYTICS_RETENTION_DAYS", 90); err != nil {
		return nil, err
	}
	if cfg.Analytics.CleanupInterval, err = getEnvDuration("ANALYTICS_CLEANUP_INTERVAL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.Telemetry.SamplingRate, err = getEnvFloat("OTEL_SAMPLING_RATE", 1.0); err != nil {
		return nil, err
	}

	if cfg.Search.MaxLimit < 1 {
		return nil, fmt.Errorf("SEARCH_MAX_LIMIT must be positive, got %d", cfg.Search.MaxLimit)
	}
	if cfg.Search.DefaultLimit < 1 || cfg.Search.DefaultLimit > cfg.Search.MaxLimit {
		return nil, fmt.Errorf("SEARCH_DEFAULT_LIMIT must be between 1 and %d", cfg.Search.MaxLimit)
	}
	if cfg.Search.SuggestTimeout < 0 {
		return nil, fmt.Errorf("SUGGEST_TIMEOUT must not be negative, got %s", cfg.Search.SuggestTimeout)
	}
	if cfg.Analytics.CleanupInterval <= 0 {
		return nil, fmt.Errorf("ANALYTICS_CLEANUP_INTERVAL must be positive, got %s", cfg.Analytics.CleanupInterval)
	}

	return cfg, nil
}

// getEnvOrDefault returns environment variable or default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
