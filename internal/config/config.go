package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	PollInterval  time.Duration
	ScoreInterval time.Duration
	PollTimeout   time.Duration

	// EventRetention caps how long events stay in the ledger. Zero keeps
	// them forever; decay handles relevance either way.
	EventRetention time.Duration

	// DataDir is the Badger directory; CacheDir holds the per-feed raw
	// snapshot files written by the collector layer.
	DataDir  string
	CacheDir string

	// GCSBucket enables the remote persistence tier when non-empty.
	GCSBucket          string
	GCSPrefix          string
	GCSCredentialsFile string

	// KafkaBrokers enables the change-event announcer when non-empty.
	KafkaBrokers []string
	KafkaTopic   string

	// RulesPath overrides the compiled-in scoring rules when non-empty.
	// GeoIndexPath points at the HUC8 adjacency data file.
	RulesPath    string
	GeoIndexPath string
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	pollInterval, err := parseDuration("POLL_INTERVAL", "5m")
	if err != nil {
		return nil, err
	}
	scoreInterval, err := parseDuration("SCORE_INTERVAL", "10m")
	if err != nil {
		return nil, err
	}
	pollTimeout, err := parseDuration("POLL_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	retention, err := parseDuration("EVENT_RETENTION", "0s")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		PollInterval:    pollInterval,
		ScoreInterval:   scoreInterval,
		PollTimeout:     pollTimeout,
		EventRetention:  retention,

		DataDir:  envOrDefault("DATA_DIR", "data/badger"),
		CacheDir: envOrDefault("CACHE_DIR", "data/cache"),

		GCSBucket:          os.Getenv("GCS_BUCKET"),
		GCSPrefix:          envOrDefault("GCS_PREFIX", "watershed-sentinel"),
		GCSCredentialsFile: os.Getenv("GCS_CREDENTIALS_FILE"),

		KafkaBrokers: parseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   envOrDefault("KAFKA_TOPIC", "watershed-change-events"),

		RulesPath:    os.Getenv("RULES_PATH"),
		GeoIndexPath: os.Getenv("GEO_INDEX_PATH"),
	}

	if cfg.PollInterval <= 0 {
		return nil, errors.New("POLL_INTERVAL must be positive")
	}
	if cfg.ScoreInterval <= 0 {
		return nil, errors.New("SCORE_INTERVAL must be positive")
	}
	if cfg.PollTimeout <= 0 {
		return nil, errors.New("POLL_TIMEOUT must be positive")
	}
	if cfg.EventRetention < 0 {
		return nil, errors.New("EVENT_RETENTION must not be negative")
	}
	if cfg.DataDir == "" {
		return nil, errors.New("DATA_DIR is required")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_BROKERS is set but KAFKA_TOPIC is empty")
	}

	return cfg, nil
}

// AnnouncerEnabled reports whether the Kafka announcer should be wired.
func (c *Config) AnnouncerEnabled() bool { return len(c.KafkaBrokers) > 0 }

// RemoteTierEnabled reports whether the GCS persistence tier should be wired.
func (c *Config) RemoteTierEnabled() bool { return c.GCSBucket != "" }

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDuration(key, fallback string) (time.Duration, error) {
	s := envOrDefault(key, fallback)
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return d, nil
}

func parseBrokers(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}
