package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 5*time.Minute, cfg.PollInterval)
	assert.Equal(t, 10*time.Minute, cfg.ScoreInterval)
	assert.Equal(t, 30*time.Second, cfg.PollTimeout)
	assert.Equal(t, time.Duration(0), cfg.EventRetention)
	assert.Equal(t, "data/badger", cfg.DataDir)
	assert.Equal(t, "data/cache", cfg.CacheDir)
	assert.False(t, cfg.RemoteTierEnabled())
	assert.False(t, cfg.AnnouncerEnabled())
	assert.Equal(t, "watershed-change-events", cfg.KafkaTopic)
	assert.Empty(t, cfg.RulesPath)
	assert.Empty(t, cfg.GeoIndexPath)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("POLL_INTERVAL", "1m")
	t.Setenv("SCORE_INTERVAL", "2m")
	t.Setenv("POLL_TIMEOUT", "5s")
	t.Setenv("EVENT_RETENTION", "720h")
	t.Setenv("DATA_DIR", "/var/lib/sentinel")
	t.Setenv("CACHE_DIR", "/var/cache/feeds")
	t.Setenv("GCS_BUCKET", "sentinel-state")
	t.Setenv("KAFKA_BROKERS", "broker1:9092, broker2:9092")
	t.Setenv("KAFKA_TOPIC", "custom-events")
	t.Setenv("RULES_PATH", "/etc/sentinel/rules.yaml")
	t.Setenv("GEO_INDEX_PATH", "/etc/sentinel/huc8.json")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, time.Minute, cfg.PollInterval)
	assert.Equal(t, 2*time.Minute, cfg.ScoreInterval)
	assert.Equal(t, 5*time.Second, cfg.PollTimeout)
	assert.Equal(t, 720*time.Hour, cfg.EventRetention)
	assert.Equal(t, "/var/lib/sentinel", cfg.DataDir)
	assert.Equal(t, "/var/cache/feeds", cfg.CacheDir)
	assert.True(t, cfg.RemoteTierEnabled())
	assert.True(t, cfg.AnnouncerEnabled())
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-events", cfg.KafkaTopic)
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "not-a-duration")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "POLL_INTERVAL")
}

func TestLoad_NegativeRetention(t *testing.T) {
	t.Setenv("EVENT_RETENTION", "-1h")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EVENT_RETENTION")
}

func TestParseBrokers(t *testing.T) {
	assert.Nil(t, parseBrokers(""))
	assert.Equal(t, []string{"a:1"}, parseBrokers("a:1"))
	assert.Equal(t, []string{"a:1", "b:2"}, parseBrokers(" a:1 ,, b:2 "))
}
