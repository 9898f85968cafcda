package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "market:\n  event_slug: ev\n"))
	require.NoError(t, err)

	assert.Equal(t, "ev", cfg.Market.EventSlug)
	assert.Equal(t, 168.0, cfg.Market.TotalHours)
	assert.Equal(t, 10_000, cfg.Projection.Simulations)
	assert.Equal(t, 24*time.Hour, cfg.ShortLookback())
	assert.Equal(t, 72*time.Hour, cfg.LongLookback())
	assert.Equal(t, 365*24*time.Hour, cfg.HistoryWindow())
	assert.Equal(t, 250.0, cfg.Allocation.Capital)
	require.Len(t, cfg.Allocation.Tiers, 3)
	assert.Equal(t, TierConfig{MaxZ: 0.5, Weight: 80}, cfg.Allocation.Tiers[0])
	assert.Equal(t, 10.0, cfg.Allocation.DefaultWeight)
	assert.Equal(t, 0.4, cfg.Allocation.MaxBucketFraction)
	assert.Equal(t, 5*time.Second, cfg.TrackerInterval())
	assert.Equal(t, ":5000", cfg.Tracker.HTTPAddr)
	assert.Equal(t, 1000, cfg.Tracker.TimelinePoints)
	assert.Equal(t, "butterfly.db", cfg.Storage.DSN)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL())
	assert.Equal(t, "elonmusk", cfg.API.XTrackerUser)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_YAMLValues(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
allocation:
  capital: 1000
  tiers:
    - { max_z: 0.3, weight: 100 }
projection:
  simulations: 500
  workers: 4
  seed: 42
tracker:
  http_addr: "127.0.0.1:8080"
`))
	require.NoError(t, err)
	assert.Equal(t, 1000.0, cfg.Allocation.Capital)
	assert.Equal(t, []TierConfig{{MaxZ: 0.3, Weight: 100}}, cfg.Allocation.Tiers)
	assert.Equal(t, 500, cfg.Projection.Simulations)
	assert.Equal(t, 4, cfg.Projection.Workers)
	assert.Equal(t, uint64(42), cfg.Projection.Seed)
	assert.Equal(t, "127.0.0.1:8080", cfg.Tracker.HTTPAddr)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("BUTTERFLY_WALLET", "0xenv")
	t.Setenv("BUTTERFLY_EVENT_SLUG", "env-slug")
	t.Setenv("TELEGRAM_BOT_TOKEN", "tok")
	t.Setenv("TELEGRAM_CHAT_ID", "-100")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := Load(writeConfig(t, "market:\n  wallet: 0xyaml\n  event_slug: yaml-slug\n"))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "0xenv", cfg.Market.Wallet)
	assert.Equal(t, "env-slug", cfg.Market.EventSlug)
	assert.Equal(t, "tok", cfg.Telegram.BotToken)
	assert.Equal(t, "-100", cfg.Telegram.ChatID)
	assert.Equal(t, "localhost:6379", cfg.Cache.RedisAddr)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "allocation: [unclosed"))
	assert.Error(t, err)
}
