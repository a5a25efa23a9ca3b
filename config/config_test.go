package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/valuebot/config"
	"github.com/alejandrodnm/valuebot/internal/domain"
)

const sample = `
storage:
  dsn: ":memory:"
engine:
  benchmark: pinnacle
  sync_interval_seconds: 15
  leagues: [soccer_epl]
catalog:
  sports:
    - {key: soccer, title: Soccer}
  leagues:
    - {key: soccer_epl, sport: soccer, title: EPL}
bookmakers:
  sxbet:
    title: SX Bet
    model_type: api
    base_url: https://api.sx.bet
    starting_balance: 100
    requests_per_second: 2
  pinnacle:
    active: false
`

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"LOG_LEVEL", "LOG_FORMAT", "STORAGE_DSN", "TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID", "REDIS_ADDR", "HTTP_ADDR"} {
		t.Setenv(k, "")
	}
}

func TestParse_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := config.Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, ":memory:", cfg.Storage.DSN)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, []string{"*"}, cfg.HTTP.AllowedOrigins)
	assert.Equal(t, 15*time.Second, cfg.SyncInterval())
	assert.Equal(t, 60*time.Second, cfg.RecomputeInterval())
	assert.Equal(t, 30*time.Second, cfg.AutoTradeInterval())
	assert.Equal(t, 5*time.Second, cfg.BroadcastTick())
	assert.Equal(t, 4, cfg.Engine.SyncConcurrency)
	assert.Equal(t, "valuebot", cfg.Redis.ChannelPrefix)
}

func TestBookmakerSeeds(t *testing.T) {
	clearEnv(t)
	cfg, err := config.Parse([]byte(sample))
	require.NoError(t, err)

	seeds := cfg.BookmakerSeeds()
	require.Len(t, seeds, 2)

	// ordenados por key
	assert.Equal(t, "pinnacle", seeds[0].Key)
	assert.Equal(t, "pinnacle", seeds[0].Title, "title defaults to the key")
	assert.Equal(t, domain.ModelSimple, seeds[0].ModelType)
	assert.False(t, seeds[0].Active)

	sx := seeds[1]
	assert.Equal(t, "sxbet", sx.Key)
	assert.Equal(t, "SX Bet", sx.Title)
	assert.Equal(t, domain.ModelAPI, sx.ModelType)
	assert.True(t, sx.Active)
	assert.Equal(t, "https://api.sx.bet", sx.Config.BaseURL)
	assert.Equal(t, 100.0, sx.Config.StartingBalance)
	assert.Equal(t, 2.0, sx.Config.RequestsPerSecond)
}

func TestCatalogDomain(t *testing.T) {
	clearEnv(t)
	cfg, err := config.Parse([]byte(sample))
	require.NoError(t, err)

	sports, leagues := cfg.Catalog.Domain()
	assert.Equal(t, []domain.Sport{{Key: "soccer", Title: "Soccer"}}, sports)
	assert.Equal(t, []domain.League{{Key: "soccer_epl", SportKey: "soccer", Title: "EPL"}}, leagues)
}

func TestParse_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("STORAGE_DSN", "postgres://bot@db/valuebot")
	t.Setenv("TELEGRAM_BOT_TOKEN", "tok")
	t.Setenv("TELEGRAM_CHAT_ID", "42")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("HTTP_ADDR", ":9090")

	cfg, err := config.Parse([]byte(sample))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "postgres://bot@db/valuebot", cfg.Storage.DSN)
	assert.Equal(t, "tok", cfg.Notify.Telegram.Token)
	assert.Equal(t, "42", cfg.Notify.Telegram.ChatID)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
}

func TestParse_Invalid(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name string
		yaml string
	}{
		{"bad yaml", "storage: [oops"},
		{"unknown model type", "bookmakers:\n  x:\n    model_type: exchange\n"},
		{"league without sport", "catalog:\n  leagues:\n    - {key: epl}\n"},
		{"unknown log format", "log:\n  format: xml\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"soccer_epl"}, cfg.Engine.Leagues)

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
