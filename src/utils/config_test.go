package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))

	return path
}

func TestLoadConfig(t *testing.T) {
	t.Run("explicit values override the defaults", func(t *testing.T) {
		// arrange
		path := writeConfigFile(t, `
broker:
  live: true
  account_ids:
    - 1
    - 2
server:
  port: 8080
sync:
  interval_hours: 1
  market_hours_enabled: true
logging:
  level: debug
`)

		// act
		cfg, err := LoadConfig(path)

		// assert
		require.NoError(t, err)
		assert.True(t, cfg.Broker.Live)
		assert.Equal(t, []int64{1, 2}, cfg.Broker.AccountIDs)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, 1, cfg.Sync.IntervalHours)
		assert.True(t, cfg.Sync.MarketHoursEnabled)
		assert.Equal(t, "debug", cfg.Logging.Level)
	})

	t.Run("omitted sections keep their defaults", func(t *testing.T) {
		// arrange
		path := writeConfigFile(t, "broker:\n  account_ids: [1]\n")

		// act
		cfg, err := LoadConfig(path)

		// assert
		require.NoError(t, err)
		assert.Equal(t, 3000, cfg.Server.Port)
		assert.Equal(t, 4, cfg.Sync.IntervalHours)
		assert.True(t, cfg.Sync.ScheduledEnabled)
		assert.False(t, cfg.Sync.MarketHoursEnabled)
		assert.Equal(t, "info", cfg.Logging.Level)
	})

	t.Run("missing file is an error", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})
}

func TestBrokerConfig_Endpoints(t *testing.T) {
	cfg := BrokerConfig{
		RestURL:   "https://live.example.com/v1",
		DemoURL:   "https://demo.example.com/v1",
		WsURL:     "wss://live.example.com/v1/websocket",
		DemoWsURL: "wss://demo.example.com/v1/websocket",
	}

	t.Run("demo by default", func(t *testing.T) {
		assert.Equal(t, "https://demo.example.com/v1", cfg.RestEndpoint())
		assert.Equal(t, "wss://demo.example.com/v1/websocket", cfg.WsEndpoint())
	})

	t.Run("live when selected", func(t *testing.T) {
		live := cfg
		live.Live = true

		assert.Equal(t, "https://live.example.com/v1", live.RestEndpoint())
		assert.Equal(t, "wss://live.example.com/v1/websocket", live.WsEndpoint())
	})
}
