package utils

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the structural configuration for the engine. Credentials are
// never stored here; they come from the environment.
type Config struct {
	Broker  BrokerConfig  `yaml:"broker"`
	Server  ServerConfig  `yaml:"server"`
	Sync    SyncConfig    `yaml:"sync"`
	Logging LoggingConfig `yaml:"logging"`
}

// BrokerConfig selects the broker environment and the accounts to trade.
type BrokerConfig struct {
	Live       bool    `yaml:"live"`
	RestURL    string  `yaml:"rest_url"`
	DemoURL    string  `yaml:"demo_url"`
	WsURL      string  `yaml:"ws_url"`
	DemoWsURL  string  `yaml:"demo_ws_url"`
	AccountIDs []int64 `yaml:"account_ids"`
}

// RestEndpoint returns the REST base URL for the selected environment.
func (c BrokerConfig) RestEndpoint() string {
	if c.Live {
		return c.RestURL
	}

	return c.DemoURL
}

// WsEndpoint returns the websocket URL for the selected environment.
func (c BrokerConfig) WsEndpoint() string {
	if c.Live {
		return c.WsURL
	}

	return c.DemoWsURL
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

// SyncConfig controls the reconciliation schedule. MarketHoursEnabled
// restricts scheduled syncs to the futures session; on-demand syncs are never
// restricted.
type SyncConfig struct {
	IntervalHours      int  `yaml:"interval_hours"`
	ScheduledEnabled   bool `yaml:"scheduled_enabled"`
	MarketHoursEnabled bool `yaml:"market_hours_enabled"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// LoadConfig reads the YAML configuration file at the given path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadConfig: failed to read %s: %w", path, err)
	}

	cfg := &Config{
		Broker: BrokerConfig{
			RestURL:   "https://live.tradovateapi.com/v1",
			DemoURL:   "https://demo.tradovateapi.com/v1",
			WsURL:     "wss://live.tradovateapi.com/v1/websocket",
			DemoWsURL: "wss://demo.tradovateapi.com/v1/websocket",
		},
		Server: ServerConfig{Port: 3000},
		Sync: SyncConfig{
			IntervalHours:    4,
			ScheduledEnabled: true,
		},
		Logging: LoggingConfig{Level: "info"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("LoadConfig: failed to parse %s: %w", path, err)
	}

	return cfg, nil
}
