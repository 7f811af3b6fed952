// Package config loads the client configuration from YAML with environment
// overrides. A .env file in the working directory is honored when present.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"simutrador-go/internal/risk"
)

// App is the root configuration.
type App struct {
	LogLevel    string         `yaml:"log_level"`
	MetricsAddr string         `yaml:"metrics_addr"`
	Auth        AuthConfig     `yaml:"auth"`
	Server      ServerConfig   `yaml:"server"`
	Session     SessionConfig  `yaml:"session"`
	Strategy    StrategyConfig `yaml:"strategy"`
	Risk        risk.Limits    `yaml:"risk"`
	Recorder    RecorderConfig `yaml:"recorder"`
}

// AuthConfig holds the REST auth endpoint and API key.
type AuthConfig struct {
	ServerURL string `yaml:"server_url"`
	APIKey    string `yaml:"api_key"`
}

// ServerConfig holds the simulation WebSocket endpoint.
type ServerConfig struct {
	WebSocketURL string `yaml:"websocket_url"`
}

// SessionConfig parameterizes start_simulation.
type SessionConfig struct {
	Symbols        []string `yaml:"symbols"`
	StartDate      string   `yaml:"start_date"`
	EndDate        string   `yaml:"end_date"`
	InitialCapital float64  `yaml:"initial_capital"`
	Timeframe      string   `yaml:"timeframe"`
	WarmupBars     int      `yaml:"warmup_bars"`
	Adjusted       bool     `yaml:"adjusted"`
	ExecutionMode  string   `yaml:"execution_mode"`
	DataProvider   string   `yaml:"data_provider"`
	Commission     float64  `yaml:"commission"`
	SlippageBps    float64  `yaml:"slippage_bps"`
}

// StrategyConfig parameterizes the built-in momentum strategy.
type StrategyConfig struct {
	Threshold  float64 `yaml:"threshold"`
	WindowBars int     `yaml:"window_bars"`
	MinVolume  float64 `yaml:"min_volume"`
	Quantity   float64 `yaml:"quantity"`
}

// RecorderConfig controls execution report recording.
type RecorderConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load reads the YAML file at path and applies environment overrides.
func Load(path string) (App, error) {
	_ = godotenv.Load()

	var cfg App
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	if cfg.Auth.ServerURL == "" {
		return cfg, fmt.Errorf("config: auth.server_url is required")
	}
	if cfg.Server.WebSocketURL == "" {
		return cfg, fmt.Errorf("config: server.websocket_url is required")
	}
	return cfg, nil
}

func applyEnv(cfg *App) {
	if v := os.Getenv("SIMUTRADOR_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}
	if v := os.Getenv("SIMUTRADOR_AUTH_URL"); v != "" {
		cfg.Auth.ServerURL = v
	}
	if v := os.Getenv("SIMUTRADOR_WS_URL"); v != "" {
		cfg.Server.WebSocketURL = v
	}
	if v := os.Getenv("SIMUTRADOR_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

func applyDefaults(cfg *App) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Session.Timeframe == "" {
		cfg.Session.Timeframe = "1min"
	}
	if cfg.Session.InitialCapital == 0 {
		cfg.Session.InitialCapital = 100000
	}
	if cfg.Recorder.Enabled && strings.TrimSpace(cfg.Recorder.Path) == "" {
		cfg.Recorder.Path = "fills.jsonl"
	}
}
