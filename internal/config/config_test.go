package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "config.yaml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Fatalf("unexpected log level: %s", cfg.LogLevel)
	}
	if cfg.MetricsAddr != ":9091" {
		t.Fatalf("unexpected metrics addr: %s", cfg.MetricsAddr)
	}
	if cfg.Auth.ServerURL != "http://localhost:8002" {
		t.Fatalf("unexpected auth server url: %s", cfg.Auth.ServerURL)
	}
	if cfg.Auth.APIKey != "sk-test" {
		t.Fatalf("unexpected api key: %s", cfg.Auth.APIKey)
	}
	if cfg.Server.WebSocketURL != "ws://localhost:8003" {
		t.Fatalf("unexpected websocket url: %s", cfg.Server.WebSocketURL)
	}
	if len(cfg.Session.Symbols) != 2 || cfg.Session.Symbols[0] != "AAPL" {
		t.Fatalf("unexpected symbols: %+v", cfg.Session.Symbols)
	}
	if cfg.Session.Timeframe != "5min" {
		t.Fatalf("unexpected timeframe: %s", cfg.Session.Timeframe)
	}
	if cfg.Session.InitialCapital != 50000 {
		t.Fatalf("unexpected initial capital: %.2f", cfg.Session.InitialCapital)
	}
	if cfg.Session.WarmupBars != 30 {
		t.Fatalf("unexpected warmup bars: %d", cfg.Session.WarmupBars)
	}
	if cfg.Session.ExecutionMode != "strict" {
		t.Fatalf("unexpected execution mode: %s", cfg.Session.ExecutionMode)
	}
	if cfg.Strategy.Threshold != 0.03 {
		t.Fatalf("unexpected threshold: %.2f", cfg.Strategy.Threshold)
	}
	if cfg.Strategy.WindowBars != 15 {
		t.Fatalf("unexpected window bars: %d", cfg.Strategy.WindowBars)
	}
	if cfg.Risk.MaxNotionalPerTrade != 10000 {
		t.Fatalf("unexpected max notional: %.2f", cfg.Risk.MaxNotionalPerTrade)
	}
	if !cfg.Recorder.Enabled || cfg.Recorder.Path != "out/fills.jsonl" {
		t.Fatalf("unexpected recorder config: %+v", cfg.Recorder)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SIMUTRADOR_API_KEY", "sk-from-env")
	t.Setenv("SIMUTRADOR_WS_URL", "wss://prod:9443")
	t.Setenv("SIMUTRADOR_LOG_LEVEL", "warn")

	cfg, err := Load(filepath.Join("testdata", "config.yaml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Auth.APIKey != "sk-from-env" {
		t.Fatalf("expected env api key, got %s", cfg.Auth.APIKey)
	}
	if cfg.Server.WebSocketURL != "wss://prod:9443" {
		t.Fatalf("expected env ws url, got %s", cfg.Server.WebSocketURL)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("expected env log level, got %s", cfg.LogLevel)
	}
}

func TestLoadRequiresEndpoints(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("log_level: info\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for missing endpoints")
	}
}
