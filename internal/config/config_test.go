package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	yamlContent := `
storage:
  data_dir: "/tmp/tradedash/data"
  sqlite_path: "/tmp/tradedash/tradedash.db"
server:
  host: "127.0.0.1"
  port: 9000
binance:
  api_key: "test-key"
  api_secret: "test-secret"
  testnet: true
logging:
  level: "debug"
  format: "json"
trading:
  paper_mode: true
  twap_chunks: 4
  twap_duration_min: 10
dashboard:
  server_url: "http://localhost:9000"
  default_symbol: "ETHUSDT"
  default_interval: "5m"
  symbols: ["ETHUSDT", "BTCUSDT"]
`

	// Clear any environment overrides that might interfere.
	os.Unsetenv("BINANCE_API_KEY")
	os.Unsetenv("BINANCE_API_SECRET")
	os.Unsetenv("BINANCE_TESTNET")
	os.Unsetenv("DATA_DIR")
	os.Unsetenv("DASH_SERVER_URL")
	os.Unsetenv("LOG_LEVEL")

	cfg, err := Load(writeConfig(t, yamlContent))
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Storage.DataDir != "/tmp/tradedash/data" {
		t.Errorf("Storage.DataDir = %q, want %q", cfg.Storage.DataDir, "/tmp/tradedash/data")
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "127.0.0.1")
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9000)
	}
	if cfg.Binance.APIKey != "test-key" {
		t.Errorf("Binance.APIKey = %q, want %q", cfg.Binance.APIKey, "test-key")
	}
	if !cfg.Binance.Testnet {
		t.Error("Binance.Testnet = false, want true")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if !cfg.Trading.PaperMode {
		t.Error("Trading.PaperMode = false, want true")
	}
	if cfg.Trading.TwapChunks != 4 {
		t.Errorf("Trading.TwapChunks = %d, want 4", cfg.Trading.TwapChunks)
	}
	if cfg.Dashboard.DefaultSymbol != "ETHUSDT" {
		t.Errorf("Dashboard.DefaultSymbol = %q, want %q", cfg.Dashboard.DefaultSymbol, "ETHUSDT")
	}
	if len(cfg.Dashboard.Symbols) != 2 {
		t.Errorf("Dashboard.Symbols = %v, want 2 entries", cfg.Dashboard.Symbols)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	yamlContent := `
binance:
  api_key: "yaml-key"
  api_secret: "yaml-secret"
storage:
  data_dir: "/original/data"
`

	os.Setenv("BINANCE_API_KEY", "env-key")
	os.Setenv("DATA_DIR", "/env/data")
	os.Unsetenv("BINANCE_API_SECRET")
	defer os.Unsetenv("BINANCE_API_KEY")
	defer os.Unsetenv("DATA_DIR")

	cfg, err := Load(writeConfig(t, yamlContent))
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Binance.APIKey != "env-key" {
		t.Errorf("Binance.APIKey = %q, want %q (env override)", cfg.Binance.APIKey, "env-key")
	}
	// api_secret should remain from YAML since no env override was set.
	if cfg.Binance.APISecret != "yaml-secret" {
		t.Errorf("Binance.APISecret = %q, want %q (from YAML)", cfg.Binance.APISecret, "yaml-secret")
	}
	if cfg.Storage.DataDir != "/env/data" {
		t.Errorf("Storage.DataDir = %q, want %q (env override)", cfg.Storage.DataDir, "/env/data")
	}
}

func TestLoadDefaults(t *testing.T) {
	os.Unsetenv("DATA_DIR")
	os.Unsetenv("DASH_SERVER_URL")
	os.Unsetenv("LOG_LEVEL")

	cfg, err := Load(writeConfig(t, "{}"))
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Dashboard.DefaultSymbol != "BTCUSDT" {
		t.Errorf("Dashboard.DefaultSymbol = %q, want BTCUSDT", cfg.Dashboard.DefaultSymbol)
	}
	if cfg.Dashboard.DefaultInterval != "1m" {
		t.Errorf("Dashboard.DefaultInterval = %q, want 1m", cfg.Dashboard.DefaultInterval)
	}
	if cfg.Trading.TwapChunks != 5 {
		t.Errorf("Trading.TwapChunks = %d, want 5", cfg.Trading.TwapChunks)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
}
