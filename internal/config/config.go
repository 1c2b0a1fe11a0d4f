// Package config loads the YAML configuration shared by the server and the
// terminal dashboard, with environment variable overrides on top.
package config

import (
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the tradedash platform.
type Config struct {
	Storage   Storage       `yaml:"storage"`
	Server    Server        `yaml:"server"`
	Binance   Binance       `yaml:"binance"`
	Logging   Logging       `yaml:"logging"`
	Trading   TradingConfig `yaml:"trading"`
	Dashboard Dashboard     `yaml:"dashboard"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Server holds network listener configuration.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Binance holds credentials for the Binance API.
type Binance struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	Testnet   bool   `yaml:"testnet"`
}

// Logging configures the application logger. File is used by the terminal
// dashboard, which owns stdout.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// TradingConfig defines execution parameters.
type TradingConfig struct {
	PaperMode       bool `yaml:"paper_mode"`
	TwapChunks      int  `yaml:"twap_chunks"`
	TwapDurationMin int  `yaml:"twap_duration_min"`
}

// Dashboard configures the terminal client.
type Dashboard struct {
	ServerURL       string   `yaml:"server_url"`
	Symbols         []string `yaml:"symbols"`
	DefaultSymbol   string   `yaml:"default_symbol"`
	DefaultInterval string   `yaml:"default_interval"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Default returns a configuration with every field at its default,
// environment overrides applied. Used when no config file is present.
func Default() *Config {
	_ = godotenv.Load()
	cfg := &Config{}
	applyEnvOverrides(cfg)
	applyDefaults(cfg)
	return cfg
}

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, and then applies environment variable overrides. A .env
// file in the working directory is folded into the environment first, so
// credentials never need to live in the YAML.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}

	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("BINANCE_API_KEY"); v != "" {
		cfg.Binance.APIKey = v
	}

	if v := os.Getenv("BINANCE_API_SECRET"); v != "" {
		cfg.Binance.APISecret = v
	}

	if v := os.Getenv("BINANCE_TESTNET"); v == "1" || v == "true" {
		cfg.Binance.Testnet = true
	}

	if v := os.Getenv("DASH_SERVER_URL"); v != "" {
		cfg.Dashboard.ServerURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// applyDefaults fills configuration fields that were left empty.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "data"
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = "data/tradedash.db"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Trading.TwapChunks == 0 {
		cfg.Trading.TwapChunks = 5
	}
	if cfg.Trading.TwapDurationMin == 0 {
		cfg.Trading.TwapDurationMin = 5
	}
	if cfg.Dashboard.ServerURL == "" {
		cfg.Dashboard.ServerURL = "http://127.0.0.1:8080"
	}
	if cfg.Dashboard.DefaultSymbol == "" {
		cfg.Dashboard.DefaultSymbol = "BTCUSDT"
	}
	if cfg.Dashboard.DefaultInterval == "" {
		cfg.Dashboard.DefaultInterval = "1m"
	}
	if len(cfg.Dashboard.Symbols) == 0 {
		cfg.Dashboard.Symbols = []string{"BTCUSDT", "ETHUSDT", "BNBUSDT", "SOLUSDT"}
	}
}
