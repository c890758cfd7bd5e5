// Package config loads service configuration from an optional YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"
)

// WalletEntry declares one wallet the bridge serves.
type WalletEntry struct {
	ID      string `yaml:"id"`
	Address string `yaml:"address"`
	Testnet bool   `yaml:"testnet"`
}

// Config is the full service configuration.
type Config struct {
	HTTP struct {
		Addr string `yaml:"addr" env:"BRIDGE_HTTP_ADDR"`
	} `yaml:"http"`

	Database struct {
		// Empty DSN selects the in-memory connection store.
		DSN string `yaml:"dsn" env:"BRIDGE_DATABASE_DSN"`
	} `yaml:"database"`

	Redis struct {
		// Empty address disables the manifest cache.
		Addr     string `yaml:"addr" env:"BRIDGE_REDIS_ADDR"`
		Password string `yaml:"password" env:"BRIDGE_REDIS_PASSWORD"`
		DB       int    `yaml:"db" env:"BRIDGE_REDIS_DB"`
	} `yaml:"redis"`

	Indexer struct {
		BaseURL           string        `yaml:"base_url" env:"BRIDGE_INDEXER_URL"`
		KnownAccountsURL  string        `yaml:"known_accounts_url" env:"BRIDGE_KNOWN_ACCOUNTS_URL"`
		Timeout           time.Duration `yaml:"timeout" env:"BRIDGE_INDEXER_TIMEOUT"`
		RequestsPerSecond float64       `yaml:"requests_per_second" env:"BRIDGE_INDEXER_RPS"`
	} `yaml:"indexer"`

	Manifest struct {
		Timeout  time.Duration `yaml:"timeout" env:"BRIDGE_MANIFEST_TIMEOUT"`
		CacheTTL time.Duration `yaml:"cache_ttl" env:"BRIDGE_MANIFEST_CACHE_TTL"`
	} `yaml:"manifest"`

	Rates struct {
		Schedule   string   `yaml:"schedule" env:"BRIDGE_RATES_SCHEDULE"`
		Currencies []string `yaml:"currencies"`
	} `yaml:"rates"`

	DisplayCurrency string        `yaml:"display_currency" env:"BRIDGE_DISPLAY_CURRENCY"`
	LogLevel        string        `yaml:"log_level" env:"BRIDGE_LOG_LEVEL"`
	ShutdownGrace   time.Duration `yaml:"shutdown_grace" env:"BRIDGE_SHUTDOWN_GRACE"`

	Wallets []WalletEntry `yaml:"wallets"`
}

// Load reads the YAML file at path (skipped when path is empty or the file
// does not exist) and then applies environment overrides.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := envdecode.Decode(&cfg); err != nil && err != envdecode.ErrNoTargetFieldsAreSet {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.Indexer.BaseURL == "" {
		cfg.Indexer.BaseURL = "https://tonapi.io"
	}
	if cfg.Indexer.Timeout <= 0 {
		cfg.Indexer.Timeout = 15 * time.Second
	}
	if cfg.Indexer.RequestsPerSecond <= 0 {
		cfg.Indexer.RequestsPerSecond = 10
	}
	if cfg.Manifest.Timeout <= 0 {
		cfg.Manifest.Timeout = 10 * time.Second
	}
	if cfg.Manifest.CacheTTL <= 0 {
		cfg.Manifest.CacheTTL = 5 * time.Minute
	}
	if cfg.Rates.Schedule == "" {
		cfg.Rates.Schedule = "@every 1m"
	}
	if len(cfg.Rates.Currencies) == 0 {
		cfg.Rates.Currencies = []string{"USD"}
	}
	if cfg.DisplayCurrency == "" {
		cfg.DisplayCurrency = "USD"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 10 * time.Second
	}
}
