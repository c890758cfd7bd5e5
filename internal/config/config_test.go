package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Fatalf("addr = %q", cfg.HTTP.Addr)
	}
	if cfg.DisplayCurrency != "USD" {
		t.Fatalf("display currency = %q", cfg.DisplayCurrency)
	}
	if cfg.Rates.Schedule != "@every 1m" {
		t.Fatalf("schedule = %q", cfg.Rates.Schedule)
	}
	if cfg.Indexer.Timeout != 15*time.Second {
		t.Fatalf("indexer timeout = %v", cfg.Indexer.Timeout)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.yaml")
	data := `
http:
  addr: ":9090"
display_currency: EUR
wallets:
  - id: w1
    address: "0:00"
    testnet: true
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Addr != ":9090" {
		t.Fatalf("addr = %q", cfg.HTTP.Addr)
	}
	if cfg.DisplayCurrency != "EUR" {
		t.Fatalf("display currency = %q", cfg.DisplayCurrency)
	}
	if len(cfg.Wallets) != 1 || !cfg.Wallets[0].Testnet {
		t.Fatalf("wallets = %+v", cfg.Wallets)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.yaml")
	if err := os.WriteFile(path, []byte("log_level: info\n"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	t.Setenv("BRIDGE_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log level = %q, want env override", cfg.LogLevel)
	}
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Fatalf("addr = %q", cfg.HTTP.Addr)
	}
}
