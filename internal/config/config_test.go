// Package config_test provides tests for configuration loading.
package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/quantdesk/sentinel-backend/internal/config"
	"github.com/shopspring/decimal"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}

	if cfg.Symbol != "ethbtc" {
		t.Fatalf("unexpected default symbol %q", cfg.Symbol)
	}
	if cfg.EvaluateEvery != 10*time.Second {
		t.Fatalf("unexpected evaluate cadence %v", cfg.EvaluateEvery)
	}
	if cfg.Regime.SpreadUnstable != 0.5 || cfg.Regime.FastTradesPer10s != 120 {
		t.Fatalf("unexpected regime defaults %+v", cfg.Regime)
	}
	if cfg.Permission.CooldownMs != 60_000 || cfg.Permission.ProbationMs != 30_000 {
		t.Fatalf("unexpected permission defaults %+v", cfg.Permission)
	}
	if !cfg.Execution.BaseQuantity.Equal(decimal.RequireFromString("0.001")) {
		t.Fatalf("unexpected base quantity %s", cfg.Execution.BaseQuantity)
	}
	if cfg.Execution.MaxRepricesPerOrder != 5 || cfg.Execution.MinFillLatencyMs != 200 {
		t.Fatalf("unexpected execution defaults %+v", cfg.Execution)
	}
	// The unstable thresholds are shared across classifier, permission
	// and health views.
	if cfg.Health.SpreadUnstable != cfg.Regime.SpreadUnstable {
		t.Fatal("health must inherit the regime spread threshold")
	}
	if cfg.Permission.SpreadUnstable != cfg.Regime.SpreadUnstable {
		t.Fatal("permission must inherit the regime spread threshold")
	}
}

func TestLoadFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte("symbol: btcusdt\nregime:\n  spread_unstable: 2.5\nexecution:\n  base_quantity: \"0.01\"\n")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Symbol != "btcusdt" {
		t.Fatalf("expected overridden symbol, got %q", cfg.Symbol)
	}
	if cfg.Regime.SpreadUnstable != 2.5 {
		t.Fatalf("expected overridden spread threshold, got %v", cfg.Regime.SpreadUnstable)
	}
	if !cfg.Execution.BaseQuantity.Equal(decimal.RequireFromString("0.01")) {
		t.Fatalf("expected overridden base quantity, got %s", cfg.Execution.BaseQuantity)
	}
	// Untouched knobs keep their defaults.
	if cfg.Regime.LatencyUnstableMs != 2500 {
		t.Fatalf("expected default latency threshold, got %v", cfg.Regime.LatencyUnstableMs)
	}
}

func TestLoadRejectsBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("symbol: \"\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := config.Load(path); err == nil {
		t.Fatal("empty symbol must be rejected")
	}

	if err := os.WriteFile(path, []byte("execution:\n  base_quantity: \"not-a-number\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := config.Load(path); err == nil {
		t.Fatal("unparseable base quantity must be rejected")
	}
}
