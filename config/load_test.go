package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pmm-adaptive/indicator"
	"pmm-adaptive/strategy"
)

const sampleConfig = `
env: dev
market:
  pair: SOL-USDT
  exchange: paper
  candleExchange: binance
  candleInterval: 1m
  windowCapacity: 120
feed:
  mode: sim
strategy:
  orderAmount: 0.05
  baseRefreshMs: 20000
  minRefreshMs: 2000
  bidSpreadScalar: 0.04
  askSpreadScalar: 0.06
  inventoryRiskScalar: 0.2
  rsiPeriod: 10
  rsiSkewScalar: 0.002
  natrPeriod: 20
  volumePeriod: 25
  volatilityScalar: 40
  spikeMultiplier: 3
  spikeTighten: 0.001
  degeneratePolicy: widen
  minSpreadRatio: 0.001
  smoothing: wilder
inventory:
  mode: manual
  initialBase: 2
  initialQuote: 300
constraints:
  tickSize: 0.01
  stepSize: 0.001
  minNotional: 1
`

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Market.Pair != "SOL-USDT" || cfg.Feed.Mode != "sim" {
		t.Fatalf("unexpected cfg values: %+v", cfg)
	}
	// 未填写的字段保留默认值
	if cfg.Strategy.OverboughtThreshold != 70 || cfg.Strategy.OversoldThreshold != 30 {
		t.Fatalf("defaults not kept: %+v", cfg.Strategy)
	}
	if cfg.Strategy.TickMs != 1000 {
		t.Fatalf("expected default tickMs, got %d", cfg.Strategy.TickMs)
	}
}

func TestConversions(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ind := cfg.IndicatorConfig()
	if ind.VolatilityPeriod != 20 || ind.MomentumPeriod != 10 || ind.VolumePeriod != 25 || ind.Smoothing != indicator.SmoothingWilder {
		t.Fatalf("indicator config: %+v", ind)
	}
	eng := cfg.EngineConfig()
	if eng.Quote.DegeneratePolicy != strategy.DegenerateWiden || eng.Quote.Amount != 0.05 {
		t.Fatalf("quote config: %+v", eng.Quote)
	}
	if eng.Refresh.BaseInterval != 20*time.Second || eng.Refresh.MinInterval != 2*time.Second {
		t.Fatalf("refresh policy: %+v", eng.Refresh)
	}
	if eng.Skew.MinPrice != strategy.DefaultMinPrice {
		t.Fatalf("min price: %v", eng.Skew.MinPrice)
	}
	if c := cfg.SymbolConstraints(); c.TickSize != 0.01 || c.StepSize != 0.001 {
		t.Fatalf("constraints: %+v", c)
	}
	if d, _ := cfg.CandleInterval(); d != time.Minute {
		t.Fatalf("interval: %v", d)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	path := writeTempConfig(t, sampleConfig)
	t.Setenv("PMM_PAIR", "ETH-USDT")
	t.Setenv("PMM_ORDER_AMOUNT", "0.5")
	t.Setenv("PMM_INVENTORY_MODE", "venue")
	t.Setenv("PMM_ALLOW_DEGRADED", "true")
	cfg, err := LoadWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Market.Pair != "ETH-USDT" || cfg.Strategy.OrderAmount != 0.5 {
		t.Fatalf("env overrides not applied: %+v", cfg.Market)
	}
	if cfg.Inventory.Mode != "venue" || !cfg.Feed.AllowDegraded {
		t.Fatalf("env overrides not applied: %+v %+v", cfg.Inventory, cfg.Feed)
	}
}

func TestLoadWithBadEnvOverride(t *testing.T) {
	path := writeTempConfig(t, sampleConfig)
	t.Setenv("PMM_ORDER_AMOUNT", "lots")
	if _, err := LoadWithEnvOverrides(path); err == nil || !strings.Contains(err.Error(), "PMM_ORDER_AMOUNT") {
		t.Fatalf("expected env parse error, got %v", err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("PMM_TEST_DOTENV=hello\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PMM_TEST_DOTENV", "")
	os.Unsetenv("PMM_TEST_DOTENV")
	if err := LoadDotEnv(path, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := os.Getenv("PMM_TEST_DOTENV"); got != "hello" {
		t.Fatalf("expected dotenv value, got %q", got)
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(AppConfig{}); err == nil {
		t.Fatalf("expected error for empty config")
	}
	if err := Validate(Default()); err != nil {
		t.Fatalf("defaults must be valid: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*AppConfig)
		want   string
	}{
		{"amount", func(c *AppConfig) { c.Strategy.OrderAmount = 0 }, "orderAmount"},
		{"interval", func(c *AppConfig) { c.Market.CandleInterval = "1x" }, "candleInterval"},
		{"feed mode", func(c *AppConfig) { c.Feed.Mode = "kafka" }, "feed.mode"},
		{"inventory mode", func(c *AppConfig) { c.Inventory.Mode = "magic" }, "inventory.mode"},
		{"window", func(c *AppConfig) { c.Market.WindowCapacity = 10 }, "windowCapacity"},
		{"policy", func(c *AppConfig) { c.Strategy.DegeneratePolicy = "ignore" }, "degenerate policy"},
		{"spike", func(c *AppConfig) { c.Strategy.SpikeMultiplier = 1 }, "spike multiplier"},
		{"negative initial", func(c *AppConfig) { c.Inventory.InitialQuote = -1 }, "initial balances"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := Validate(cfg)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestParseInterval(t *testing.T) {
	good := map[string]time.Duration{"1s": time.Second, "1m": time.Minute, "15m": 15 * time.Minute, "4h": 4 * time.Hour, "1d": 24 * time.Hour}
	for in, want := range good {
		got, err := ParseInterval(in)
		if err != nil || got != want {
			t.Fatalf("%s: got %v %v", in, got, err)
		}
	}
	for _, in := range []string{"", "m", "0m", "-1m", "1w"} {
		if _, err := ParseInterval(in); err == nil {
			t.Fatalf("%q should be rejected", in)
		}
	}
}
