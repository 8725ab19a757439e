package config

import (
	"errors"
	"fmt"

	"pmm-adaptive/inventory"
)

// Validate ensures required fields are present and ranges are sane.
func Validate(cfg AppConfig) error {
	if cfg.Env == "" {
		return errors.New("env is required")
	}
	if cfg.Market.Pair == "" {
		return errors.New("market.pair is required")
	}
	if cfg.Market.Exchange == "" {
		return errors.New("market.exchange is required")
	}
	if _, err := cfg.CandleInterval(); err != nil {
		return fmt.Errorf("market.candleInterval: %w", err)
	}
	if cfg.Market.WindowCapacity <= 0 {
		return errors.New("market.windowCapacity must be > 0")
	}
	switch cfg.Feed.Mode {
	case "binance":
		if cfg.Feed.RESTURL == "" || cfg.Feed.WSEndpoint == "" {
			return errors.New("feed.restURL/wsEndpoint is required for binance feed")
		}
	case "sim":
	default:
		return fmt.Errorf("feed.mode %q must be binance or sim", cfg.Feed.Mode)
	}
	if cfg.Feed.TimeoutMs < 0 || cfg.Feed.MaxStaleMs < 0 {
		return errors.New("feed.timeoutMs/maxStaleMs must be >= 0")
	}

	s := cfg.Strategy
	if s.OrderAmount <= 0 {
		return errors.New("strategy.orderAmount must be > 0")
	}
	if s.BaseRefreshMs <= 0 {
		return errors.New("strategy.baseRefreshMs must be > 0")
	}
	if s.MinRefreshMs <= 0 {
		return errors.New("strategy.minRefreshMs must be > 0")
	}
	if s.TickMs <= 0 {
		return errors.New("strategy.tickMs must be > 0")
	}
	ind := cfg.IndicatorConfig()
	if err := ind.Validate(); err != nil {
		return fmt.Errorf("strategy indicators: %w", err)
	}
	if cfg.Market.WindowCapacity < ind.MinCandles() {
		return fmt.Errorf("market.windowCapacity %d must be >= %d candles required by indicators",
			cfg.Market.WindowCapacity, ind.MinCandles())
	}
	eng := cfg.EngineConfig()
	if err := eng.Skew.Validate(); err != nil {
		return fmt.Errorf("strategy skew: %w", err)
	}
	if err := eng.Quote.Validate(); err != nil {
		return fmt.Errorf("strategy quote: %w", err)
	}
	if err := eng.Refresh.Validate(); err != nil {
		return fmt.Errorf("strategy refresh: %w", err)
	}

	switch inventory.Mode(cfg.Inventory.Mode) {
	case inventory.ModeManual:
		if cfg.Inventory.InitialBase < 0 || cfg.Inventory.InitialQuote < 0 {
			return errors.New("inventory initial balances must be >= 0")
		}
	case inventory.ModeVenue:
	default:
		return fmt.Errorf("inventory.mode %q must be manual or venue", cfg.Inventory.Mode)
	}
	if cfg.Paper.Base < 0 || cfg.Paper.Quote < 0 {
		return errors.New("paper balances must be >= 0")
	}

	c := cfg.Constraint
	if c.TickSize < 0 || c.StepSize < 0 {
		return fmt.Errorf("symbol %s tickSize/stepSize must be >= 0", cfg.Market.Pair)
	}
	if c.MinQty < 0 || c.MaxQty < 0 || c.MinNotional < 0 {
		return fmt.Errorf("symbol %s qty bounds must be >= 0", cfg.Market.Pair)
	}
	if c.MaxQty > 0 && c.MinQty > c.MaxQty {
		return fmt.Errorf("symbol %s minQty must be <= maxQty", cfg.Market.Pair)
	}
	if cfg.Alert.ThrottleSec < 0 {
		return errors.New("alert.throttleSec must be >= 0")
	}
	return nil
}
