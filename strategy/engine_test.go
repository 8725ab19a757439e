package strategy

import (
	"errors"
	"testing"
	"time"

	"pmm-adaptive/indicator"
	"pmm-adaptive/inventory"
)

func TestNewEngine_Invalid(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.Quote.Amount = 0
	if _, err := NewEngine(cfg); err == nil {
		t.Fatal("expected error for invalid config")
	}
}

func TestEnginePropose(t *testing.T) {
	engine, err := NewEngine(DefaultEngineConfig())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	snap := indicator.Snapshot{Volatility: 0.01, Momentum: 50, Candles: 30}
	mkt := MarketSnapshot{Mid: 100, BestBid: 99.99, BestAsk: 100.01, Ts: time.Now()}

	neutral, err := engine.Propose(snap, mkt, inventory.Balances{Base: 1, Quote: 100})
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if neutral.Proposal.Buy.Price >= neutral.Proposal.Sell.Price {
		t.Fatalf("crossed proposal %+v", neutral.Proposal)
	}
	if neutral.Interval != engine.Interval(0.01) {
		t.Fatalf("unexpected interval %s", neutral.Interval)
	}

	// base 过多，期望报价整体下移
	long, err := engine.Propose(snap, mkt, inventory.Balances{Base: 3, Quote: 100})
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if long.Skew.AdjustedMid >= neutral.Skew.AdjustedMid {
		t.Fatalf("expected lower mid when long base")
	}
	if long.Proposal.Buy.Price >= neutral.Proposal.Buy.Price {
		t.Fatalf("expected lower bid when long base")
	}
}

func TestEngineProposeKeepsPartialDecision(t *testing.T) {
	engine, _ := NewEngine(DefaultEngineConfig())
	snap := indicator.Neutral()
	d, err := engine.Propose(snap, MarketSnapshot{Mid: 100, BestBid: 100, BestAsk: 99}, inventory.Balances{})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if d.Skew.AdjustedMid != 100 || d.Interval != DefaultRefreshPolicy().BaseInterval {
		t.Fatalf("partial decision missing: %+v", d)
	}
	if _, err := engine.Propose(snap, MarketSnapshot{}, inventory.Balances{}); !errors.Is(err, ErrInvalidReference) {
		t.Fatalf("expected invalid reference, got %v", err)
	}
}
