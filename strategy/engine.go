package strategy

import (
	"fmt"
	"time"

	"pmm-adaptive/indicator"
	"pmm-adaptive/inventory"
)

// MarketSnapshot 本周期刷新得到的盘口，必须每个周期重新获取。
type MarketSnapshot struct {
	Mid     float64
	BestBid float64
	BestAsk float64
	Ts      time.Time
}

// EngineConfig 组合偏移、报价与刷新参数。
type EngineConfig struct {
	Skew    SkewConfig
	Quote   QuoteConfig
	Refresh RefreshPolicy
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Skew:    DefaultSkewConfig(),
		Quote:   DefaultQuoteConfig(),
		Refresh: DefaultRefreshPolicy(),
	}
}

// Decision 一个周期的定价结果。
type Decision struct {
	Skew     SkewResult
	Proposal Proposal
	Interval time.Duration
}

// Engine 负责根据指标、行情和库存生成报价。无状态，可被多个交易对实例共享。
type Engine struct {
	cfg EngineConfig
}

func NewEngine(cfg EngineConfig) (*Engine, error) {
	if err := cfg.Skew.Validate(); err != nil {
		return nil, fmt.Errorf("skew config: %w", err)
	}
	if err := cfg.Quote.Validate(); err != nil {
		return nil, fmt.Errorf("quote config: %w", err)
	}
	if err := cfg.Refresh.Validate(); err != nil {
		return nil, fmt.Errorf("refresh policy: %w", err)
	}
	return &Engine{cfg: cfg}, nil
}

func (e *Engine) Config() EngineConfig { return e.cfg }

// Interval returns the adaptive refresh interval for vol.
func (e *Engine) Interval(vol float64) time.Duration {
	return e.cfg.Refresh.Next(vol)
}

// Propose 依次执行库存/动量偏移与报价构建。
// 出错时返回的 Decision 仍包含已算出的 Skew 与 Interval，便于记录。
func (e *Engine) Propose(snap indicator.Snapshot, mkt MarketSnapshot, bal inventory.Balances) (Decision, error) {
	d := Decision{Interval: e.Interval(snap.Volatility)}
	skew, err := ComposeSkew(mkt.Mid, bal, snap.Momentum, e.cfg.Skew)
	if err != nil {
		return d, err
	}
	d.Skew = skew
	p, err := BuildQuotes(QuoteInput{
		AdjustedMid: skew.AdjustedMid,
		Volatility:  snap.Volatility,
		BestBid:     mkt.BestBid,
		BestAsk:     mkt.BestAsk,
		VolumeSpike: snap.VolumeSpike,
	}, e.cfg.Quote)
	if err != nil {
		return d, err
	}
	d.Proposal = p
	return d, nil
}
