package strategy

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrDegenerateQuote 计算出的买价不低于卖价（或价格非正），本周期不报价。
	ErrDegenerateQuote = errors.New("degenerate quote: buy price not below sell price")
	// ErrInvalidInput 盘口或数量不合法。
	ErrInvalidInput = errors.New("invalid quote input")
)

// Side 订单方向。
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// DegeneratePolicy 决定买卖价交叉时的处理方式。
type DegeneratePolicy string

const (
	DegenerateReject DegeneratePolicy = "reject"
	DegenerateWiden  DegeneratePolicy = "widen"
)

// QuoteConfig 价差、放量收紧与交叉处理参数。
type QuoteConfig struct {
	BidSpreadScalar  float64
	AskSpreadScalar  float64
	SpikeTighten     float64 // 放量时买价上调、卖价下调的比例
	DegeneratePolicy DegeneratePolicy
	MinSpreadRatio   float64 // widen 策略下单侧最小价差
	Amount           float64
}

func DefaultQuoteConfig() QuoteConfig {
	return QuoteConfig{
		BidSpreadScalar:  0.05,
		AskSpreadScalar:  0.05,
		SpikeTighten:     0.002,
		DegeneratePolicy: DegenerateReject,
		MinSpreadRatio:   0.0005,
		Amount:           0.01,
	}
}

func (c QuoteConfig) Validate() error {
	if c.BidSpreadScalar < 0 || c.AskSpreadScalar < 0 {
		return fmt.Errorf("spread scalars must be >= 0, got bid=%f ask=%f", c.BidSpreadScalar, c.AskSpreadScalar)
	}
	if c.SpikeTighten < 0 || c.SpikeTighten >= 1 {
		return fmt.Errorf("spike tighten must be in [0,1), got %f", c.SpikeTighten)
	}
	switch c.DegeneratePolicy {
	case DegenerateReject:
	case DegenerateWiden:
		if c.MinSpreadRatio <= 0 || c.MinSpreadRatio >= 1 {
			return fmt.Errorf("min spread ratio must be in (0,1) for widen policy, got %f", c.MinSpreadRatio)
		}
	default:
		return fmt.Errorf("unknown degenerate policy %q", c.DegeneratePolicy)
	}
	if c.Amount <= 0 {
		return fmt.Errorf("order amount must be > 0, got %f", c.Amount)
	}
	return nil
}

// Leg 单侧报价。
type Leg struct {
	Side   Side
	Price  float64
	Amount float64
}

// Proposal 一个周期的双边报价。
type Proposal struct {
	Buy       Leg
	Sell      Leg
	BidSpread float64
	AskSpread float64
	Spike     bool
	Widened   bool
}

// Legs returns BUY then SELL.
func (p Proposal) Legs() []Leg {
	return []Leg{p.Buy, p.Sell}
}

// QuoteInput 报价构建所需的一次性输入。
type QuoteInput struct {
	AdjustedMid float64
	Volatility  float64
	BestBid     float64
	BestAsk     float64
	VolumeSpike bool
}

// BuildQuotes 按波动率价差生成双边报价，并把结果钳制在盘口之外：
// 买价不高于 best bid，卖价不低于 best ask。
func BuildQuotes(in QuoteInput, cfg QuoteConfig) (Proposal, error) {
	switch {
	case in.AdjustedMid <= 0 || math.IsNaN(in.AdjustedMid):
		return Proposal{}, fmt.Errorf("%w: adjusted mid %f", ErrInvalidInput, in.AdjustedMid)
	case in.BestBid <= 0 || in.BestAsk <= 0:
		return Proposal{}, fmt.Errorf("%w: best bid/ask %f/%f", ErrInvalidInput, in.BestBid, in.BestAsk)
	case in.BestBid >= in.BestAsk:
		return Proposal{}, fmt.Errorf("%w: crossed book %f/%f", ErrInvalidInput, in.BestBid, in.BestAsk)
	case in.Volatility < 0 || math.IsNaN(in.Volatility):
		return Proposal{}, fmt.Errorf("%w: volatility %f", ErrInvalidInput, in.Volatility)
	case cfg.Amount <= 0:
		return Proposal{}, fmt.Errorf("%w: amount %f", ErrInvalidInput, cfg.Amount)
	}

	bidSpread, askSpread := VolatilitySpreads(in.Volatility, cfg.BidSpreadScalar, cfg.AskSpreadScalar)
	buy := math.Min(in.AdjustedMid*(1-bidSpread), in.BestBid)
	sell := math.Max(in.AdjustedMid*(1+askSpread), in.BestAsk)

	if in.VolumeSpike {
		buy *= 1 + cfg.SpikeTighten
		sell *= 1 - cfg.SpikeTighten
	}

	p := Proposal{
		BidSpread: bidSpread,
		AskSpread: askSpread,
		Spike:     in.VolumeSpike,
	}
	if buy <= 0 || sell <= 0 || buy >= sell {
		if cfg.DegeneratePolicy != DegenerateWiden {
			return Proposal{}, fmt.Errorf("%w: buy=%f sell=%f", ErrDegenerateQuote, buy, sell)
		}
		center := (buy + sell) / 2
		if center <= 0 {
			center = in.AdjustedMid
		}
		buy, sell = widenAround(center, cfg.MinSpreadRatio)
		p.Widened = true
	}
	p.Buy = Leg{Side: Buy, Price: buy, Amount: cfg.Amount}
	p.Sell = Leg{Side: Sell, Price: sell, Amount: cfg.Amount}
	return p, nil
}
