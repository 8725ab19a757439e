package inventory

import (
	"context"
	"errors"
	"fmt"
)

// Mode 选择余额来源，必须在配置中显式指定。
type Mode string

const (
	// ModeManual 本地账本，仅由成交回报更新。
	ModeManual Mode = "manual"
	// ModeVenue 每个周期从交易所查询余额。
	ModeVenue Mode = "venue"
)

// ErrNoBalanceSource venue 模式未提供余额来源。
var ErrNoBalanceSource = errors.New("venue inventory mode requires a balance source")

// Provider 为报价周期提供余额，并接收成交回报。
type Provider interface {
	Balances(ctx context.Context) (Balances, error)
	// OnFill 同步应用一笔成交：deltaBase > 0 为买入。
	OnFill(deltaBase, price float64) error
	Mode() Mode
}

// Valuer 按 mid 估值账本，供状态页展示持仓均价与未实现盈亏。
type Valuer interface {
	AvgCost() float64
	Valuation(mid float64) (total, pnl float64)
}

// BalanceSource 交易所余额查询。
type BalanceSource interface {
	Balances(ctx context.Context) (Balances, error)
}

// ManualProvider 使用本地 Ledger。
type ManualProvider struct {
	Ledger *Ledger
}

func NewManualProvider(initial Balances) (*ManualProvider, error) {
	l, err := NewLedger(initial)
	if err != nil {
		return nil, err
	}
	return &ManualProvider{Ledger: l}, nil
}

func (p *ManualProvider) Balances(context.Context) (Balances, error) {
	return p.Ledger.Balances(), nil
}

func (p *ManualProvider) OnFill(deltaBase, price float64) error {
	return p.Ledger.Update(deltaBase, price)
}

func (p *ManualProvider) Mode() Mode { return ModeManual }

func (p *ManualProvider) AvgCost() float64 { return p.Ledger.AvgCost() }

func (p *ManualProvider) Valuation(mid float64) (float64, float64) {
	return p.Ledger.Valuation(mid)
}

// VenueProvider 以交易所余额为准；成交只更新持仓均价，用于状态展示。
type VenueProvider struct {
	Source BalanceSource
	shadow *Ledger
}

func NewVenueProvider(src BalanceSource) (*VenueProvider, error) {
	if src == nil {
		return nil, ErrNoBalanceSource
	}
	shadow, _ := NewLedger(Balances{})
	return &VenueProvider{Source: src, shadow: shadow}, nil
}

func (p *VenueProvider) Balances(ctx context.Context) (Balances, error) {
	b, err := p.Source.Balances(ctx)
	if err != nil {
		return Balances{}, fmt.Errorf("query venue balances: %w", err)
	}
	p.shadow.Reset(b)
	return b, nil
}

func (p *VenueProvider) OnFill(deltaBase, price float64) error {
	// 余额以下一次查询为准，这里的截断不算错误
	if err := p.shadow.Update(deltaBase, price); err != nil && !errors.Is(err, ErrBalanceClamped) {
		return err
	}
	return nil
}

func (p *VenueProvider) Mode() Mode { return ModeVenue }

// AvgCost 返回影子账本的持仓均价。
func (p *VenueProvider) AvgCost() float64 { return p.shadow.AvgCost() }

// Valuation 使用最近一次查询到的交易所余额和影子账本的均价。
func (p *VenueProvider) Valuation(mid float64) (float64, float64) {
	return p.shadow.Valuation(mid)
}

// NewProvider 按模式创建 Provider。
func NewProvider(mode Mode, initial Balances, src BalanceSource) (Provider, error) {
	switch mode {
	case ModeManual:
		p, err := NewManualProvider(initial)
		if err != nil {
			return nil, err
		}
		return p, nil
	case ModeVenue:
		p, err := NewVenueProvider(src)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown inventory mode %q", mode)
	}
}
