package inventory

import (
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

var (
	// ErrBalanceClamped 成交会让某一余额变为负数，已截断为 0。余额已更新，调用方应记录告警。
	ErrBalanceClamped = errors.New("fill would make balance negative, clamped to zero")
	// ErrInvalidFill 成交价格或数量非法，余额未改变。
	ErrInvalidFill = errors.New("invalid fill")
)

// Ledger 维护本地 base/quote 余额与持仓均价，使用 decimal 保证加减精确。
// 所有成交通过 Update 串行写入。
type Ledger struct {
	mu    sync.RWMutex
	base  decimal.Decimal
	quote decimal.Decimal
	cost  decimal.Decimal
}

// NewLedger 以初始余额创建账本。
func NewLedger(initial Balances) (*Ledger, error) {
	if initial.Base < 0 || initial.Quote < 0 {
		return nil, fmt.Errorf("initial balances must be >= 0, got base=%f quote=%f", initial.Base, initial.Quote)
	}
	return &Ledger{
		base:  decimal.NewFromFloat(initial.Base),
		quote: decimal.NewFromFloat(initial.Quote),
	}, nil
}

// Update 根据成交调整余额：deltaBase > 0 为买入，< 0 为卖出。
// quote 变动为 -deltaBase × price。
func (l *Ledger) Update(deltaBase, price float64) error {
	if price <= 0 || deltaBase == 0 {
		return fmt.Errorf("%w: delta=%f price=%f", ErrInvalidFill, deltaBase, price)
	}
	qty := decimal.NewFromFloat(deltaBase)
	px := decimal.NewFromFloat(price)

	l.mu.Lock()
	defer l.mu.Unlock()
	// 简化：仅在买入时更新加权平均成本
	if qty.IsPositive() {
		held := l.base
		if held.IsNegative() {
			held = decimal.Zero
		}
		total := held.Add(qty)
		l.cost = l.cost.Mul(held).Add(px.Mul(qty)).Div(total)
	}
	l.base = l.base.Add(qty)
	l.quote = l.quote.Sub(qty.Mul(px))

	var clamped bool
	if l.base.IsNegative() {
		l.base = decimal.Zero
		clamped = true
	}
	if l.quote.IsNegative() {
		l.quote = decimal.Zero
		clamped = true
	}
	if l.base.IsZero() {
		l.cost = decimal.Zero
	}
	if clamped {
		return ErrBalanceClamped
	}
	return nil
}

// ApplyBuy / ApplySell are Update with the sign taken from the side.
func (l *Ledger) ApplyBuy(amount, price float64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: amount=%f", ErrInvalidFill, amount)
	}
	return l.Update(amount, price)
}

func (l *Ledger) ApplySell(amount, price float64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: amount=%f", ErrInvalidFill, amount)
	}
	return l.Update(-amount, price)
}

// Balances 返回当前余额的拷贝。
func (l *Ledger) Balances() Balances {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Balances{Base: l.base.InexactFloat64(), Quote: l.quote.InexactFloat64()}
}

// Reset 用外部余额覆盖账本，例如从交易所同步后。
func (l *Ledger) Reset(b Balances) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.base = decimal.NewFromFloat(b.Base)
	l.quote = decimal.NewFromFloat(b.Quote)
	if !l.base.IsPositive() {
		l.base = decimal.Zero
		l.cost = decimal.Zero
	}
	if l.quote.IsNegative() {
		l.quote = decimal.Zero
	}
}

func (l *Ledger) AvgCost() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cost.InexactFloat64()
}
