package market

import (
	"sync"
	"time"
)

// KlineAggregator 从成交流生成固定周期的 Candle。
// 每根 K 线的 Ts 为所在周期起点（按 Interval 截断）。
type KlineAggregator struct {
	Interval time.Duration
	mu       sync.Mutex
	current  *Candle
}

func NewKlineAggregator(interval time.Duration) *KlineAggregator {
	if interval <= 0 {
		interval = time.Minute
	}
	return &KlineAggregator{Interval: interval}
}

// OnTrade 更新当前 K 线；成交落入新周期时返回已闭合的上一根，否则返回 nil。
func (a *KlineAggregator) OnTrade(price, qty float64, ts time.Time) *Candle {
	if price <= 0 || qty < 0 {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	bucket := ts.Truncate(a.Interval)
	if a.current != nil && bucket.Before(a.current.Ts) {
		// late trade from an already closed period
		return nil
	}
	if a.current == nil || bucket.After(a.current.Ts) {
		closed := a.current
		a.current = &Candle{
			Open:   price,
			High:   price,
			Low:    price,
			Close:  price,
			Volume: qty,
			Ts:     bucket,
		}
		return closed
	}

	if price > a.current.High {
		a.current.High = price
	}
	if price < a.current.Low {
		a.current.Low = price
	}
	a.current.Close = price
	a.current.Volume += qty
	return nil
}

// Flush 在周期已结束但没有新成交时强制闭合当前 K 线。
func (a *KlineAggregator) Flush(now time.Time) *Candle {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == nil || now.Before(a.current.Ts.Add(a.Interval)) {
		return nil
	}
	closed := a.current
	a.current = nil
	return closed
}
