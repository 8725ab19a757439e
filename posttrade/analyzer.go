package posttrade

import (
	"sync"
	"time"

	"pmm-adaptive/order"
)

// FillRecord 一笔成交及其之后的中间价采样。
type FillRecord struct {
	FillPrice    float64
	FillTime     time.Time
	Side         order.Side
	PriceShort   float64
	PriceLong    float64
	ShortSampled time.Time
	LongSampled  time.Time
}

// Stats contains statistics computed by the analyzer
type Stats struct {
	AdverseSelectionRate float64 `json:"adverseSelectionRate"`
	AvgMarkoutShort      float64 `json:"avgMarkoutShort"` // 相对成交价，正值为有利
	AvgMarkoutLong       float64 `json:"avgMarkoutLong"`
	TotalFills           int     `json:"totalFills"`
	AnalyzedFills        int     `json:"analyzedFills"`
}

// Analyzer 统计成交后的价格走势（markout）与逆向选择比例。
// 时间由调用方驱动：OnMid 传入当前中间价与时间，到期的采样点随之补齐。
type Analyzer struct {
	short time.Duration
	long  time.Duration

	mu    sync.RWMutex
	fills map[string]*FillRecord
}

// NewAnalyzer short/long 为两个采样窗口，通常取 1 根和 5 根 K 线周期。
func NewAnalyzer(short, long time.Duration) *Analyzer {
	if short <= 0 {
		short = time.Minute
	}
	if long < short {
		long = short
	}
	return &Analyzer{short: short, long: long, fills: make(map[string]*FillRecord)}
}

// OnFill records a filled order
func (a *Analyzer) OnFill(f order.Fill, now time.Time) {
	at := f.Ts
	if at.IsZero() {
		at = now
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fills[f.OrderID] = &FillRecord{
		FillPrice: f.Price,
		FillTime:  at,
		Side:      f.Side,
	}
}

// OnMid 为已到期的成交记录中间价。
func (a *Analyzer) OnMid(mid float64, now time.Time) {
	if mid <= 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, r := range a.fills {
		age := now.Sub(r.FillTime)
		if r.PriceShort == 0 && age >= a.short {
			r.PriceShort = mid
			r.ShortSampled = now
		}
		if r.PriceLong == 0 && age >= a.long {
			r.PriceLong = mid
			r.LongSampled = now
		}
	}
}

// Markout 买单价格上涨为有利，卖单价格下跌为有利。
func Markout(side order.Side, fillPrice, later float64) float64 {
	if fillPrice <= 0 {
		return 0
	}
	if side == order.Sell {
		return (fillPrice - later) / fillPrice
	}
	return (later - fillPrice) / fillPrice
}

// Stats computes and returns statistics
func (a *Analyzer) Stats() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := Stats{TotalFills: len(a.fills)}
	var adverse int
	var sumShort, sumLong float64
	for _, r := range a.fills {
		if r.PriceShort == 0 || r.PriceLong == 0 {
			continue
		}
		stats.AnalyzedFills++
		short := Markout(r.Side, r.FillPrice, r.PriceShort)
		sumShort += short
		sumLong += Markout(r.Side, r.FillPrice, r.PriceLong)
		if short < 0 {
			adverse++
		}
	}
	if stats.AnalyzedFills > 0 {
		n := float64(stats.AnalyzedFills)
		stats.AdverseSelectionRate = float64(adverse) / n
		stats.AvgMarkoutShort = sumShort / n
		stats.AvgMarkoutLong = sumLong / n
	}
	return stats
}

// CleanOldRecords removes old records to prevent memory leaks
func (a *Analyzer) CleanOldRecords(now time.Time, maxAge time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for id, r := range a.fills {
		if now.Sub(r.FillTime) > maxAge {
			delete(a.fills, id)
		}
	}
}
