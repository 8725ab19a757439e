package market

import "time"

// Top 是一次报价周期使用的盘口快照。
type Top struct {
	BestBid float64
	BestAsk float64
	Mid     float64
	Ts      time.Time
}

// SpreadBps 返回 bid/ask 相对 mid 的价差（bps），mid 无效时为 0。
func (t Top) SpreadBps() (bidBps, askBps float64) {
	if t.Mid <= 0 {
		return 0, 0
	}
	return (t.Mid - t.BestBid) / t.Mid * 10000, (t.BestAsk - t.Mid) / t.Mid * 10000
}
