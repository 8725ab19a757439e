package market

import "time"

// Candle represents one closed OHLCV bar. Ts is the bar open time.
type Candle struct {
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
	Ts     time.Time
}

// Valid 检查价格字段是否自洽（high>=low，且 open/close 落在区间内）。
func (c Candle) Valid() bool {
	if c.Low <= 0 || c.High < c.Low || c.Volume < 0 {
		return false
	}
	if c.Open < c.Low || c.Open > c.High {
		return false
	}
	if c.Close < c.Low || c.Close > c.High {
		return false
	}
	return !c.Ts.IsZero()
}
