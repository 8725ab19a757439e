package indicator

import (
	"github.com/markcheno/go-talib"

	"pmm-adaptive/market"
)

// wilder 使用 go-talib 的 NATR/RSI（RMA 平滑）。talib 的 NATR 以百分比输出，这里换算为比例。
func wilder(candles []market.Candle, volPeriod, momPeriod int) (vol, mom float64) {
	n := len(candles)
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	for i, c := range candles {
		highs[i] = c.High
		lows[i] = c.Low
		closes[i] = c.Close
	}

	natr := talib.Natr(highs, lows, closes, volPeriod)
	vol = natr[n-1] / 100

	// talib 对走平/单边行情的处理与期望不同，先用方向判定饱和值
	var up, down bool
	for i := 1; i < n; i++ {
		switch d := closes[i] - closes[i-1]; {
		case d > 0:
			up = true
		case d < 0:
			down = true
		}
	}
	switch {
	case !up && !down:
		return vol, 50
	case !down:
		return vol, 100
	case !up:
		return vol, 0
	}
	rsi := talib.Rsi(closes, momPeriod)
	return vol, rsi[n-1]
}
