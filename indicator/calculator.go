package indicator

import (
	"errors"
	"fmt"
	"math"

	"pmm-adaptive/market"
)

var (
	// ErrInsufficientData 窗口长度不足 lookback，调用方应保留上一份快照。
	ErrInsufficientData = errors.New("insufficient candles for indicators")
	// ErrInvalidPrice 最新收盘价非正，无法归一化。
	ErrInvalidPrice = errors.New("latest close must be > 0")
)

// Calculator 从完整 K 线窗口计算波动率、动量与成交量基线。无内部状态。
type Calculator struct {
	cfg Config
}

func NewCalculator(cfg Config) (*Calculator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("indicator config: %w", err)
	}
	return &Calculator{cfg: cfg}, nil
}

func (c *Calculator) Config() Config { return c.cfg }

// Compute 对整个窗口做一次完整归约。
func (c *Calculator) Compute(candles []market.Candle) (Snapshot, error) {
	n := len(candles)
	if need := c.cfg.MinCandles(); n < need {
		return Snapshot{}, fmt.Errorf("%w: have %d, need %d", ErrInsufficientData, n, need)
	}
	latest := candles[n-1]
	if latest.Close <= 0 {
		return Snapshot{}, fmt.Errorf("%w: %f", ErrInvalidPrice, latest.Close)
	}

	var vol, mom float64
	switch c.cfg.Smoothing {
	case SmoothingWilder:
		vol, mom = wilder(candles, c.cfg.VolatilityPeriod, c.cfg.MomentumPeriod)
	default:
		vol = simpleNATR(candles, c.cfg.VolatilityPeriod)
		mom = simpleMomentum(candles, c.cfg.MomentumPeriod)
	}

	avgVol := averageVolume(candles, c.cfg.VolumePeriod)
	return Snapshot{
		Volatility:   sanitizeVolatility(vol),
		Momentum:     clampMomentum(mom),
		AvgVolume:    avgVol,
		LatestVolume: latest.Volume,
		VolumeSpike:  IsVolumeSpike(latest.Volume, avgVol, c.cfg.SpikeMultiplier),
		LatestClose:  latest.Close,
		Candles:      n,
		At:           latest.Ts,
	}, nil
}

// trueRange uses high-low for the first candle of the window.
func trueRange(candles []market.Candle, i int) float64 {
	c := candles[i]
	tr := c.High - c.Low
	if i == 0 {
		return tr
	}
	prev := candles[i-1].Close
	return math.Max(tr, math.Max(math.Abs(c.High-prev), math.Abs(c.Low-prev)))
}

func simpleNATR(candles []market.Candle, period int) float64 {
	n := len(candles)
	sum := 0.0
	for i := n - period; i < n; i++ {
		sum += trueRange(candles, i)
	}
	return sum / float64(period) / candles[n-1].Close
}

func simpleMomentum(candles []market.Candle, period int) float64 {
	n := len(candles)
	changes := period
	if changes > n-1 {
		changes = n - 1
	}
	if changes <= 0 {
		return 50
	}
	var gain, loss float64
	for i := n - changes; i < n; i++ {
		d := candles[i].Close - candles[i-1].Close
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	return MomentumFromAverages(gain/float64(changes), loss/float64(changes))
}

// MomentumFromAverages 把平均涨幅/跌幅转换为 0-100 振荡值。
// 只有上涨 -> 100，只有下跌 -> 0，完全走平 -> 50。
func MomentumFromAverages(avgGain, avgLoss float64) float64 {
	switch {
	case avgGain <= 0 && avgLoss <= 0:
		return 50
	case avgLoss <= 0:
		return 100
	case avgGain <= 0:
		return 0
	}
	rs := avgGain / avgLoss
	return clampMomentum(100 - 100/(1+rs))
}

func averageVolume(candles []market.Candle, period int) float64 {
	n := len(candles)
	sum := 0.0
	for i := n - period; i < n; i++ {
		sum += candles[i].Volume
	}
	return sum / float64(period)
}

// IsVolumeSpike reports latest > multiplier × average.
func IsVolumeSpike(latest, average, multiplier float64) bool {
	return latest > multiplier*average
}

func clampMomentum(v float64) float64 {
	if math.IsNaN(v) {
		return 50
	}
	return math.Max(0, math.Min(100, v))
}

func sanitizeVolatility(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
