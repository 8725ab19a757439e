package indicator

import (
	"fmt"
)

// Smoothing 选择指标的平均方式。
type Smoothing string

const (
	// SmoothingSimple 每个周期对整个窗口做算术平均。
	SmoothingSimple Smoothing = "simple"
	// SmoothingWilder 使用 Wilder/RMA 平滑（go-talib），与 pandas_ta 默认一致。
	SmoothingWilder Smoothing = "wilder"
)

// Config 指标参数。
type Config struct {
	VolatilityPeriod int       // NATR lookback
	MomentumPeriod   int       // RSI lookback
	VolumePeriod     int       // average-volume lookback
	SpikeMultiplier  float64   // spike when latest volume > multiplier × average
	Smoothing        Smoothing // simple | wilder
}

// DefaultConfig mirrors the strategy defaults: 30 candle NATR, RSI 14, spike at 2x.
func DefaultConfig() Config {
	return Config{
		VolatilityPeriod: 30,
		MomentumPeriod:   14,
		VolumePeriod:     30,
		SpikeMultiplier:  2,
		Smoothing:        SmoothingSimple,
	}
}

func (c Config) Validate() error {
	if c.VolatilityPeriod < 1 {
		return fmt.Errorf("volatility period must be >= 1, got %d", c.VolatilityPeriod)
	}
	if c.MomentumPeriod < 2 {
		return fmt.Errorf("momentum period must be >= 2, got %d", c.MomentumPeriod)
	}
	if c.VolumePeriod < 1 {
		return fmt.Errorf("volume period must be >= 1, got %d", c.VolumePeriod)
	}
	if c.SpikeMultiplier <= 1 {
		return fmt.Errorf("spike multiplier must be > 1, got %f", c.SpikeMultiplier)
	}
	switch c.Smoothing {
	case SmoothingSimple, SmoothingWilder:
	default:
		return fmt.Errorf("unknown smoothing %q", c.Smoothing)
	}
	return nil
}

// MinCandles 返回计算一次快照所需的最少 K 线数。
// Wilder 模式需要额外一根作为第一个 prev close。
func (c Config) MinCandles() int {
	n := c.VolatilityPeriod
	if c.MomentumPeriod > n {
		n = c.MomentumPeriod
	}
	if c.Smoothing == SmoothingWilder {
		n++
	}
	if c.VolumePeriod > n {
		n = c.VolumePeriod
	}
	return n
}
