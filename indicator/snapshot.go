package indicator

import "time"

// Snapshot 是一次完整窗口归约的结果；四个输出总是一起产生。
type Snapshot struct {
	Volatility   float64 // normalized average true range, dimensionless
	Momentum     float64 // RSI-style oscillator in [0,100]
	AvgVolume    float64
	LatestVolume float64
	VolumeSpike  bool
	LatestClose  float64
	Candles      int       // window length the snapshot was computed from
	At           time.Time // open time of the latest candle
}

// Neutral 返回无指标降级模式使用的中性快照：零波动、动量 50、无放量。
func Neutral() Snapshot {
	return Snapshot{Momentum: 50}
}

// Ready 报告快照是否来自真实 K 线。
func (s Snapshot) Ready() bool {
	return s.Candles > 0
}
