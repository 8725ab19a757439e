package indicator

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pmm-adaptive/market"
)

func flatCandles(n int, price, volume float64) []market.Candle {
	out := make([]market.Candle, n)
	for i := range out {
		out[i] = market.Candle{Open: price, High: price, Low: price, Close: price, Volume: volume, Ts: time.Unix(int64(i+1)*60, 0)}
	}
	return out
}

func trendCandles(n int, start, step float64) []market.Candle {
	out := make([]market.Candle, n)
	p := start
	for i := range out {
		next := p + step
		hi, lo := math.Max(p, next), math.Min(p, next)
		out[i] = market.Candle{Open: p, High: hi, Low: lo, Close: next, Volume: 10, Ts: time.Unix(int64(i+1)*60, 0)}
		p = next
	}
	return out
}

func testConfig(smoothing Smoothing) Config {
	return Config{
		VolatilityPeriod: 5,
		MomentumPeriod:   5,
		VolumePeriod:     5,
		SpikeMultiplier:  2,
		Smoothing:        smoothing,
	}
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
	cases := []struct {
		name string
		mut  func(*Config)
	}{
		{"vol period", func(c *Config) { c.VolatilityPeriod = 0 }},
		{"momentum period", func(c *Config) { c.MomentumPeriod = 1 }},
		{"volume period", func(c *Config) { c.VolumePeriod = 0 }},
		{"multiplier", func(c *Config) { c.SpikeMultiplier = 1 }},
		{"smoothing", func(c *Config) { c.Smoothing = "ema" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mut(&cfg)
			assert.Error(t, cfg.Validate())
			_, err := NewCalculator(cfg)
			assert.Error(t, err)
		})
	}
}

func TestMinCandles(t *testing.T) {
	cfg := Config{VolatilityPeriod: 30, MomentumPeriod: 14, VolumePeriod: 20, SpikeMultiplier: 2, Smoothing: SmoothingSimple}
	assert.Equal(t, 30, cfg.MinCandles())
	cfg.Smoothing = SmoothingWilder
	assert.Equal(t, 31, cfg.MinCandles())
	cfg.VolumePeriod = 40
	assert.Equal(t, 40, cfg.MinCandles())
}

func TestComputeInsufficientData(t *testing.T) {
	calc, err := NewCalculator(testConfig(SmoothingSimple))
	require.NoError(t, err)
	_, err = calc.Compute(flatCandles(4, 100, 1))
	assert.True(t, errors.Is(err, ErrInsufficientData))
	_, err = calc.Compute(nil)
	assert.True(t, errors.Is(err, ErrInsufficientData))
}

func TestComputeFlatPrices(t *testing.T) {
	for _, mode := range []Smoothing{SmoothingSimple, SmoothingWilder} {
		t.Run(string(mode), func(t *testing.T) {
			calc, err := NewCalculator(testConfig(mode))
			require.NoError(t, err)
			snap, err := calc.Compute(flatCandles(10, 100, 5))
			require.NoError(t, err)
			assert.Equal(t, 0.0, snap.Volatility)
			assert.Equal(t, 50.0, snap.Momentum)
			assert.Equal(t, 5.0, snap.AvgVolume)
			assert.False(t, snap.VolumeSpike)
			assert.Equal(t, 100.0, snap.LatestClose)
			assert.Equal(t, 10, snap.Candles)
			assert.True(t, snap.Ready())
		})
	}
}

func TestComputeMomentumSaturates(t *testing.T) {
	for _, mode := range []Smoothing{SmoothingSimple, SmoothingWilder} {
		t.Run(string(mode), func(t *testing.T) {
			calc, err := NewCalculator(testConfig(mode))
			require.NoError(t, err)
			up, err := calc.Compute(trendCandles(10, 100, 1))
			require.NoError(t, err)
			assert.Equal(t, 100.0, up.Momentum)
			assert.Greater(t, up.Volatility, 0.0)

			down, err := calc.Compute(trendCandles(10, 100, -1))
			require.NoError(t, err)
			assert.Equal(t, 0.0, down.Momentum)
		})
	}
}

func TestSimpleNATRUsesPrevClose(t *testing.T) {
	candles := []market.Candle{
		{Open: 100, High: 101, Low: 99, Close: 100, Ts: time.Unix(60, 0)},
		// gap up: high-low = 1 but |high-prev_close| = 11
		{Open: 110, High: 111, Low: 110, Close: 110, Ts: time.Unix(120, 0)},
	}
	got := simpleNATR(candles, 2)
	// (2 + 11) / 2 / 110
	assert.InDelta(t, 13.0/2/110, got, 1e-12)
}

func TestWilderMatchesHandComputed(t *testing.T) {
	cfg := Config{VolatilityPeriod: 3, MomentumPeriod: 3, VolumePeriod: 3, SpikeMultiplier: 2, Smoothing: SmoothingWilder}
	calc, err := NewCalculator(cfg)
	require.NoError(t, err)
	candles := []market.Candle{
		{Open: 10, High: 10.5, Low: 9.5, Close: 10, Volume: 1, Ts: time.Unix(60, 0)},
		{Open: 10, High: 11, Low: 9.8, Close: 10.8, Volume: 1, Ts: time.Unix(120, 0)},      // TR 1.2, +0.8
		{Open: 10.8, High: 11.2, Low: 10.4, Close: 10.6, Volume: 1, Ts: time.Unix(180, 0)}, // TR 0.8, -0.2
		{Open: 10.6, High: 11.5, Low: 10.5, Close: 11.4, Volume: 1, Ts: time.Unix(240, 0)}, // TR 1.0, +0.8
		{Open: 11.4, High: 11.6, Low: 10.9, Close: 11, Volume: 1, Ts: time.Unix(300, 0)},   // TR 0.7, -0.4
	}
	snap, err := calc.Compute(candles)
	require.NoError(t, err)

	// ATR 以前 3 个 TR 的均值 1.0 起步，再平滑一次：(1.0*2+0.7)/3 = 0.9，归一化为比例而非百分比
	assert.InDelta(t, 0.9/11, snap.Volatility, 1e-9)
	// 平均涨幅 (1.6/3*2+0)/3 = 3.2/9，平均跌幅 (0.2/3*2+0.4)/3 = 1.6/9
	assert.InDelta(t, 100*3.2/4.8, snap.Momentum, 1e-9)
}

func TestMomentumFromAverages(t *testing.T) {
	assert.Equal(t, 50.0, MomentumFromAverages(0, 0))
	assert.Equal(t, 100.0, MomentumFromAverages(1, 0))
	assert.Equal(t, 0.0, MomentumFromAverages(0, 1))
	assert.InDelta(t, 50.0, MomentumFromAverages(1, 1), 1e-12)
	assert.InDelta(t, 75.0, MomentumFromAverages(3, 1), 1e-12)
}

func TestVolumeSpike(t *testing.T) {
	calc, err := NewCalculator(testConfig(SmoothingSimple))
	require.NoError(t, err)
	candles := flatCandles(5, 100, 1)
	// 最新一根成交量 = 均值的 3 倍
	candles[4].Volume = 3
	candles[0].Volume = 0
	candles[1].Volume = 0
	candles[2].Volume = 0
	candles[3].Volume = 2
	snap, err := calc.Compute(candles)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, snap.AvgVolume, 1e-12)
	assert.True(t, snap.VolumeSpike)

	assert.False(t, IsVolumeSpike(2, 1, 2), "equal to threshold is not a spike")
	assert.True(t, IsVolumeSpike(2.01, 1, 2))
}

func TestComputeInvalidLatestClose(t *testing.T) {
	calc, err := NewCalculator(testConfig(SmoothingSimple))
	require.NoError(t, err)
	candles := flatCandles(6, 100, 1)
	candles[5].Close = 0
	_, err = calc.Compute(candles)
	assert.True(t, errors.Is(err, ErrInvalidPrice))
}

func TestComputeBoundsRandomWindows(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for _, mode := range []Smoothing{SmoothingSimple, SmoothingWilder} {
		calc, err := NewCalculator(testConfig(mode))
		require.NoError(t, err)
		for iter := 0; iter < 200; iter++ {
			n := 6 + rng.Intn(30)
			candles := make([]market.Candle, n)
			p := 50 + rng.Float64()*100
			for i := range candles {
				open := p
				p = math.Max(0.01, p*(1+(rng.Float64()-0.5)*0.04))
				hi := math.Max(open, p) * (1 + rng.Float64()*0.01)
				lo := math.Min(open, p) * (1 - rng.Float64()*0.01)
				candles[i] = market.Candle{Open: open, High: hi, Low: lo, Close: p, Volume: rng.Float64() * 100, Ts: time.Unix(int64(i+1)*60, 0)}
			}
			snap, err := calc.Compute(candles)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, snap.Volatility, 0.0)
			assert.GreaterOrEqual(t, snap.Momentum, 0.0)
			assert.LessOrEqual(t, snap.Momentum, 100.0)
			assert.GreaterOrEqual(t, snap.AvgVolume, 0.0)
		}
	}
}

func TestNeutral(t *testing.T) {
	n := Neutral()
	assert.Equal(t, 0.0, n.Volatility)
	assert.Equal(t, 50.0, n.Momentum)
	assert.False(t, n.VolumeSpike)
	assert.False(t, n.Ready())
}
