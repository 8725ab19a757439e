package sim

import (
	"math/rand"
	"sort"
	"time"
)

// Trade 一笔模拟成交。
type Trade struct {
	Price float64
	Size  float64
	Ts    time.Time
}

// MarketConfig 随机游走行情参数。
type MarketConfig struct {
	BasePrice         float64
	Volatility        float64 // 每笔成交价格变动的标准差（相对价格）
	TradesPerInterval int
	BaseSize          float64
	SpikeProb         float64 // 某根 K 线出现放量的概率
	SpikeFactor       float64 // 放量时成交量倍数
	HalfSpread        float64 // 盘口相对价格的半价差
	Seed              int64
}

// DefaultMarketConfig returns a SOL-like market around 100.
func DefaultMarketConfig() MarketConfig {
	return MarketConfig{
		BasePrice:         100,
		Volatility:        0.0008,
		TradesPerInterval: 20,
		BaseSize:          0.5,
		SpikeProb:         0.05,
		SpikeFactor:       6,
		HalfSpread:        0.0002,
		Seed:              1,
	}
}

// Market 生成按时间排序的模拟成交；相同 Seed 产生相同序列。
type Market struct {
	cfg   MarketConfig
	price float64
	rng   *rand.Rand
}

func NewMarket(cfg MarketConfig) *Market {
	if cfg.BasePrice <= 0 {
		cfg.BasePrice = 100
	}
	if cfg.TradesPerInterval <= 0 {
		cfg.TradesPerInterval = 1
	}
	if cfg.BaseSize <= 0 {
		cfg.BaseSize = 1
	}
	if cfg.SpikeFactor < 1 {
		cfg.SpikeFactor = 1
	}
	return &Market{
		cfg:   cfg,
		price: cfg.BasePrice,
		rng:   rand.New(rand.NewSource(cfg.Seed)),
	}
}

// Price 返回最近一笔成交价。
func (m *Market) Price() float64 { return m.price }

// Quote 返回围绕最新价的买一/卖一。
func (m *Market) Quote() (bid, ask float64) {
	return m.price * (1 - m.cfg.HalfSpread), m.price * (1 + m.cfg.HalfSpread)
}

// Trades 生成 [start, start+interval) 内的成交，按时间升序。
func (m *Market) Trades(start time.Time, interval time.Duration) []Trade {
	n := m.cfg.TradesPerInterval/2 + 1 + m.rng.Intn(m.cfg.TradesPerInterval)
	offsets := make([]int64, n)
	for i := range offsets {
		offsets[i] = m.rng.Int63n(int64(interval))
	}
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })

	sizeMul := 1.0
	if m.rng.Float64() < m.cfg.SpikeProb {
		sizeMul = m.cfg.SpikeFactor
	}
	out := make([]Trade, n)
	for i, off := range offsets {
		next := m.price * (1 + m.rng.NormFloat64()*m.cfg.Volatility)
		if next <= 0 {
			next = m.price * 0.99
		}
		m.price = next
		out[i] = Trade{
			Price: next,
			Size:  m.cfg.BaseSize * (0.2 + m.rng.Float64()) * sizeMul,
			Ts:    start.Add(time.Duration(off)),
		}
	}
	return out
}
