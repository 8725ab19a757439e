package strategy

import (
	"testing"
	"time"

	"pmm-adaptive/indicator"
	"pmm-adaptive/inventory"
)

// BenchmarkEnginePropose 基准测试：单次报价决策
func BenchmarkEnginePropose(b *testing.B) {
	e, err := NewEngine(DefaultEngineConfig())
	if err != nil {
		b.Fatal(err)
	}
	snap := indicator.Snapshot{Volatility: 0.004, Momentum: 72, AvgVolume: 10, LatestVolume: 12, Candles: 150}
	mkt := MarketSnapshot{Mid: 100, BestBid: 99.95, BestAsk: 100.05, Ts: time.Unix(0, 0)}
	bal := inventory.Balances{Base: 3, Quote: 200}

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = e.Propose(snap, mkt, bal)
	}
}

// BenchmarkConcurrentPropose 基准测试：引擎无状态，可并发调用
func BenchmarkConcurrentPropose(b *testing.B) {
	e, err := NewEngine(DefaultEngineConfig())
	if err != nil {
		b.Fatal(err)
	}
	snap := indicator.Snapshot{Volatility: 0.004, Momentum: 25, AvgVolume: 10, LatestVolume: 40, VolumeSpike: true, Candles: 150}
	mkt := MarketSnapshot{Mid: 100, BestBid: 99.95, BestAsk: 100.05, Ts: time.Unix(0, 0)}
	bal := inventory.Balances{Base: 1, Quote: 100}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = e.Propose(snap, mkt, bal)
		}
	})
}
