package sim

import (
	"testing"
	"time"
)

func TestMarketDeterministic(t *testing.T) {
	cfg := DefaultMarketConfig()
	a := NewMarket(cfg)
	b := NewMarket(cfg)
	start := time.Unix(600, 0)
	ta := a.Trades(start, time.Minute)
	tb := b.Trades(start, time.Minute)
	if len(ta) != len(tb) {
		t.Fatalf("length mismatch %d vs %d", len(ta), len(tb))
	}
	for i := range ta {
		if ta[i] != tb[i] {
			t.Fatalf("trade %d differs: %+v vs %+v", i, ta[i], tb[i])
		}
	}
}

func TestMarketTradesWithinBucket(t *testing.T) {
	m := NewMarket(DefaultMarketConfig())
	start := time.Unix(600, 0)
	for k := 0; k < 20; k++ {
		bucket := start.Add(time.Duration(k) * time.Minute)
		trades := m.Trades(bucket, time.Minute)
		if len(trades) == 0 {
			t.Fatalf("expected trades")
		}
		for i, tr := range trades {
			if tr.Ts.Before(bucket) || !tr.Ts.Before(bucket.Add(time.Minute)) {
				t.Fatalf("trade outside bucket: %v", tr.Ts)
			}
			if i > 0 && tr.Ts.Before(trades[i-1].Ts) {
				t.Fatalf("trades not sorted")
			}
			if tr.Price <= 0 || tr.Size <= 0 {
				t.Fatalf("invalid trade %+v", tr)
			}
		}
	}
	bid, ask := m.Quote()
	if !(bid < m.Price() && m.Price() < ask) {
		t.Fatalf("quote must straddle price: %f %f %f", bid, m.Price(), ask)
	}
}

func TestCandleFrom(t *testing.T) {
	ts := time.Unix(600, 0)
	c, ok := candleFrom([]Trade{{Price: 10, Size: 1}, {Price: 12, Size: 2}, {Price: 9, Size: 1}, {Price: 11, Size: 1}}, ts)
	if !ok {
		t.Fatalf("expected candle")
	}
	if c.Open != 10 || c.High != 12 || c.Low != 9 || c.Close != 11 || c.Volume != 5 || !c.Ts.Equal(ts) {
		t.Fatalf("unexpected candle %+v", c)
	}
	if _, ok := candleFrom(nil, ts); ok {
		t.Fatalf("empty trades must not produce a candle")
	}
}
