package sim

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"pmm-adaptive/market"
)

// CandleSink 接收模拟行情；gateway.MarketDataHandler 实现该接口。
type CandleSink interface {
	OnDepth(symbol string, bid, ask float64)
	OnCandle(c market.Candle)
}

// LiveFeed 按墙钟时间回放模拟成交，替代交易所行情（无需网络的纸面运行）。
type LiveFeed struct {
	Symbol   string
	Interval time.Duration
	Step     time.Duration
	Market   *Market
	Sink     CandleSink
	Logger   *zap.Logger

	agg    *market.KlineAggregator
	now    func() time.Time
	bucket time.Time
	queue  []Trade
	done   chan struct{}
	once   sync.Once
}

func NewLiveFeed(symbol string, interval time.Duration, m *Market, sink CandleSink, logger *zap.Logger) *LiveFeed {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &LiveFeed{
		Symbol:   symbol,
		Interval: interval,
		Step:     time.Second,
		Market:   m,
		Sink:     sink,
		Logger:   logger,
		agg:      market.NewKlineAggregator(interval),
		now:      time.Now,
		done:     make(chan struct{}),
	}
}

// Backfill 生成截至当前周期之前的 n 根闭合 K 线。
func (f *LiveFeed) Backfill(n int) int {
	cur := f.now().Truncate(f.Interval)
	start := cur.Add(-time.Duration(n) * f.Interval)
	count := 0
	for t := start; t.Before(cur); t = t.Add(f.Interval) {
		if c, ok := candleFrom(f.Market.Trades(t, f.Interval), t); ok {
			f.Sink.OnCandle(c)
			count++
		}
	}
	f.bucket = cur
	bid, ask := f.Market.Quote()
	f.Sink.OnDepth(f.Symbol, bid, ask)
	return count
}

// Start 在后台每个 Step 推进一次，直到 ctx 结束。
func (f *LiveFeed) Start(ctx context.Context) error {
	if f.bucket.IsZero() {
		f.bucket = f.now().Truncate(f.Interval)
	}
	go func() {
		defer f.once.Do(func() { close(f.done) })
		ticker := time.NewTicker(f.Step)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				f.advance(f.now())
			}
		}
	}()
	f.Logger.Info("simulated feed started", zap.String("symbol", f.Symbol), zap.Duration("interval", f.Interval))
	return nil
}

// Done 在后台循环退出后关闭。
func (f *LiveFeed) Done() <-chan struct{} { return f.done }

func (f *LiveFeed) advance(until time.Time) {
	for {
		if len(f.queue) == 0 {
			if !f.bucket.Before(until) {
				break
			}
			f.queue = f.Market.Trades(f.bucket, f.Interval)
			f.bucket = f.bucket.Add(f.Interval)
		}
		t := f.queue[0]
		if !t.Ts.Before(until) {
			break
		}
		f.queue = f.queue[1:]
		if c := f.agg.OnTrade(t.Price, t.Size, t.Ts); c != nil {
			f.Sink.OnCandle(*c)
		}
	}
	if c := f.agg.Flush(until); c != nil {
		f.Sink.OnCandle(*c)
	}
	bid, ask := f.Market.Quote()
	f.Sink.OnDepth(f.Symbol, bid, ask)
}
