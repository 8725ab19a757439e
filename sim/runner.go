package sim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"pmm-adaptive/gateway"
	"pmm-adaptive/infrastructure/logger"
	"pmm-adaptive/internal/engine"
	"pmm-adaptive/inventory"
	"pmm-adaptive/market"
	"pmm-adaptive/order"
	"pmm-adaptive/posttrade"
)

// Report 模拟运行汇总。
type Report struct {
	Ticks      int
	Quoted     int
	Degenerate int
	NotReady   int
	Fills      int
	Candles    int
	Start      inventory.Balances
	End        inventory.Balances
	StartValue float64 // 以开始价格计
	EndValue   float64 // 以结束价格计
	LastPrice  float64
	PostTrade  posttrade.Stats
}

// Runner 用模拟时钟驱动 成交→K线→撮合→报价 的完整循环，不依赖网络。
type Runner struct {
	Symbol   string
	Interval time.Duration // K 线周期
	Step     time.Duration // 引擎 Tick 的时钟步长

	Market    *Market
	Agg       *market.KlineAggregator
	Window    *market.CandleWindow
	Data      *market.Service
	Paper     *gateway.PaperExchange
	Engine    *engine.Orchestrator
	Inventory inventory.Provider
	PostTrade *posttrade.Analyzer
	Logger    *logger.Logger

	clock   time.Time
	bucket  time.Time
	queue   []Trade
	fills   int
	candles int
}

// Now 返回模拟时钟。
func (r *Runner) Now() time.Time { return r.clock }

// Warmup 生成 n 根 K 线直接写入窗口（不撮合、不报价）。
func (r *Runner) Warmup(n int) error {
	for i := 0; i < n; i++ {
		trades := r.Market.Trades(r.clock, r.Interval)
		c, ok := candleFrom(trades, r.clock)
		if ok {
			if err := r.Window.Record(c); err != nil {
				return fmt.Errorf("warmup: %w", err)
			}
		}
		r.clock = r.clock.Add(r.Interval)
	}
	r.bucket = r.clock
	bid, ask := r.Market.Quote()
	r.Data.OnDepth(r.Symbol, bid, ask, r.clock)
	return nil
}

// Run 推进模拟时钟 d，期间每个 Step 调用一次引擎 Tick。
func (r *Runner) Run(ctx context.Context, d time.Duration) (Report, error) {
	if r.Step <= 0 {
		return Report{}, errors.New("sim step must be > 0")
	}
	start, err := r.Inventory.Balances(ctx)
	if err != nil {
		return Report{}, err
	}
	rep := Report{Start: start, StartValue: start.TotalValue(r.Market.Price())}
	startCandles, startFills := r.candles, r.fills

	end := r.clock.Add(d)
	for r.clock.Before(end) {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		next := r.clock.Add(r.Step)
		r.feed(next)
		r.clock = next

		out, err := r.Engine.Tick(ctx, r.clock)
		if err != nil {
			r.Logger.Warn("sim tick failed", zap.Error(err))
		}
		rep.Ticks++
		switch out {
		case engine.OutcomeQuoted:
			rep.Quoted++
		case engine.OutcomeDegenerate:
			rep.Degenerate++
		case engine.OutcomeNotReady:
			rep.NotReady++
		}
	}

	rep.End, err = r.Inventory.Balances(ctx)
	if err != nil {
		return rep, err
	}
	rep.LastPrice = r.Market.Price()
	rep.EndValue = rep.End.TotalValue(rep.LastPrice)
	rep.Candles = r.candles - startCandles
	rep.Fills = r.fills - startFills
	rep.PostTrade = r.PostTrade.Stats()
	return rep, nil
}

// feed 把截至 until 的成交送入聚合器，闭合的 K 线写入窗口并交给模拟交易所撮合。
func (r *Runner) feed(until time.Time) {
	for {
		if len(r.queue) == 0 {
			if !r.bucket.Before(until) {
				break
			}
			r.queue = r.Market.Trades(r.bucket, r.Interval)
			r.bucket = r.bucket.Add(r.Interval)
		}
		t := r.queue[0]
		if !t.Ts.Before(until) {
			break
		}
		r.queue = r.queue[1:]
		if c := r.Agg.OnTrade(t.Price, t.Size, t.Ts); c != nil {
			r.onCandle(*c)
		}
		bid, ask := r.Market.Quote()
		r.Data.OnDepth(r.Symbol, bid, ask, t.Ts)
	}
	if c := r.Agg.Flush(until); c != nil {
		r.onCandle(*c)
	}
}

func (r *Runner) onCandle(c market.Candle) {
	if err := r.Window.Record(c); err != nil {
		r.Logger.Warn("drop candle", zap.Error(err))
		return
	}
	r.candles++
	r.PostTrade.OnMid(c.Close, c.Ts.Add(r.Interval))
	r.Paper.OnCandle(c)
}

// onFill 由模拟交易所回调。
func (r *Runner) onFill(f order.Fill) {
	r.fills++
	r.PostTrade.OnFill(f, r.clock)
	if err := r.Engine.OnFill(f); err != nil {
		r.Logger.Warn("apply fill", zap.Error(err))
	}
}

func candleFrom(trades []Trade, bucket time.Time) (market.Candle, bool) {
	if len(trades) == 0 {
		return market.Candle{}, false
	}
	c := market.Candle{
		Open:  trades[0].Price,
		High:  trades[0].Price,
		Low:   trades[0].Price,
		Close: trades[len(trades)-1].Price,
		Ts:    bucket,
	}
	for _, t := range trades {
		if t.Price > c.High {
			c.High = t.Price
		}
		if t.Price < c.Low {
			c.Low = t.Price
		}
		c.Volume += t.Size
	}
	return c, true
}
