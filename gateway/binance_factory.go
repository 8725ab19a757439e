package gateway

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// FeedConfig K 线源参数。
type FeedConfig struct {
	RESTURL    string
	WSEndpoint string
	Symbol     string
	Interval   string
	Backfill   int // 启动时通过 REST 回补的 K 线数量，0 表示不回补
	Timeout    time.Duration
}

// Feed 组合 REST 回补与 ws 订阅。
type Feed struct {
	cfg     FeedConfig
	REST    *RESTClient
	Stream  *KlineStream
	Handler *MarketDataHandler
	Logger  *zap.Logger
	done    chan struct{}
}

// BuildBinanceFeed 构建 REST/WS 客户端（不发起连接）。
func BuildBinanceFeed(cfg FeedConfig, h *MarketDataHandler, logger *zap.Logger) *Feed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Feed{
		cfg:     cfg,
		REST:    NewRESTClient(cfg.RESTURL, cfg.Timeout),
		Stream:  NewKlineStream(cfg.WSEndpoint, cfg.Symbol, cfg.Interval, logger.Named("ws")),
		Handler: h,
		Logger:  logger,
		done:    make(chan struct{}),
	}
}

// Start 回补历史 K 线并建立 ws 连接；任一步失败返回 ErrFeedInit。
// 成功后在后台监听直到 ctx 结束。
func (f *Feed) Start(ctx context.Context) error {
	if f.cfg.Backfill > 0 {
		n, err := f.Backfill(ctx)
		if err != nil {
			return fmt.Errorf("%w: backfill: %v", ErrFeedInit, err)
		}
		f.Logger.Info("candles backfilled", zap.Int("count", n), zap.String("symbol", f.cfg.Symbol))
	}
	return f.StartStreamOnly(ctx)
}

// StartStreamOnly 跳过回补，只建立 ws 订阅。
func (f *Feed) StartStreamOnly(ctx context.Context) error {
	conn, err := f.Stream.Connect(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFeedInit, err)
	}
	go func() {
		defer close(f.done)
		if err := f.Stream.Listen(ctx, conn, f.Handler); err != nil && ctx.Err() == nil {
			f.Logger.Error("candle stream stopped", zap.Error(err))
		}
	}()
	return nil
}

// Backfill 拉取最近的闭合 K 线并交给 Handler。
func (f *Feed) Backfill(ctx context.Context) (int, error) {
	candles, err := f.REST.Klines(ctx, f.cfg.Symbol, f.cfg.Interval, f.cfg.Backfill)
	if err != nil {
		return 0, err
	}
	for _, c := range candles {
		f.Handler.OnCandle(c)
	}
	return len(candles), nil
}

// Done 在后台监听退出后关闭。
func (f *Feed) Done() <-chan struct{} {
	return f.done
}
