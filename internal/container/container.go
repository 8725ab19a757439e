package container

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"pmm-adaptive/config"
	"pmm-adaptive/gateway"
	"pmm-adaptive/indicator"
	"pmm-adaptive/infrastructure/alert"
	"pmm-adaptive/infrastructure/logger"
	"pmm-adaptive/infrastructure/monitor"
	"pmm-adaptive/internal/engine"
	"pmm-adaptive/inventory"
	"pmm-adaptive/market"
	"pmm-adaptive/order"
	"pmm-adaptive/posttrade"
	"pmm-adaptive/sim"
	"pmm-adaptive/status"
	"pmm-adaptive/strategy"
)

const (
	feedModeBinance = "binance"
	feedModeSim     = "sim"

	postTradeRetention = 24 * time.Hour
)

// candleFeed 是 K 线与盘口来源（Binance 或模拟）。
type candleFeed interface {
	Start(ctx context.Context) error
	Done() <-chan struct{}
}

// Container 依赖注入容器，管理所有组件的生命周期
type Container struct {
	// 配置
	cfg config.AppConfig

	// 基础设施
	logger  *logger.Logger
	monitor *monitor.Monitor
	alerts  *alert.Manager

	// 行情
	marketData *market.Service
	publisher  *market.Publisher
	window     *market.CandleWindow
	handler    *gateway.MarketDataHandler
	feed       candleFeed
	rest       *gateway.RESTClient // 仅 binance 模式
	feedUp     atomic.Bool

	// 核心服务
	calc         *indicator.Calculator
	paper        *gateway.PaperExchange
	inventory    inventory.Provider
	orderManager *order.Manager
	engine       *engine.Orchestrator
	postTrade    *posttrade.Analyzer

	// 生命周期管理
	lifecycle *LifecycleManager
}

// New 创建新的Container实例；配置在此之后固定。
func New(cfg config.AppConfig) (*Container, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Container{
		cfg:       cfg,
		lifecycle: NewLifecycleManager(),
	}, nil
}

// Build 构建所有组件
func (c *Container) Build() error {
	if err := c.buildInfrastructure(); err != nil {
		return fmt.Errorf("build infrastructure failed: %w", err)
	}
	if err := c.buildMarketData(); err != nil {
		return fmt.Errorf("build market data failed: %w", err)
	}
	if err := c.buildCoreServices(); err != nil {
		return fmt.Errorf("build core services failed: %w", err)
	}
	c.wireCandles()
	c.registerLifecycleComponents()
	c.logger.Info("container built successfully",
		zap.String("pair", c.cfg.Market.Pair),
		zap.String("feed_mode", c.cfg.Feed.Mode),
		zap.String("inventory_mode", c.cfg.Inventory.Mode))
	return nil
}

func (c *Container) buildInfrastructure() error {
	var err error
	c.logger, err = logger.New(c.cfg.Log)
	if err != nil {
		return fmt.Errorf("create logger failed: %w", err)
	}

	c.monitor = monitor.New(monitor.DefaultConfig())

	throttle := time.Duration(c.cfg.Alert.ThrottleSec) * time.Second
	c.alerts = alert.NewManager([]alert.Channel{
		alert.NewLogChannel("log", c.logger.Logger.Named("alert")),
	}, throttle)

	c.logger.Info("infrastructure built")
	return nil
}

func (c *Container) buildMarketData() error {
	interval, err := c.cfg.CandleInterval()
	if err != nil {
		return err
	}
	maxStale := time.Duration(c.cfg.Feed.MaxStaleMs) * time.Millisecond
	c.marketData = market.NewService(maxStale)
	c.publisher = market.NewPublisher()
	c.window = market.NewCandleWindow(c.cfg.Market.WindowCapacity)
	c.handler = gateway.NewMarketDataHandler(c.marketData, c.publisher, c.logger.Logger.Named("market"))

	backfill := 0
	if c.cfg.Feed.Backfill {
		backfill = c.cfg.Market.WindowCapacity
	}

	switch c.cfg.Feed.Mode {
	case feedModeBinance:
		feed := gateway.BuildBinanceFeed(gateway.FeedConfig{
			RESTURL:    c.cfg.Feed.RESTURL,
			WSEndpoint: c.cfg.Feed.WSEndpoint,
			Symbol:     c.cfg.Market.Pair,
			Interval:   c.cfg.Market.CandleInterval,
			Backfill:   backfill,
			Timeout:    time.Duration(c.cfg.Feed.TimeoutMs) * time.Millisecond,
		}, c.handler, c.logger.Logger.Named("feed"))
		feed.Stream.OnReconnect = c.monitor.RecordFeedReconnect
		c.rest = feed.REST
		c.feed = feed
	case feedModeSim:
		f := sim.NewLiveFeed(c.cfg.Market.Pair, interval, sim.NewMarket(sim.DefaultMarketConfig()), c.handler, c.logger.Logger.Named("feed"))
		c.feed = &simFeed{LiveFeed: f, backfill: backfill}
	default:
		return fmt.Errorf("unknown feed mode %q", c.cfg.Feed.Mode)
	}
	return nil
}

func (c *Container) buildCoreServices() error {
	interval, err := c.cfg.CandleInterval()
	if err != nil {
		return err
	}

	c.calc, err = indicator.NewCalculator(c.cfg.IndicatorConfig())
	if err != nil {
		return err
	}
	strat, err := strategy.NewEngine(c.cfg.EngineConfig())
	if err != nil {
		return err
	}

	c.paper, err = gateway.NewPaperExchange(c.cfg.Market.Exchange, interval, inventory.Balances{
		Base:  c.cfg.Paper.Base,
		Quote: c.cfg.Paper.Quote,
	})
	if err != nil {
		return err
	}
	c.paper.SetLogger(c.logger.Logger.Named("paper"))
	c.inventory, err = inventory.NewProvider(inventory.Mode(c.cfg.Inventory.Mode), inventory.Balances{
		Base:  c.cfg.Inventory.InitialBase,
		Quote: c.cfg.Inventory.InitialQuote,
	}, c.paper)
	if err != nil {
		return err
	}

	c.orderManager = order.NewManager(c.paper)
	c.orderManager.SetConstraints(map[string]order.SymbolConstraints{
		c.cfg.Market.Pair: c.cfg.SymbolConstraints(),
	})

	c.engine, err = engine.New(engine.Config{
		Symbol:        c.cfg.Market.Pair,
		Exchange:      c.cfg.Market.Exchange,
		PollInterval:  time.Duration(c.cfg.Strategy.TickMs) * time.Millisecond,
		AllowDegraded: c.cfg.Feed.AllowDegraded,
	}, engine.Components{
		Calculator:   c.calc,
		Strategy:     strat,
		Candles:      c.window,
		MarketData:   c.marketData,
		Inventory:    c.inventory,
		OrderManager: c.orderManager,
		Ready:        c.feedUp.Load,
		Monitor:      c.monitor,
		AlertManager: c.alerts,
		Logger:       c.logger,
	})
	if err != nil {
		return err
	}
	c.postTrade = posttrade.NewAnalyzer(interval, 5*interval)
	c.paper.SetFillHandler(func(f order.Fill) {
		c.postTrade.OnFill(f, time.Now())
		if err := c.engine.OnFill(f); err != nil {
			c.logger.Warn("apply fill failed", zap.Error(err), zap.String("clientOrderId", f.OrderID))
		}
	})

	c.logger.Info("core services built")
	return nil
}

// wireCandles 闭合 K 线依次进入窗口、指标计数与模拟撮合。
func (c *Container) wireCandles() {
	minCandles := c.calc.Config().MinCandles()
	c.publisher.SubscribeCandles(func(k market.Candle) {
		if err := c.window.Record(k); err != nil {
			c.logger.Warn("drop candle", zap.Error(err))
			return
		}
		c.monitor.RecordCandle()
		end := k.Ts.Add(c.paper.Interval)
		c.postTrade.OnMid(k.Close, end)
		c.postTrade.CleanOldRecords(end, postTradeRetention)
		if c.engine.State().Degraded && c.window.Len() >= minCandles {
			if err := c.engine.SetDegraded(false); err == nil {
				c.logger.Info("candle window refilled, leaving degraded mode", zap.Int("candles", c.window.Len()))
			}
		}
	})
	c.publisher.SubscribeCandles(func(k market.Candle) {
		c.paper.OnCandle(k)
	})
}

func (c *Container) registerLifecycleComponents() {
	c.lifecycle.Register("feed", &feedComponent{c: c})
	c.lifecycle.Register("engine", &engineComponent{engine: c.engine})
	if c.cfg.Status.Addr != "" {
		collector := &status.Collector{
			Symbol:         c.cfg.Market.Pair,
			Exchange:       c.cfg.Market.Exchange,
			CandleSource:   c.cfg.Market.CandleExchange,
			CandleInterval: c.cfg.Market.CandleInterval,
			Engine:         c.engine,
			Window:         c.window,
			Inventory:      c.inventory,
			Orders:         c.orderManager,
			Market:         c.marketData,
			PostTrade:      c.postTrade,
		}
		h := status.NewHandler(collector, c.HealthCheck, c.monitor.Handler(), c.logger.Logger.Named("status"))
		c.lifecycle.Register("status_server", &httpServerComponent{
			handler: h.Routes(),
			addr:    c.cfg.Status.Addr,
			logger:  c.logger.Named("status_server"),
		})
	}
}

func (c *Container) Start(ctx context.Context) error {
	c.logger.Info("starting container...")

	if err := c.lifecycle.StartAll(ctx); err != nil {
		return fmt.Errorf("start failed: %w", err)
	}

	c.logger.Info("container started", zap.Strings("components", c.lifecycle.Names()))
	return nil
}

// Stop 逆序停止组件；引擎停止时撤销全部挂单。
func (c *Container) Stop() error {
	c.logger.Info("stopping container...")

	err := c.lifecycle.StopAll()
	if err != nil {
		c.logger.LogError(err, map[string]interface{}{"action": "stop"})
	}
	if c.logger != nil {
		_ = c.logger.Close()
	}
	return err
}

func (c *Container) HealthCheck() error {
	return c.lifecycle.CheckHealth()
}

func (c *Container) Engine() *engine.Orchestrator { return c.engine }
func (c *Container) Logger() *logger.Logger       { return c.logger }
func (c *Container) Monitor() *monitor.Monitor    { return c.monitor }

// feedComponent 启动行情源；初始化失败且允许降级时以中性指标继续。
type feedComponent struct {
	c *Container
}

func (f *feedComponent) Start(ctx context.Context) error {
	c := f.c
	if c.cfg.Constraint.FromVenue && c.rest != nil {
		sc, err := c.rest.SymbolConstraints(ctx, c.cfg.Market.Pair)
		if err != nil {
			return fmt.Errorf("load symbol constraints: %w", err)
		}
		c.orderManager.SetConstraints(map[string]order.SymbolConstraints{c.cfg.Market.Pair: sc})
		c.logger.Info("symbol constraints loaded from venue",
			zap.Float64("tick_size", sc.TickSize), zap.Float64("step_size", sc.StepSize))
	}

	err := c.feed.Start(ctx)
	if err == nil {
		c.feedUp.Store(true)
		c.logger.LogEvent("feed_state", map[string]interface{}{"symbol": c.cfg.Market.Pair, "state": "connected"})
		return nil
	}
	if !c.cfg.Feed.AllowDegraded {
		return err
	}

	c.logger.WarnEvent("feed_state", map[string]interface{}{
		"symbol": c.cfg.Market.Pair, "state": "init_failed", "error": err.Error(),
	})
	_ = c.alerts.SendCritical("feed_init:"+c.cfg.Market.Pair,
		fmt.Sprintf("candle feed for %s failed to start, quoting with neutral indicators", c.cfg.Market.Pair),
		map[string]interface{}{"error": err.Error()})
	if derr := c.engine.SetDegraded(true); derr != nil {
		return errors.Join(err, derr)
	}
	// 回补失败时仍尝试只订阅实时流，以获得盘口
	if bf, ok := c.feed.(*gateway.Feed); ok {
		if retry := bf.StartStreamOnly(ctx); retry == nil {
			c.feedUp.Store(true)
		}
	}
	return nil
}

func (f *feedComponent) Stop() error { return nil }

func (f *feedComponent) Health() error {
	if !f.c.feedUp.Load() {
		return errors.New("candle feed not connected")
	}
	select {
	case <-f.c.feed.Done():
		return errors.New("candle feed stopped")
	default:
	}
	return nil
}

// engineComponent 报价引擎生命周期。
type engineComponent struct {
	engine *engine.Orchestrator
}

func (e *engineComponent) Start(ctx context.Context) error { return e.engine.Start(ctx) }
func (e *engineComponent) Stop() error                     { return e.engine.Stop() }

func (e *engineComponent) Health() error {
	if st := e.engine.RunState(); st != engine.RunStateRunning {
		return fmt.Errorf("engine not running: %s", st)
	}
	return nil
}

// simFeed 给模拟行情加上启动回补。
type simFeed struct {
	*sim.LiveFeed
	backfill int
}

func (s *simFeed) Start(ctx context.Context) error {
	if s.backfill > 0 {
		s.Backfill(s.backfill)
	}
	return s.LiveFeed.Start(ctx)
}
