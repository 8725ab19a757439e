package sim

import (
	"fmt"
	"time"

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
	"pmm-adaptive/strategy"
)

// RunnerConfig 描述 Runner 的可选参数。
type RunnerConfig struct {
	Symbol         string
	Exchange       string
	Interval       time.Duration
	Step           time.Duration
	WindowCapacity int
	Start          time.Time

	Market      MarketConfig
	Indicators  indicator.Config
	Strategy    strategy.EngineConfig
	Constraints order.SymbolConstraints

	InventoryMode inventory.Mode
	Initial       inventory.Balances // manual 模式的本地账本与模拟交易所共用同一初始余额

	Logger  *logger.Logger
	Monitor *monitor.Monitor
	Alerts  *alert.Manager
}

// DefaultRunnerConfig returns a one-minute SOL-USDT simulation.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		Symbol:         "SOL-USDT",
		Exchange:       "paper",
		Interval:       time.Minute,
		Step:           time.Second,
		WindowCapacity: 150,
		Start:          time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Market:         DefaultMarketConfig(),
		Indicators:     indicator.DefaultConfig(),
		Strategy:       strategy.DefaultEngineConfig(),
		InventoryMode:  inventory.ModeManual,
		Initial:        inventory.Balances{Base: 5, Quote: 500},
	}
}

// BuildRunner 基于配置快速组装 Runner（使用内存组件，适合离线/仿真）。
func BuildRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Symbol == "" {
		return nil, fmt.Errorf("sim: symbol is required")
	}
	if cfg.Interval <= 0 || cfg.Step <= 0 {
		return nil, fmt.Errorf("sim: interval %s and step %s must be > 0", cfg.Interval, cfg.Step)
	}
	lg := cfg.Logger
	if lg == nil {
		lg = logger.NewNop()
	}

	calc, err := indicator.NewCalculator(cfg.Indicators)
	if err != nil {
		return nil, err
	}
	strat, err := strategy.NewEngine(cfg.Strategy)
	if err != nil {
		return nil, err
	}

	paper, err := gateway.NewPaperExchange(cfg.Exchange, cfg.Interval, cfg.Initial)
	if err != nil {
		return nil, err
	}
	paper.SetLogger(lg.Logger.Named("paper"))
	provider, err := inventory.NewProvider(cfg.InventoryMode, cfg.Initial, paper)
	if err != nil {
		return nil, err
	}

	mgr := order.NewManager(paper)
	mgr.SetConstraints(map[string]order.SymbolConstraints{cfg.Symbol: cfg.Constraints})

	window := market.NewCandleWindow(cfg.WindowCapacity)
	data := market.NewService(0)

	orch, err := engine.New(engine.Config{
		Symbol:       cfg.Symbol,
		Exchange:     cfg.Exchange,
		PollInterval: cfg.Step,
	}, engine.Components{
		Calculator:   calc,
		Strategy:     strat,
		Candles:      window,
		MarketData:   data,
		Inventory:    provider,
		OrderManager: mgr,
		Monitor:      cfg.Monitor,
		AlertManager: cfg.Alerts,
		Logger:       lg,
	})
	if err != nil {
		return nil, err
	}

	r := &Runner{
		Symbol:    cfg.Symbol,
		Interval:  cfg.Interval,
		Step:      cfg.Step,
		Market:    NewMarket(cfg.Market),
		Agg:       market.NewKlineAggregator(cfg.Interval),
		Window:    window,
		Data:      data,
		Paper:     paper,
		Engine:    orch,
		Inventory: provider,
		PostTrade: posttrade.NewAnalyzer(cfg.Interval, 5*cfg.Interval),
		Logger:    lg,
		clock:     cfg.Start.Truncate(cfg.Interval),
	}
	r.bucket = r.clock
	paper.SetClock(r.Now)
	paper.SetFillHandler(r.onFill)
	return r, nil
}
