package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"pmm-adaptive/indicator"
	"pmm-adaptive/infrastructure/alert"
	"pmm-adaptive/infrastructure/logger"
	"pmm-adaptive/infrastructure/monitor"
	"pmm-adaptive/inventory"
	"pmm-adaptive/market"
	"pmm-adaptive/order"
	"pmm-adaptive/strategy"
)

// MarketData 提供每周期新鲜获取的盘口；market.Service 实现该接口。
type MarketData interface {
	TopOfBook(symbol string) (market.Top, error)
}

// CandleSource 提供 K 线窗口拷贝；market.CandleWindow 实现该接口。
type CandleSource interface {
	Snapshot() []market.Candle
	Len() int
}

// Config 引擎配置
type Config struct {
	Symbol        string        // 交易对
	Exchange      string        // 成交通知中的交易所名
	PollInterval  time.Duration // Run 循环检查周期，决定调度精度
	AllowDegraded bool          // 行情启动失败时允许使用中性指标继续报价
	StopTimeout   time.Duration // 停止时撤单超时
}

// Components 引擎依赖组件
type Components struct {
	Calculator   *indicator.Calculator
	Strategy     *strategy.Engine
	Candles      CandleSource
	MarketData   MarketData
	Inventory    inventory.Provider
	OrderManager *order.Manager
	Budget       order.BudgetChecker
	Ready        func() bool // 连接就绪检查，可为空
	Monitor      *monitor.Monitor
	AlertManager *alert.Manager
	Logger       *logger.Logger
}

// Orchestrator 按自适应间隔驱动 撤单→刷新指标→报价 周期。
// 同一时间最多一个周期在执行；成交回报独立于周期即时更新库存。
type Orchestrator struct {
	config Config

	calc      *indicator.Calculator
	strat     *strategy.Engine
	candles   CandleSource
	market    MarketData
	inventory inventory.Provider
	orderMgr  *order.Manager
	budget    order.BudgetChecker
	ready     func() bool
	metrics   *monitor.Monitor
	alertMgr  *alert.Manager
	logger    *logger.Logger

	inFlight atomic.Bool

	mu    sync.RWMutex
	state State
	run   RunState

	stopChan chan struct{}
	doneChan chan struct{}
	now      func() time.Time
}

// New 创建引擎
func New(cfg Config, components Components) (*Orchestrator, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := validateComponents(components); err != nil {
		return nil, fmt.Errorf("invalid components: %w", err)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 10 * time.Second
	}
	lg := components.Logger
	if lg == nil {
		lg = logger.NewNop()
	}
	return &Orchestrator{
		config:    cfg,
		calc:      components.Calculator,
		strat:     components.Strategy,
		candles:   components.Candles,
		market:    components.MarketData,
		inventory: components.Inventory,
		orderMgr:  components.OrderManager,
		budget:    components.Budget,
		ready:     components.Ready,
		metrics:   components.Monitor,
		alertMgr:  components.AlertManager,
		logger:    lg.Named("engine"),
		state:     State{Phase: PhaseIdle, Snapshot: indicator.Neutral()},
		now:       time.Now,
	}, nil
}

func validateConfig(cfg Config) error {
	if cfg.Symbol == "" {
		return errors.New("symbol is required")
	}
	if cfg.PollInterval < 0 {
		return errors.New("poll interval must be >= 0")
	}
	return nil
}

func validateComponents(c Components) error {
	if c.Calculator == nil {
		return errors.New("calculator is required")
	}
	if c.Strategy == nil {
		return errors.New("strategy is required")
	}
	if c.Candles == nil {
		return errors.New("candle source is required")
	}
	if c.MarketData == nil {
		return errors.New("market data is required")
	}
	if c.Inventory == nil {
		return errors.New("inventory provider is required")
	}
	if c.OrderManager == nil {
		return errors.New("order manager is required")
	}
	return nil
}

// State 返回状态拷贝
func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// RunState 返回生命周期状态
func (o *Orchestrator) RunState() RunState {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.run
}

// SetDegraded 切换无指标降级模式。未开启 AllowDegraded 时拒绝进入降级。
func (o *Orchestrator) SetDegraded(on bool) error {
	if on && !o.config.AllowDegraded {
		return errors.New("degraded mode not allowed by configuration")
	}
	o.mu.Lock()
	o.state.Degraded = on
	if on {
		o.state.Snapshot = indicator.Neutral()
		o.state.HasSnapshot = true
	}
	o.mu.Unlock()
	o.logger.WarnEvent("feed_state", map[string]interface{}{
		"symbol":   o.config.Symbol,
		"state":    "degraded",
		"degraded": on,
	})
	return nil
}

// Tick 在 now >= NextCycleAt 且数据就绪时执行一次完整周期，否则为空操作。
// 并发重入的调用直接返回 OutcomeBusy。
func (o *Orchestrator) Tick(ctx context.Context, now time.Time) (Outcome, error) {
	if !o.inFlight.CompareAndSwap(false, true) {
		o.observe(OutcomeBusy, 0)
		return OutcomeBusy, nil
	}
	defer o.inFlight.Store(false)

	o.mu.Lock()
	o.state.Stats.TotalTicks++
	next := o.state.NextCycleAt
	degraded := o.state.Degraded
	o.mu.Unlock()

	if now.Before(next) {
		o.observe(OutcomeSkipped, 0)
		return OutcomeSkipped, nil
	}
	if !o.dataReady(degraded) {
		o.finish(OutcomeNotReady, now, nil)
		o.observe(OutcomeNotReady, 0)
		return OutcomeNotReady, nil
	}

	start := time.Now()
	outcome, err := o.cycle(ctx, now, degraded)
	o.finish(outcome, now, err)
	o.observe(outcome, time.Since(start))
	return outcome, err
}

func (o *Orchestrator) dataReady(degraded bool) bool {
	if o.ready != nil && !o.ready() {
		o.logger.DebugEvent("quote_cycle", map[string]interface{}{
			"symbol": o.config.Symbol, "outcome": OutcomeNotReady.String(), "intervalMs": int64(0), "reason": "connector not ready",
		})
		return false
	}
	if !degraded && o.candles.Len() == 0 {
		o.logger.DebugEvent("quote_cycle", map[string]interface{}{
			"symbol": o.config.Symbol, "outcome": OutcomeNotReady.String(), "intervalMs": int64(0), "reason": "no candles",
		})
		return false
	}
	return true
}

func (o *Orchestrator) cycle(ctx context.Context, now time.Time, degraded bool) (Outcome, error) {
	// REFRESHING
	o.setPhase(PhaseRefreshing)
	n, err := o.orderMgr.CancelAll(ctx)
	if o.metrics != nil {
		o.metrics.RecordOrdersCanceled(n)
	}
	if err != nil {
		// 撤单已尝试；失败的订单留给下一周期
		o.logger.Warn("cancel stale orders", zap.Int("canceled", n), zap.Error(err))
	}

	snap, ok := o.refreshIndicators(degraded)
	if !ok {
		return OutcomeNotReady, nil
	}

	// QUOTING
	o.setPhase(PhaseQuoting)
	top, err := o.market.TopOfBook(o.config.Symbol)
	if err != nil {
		o.logger.Debug("top of book unavailable", zap.String("symbol", o.config.Symbol), zap.Error(err))
		return OutcomeNotReady, nil
	}
	bal, err := o.inventory.Balances(ctx)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("read balances: %w", err)
	}

	dec, err := o.strat.Propose(snap, strategy.MarketSnapshot{
		Mid:     top.Mid,
		BestBid: top.BestBid,
		BestAsk: top.BestAsk,
		Ts:      top.Ts,
	}, bal)

	o.mu.Lock()
	o.state.LastTop = top
	o.state.Interval = dec.Interval
	o.state.NextCycleAt = now.Add(dec.Interval)
	o.state.Stats.TotalCycles++
	if err == nil {
		o.state.LastDecision = dec
		o.state.HasDecision = true
	}
	o.mu.Unlock()
	if o.metrics != nil {
		o.metrics.RecordInterval(dec.Interval)
		o.metrics.UpdateInventory(bal.Base, bal.Quote, bal.BaseRatio(top.Mid))
	}

	switch {
	case errors.Is(err, strategy.ErrDegenerateQuote):
		o.onDegenerate(dec, err)
		return OutcomeDegenerate, nil
	case err != nil:
		o.logger.LogError(err, map[string]interface{}{"symbol": o.config.Symbol, "mid": top.Mid})
		return OutcomeFailed, err
	}

	o.logger.LogEvent("proposal", map[string]interface{}{
		"symbol":      o.config.Symbol,
		"mid":         top.Mid,
		"adjustedMid": dec.Skew.AdjustedMid,
		"baseRatio":   dec.Skew.BaseRatio,
		"buy":         dec.Proposal.Buy.Price,
		"sell":        dec.Proposal.Sell.Price,
		"spike":       dec.Proposal.Spike,
		"widened":     dec.Proposal.Widened,
		"clamped":     dec.Skew.Clamped,
	})
	if o.metrics != nil {
		o.metrics.RecordProposal(top.Mid, dec.Skew.AdjustedMid, dec.Proposal.Buy.Price, dec.Proposal.Sell.Price)
	}

	o.submit(ctx, dec.Proposal, bal)
	return OutcomeQuoted, nil
}

// refreshIndicators 重新计算指标；数据不足时沿用上一次快照，从未有过快照则跳过周期。
func (o *Orchestrator) refreshIndicators(degraded bool) (indicator.Snapshot, bool) {
	o.mu.RLock()
	prev, hasPrev := o.state.Snapshot, o.state.HasSnapshot
	o.mu.RUnlock()

	if degraded {
		return indicator.Neutral(), true
	}
	snap, err := o.calc.Compute(o.candles.Snapshot())
	if err != nil {
		if !hasPrev {
			o.logger.Debug("indicators not ready", zap.Error(err))
			return indicator.Snapshot{}, false
		}
		if !errors.Is(err, indicator.ErrInsufficientData) {
			o.logger.Warn("indicator compute failed, keeping previous snapshot", zap.Error(err))
		}
		return prev, true
	}

	o.mu.Lock()
	o.state.Snapshot = snap
	o.state.HasSnapshot = true
	o.mu.Unlock()

	o.logger.DebugEvent("indicator_update", map[string]interface{}{
		"symbol":       o.config.Symbol,
		"volatility":   snap.Volatility,
		"momentum":     snap.Momentum,
		"avgVolume":    snap.AvgVolume,
		"latestVolume": snap.LatestVolume,
		"volumeSpike":  snap.VolumeSpike,
	})
	if o.metrics != nil {
		o.metrics.RecordIndicators(snap.Volatility, snap.Momentum, snap.AvgVolume, snap.LatestVolume, snap.VolumeSpike)
	}
	return snap, true
}

func (o *Orchestrator) onDegenerate(dec strategy.Decision, err error) {
	fields := map[string]interface{}{
		"symbol":      o.config.Symbol,
		"error":       err.Error(),
		"adjustedMid": dec.Skew.AdjustedMid,
	}
	o.logger.WarnEvent("degenerate_quote", fields)
	if o.metrics != nil {
		o.metrics.RecordDegenerate()
	}
	if aerr := o.alertMgr.SendWarning("degenerate_quote:"+o.config.Symbol, "degenerate quote discarded", fields); aerr != nil {
		o.logger.Warn("send alert", zap.Error(aerr))
	}
}

// submit 量化、按余额筛选并逐腿下单。单腿被拒不影响另一腿。
func (o *Orchestrator) submit(ctx context.Context, p strategy.Proposal, bal inventory.Balances) {
	cons, hasCons := o.orderMgr.Constraints(o.config.Symbol)
	orders := make([]order.Order, 0, 2)
	for _, leg := range p.Legs() {
		side := order.Buy
		if leg.Side == strategy.Sell {
			side = order.Sell
		}
		price, qty := leg.Price, leg.Amount
		if hasCons {
			price, qty = cons.Quantize(side, price, qty)
		}
		orders = append(orders, order.Order{
			Symbol:   o.config.Symbol,
			Side:     side,
			Price:    price,
			Quantity: qty,
		})
	}

	accepted, rejected := o.budget.Adjust(orders, bal)
	for _, rej := range rejected {
		o.onRejected(rej)
	}

	placed := 0
	for _, ord := range accepted {
		res, err := o.orderMgr.Submit(ctx, ord)
		if err != nil {
			var rej *order.RejectionError
			if errors.As(err, &rej) {
				o.onRejected(rej)
				continue
			}
			o.logger.LogError(err, map[string]interface{}{"symbol": o.config.Symbol, "side": string(ord.Side)})
			o.recordError()
			continue
		}
		placed++
		o.logger.LogOrder(string(res.Status), res.ID, map[string]interface{}{
			"symbol": res.Symbol,
			"side":   string(res.Side),
			"price":  res.Price,
			"qty":    res.Quantity,
		})
		if o.metrics != nil {
			o.metrics.RecordOrderPlaced()
		}
	}

	o.mu.Lock()
	o.state.Stats.TotalQuotes++
	o.state.Stats.TotalOrders += int64(placed)
	o.mu.Unlock()
}

func (o *Orchestrator) onRejected(rej *order.RejectionError) {
	o.logger.Warn("order leg rejected",
		zap.String("symbol", o.config.Symbol),
		zap.String("side", string(rej.Side)),
		zap.String("reason", rej.Reason))
	if o.metrics != nil {
		o.metrics.RecordOrderRejected()
	}
	o.mu.Lock()
	o.state.Stats.TotalRejects++
	o.mu.Unlock()
}

// OnFill 成交回报：同步更新订单状态与库存，不等待下一周期。
func (o *Orchestrator) OnFill(f order.Fill) error {
	if _, err := o.orderMgr.ApplyFill(f); err != nil {
		// 订单可能已在撤单时被清理，库存仍以成交为准
		o.logger.Warn("apply fill to order book", zap.String("orderId", f.OrderID), zap.Error(err))
	}
	err := o.inventory.OnFill(f.DeltaBase(), f.Price)
	switch {
	case errors.Is(err, inventory.ErrBalanceClamped):
		o.logger.Warn("balance clamped at zero", zap.String("orderId", f.OrderID), zap.Error(err))
	case err != nil:
		o.recordError()
		return fmt.Errorf("apply fill %s: %w", f.OrderID, err)
	}

	o.mu.Lock()
	o.state.Stats.TotalFills++
	mid := o.state.LastTop.Mid
	o.mu.Unlock()

	msg := f.Message(o.config.Exchange)
	o.logger.LogFill(map[string]interface{}{
		"symbol":  f.Symbol,
		"side":    string(f.Side),
		"amount":  f.Amount,
		"price":   f.Price,
		"orderId": f.OrderID,
		"message": msg,
	})
	if o.metrics != nil {
		o.metrics.RecordFill(string(f.Side))
		if bal, berr := o.inventory.Balances(context.Background()); berr == nil {
			o.metrics.UpdateInventory(bal.Base, bal.Quote, bal.BaseRatio(mid))
		}
	}
	if aerr := o.alertMgr.SendInfo("", msg, nil); aerr != nil {
		o.logger.Warn("send alert", zap.Error(aerr))
	}
	return nil
}

// Start 启动后台调度循环
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.run == RunStateRunning {
		o.mu.Unlock()
		return fmt.Errorf("engine already started (state: %s)", o.run)
	}
	o.stopChan = make(chan struct{})
	o.doneChan = make(chan struct{})
	o.run = RunStateRunning
	o.state.Stats.StartTime = o.now()
	stop, done := o.stopChan, o.doneChan
	o.mu.Unlock()

	o.logger.Info("quote engine starting",
		zap.String("symbol", o.config.Symbol),
		zap.Duration("poll_interval", o.config.PollInterval),
		zap.String("inventory_mode", string(o.inventory.Mode())))

	go o.loop(ctx, stop, done)
	return nil
}

// Run 阻塞执行调度循环，直到 ctx 结束；退出前撤销全部挂单。
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return o.Stop()
}

// Stop 停止调度循环并撤销所有订单
func (o *Orchestrator) Stop() error {
	o.mu.Lock()
	if o.run != RunStateRunning {
		o.mu.Unlock()
		return nil
	}
	stop, done := o.stopChan, o.doneChan
	o.mu.Unlock()

	select {
	case <-stop:
	default:
		close(stop)
	}
	select {
	case <-done:
	case <-time.After(o.config.StopTimeout):
		o.logger.Warn("timeout waiting for engine loop to stop")
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.config.StopTimeout)
	defer cancel()
	n, err := o.orderMgr.CancelAll(ctx)
	if o.metrics != nil {
		o.metrics.RecordOrdersCanceled(n)
	}

	o.mu.Lock()
	o.run = RunStateStopped
	o.state.Phase = PhaseIdle
	o.mu.Unlock()

	if err != nil {
		o.logger.Error("failed to cancel orders on stop", zap.Int("canceled", n), zap.Error(err))
		return fmt.Errorf("cancel on stop: %w", err)
	}
	o.logger.Info("quote engine stopped", zap.Int("canceled", n))
	return nil
}

func (o *Orchestrator) loop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(o.config.PollInterval)
	defer ticker.Stop()

	o.tickOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			o.tickOnce(ctx)
		}
	}
}

func (o *Orchestrator) tickOnce(ctx context.Context) {
	if _, err := o.Tick(ctx, o.now()); err != nil {
		o.logger.Warn("quote cycle failed", zap.Error(err))
	}
}

func (o *Orchestrator) setPhase(p Phase) {
	o.mu.Lock()
	o.state.Phase = p
	o.mu.Unlock()
}

// finish 回到 IDLE 并记录结果
func (o *Orchestrator) finish(outcome Outcome, now time.Time, err error) {
	o.mu.Lock()
	o.state.Phase = PhaseIdle
	o.state.LastOutcome = outcome
	o.state.LastCycleAt = now
	o.state.LastError = ""
	if err != nil {
		o.state.LastError = err.Error()
		o.state.Stats.TotalErrors++
	}
	interval := o.state.Interval
	o.mu.Unlock()

	if outcome == OutcomeQuoted || outcome == OutcomeDegenerate || outcome == OutcomeFailed {
		o.logger.LogEvent("quote_cycle", map[string]interface{}{
			"symbol":     o.config.Symbol,
			"outcome":    outcome.String(),
			"intervalMs": interval.Milliseconds(),
		})
	}
}

func (o *Orchestrator) observe(outcome Outcome, took time.Duration) {
	if o.metrics != nil {
		o.metrics.RecordCycle(outcome.String(), took)
	}
}

func (o *Orchestrator) recordError() {
	o.mu.Lock()
	o.state.Stats.TotalErrors++
	o.mu.Unlock()
}
