package status

import (
	"context"
	"fmt"

	"pmm-adaptive/internal/engine"
	"pmm-adaptive/inventory"
	"pmm-adaptive/market"
	"pmm-adaptive/order"
	"pmm-adaptive/posttrade"
)

// Collector 从运行中的组件拼装 View。
type Collector struct {
	Symbol         string
	Exchange       string
	CandleSource   string
	CandleInterval string
	CandleRows     int // 状态页显示的 K 线数量

	Engine    *engine.Orchestrator
	Window    *market.CandleWindow
	Inventory inventory.Provider
	Orders    *order.Manager
	Market    engine.MarketData
	PostTrade *posttrade.Analyzer
}

// View 返回当前状态；盘口缺失时使用上一周期的盘口。
func (c *Collector) View(ctx context.Context) (View, error) {
	if c.Engine == nil || c.Inventory == nil {
		return View{}, fmt.Errorf("status collector not wired")
	}
	st := c.Engine.State()
	bal, err := c.Inventory.Balances(ctx)
	if err != nil {
		return View{}, fmt.Errorf("balances: %w", err)
	}
	top := st.LastTop
	if c.Market != nil {
		if fresh, err := c.Market.TopOfBook(c.Symbol); err == nil {
			top = fresh
		}
	}
	v := View{
		Symbol:         c.Symbol,
		Exchange:       c.Exchange,
		CandleSource:   c.CandleSource,
		CandleInterval: c.CandleInterval,
		InventoryMode:  string(c.Inventory.Mode()),
		Balances:       bal,
		Top:            top,
		Momentum:       st.Snapshot.Momentum,
		Volatility:     st.Snapshot.Volatility,
		Refresh:        st.Interval,
		VolumeSpike:    st.Snapshot.VolumeSpike,
		Degraded:       st.Degraded,
		Phase:          st.Phase.String(),
		LastOutcome:    st.LastOutcome.String(),
		NextCycleAt:    st.NextCycleAt,
	}
	setValuation(&v, c.Inventory)
	if st.HasDecision {
		v.BidSpread = st.LastDecision.Proposal.BidSpread
		v.AskSpread = st.LastDecision.Proposal.AskSpread
	}
	if c.PostTrade != nil {
		st := c.PostTrade.Stats()
		v.PostTrade = &st
	}
	if c.Orders != nil {
		v.Orders = c.Orders.Active()
	}
	if c.Window != nil {
		rows := c.CandleRows
		if rows <= 0 {
			rows = 10
		}
		tail := c.Window.Tail(rows)
		v.Candles = make([]market.Candle, len(tail))
		for i := range tail {
			v.Candles[i] = tail[len(tail)-1-i]
		}
	}
	return v, nil
}

// setValuation 在 Provider 能估值且 mid 有效时填充均价与未实现盈亏。
func setValuation(v *View, p inventory.Provider) {
	val, ok := p.(inventory.Valuer)
	if !ok || v.Top.Mid <= 0 {
		return
	}
	v.AvgCost = val.AvgCost()
	v.TotalValue, v.UnrealizedPnL = val.Valuation(v.Top.Mid)
}
