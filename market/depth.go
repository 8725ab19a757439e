package market

// Depth 保存最优 bid/ask 价格。
type Depth struct {
	Bid float64
	Ask float64
}

// Update 使用增量更新 bid/ask，非正值表示该侧无变化。
func (d *Depth) Update(bid, ask float64) {
	if bid > 0 {
		d.Bid = bid
	}
	if ask > 0 {
		d.Ask = ask
	}
}

// Crossed 报告 bid 是否不低于 ask（盘口异常或尚未初始化）。
func (d Depth) Crossed() bool {
	return d.Bid <= 0 || d.Ask <= 0 || d.Bid >= d.Ask
}
