package inventory

// Valuation 基于当前 mid 价计算总资产与持仓未实现盈亏。
func (l *Ledger) Valuation(mid float64) (total float64, pnl float64) {
	b := l.Balances()
	cost := l.AvgCost()
	total = b.TotalValue(mid)
	if b.Base > 0 && cost > 0 {
		pnl = (mid - cost) * b.Base
	}
	return
}
