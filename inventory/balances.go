package inventory

// Balances 是账户余额的值拷贝。周期开始时读取一次，之后的成交不会影响它。
type Balances struct {
	Base  float64
	Quote float64
}

// TotalValue 以 ref 计价的总资产（quote 计）。
func (b Balances) TotalValue(ref float64) float64 {
	return b.Base*ref + b.Quote
}

// BaseRatio returns base value / total value, 0.5 for an empty account.
func (b Balances) BaseRatio(ref float64) float64 {
	total := b.TotalValue(ref)
	if total <= 0 {
		return 0.5
	}
	return b.Base * ref / total
}
