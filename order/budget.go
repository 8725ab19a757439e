package order

import (
	"fmt"

	"github.com/shopspring/decimal"

	"pmm-adaptive/inventory"
)

// BudgetChecker 按余额筛选订单：每个订单要么全额保留，要么整单剔除（all-or-none）。
// BUY 需要 quantity×price 的 quote，SELL 需要 quantity 的 base；已接受的订单会占用余额。
type BudgetChecker struct{}

// Adjust 返回可下的订单与被剔除订单的拒绝原因。
func (BudgetChecker) Adjust(orders []Order, bal inventory.Balances) ([]Order, []*RejectionError) {
	base := decimal.NewFromFloat(bal.Base)
	quote := decimal.NewFromFloat(bal.Quote)
	accepted := make([]Order, 0, len(orders))
	var rejected []*RejectionError
	for _, o := range orders {
		qty := decimal.NewFromFloat(o.Quantity)
		switch o.Side {
		case Buy:
			need := qty.Mul(decimal.NewFromFloat(o.Price))
			if need.GreaterThan(quote) {
				rejected = append(rejected, &RejectionError{Side: o.Side,
					Reason: fmt.Sprintf("insufficient quote balance: need %s have %s", need, quote)})
				continue
			}
			quote = quote.Sub(need)
		case Sell:
			if qty.GreaterThan(base) {
				rejected = append(rejected, &RejectionError{Side: o.Side,
					Reason: fmt.Sprintf("insufficient base balance: need %s have %s", qty, base)})
				continue
			}
			base = base.Sub(qty)
		default:
			rejected = append(rejected, &RejectionError{Side: o.Side, Reason: "unknown side"})
			continue
		}
		accepted = append(accepted, o)
	}
	return accepted, rejected
}
