package order

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Status represents order lifecycle.
type Status string

const (
	StatusNew      Status = "NEW"
	StatusAck      Status = "ACK"
	StatusPartial  Status = "PARTIAL"
	StatusFilled   Status = "FILLED"
	StatusCanceled Status = "CANCELED"
	StatusRejected Status = "REJECTED"
)

// Side 订单方向。
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Order holds a simplified limit order view.
type Order struct {
	ID        string // client order id
	Symbol    string
	Side      Side
	Price     float64
	Quantity  float64
	Filled    float64
	Status    Status
	LastError string
	CreatedAt time.Time
}

func (o Order) Remaining() float64 {
	r := o.Quantity - o.Filled
	if r < 0 {
		return 0
	}
	return r
}

// Fill 成交回报。
type Fill struct {
	OrderID string
	Symbol  string
	Side    Side
	Price   float64
	Amount  float64
	Ts      time.Time
}

// DeltaBase 返回成交对 base 余额的变动：买入为正、卖出为负。
func (f Fill) DeltaBase() float64 {
	if f.Side == Sell {
		return -f.Amount
	}
	return f.Amount
}

// Message 生成成交通知文本："BUY 0.01 SOL-USDT paper at 142.35"。
func (f Fill) Message(exchange string) string {
	amount := decimal.NewFromFloat(f.Amount).Round(2)
	price := decimal.NewFromFloat(f.Price).StringFixed(2)
	return fmt.Sprintf("%s %s %s %s at %s", f.Side, amount, f.Symbol, exchange, price)
}
