package gateway

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pmm-adaptive/inventory"
	"pmm-adaptive/market"
	"pmm-adaptive/order"
)

type paperOrder struct {
	order.Order
	placedAt time.Time
}

// PaperExchange 模拟撮合：持有余额、接受限价单，并在闭合 K 线穿过挂单价时整单成交。
// 实现 order.Gateway 与 inventory.BalanceSource。
type PaperExchange struct {
	Name     string
	Interval time.Duration // candle interval，用于判断 K 线是否覆盖下单时间

	mu     sync.Mutex
	ledger *inventory.Ledger
	open   map[string]paperOrder
	onFill func(order.Fill)
	now    func() time.Time
	logger *zap.Logger
}

func NewPaperExchange(name string, interval time.Duration, initial inventory.Balances) (*PaperExchange, error) {
	l, err := inventory.NewLedger(initial)
	if err != nil {
		return nil, fmt.Errorf("paper exchange: %w", err)
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &PaperExchange{
		Name:     name,
		Interval: interval,
		ledger:   l,
		open:     make(map[string]paperOrder),
		now:      time.Now,
		logger:   zap.NewNop(),
	}, nil
}

// SetLogger 替换日志器；nil 被忽略。
func (p *PaperExchange) SetLogger(l *zap.Logger) {
	if l == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logger = l
}

// SetClock 替换时间源（模拟运行使用）。
func (p *PaperExchange) SetClock(now func() time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.now = now
}

// SetFillHandler 注册成交回调；回调在锁外同步执行。
func (p *PaperExchange) SetFillHandler(fn func(order.Fill)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onFill = fn
}

// Place 检查可用余额（扣除已挂单占用）后登记挂单。
func (p *PaperExchange) Place(_ context.Context, o order.Order) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, dup := p.open[o.ID]; dup {
		return &order.RejectionError{OrderID: o.ID, Side: o.Side, Reason: "duplicate client order id"}
	}
	availBase, availQuote := p.available()
	qty := decimal.NewFromFloat(o.Quantity)
	switch o.Side {
	case order.Buy:
		need := qty.Mul(decimal.NewFromFloat(o.Price))
		if need.GreaterThan(availQuote) {
			return &order.RejectionError{OrderID: o.ID, Side: o.Side,
				Reason: fmt.Sprintf("insufficient quote balance: need %s available %s", need, availQuote)}
		}
	case order.Sell:
		if qty.GreaterThan(availBase) {
			return &order.RejectionError{OrderID: o.ID, Side: o.Side,
				Reason: fmt.Sprintf("insufficient base balance: need %s available %s", qty, availBase)}
		}
	default:
		return &order.RejectionError{OrderID: o.ID, Side: o.Side, Reason: "unknown side"}
	}
	p.open[o.ID] = paperOrder{Order: o, placedAt: p.now()}
	return nil
}

// available 返回扣除挂单占用后的余额，调用方持有锁。
func (p *PaperExchange) available() (base, quote decimal.Decimal) {
	b := p.ledger.Balances()
	base = decimal.NewFromFloat(b.Base)
	quote = decimal.NewFromFloat(b.Quote)
	for _, o := range p.open {
		qty := decimal.NewFromFloat(o.Quantity)
		if o.Side == order.Buy {
			quote = quote.Sub(qty.Mul(decimal.NewFromFloat(o.Price)))
		} else {
			base = base.Sub(qty)
		}
	}
	return base, quote
}

func (p *PaperExchange) Cancel(_ context.Context, o order.Order) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.open[o.ID]; !ok {
		return fmt.Errorf("%s: %w", o.ID, order.ErrNotOpen)
	}
	delete(p.open, o.ID)
	return nil
}

// Balances 实现 inventory.BalanceSource。
func (p *PaperExchange) Balances(context.Context) (inventory.Balances, error) {
	return p.ledger.Balances(), nil
}

// OpenOrders 返回当前挂单，按下单时间排序，同一时刻按 ID。
func (p *PaperExchange) OpenOrders() []order.Order {
	p.mu.Lock()
	defer p.mu.Unlock()
	open := make([]paperOrder, 0, len(p.open))
	for _, o := range p.open {
		open = append(open, o)
	}
	sort.Slice(open, func(i, j int) bool {
		if !open[i].placedAt.Equal(open[j].placedAt) {
			return open[i].placedAt.Before(open[j].placedAt)
		}
		return open[i].ID < open[j].ID
	})
	res := make([]order.Order, len(open))
	for i, o := range open {
		res[i] = o.Order
	}
	return res
}

// OnCandle 用闭合 K 线撮合挂单：买单在 low 低于挂单价时成交，卖单在 high 高于挂单价时成交。
// 只有开盘时间不早于下单时间的 K 线才参与撮合，下单前已开始的 K 线价格路径不可见。
func (p *PaperExchange) OnCandle(c market.Candle) []order.Fill {
	p.mu.Lock()
	end := c.Ts.Add(p.Interval)
	var fills []order.Fill
	for id, o := range p.open {
		if c.Ts.Before(o.placedAt) {
			continue
		}
		hit := (o.Side == order.Buy && c.Low < o.Price) || (o.Side == order.Sell && c.High > o.Price)
		if !hit {
			continue
		}
		delta := o.Quantity
		if o.Side == order.Sell {
			delta = -delta
		}
		// 下单时已检查可用余额；余额在挂单期间被外部调整时才会截断
		if err := p.ledger.Update(delta, o.Price); err != nil {
			p.logger.Warn("paper fill clamped balance",
				zap.Error(err),
				zap.String("clientOrderId", id),
				zap.String("side", string(o.Side)),
				zap.Float64("price", o.Price),
				zap.Float64("amount", o.Quantity))
		}
		delete(p.open, id)
		fills = append(fills, order.Fill{
			OrderID: id,
			Symbol:  o.Symbol,
			Side:    o.Side,
			Price:   o.Price,
			Amount:  o.Quantity,
			Ts:      end,
		})
	}
	fn := p.onFill
	p.mu.Unlock()

	sort.Slice(fills, func(i, j int) bool { return fills[i].OrderID < fills[j].OrderID })
	if fn != nil {
		for _, f := range fills {
			fn(f)
		}
	}
	return fills
}
