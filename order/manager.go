package order

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Gateway 提供基础下单/撤单抽象；由 gateway.PaperExchange 实现。
type Gateway interface {
	Place(ctx context.Context, o Order) error
	Cancel(ctx context.Context, o Order) error
}

var (
	ErrUnknownOrder = errors.New("unknown order")
	// ErrNotOpen 交易所侧订单已不在挂单中（已成交或已撤）。
	ErrNotOpen = errors.New("order not open on venue")
)

// RejectionError 下单被拒（余额不足、精度不符等），不可在同一周期重试。
type RejectionError struct {
	OrderID string
	Side    Side
	Reason  string
}

func (e *RejectionError) Error() string {
	if e.OrderID == "" {
		return fmt.Sprintf("%s order rejected: %s", e.Side, e.Reason)
	}
	return fmt.Sprintf("%s order %s rejected: %s", e.Side, e.OrderID, e.Reason)
}

// Manager 维护订单状态并通过 Gateway 下发。
type Manager struct {
	gw          Gateway
	book        *Book
	mu          sync.RWMutex
	constraints map[string]SymbolConstraints
	now         func() time.Time
}

func NewManager(gw Gateway) *Manager {
	return &Manager{
		gw:   gw,
		book: NewBook(),
		now:  time.Now,
	}
}

// Submit 同步调用 Gateway 下单并登记状态。
func (m *Manager) Submit(ctx context.Context, o Order) (*Order, error) {
	if err := m.validateConstraint(o); err != nil {
		return nil, &RejectionError{Side: o.Side, Reason: err.Error()}
	}
	if o.ID == "" {
		o.ID = generateID()
	}
	o.Status = StatusNew
	o.CreatedAt = m.now()
	m.book.Set(o)

	if m.gw != nil {
		if err := m.gw.Place(ctx, o); err != nil {
			_ = m.updateStatus(o.ID, StatusRejected, err)
			var rej *RejectionError
			if errors.As(err, &rej) {
				return nil, err
			}
			return nil, fmt.Errorf("place %s order %s: %w", o.Side, o.ID, err)
		}
	}
	// 成交回报可能先于 Place 返回；只有仍为 NEW 的订单推进到 ACK
	err := m.book.Mutate(o.ID, func(cur *Order) error {
		if cur.Status == StatusNew {
			cur.Status = StatusAck
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out, _ := m.book.Get(o.ID)
	return &out, nil
}

// Update 收到回报后更新状态。
func (m *Manager) Update(id string, st Status) error {
	return m.updateStatus(id, st, nil)
}

// Cancel 调用 Gateway 撤单并标记状态。交易所侧已不存在的订单视为撤单成功。
func (m *Manager) Cancel(ctx context.Context, id string) error {
	o, ok := m.book.Get(id)
	if !ok {
		return ErrUnknownOrder
	}
	if !IsActive(o.Status) {
		return nil
	}
	if m.gw != nil {
		if err := m.gw.Cancel(ctx, o); err != nil {
			if errors.Is(err, ErrNotOpen) {
				return m.book.Mutate(id, func(o *Order) error {
					if IsActive(o.Status) {
						o.Status = StatusCanceled
					}
					return nil
				})
			}
			return fmt.Errorf("cancel %s: %w", id, err)
		}
	}
	return m.updateStatus(id, StatusCanceled, nil)
}

// CancelAll 撤销全部活跃订单；每个失败都会被收集，其余订单继续撤。
func (m *Manager) CancelAll(ctx context.Context) (int, error) {
	var errs []error
	n := 0
	for _, o := range m.Active() {
		if err := m.Cancel(ctx, o.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		n++
	}
	m.book.Prune()
	return n, errors.Join(errs...)
}

// ApplyFill 累加成交数量并推进状态，返回更新后的订单。
func (m *Manager) ApplyFill(f Fill) (Order, error) {
	var out Order
	err := m.book.Mutate(f.OrderID, func(o *Order) error {
		o.Filled += f.Amount
		next := StatusPartial
		if o.Remaining() <= 1e-12 {
			next = StatusFilled
		}
		if err := ValidateTransition(o.Status, next); err != nil {
			return err
		}
		o.Status = next
		out = *o
		return nil
	})
	return out, err
}

// Active 返回仍可能成交的订单。
func (m *Manager) Active() []Order {
	all := m.book.List()
	res := all[:0]
	for _, o := range all {
		if IsActive(o.Status) {
			res = append(res, o)
		}
	}
	return res
}

// Get 返回订单拷贝。
func (m *Manager) Get(id string) (Order, bool) {
	return m.book.Get(id)
}

// Status 返回订单当前状态，如不存在则第二个返回值为 false。
func (m *Manager) Status(id string) (Status, bool) {
	o, ok := m.book.Get(id)
	if !ok {
		return "", false
	}
	return o.Status, true
}

func (m *Manager) updateStatus(id string, st Status, err error) error {
	return m.book.Mutate(id, func(o *Order) error {
		if terr := ValidateTransition(o.Status, st); terr != nil {
			return terr
		}
		o.Status = st
		if err != nil {
			o.LastError = err.Error()
		}
		return nil
	})
}

func generateID() string {
	return uuid.NewString()
}

// SetConstraints 设置各交易对的精度/名义限制。
func (m *Manager) SetConstraints(c map[string]SymbolConstraints) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.constraints = make(map[string]SymbolConstraints, len(c))
	for sym, sc := range c {
		m.constraints[sym] = sc
	}
}

// Constraints 返回交易对的限制。
func (m *Manager) Constraints(symbol string) (SymbolConstraints, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.constraints[symbol]
	return c, ok
}

func (m *Manager) validateConstraint(o Order) error {
	if o.Price <= 0 || o.Quantity <= 0 {
		return fmt.Errorf("price %.8f and qty %.8f must be > 0", o.Price, o.Quantity)
	}
	c, ok := m.Constraints(o.Symbol)
	if !ok {
		return nil
	}
	return c.Validate(o.Price, o.Quantity)
}
