package order

import (
	"sort"
	"sync"
)

// Book 记录订单和状态，支持查询。
type Book struct {
	mu     sync.RWMutex
	orders map[string]Order
}

func NewBook() *Book {
	return &Book{orders: make(map[string]Order)}
}

func (b *Book) Set(o Order) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.orders[o.ID] = o
}

func (b *Book) Get(id string) (Order, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	o, ok := b.orders[id]
	return o, ok
}

// Mutate 在锁内修改一个订单；fn 返回错误时不写回。
func (b *Book) Mutate(id string, fn func(*Order) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[id]
	if !ok {
		return ErrUnknownOrder
	}
	if err := fn(&o); err != nil {
		return err
	}
	b.orders[id] = o
	return nil
}

// Prune 删除终态订单，返回删除数量。
func (b *Book) Prune() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for id, o := range b.orders {
		if IsFinal(o.Status) {
			delete(b.orders, id)
			n++
		}
	}
	return n
}

// List 返回全部订单（拷贝），按创建时间排序。
func (b *Book) List() []Order {
	b.mu.RLock()
	res := make([]Order, 0, len(b.orders))
	for _, o := range b.orders {
		res = append(res, o)
	}
	b.mu.RUnlock()
	sort.Slice(res, func(i, j int) bool {
		if res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].ID < res[j].ID
		}
		return res[i].CreatedAt.Before(res[j].CreatedAt)
	})
	return res
}
