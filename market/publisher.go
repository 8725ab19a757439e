package market

import "sync"

// Publisher 将闭合 K 线同步分发给所有订阅者（窗口、模拟撮合等）。
// 与 channel 广播不同，这里不丢弃消息：每根 K 线必须到达每个订阅者。
type Publisher struct {
	mu   sync.RWMutex
	subs []func(Candle)
}

func NewPublisher() *Publisher {
	return &Publisher{}
}

func (p *Publisher) SubscribeCandles(fn func(Candle)) {
	if fn == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subs = append(p.subs, fn)
}

func (p *Publisher) PublishCandle(c Candle) {
	p.mu.RLock()
	subs := make([]func(Candle), len(p.subs))
	copy(subs, p.subs)
	p.mu.RUnlock()
	for _, fn := range subs {
		fn(c)
	}
}
