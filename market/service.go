package market

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

var (
	// ErrNoQuote 尚未收到该交易对的有效盘口。
	ErrNoQuote = errors.New("no top of book")
	// ErrStaleQuote 盘口更新超出允许的延迟。
	ErrStaleQuote = errors.New("stale top of book")
)

// Service 维护各交易对最新的最优买卖价，并提供中间价查询。
type Service struct {
	mu       sync.RWMutex
	depth    map[string]Depth
	last     map[string]time.Time
	maxStale time.Duration
	now      func() time.Time
}

// NewService 创建行情服务；maxStale<=0 表示不检查延迟。
func NewService(maxStale time.Duration) *Service {
	return &Service{
		depth:    make(map[string]Depth),
		last:     make(map[string]time.Time),
		maxStale: maxStale,
		now:      time.Now,
	}
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.ReplaceAll(symbol, "-", ""))
}

// OnDepth 更新最优价。
func (s *Service) OnDepth(symbol string, bid, ask float64, ts time.Time) {
	key := normalize(symbol)
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.depth[key]
	d.Update(bid, ask)
	s.depth[key] = d
	s.last[key] = ts
}

// Mid 返回当前中间价；若缺失则返回 0。
func (s *Service) Mid(symbol string) float64 {
	top, err := s.TopOfBook(symbol)
	if err != nil {
		return 0
	}
	return top.Mid
}

// TopOfBook 返回新鲜的盘口快照。
func (s *Service) TopOfBook(symbol string) (Top, error) {
	key := normalize(symbol)
	s.mu.RLock()
	d, ok := s.depth[key]
	ts := s.last[key]
	s.mu.RUnlock()
	if !ok || d.Crossed() {
		return Top{}, fmt.Errorf("%w: %s", ErrNoQuote, symbol)
	}
	if s.maxStale > 0 && s.now().Sub(ts) > s.maxStale {
		return Top{}, fmt.Errorf("%w: %s last update %s ago", ErrStaleQuote, symbol, s.now().Sub(ts).Round(time.Millisecond))
	}
	return Top{BestBid: d.Bid, BestAsk: d.Ask, Mid: (d.Bid + d.Ask) / 2, Ts: ts}, nil
}

// Staleness 返回距离上次更新的时间间隔；如无数据返回一年。
func (s *Service) Staleness(symbol string) time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ts, ok := s.last[normalize(symbol)]
	if !ok {
		return time.Hour * 24 * 365
	}
	return s.now().Sub(ts)
}
