package market

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrOutOfOrder 新 K 线时间戳不晚于窗口内最后一根。
	ErrOutOfOrder = errors.New("candle timestamp not after last recorded candle")
	// ErrInvalidCandle 价格字段不自洽。
	ErrInvalidCandle = errors.New("invalid candle")
)

// CandleWindow 是有界、按时间递增的 K 线环形缓冲区。
// 写入方（行情 feed）与读取方（报价周期）可以并发访问，读取总是返回拷贝。
type CandleWindow struct {
	mu     sync.RWMutex
	buf    []Candle
	start  int
	length int
}

// NewCandleWindow creates a window holding at most capacity candles.
func NewCandleWindow(capacity int) *CandleWindow {
	if capacity <= 0 {
		capacity = 1
	}
	return &CandleWindow{buf: make([]Candle, capacity)}
}

// Record 追加一根 K 线；满容量时淘汰最旧的一根。
func (w *CandleWindow) Record(c Candle) error {
	if !c.Valid() {
		return fmt.Errorf("%w: %+v", ErrInvalidCandle, c)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.length > 0 {
		last := w.buf[(w.start+w.length-1)%len(w.buf)]
		if !c.Ts.After(last.Ts) {
			return fmt.Errorf("%w: %s <= %s", ErrOutOfOrder, c.Ts.Format("15:04:05"), last.Ts.Format("15:04:05"))
		}
	}
	if w.length < len(w.buf) {
		w.buf[(w.start+w.length)%len(w.buf)] = c
		w.length++
		return nil
	}
	// overwrite oldest
	w.buf[w.start] = c
	w.start = (w.start + 1) % len(w.buf)
	return nil
}

// Snapshot returns the candles oldest first. Empty window yields nil.
func (w *CandleWindow) Snapshot() []Candle {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.length == 0 {
		return nil
	}
	out := make([]Candle, w.length)
	for i := 0; i < w.length; i++ {
		out[i] = w.buf[(w.start+i)%len(w.buf)]
	}
	return out
}

// Tail 返回最近 n 根 K 线（旧到新）。
func (w *CandleWindow) Tail(n int) []Candle {
	all := w.Snapshot()
	if n >= 0 && len(all) > n {
		return all[len(all)-n:]
	}
	return all
}

func (w *CandleWindow) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.length
}

func (w *CandleWindow) Capacity() int {
	return len(w.buf)
}

// Last 返回最新一根 K 线；窗口为空时 ok=false。
func (w *CandleWindow) Last() (Candle, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.length == 0 {
		return Candle{}, false
	}
	return w.buf[(w.start+w.length-1)%len(w.buf)], true
}
