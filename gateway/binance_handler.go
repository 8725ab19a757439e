package gateway

import (
	"time"

	"go.uber.org/zap"

	"pmm-adaptive/market"
)

// MarketDataHandler 将 bookTicker 推送给 market.Service，将闭合 K 线推送给 Publisher。
type MarketDataHandler struct {
	Svc    *market.Service
	Pub    *market.Publisher
	Logger *zap.Logger
	now    func() time.Time
}

func NewMarketDataHandler(svc *market.Service, pub *market.Publisher, logger *zap.Logger) *MarketDataHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MarketDataHandler{Svc: svc, Pub: pub, Logger: logger, now: time.Now}
}

func (h *MarketDataHandler) OnDepth(symbol string, bid, ask float64) {
	if h.Svc != nil {
		h.Svc.OnDepth(symbol, bid, ask, h.now().UTC())
	}
}

// OnCandle 只接受已闭合的 K 线。
func (h *MarketDataHandler) OnCandle(c market.Candle) {
	if h.Pub != nil {
		h.Pub.PublishCandle(c)
	}
}

// OnRawMessage 直接传入 ws 原始消息。
func (h *MarketDataHandler) OnRawMessage(msg []byte) {
	ev, err := ParseCombined(msg)
	if err != nil {
		h.Logger.Warn("parse ws message failed", zap.Error(err))
		return
	}
	switch ev.Kind {
	case EventBook:
		h.OnDepth(ev.Symbol, ev.BestBid, ev.BestAsk)
	case EventKline:
		if ev.Closed {
			h.OnCandle(ev.Candle)
		}
	}
}
