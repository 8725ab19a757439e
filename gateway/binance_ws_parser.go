package gateway

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"pmm-adaptive/market"
)

// CombinedMessage 对应 binance combined stream 包装。
type CombinedMessage struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// KlinePayload 提取 <symbol>@kline_<interval> 消息的核心字段。
type KlinePayload struct {
	Symbol string `json:"s"`
	K      struct {
		Start    int64       `json:"t"`
		Interval string      `json:"i"`
		Open     json.Number `json:"o"`
		High     json.Number `json:"h"`
		Low      json.Number `json:"l"`
		Close    json.Number `json:"c"`
		Volume   json.Number `json:"v"`
		Closed   bool        `json:"x"`
	} `json:"k"`
}

// BookTickerPayload 提取 <symbol>@bookTicker 消息的最优价。
type BookTickerPayload struct {
	Symbol string      `json:"s"`
	Bid    json.Number `json:"b"`
	Ask    json.Number `json:"a"`
}

// EventKind 区分 combined stream 中的消息类型。
type EventKind int

const (
	EventUnknown EventKind = iota
	EventKline
	EventBook
)

// Event 是解析后的行情消息。
type Event struct {
	Kind    EventKind
	Symbol  string
	Candle  market.Candle
	Closed  bool // kline 是否已闭合
	BestBid float64
	BestAsk float64
}

// ParseCombined 解析 combined stream 消息；未知 stream 返回 EventUnknown 且不报错。
func ParseCombined(raw []byte) (Event, error) {
	var msg CombinedMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Event{}, fmt.Errorf("decode combined message: %w", err)
	}
	switch {
	case strings.Contains(msg.Stream, "@kline_"):
		var k KlinePayload
		if err := json.Unmarshal(msg.Data, &k); err != nil {
			return Event{}, fmt.Errorf("decode kline: %w", err)
		}
		c, err := k.candle()
		if err != nil {
			return Event{}, err
		}
		return Event{Kind: EventKline, Symbol: k.Symbol, Candle: c, Closed: k.K.Closed}, nil
	case strings.HasSuffix(msg.Stream, "@bookTicker"):
		var b BookTickerPayload
		if err := json.Unmarshal(msg.Data, &b); err != nil {
			return Event{}, fmt.Errorf("decode bookTicker: %w", err)
		}
		bid, err := b.Bid.Float64()
		if err != nil {
			return Event{}, fmt.Errorf("bookTicker bid: %w", err)
		}
		ask, err := b.Ask.Float64()
		if err != nil {
			return Event{}, fmt.Errorf("bookTicker ask: %w", err)
		}
		return Event{Kind: EventBook, Symbol: b.Symbol, BestBid: bid, BestAsk: ask}, nil
	}
	return Event{Kind: EventUnknown}, nil
}

func (k KlinePayload) candle() (market.Candle, error) {
	var c market.Candle
	fields := []struct {
		n   json.Number
		dst *float64
	}{
		{k.K.Open, &c.Open},
		{k.K.High, &c.High},
		{k.K.Low, &c.Low},
		{k.K.Close, &c.Close},
		{k.K.Volume, &c.Volume},
	}
	for _, f := range fields {
		v, err := f.n.Float64()
		if err != nil {
			return market.Candle{}, fmt.Errorf("kline field %q: %w", f.n, err)
		}
		*f.dst = v
	}
	c.Ts = time.UnixMilli(k.K.Start).UTC()
	return c, nil
}
