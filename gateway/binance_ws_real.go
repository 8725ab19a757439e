package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// BinanceSpotWSEndpoint 现货 combined stream 地址。
const BinanceSpotWSEndpoint = "wss://stream.binance.com:9443"

// ErrFeedInit K 线源首次连接或回补失败。
var ErrFeedInit = errors.New("candle feed initialization failed")

// RawHandler 接收 ws 原始消息。
type RawHandler interface {
	OnRawMessage([]byte)
}

// KlineStream 订阅 <symbol>@kline_<interval> 与 <symbol>@bookTicker，断线后自动重连。
type KlineStream struct {
	BaseEndpoint   string
	Symbol         string
	Interval       string
	Dialer         *websocket.Dialer
	ReconnectDelay time.Duration
	ReadTimeout    time.Duration
	Logger         *zap.Logger
	OnReconnect    func() // 每次重连成功后调用，可为空
}

func NewKlineStream(endpoint, symbol, interval string, logger *zap.Logger) *KlineStream {
	if endpoint == "" {
		endpoint = BinanceSpotWSEndpoint
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KlineStream{
		BaseEndpoint:   endpoint,
		Symbol:         symbol,
		Interval:       interval,
		Dialer:         websocket.DefaultDialer,
		ReconnectDelay: 3 * time.Second,
		ReadTimeout:    90 * time.Second,
		Logger:         logger,
	}
}

// Streams 返回订阅的 stream 名。
func (s *KlineStream) Streams() []string {
	sym := strings.ToLower(strings.ReplaceAll(s.Symbol, "-", ""))
	return []string{sym + "@kline_" + s.Interval, sym + "@bookTicker"}
}

// URL 构建 combined stream 地址。
func (s *KlineStream) URL() (string, error) {
	u, err := url.Parse(s.BaseEndpoint)
	if err != nil {
		return "", fmt.Errorf("parse ws endpoint: %w", err)
	}
	u.Path = "/stream"
	q := u.Query()
	q.Set("streams", strings.Join(s.Streams(), "/"))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Connect 建立一次连接。
func (s *KlineStream) Connect(ctx context.Context) (*websocket.Conn, error) {
	if s.Symbol == "" || s.Interval == "" {
		return nil, fmt.Errorf("symbol and interval required")
	}
	endpoint, err := s.URL()
	if err != nil {
		return nil, err
	}
	conn, _, err := s.Dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}
	s.Logger.Info("websocket connected", zap.String("url", endpoint))
	return conn, nil
}

// Listen 读取消息直到 ctx 结束；读错误后按 ReconnectDelay 无限重连。conn 由 Listen 负责关闭。
func (s *KlineStream) Listen(ctx context.Context, conn *websocket.Conn, h RawHandler) error {
	var mu sync.Mutex
	current := conn
	// ctx 结束时关闭当前连接，唤醒阻塞中的 ReadMessage
	stop := context.AfterFunc(ctx, func() {
		mu.Lock()
		defer mu.Unlock()
		_ = current.Close()
	})
	defer stop()
	for {
		err := s.readLoop(conn, h)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.Logger.Warn("websocket read error, reconnecting", zap.Error(err))
		next, err := s.reconnect(ctx)
		if err != nil {
			return err
		}
		mu.Lock()
		current = next
		mu.Unlock()
		if ctx.Err() != nil {
			_ = next.Close()
			return ctx.Err()
		}
		conn = next
	}
}

func (s *KlineStream) reconnect(ctx context.Context) (*websocket.Conn, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.ReconnectDelay):
		}
		conn, err := s.Connect(ctx)
		if err != nil {
			s.Logger.Warn("retrying reconnect", zap.Error(err))
			continue
		}
		s.Logger.Info("reconnected successfully")
		if s.OnReconnect != nil {
			s.OnReconnect()
		}
		return conn, nil
	}
}

func (s *KlineStream) readLoop(conn *websocket.Conn, h RawHandler) error {
	for {
		if s.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.ReadTimeout))
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if h != nil {
			h.OnRawMessage(msg)
		}
	}
}
