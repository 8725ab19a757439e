package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pmm-adaptive/market"
	"pmm-adaptive/order"
)

// BinanceSpotRESTEndpoint 现货公共行情 REST 地址。
const BinanceSpotRESTEndpoint = "https://api.binance.com"

// RESTClient 访问 binance 公共行情接口（K 线回补与交易对精度），不需要签名。
// HTTPClient 可注入 httptest。
type RESTClient struct {
	BaseURL    string
	HTTPClient *http.Client
	Limiter    RateLimiter
	now        func() time.Time
}

func NewRESTClient(baseURL string, timeout time.Duration) *RESTClient {
	if baseURL == "" {
		baseURL = BinanceSpotRESTEndpoint
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RESTClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
		Limiter:    NewTokenBucketLimiter(10, 5),
		now:        time.Now,
	}
}

func (c *RESTClient) get(ctx context.Context, path string, params url.Values, out any) error {
	if c == nil || c.HTTPClient == nil {
		return fmt.Errorf("http client not set")
	}
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return err
		}
	}
	endpoint := c.BaseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// Klines 调用 /api/v3/klines 获取最近 limit 根 K 线，只返回已闭合的（旧到新）。
func (c *RESTClient) Klines(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	params := url.Values{}
	params.Set("symbol", strings.ToUpper(strings.ReplaceAll(symbol, "-", "")))
	params.Set("interval", interval)
	// 多取一根，末尾通常是未闭合的当前 K 线
	params.Set("limit", strconv.Itoa(limit+1))

	var rows [][]json.RawMessage
	if err := c.get(ctx, "/api/v3/klines", params, &rows); err != nil {
		return nil, err
	}
	now := c.now()
	out := make([]market.Candle, 0, len(rows))
	for i, row := range rows {
		if len(row) < 7 {
			return nil, fmt.Errorf("kline row %d: expected >= 7 fields, got %d", i, len(row))
		}
		var openTime, closeTime int64
		if err := json.Unmarshal(row[0], &openTime); err != nil {
			return nil, fmt.Errorf("kline row %d open time: %w", i, err)
		}
		if err := json.Unmarshal(row[6], &closeTime); err != nil {
			return nil, fmt.Errorf("kline row %d close time: %w", i, err)
		}
		if time.UnixMilli(closeTime).After(now) {
			continue
		}
		var vals [5]float64
		for j := 0; j < 5; j++ {
			var s string
			if err := json.Unmarshal(row[j+1], &s); err != nil {
				return nil, fmt.Errorf("kline row %d field %d: %w", i, j+1, err)
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("kline row %d field %d: %w", i, j+1, err)
			}
			vals[j] = v
		}
		out = append(out, market.Candle{
			Open:   vals[0],
			High:   vals[1],
			Low:    vals[2],
			Close:  vals[3],
			Volume: vals[4],
			Ts:     time.UnixMilli(openTime).UTC(),
		})
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

type exchangeInfo struct {
	Symbols []struct {
		Symbol  string `json:"symbol"`
		Filters []struct {
			FilterType  string `json:"filterType"`
			TickSize    string `json:"tickSize"`
			StepSize    string `json:"stepSize"`
			MinQty      string `json:"minQty"`
			MaxQty      string `json:"maxQty"`
			MinNotional string `json:"minNotional"`
		} `json:"filters"`
	} `json:"symbols"`
}

// SymbolConstraints 调用 /api/v3/exchangeInfo 读取交易对精度与名义限制。
func (c *RESTClient) SymbolConstraints(ctx context.Context, symbol string) (order.SymbolConstraints, error) {
	sym := strings.ToUpper(strings.ReplaceAll(symbol, "-", ""))
	params := url.Values{}
	params.Set("symbol", sym)
	var info exchangeInfo
	if err := c.get(ctx, "/api/v3/exchangeInfo", params, &info); err != nil {
		return order.SymbolConstraints{}, err
	}
	for _, s := range info.Symbols {
		if s.Symbol != sym {
			continue
		}
		var sc order.SymbolConstraints
		for _, f := range s.Filters {
			switch f.FilterType {
			case "PRICE_FILTER":
				sc.TickSize = parseOrZero(f.TickSize)
			case "LOT_SIZE":
				sc.StepSize = parseOrZero(f.StepSize)
				sc.MinQty = parseOrZero(f.MinQty)
				sc.MaxQty = parseOrZero(f.MaxQty)
			case "NOTIONAL", "MIN_NOTIONAL":
				sc.MinNotional = parseOrZero(f.MinNotional)
			}
		}
		return sc, nil
	}
	return order.SymbolConstraints{}, fmt.Errorf("symbol %s not found in exchangeInfo", sym)
}

func parseOrZero(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
