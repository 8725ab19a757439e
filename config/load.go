package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"pmm-adaptive/indicator"
	"pmm-adaptive/infrastructure/logger"
	"pmm-adaptive/inventory"
	"pmm-adaptive/order"
	"pmm-adaptive/strategy"
)

// AppConfig holds the main runtime configuration. 所有参数在启动时固定。
type AppConfig struct {
	Env        string          `yaml:"env"`
	Market     MarketConfig    `yaml:"market"`
	Feed       FeedConfig      `yaml:"feed"`
	Strategy   StrategyParams  `yaml:"strategy"`
	Inventory  InventoryConfig `yaml:"inventory"`
	Paper      PaperConfig     `yaml:"paper"`
	Constraint SymbolConfig    `yaml:"constraints"`
	Log        logger.Config   `yaml:"log"`
	Status     StatusConfig    `yaml:"status"`
	Alert      AlertConfig     `yaml:"alert"`
}

// MarketConfig 交易对与 K 线来源。
type MarketConfig struct {
	Pair           string `yaml:"pair"`           // SOL-USDT
	Exchange       string `yaml:"exchange"`       // 下单场所（paper）
	CandleExchange string `yaml:"candleExchange"` // K 线来源（binance）
	CandleInterval string `yaml:"candleInterval"` // 1m
	WindowCapacity int    `yaml:"windowCapacity"` // K 线窗口容量
}

// FeedConfig 行情源参数。
type FeedConfig struct {
	Mode          string `yaml:"mode"` // binance | sim
	RESTURL       string `yaml:"restURL"`
	WSEndpoint    string `yaml:"wsEndpoint"`
	Backfill      bool   `yaml:"backfill"`
	TimeoutMs     int    `yaml:"timeoutMs"`
	MaxStaleMs    int    `yaml:"maxStaleMs"`
	AllowDegraded bool   `yaml:"allowDegraded"`
}

// StrategyParams 定价参数。
type StrategyParams struct {
	OrderAmount         float64 `yaml:"orderAmount"`
	BaseRefreshMs       int     `yaml:"baseRefreshMs"`
	MinRefreshMs        int     `yaml:"minRefreshMs"`
	TickMs              int     `yaml:"tickMs"` // 调度检查精度
	BidSpreadScalar     float64 `yaml:"bidSpreadScalar"`
	AskSpreadScalar     float64 `yaml:"askSpreadScalar"`
	InventoryRiskScalar float64 `yaml:"inventoryRiskScalar"`
	RSIPeriod           int     `yaml:"rsiPeriod"`
	RSISkewScalar       float64 `yaml:"rsiSkewScalar"`
	OversoldThreshold   float64 `yaml:"oversoldThreshold"`
	OverboughtThreshold float64 `yaml:"overboughtThreshold"`
	NATRPeriod          int     `yaml:"natrPeriod"`
	VolumePeriod        int     `yaml:"volumePeriod"`
	VolatilityScalar    float64 `yaml:"volatilityScalar"`
	SpikeMultiplier     float64 `yaml:"spikeMultiplier"`
	SpikeTighten        float64 `yaml:"spikeTighten"`
	DegeneratePolicy    string  `yaml:"degeneratePolicy"` // reject | widen
	MinSpreadRatio      float64 `yaml:"minSpreadRatio"`
	Smoothing           string  `yaml:"smoothing"` // simple | wilder
}

// InventoryConfig 余额来源：manual 使用本地账本并由成交驱动，venue 每周期查询交易所。
type InventoryConfig struct {
	Mode         string  `yaml:"mode"`
	InitialBase  float64 `yaml:"initialBase"`
	InitialQuote float64 `yaml:"initialQuote"`
}

// PaperConfig 模拟交易所初始余额。
type PaperConfig struct {
	Base  float64 `yaml:"base"`
	Quote float64 `yaml:"quote"`
}

// SymbolConfig 保存交易对的精度/名义限制（可由 exchangeInfo 覆盖）。
type SymbolConfig struct {
	FromVenue   bool    `yaml:"fromVenue"`
	TickSize    float64 `yaml:"tickSize"`
	StepSize    float64 `yaml:"stepSize"`
	MinQty      float64 `yaml:"minQty"`
	MaxQty      float64 `yaml:"maxQty"`
	MinNotional float64 `yaml:"minNotional"`
}

type StatusConfig struct {
	Addr string `yaml:"addr"` // 为空时不启动
}

type AlertConfig struct {
	ThrottleSec int `yaml:"throttleSec"`
}

// Default 返回带默认值的配置；YAML 中缺失的字段保留这些值。
func Default() AppConfig {
	ind := indicator.DefaultConfig()
	eng := strategy.DefaultEngineConfig()
	return AppConfig{
		Env: "dev",
		Market: MarketConfig{
			Pair:           "SOL-USDT",
			Exchange:       "paper",
			CandleExchange: "binance",
			CandleInterval: "1m",
			WindowCapacity: 150,
		},
		Feed: FeedConfig{
			Mode:       "binance",
			RESTURL:    "https://api.binance.com",
			WSEndpoint: "wss://stream.binance.com:9443/stream",
			Backfill:   true,
			TimeoutMs:  5000,
			MaxStaleMs: 30000,
		},
		Strategy: StrategyParams{
			OrderAmount:         eng.Quote.Amount,
			BaseRefreshMs:       int(eng.Refresh.BaseInterval / time.Millisecond),
			MinRefreshMs:        int(eng.Refresh.MinInterval / time.Millisecond),
			TickMs:              1000,
			BidSpreadScalar:     eng.Quote.BidSpreadScalar,
			AskSpreadScalar:     eng.Quote.AskSpreadScalar,
			InventoryRiskScalar: eng.Skew.InventoryRiskScalar,
			RSIPeriod:           ind.MomentumPeriod,
			RSISkewScalar:       eng.Skew.MomentumSkewScalar,
			OversoldThreshold:   eng.Skew.OversoldThreshold,
			OverboughtThreshold: eng.Skew.OverboughtThreshold,
			NATRPeriod:          ind.VolatilityPeriod,
			VolumePeriod:        ind.VolumePeriod,
			VolatilityScalar:    eng.Refresh.VolatilityScalar,
			SpikeMultiplier:     ind.SpikeMultiplier,
			SpikeTighten:        eng.Quote.SpikeTighten,
			DegeneratePolicy:    string(eng.Quote.DegeneratePolicy),
			MinSpreadRatio:      eng.Quote.MinSpreadRatio,
			Smoothing:           string(ind.Smoothing),
		},
		Inventory: InventoryConfig{
			Mode:         string(inventory.ModeManual),
			InitialQuote: 1000,
		},
		Paper: PaperConfig{Quote: 1000},
		Log:   logger.DefaultConfig(),
		Status: StatusConfig{
			Addr: ":9100",
		},
		Alert: AlertConfig{ThrottleSec: 300},
	}
}

// Load reads YAML config from path and applies basic validation.
func Load(path string) (AppConfig, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadDotEnv 加载 .env 文件到进程环境；文件不存在时忽略。
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// LoadWithEnvOverrides loads config then overrides fields from PMM_* env vars if present.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, Validate(cfg)
}

func applyEnv(cfg *AppConfig) error {
	str := map[string]*string{
		"PMM_ENV":              &cfg.Env,
		"PMM_PAIR":             &cfg.Market.Pair,
		"PMM_EXCHANGE":         &cfg.Market.Exchange,
		"PMM_CANDLE_INTERVAL":  &cfg.Market.CandleInterval,
		"PMM_FEED_MODE":        &cfg.Feed.Mode,
		"PMM_FEED_REST_URL":    &cfg.Feed.RESTURL,
		"PMM_FEED_WS_ENDPOINT": &cfg.Feed.WSEndpoint,
		"PMM_INVENTORY_MODE":   &cfg.Inventory.Mode,
		"PMM_SMOOTHING":        &cfg.Strategy.Smoothing,
		"PMM_LOG_LEVEL":        &cfg.Log.Level,
		"PMM_STATUS_ADDR":      &cfg.Status.Addr,
	}
	for key, dst := range str {
		if v, ok := os.LookupEnv(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	floats := map[string]*float64{
		"PMM_ORDER_AMOUNT":          &cfg.Strategy.OrderAmount,
		"PMM_INVENTORY_RISK_SCALAR": &cfg.Strategy.InventoryRiskScalar,
		"PMM_INITIAL_BASE":          &cfg.Inventory.InitialBase,
		"PMM_INITIAL_QUOTE":         &cfg.Inventory.InitialQuote,
	}
	for key, dst := range floats {
		if v, ok := os.LookupEnv(key); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = f
		}
	}
	if v, ok := os.LookupEnv("PMM_ALLOW_DEGRADED"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("PMM_ALLOW_DEGRADED: %w", err)
		}
		cfg.Feed.AllowDegraded = b
	}
	return nil
}

// IndicatorConfig 转换为指标计算参数。
func (c AppConfig) IndicatorConfig() indicator.Config {
	return indicator.Config{
		VolatilityPeriod: c.Strategy.NATRPeriod,
		MomentumPeriod:   c.Strategy.RSIPeriod,
		VolumePeriod:     c.Strategy.VolumePeriod,
		SpikeMultiplier:  c.Strategy.SpikeMultiplier,
		Smoothing:        indicator.Smoothing(c.Strategy.Smoothing),
	}
}

// EngineConfig 转换为定价引擎参数。
func (c AppConfig) EngineConfig() strategy.EngineConfig {
	s := c.Strategy
	return strategy.EngineConfig{
		Skew: strategy.SkewConfig{
			InventoryRiskScalar: s.InventoryRiskScalar,
			MomentumSkewScalar:  s.RSISkewScalar,
			OversoldThreshold:   s.OversoldThreshold,
			OverboughtThreshold: s.OverboughtThreshold,
			MinPrice:            strategy.DefaultMinPrice,
		},
		Quote: strategy.QuoteConfig{
			BidSpreadScalar:  s.BidSpreadScalar,
			AskSpreadScalar:  s.AskSpreadScalar,
			SpikeTighten:     s.SpikeTighten,
			DegeneratePolicy: strategy.DegeneratePolicy(s.DegeneratePolicy),
			MinSpreadRatio:   s.MinSpreadRatio,
			Amount:           s.OrderAmount,
		},
		Refresh: strategy.RefreshPolicy{
			BaseInterval:     time.Duration(s.BaseRefreshMs) * time.Millisecond,
			VolatilityScalar: s.VolatilityScalar,
			MinInterval:      time.Duration(s.MinRefreshMs) * time.Millisecond,
		},
	}
}

// SymbolConstraints 转换为下单精度限制。
func (c AppConfig) SymbolConstraints() order.SymbolConstraints {
	return order.SymbolConstraints{
		TickSize:    c.Constraint.TickSize,
		StepSize:    c.Constraint.StepSize,
		MinQty:      c.Constraint.MinQty,
		MaxQty:      c.Constraint.MaxQty,
		MinNotional: c.Constraint.MinNotional,
	}
}

// CandleInterval 解析 K 线周期（1m/5m/1h 等）。
func (c AppConfig) CandleInterval() (time.Duration, error) {
	return ParseInterval(c.Market.CandleInterval)
}

// ParseInterval 解析 Binance 风格的 K 线周期。
func ParseInterval(s string) (time.Duration, error) {
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid candle interval %q", s)
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid candle interval %q", s)
	}
	switch s[len(s)-1] {
	case 's':
		return time.Duration(n) * time.Second, nil
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("invalid candle interval %q", s)
	}
}
