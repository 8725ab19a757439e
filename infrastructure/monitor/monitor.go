package monitor

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 周期结果标签
const (
	OutcomeLabelQuoted     = "quoted"
	OutcomeLabelSkipped    = "skipped"
	OutcomeLabelBusy       = "busy"
	OutcomeLabelNotReady   = "not_ready"
	OutcomeLabelDegenerate = "degenerate"
	OutcomeLabelFailed     = "failed"
)

// Monitor Prometheus监控指标收集器
type Monitor struct {
	registry *prometheus.Registry

	// 指标
	volatility   prometheus.Gauge
	momentum     prometheus.Gauge
	avgVolume    prometheus.Gauge
	latestVolume prometheus.Gauge
	volumeSpike  prometheus.Gauge

	// 报价
	refreshInterval prometheus.Gauge
	midPrice        prometheus.Gauge
	adjustedMid     prometheus.Gauge
	buyPrice        prometheus.Gauge
	sellPrice       prometheus.Gauge
	cycleDuration   prometheus.Histogram

	// 库存
	baseRatio    prometheus.Gauge
	baseBalance  prometheus.Gauge
	quoteBalance prometheus.Gauge

	// 计数
	cycles          *prometheus.CounterVec
	degenerate      prometheus.Counter
	ordersPlaced    prometheus.Counter
	ordersRejected  prometheus.Counter
	ordersCanceled  prometheus.Counter
	fills           *prometheus.CounterVec
	feedReconnects  prometheus.Counter
	candlesRecorded prometheus.Counter
}

// Config 监控配置
type Config struct {
	Namespace string
	Subsystem string
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Namespace: "pmm",
		Subsystem: "quoter",
	}
}

// New 创建新的Monitor实例，每个实例使用独立 registry。
func New(cfg Config) *Monitor {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	gauge := func(name, help string) prometheus.Gauge {
		return factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      name,
			Help:      help,
		})
	}
	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      name,
			Help:      help,
		})
	}

	return &Monitor{
		registry: reg,

		volatility:   gauge("volatility_natr", "Normalized average true range of the candle window"),
		momentum:     gauge("momentum_rsi", "RSI-style momentum in [0,100]"),
		avgVolume:    gauge("volume_average", "Mean candle volume over the volume period"),
		latestVolume: gauge("volume_latest", "Volume of the latest closed candle"),
		volumeSpike:  gauge("volume_spike", "1 when the latest volume exceeds the spike threshold"),

		refreshInterval: gauge("refresh_interval_seconds", "Current adaptive refresh interval"),
		midPrice:        gauge("mid_price", "Reference mid price at proposal time"),
		adjustedMid:     gauge("adjusted_mid_price", "Mid price after inventory and momentum skew"),
		buyPrice:        gauge("buy_price", "Last proposed buy price"),
		sellPrice:       gauge("sell_price", "Last proposed sell price"),
		cycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "cycle_duration_seconds",
			Help:      "Time spent in one quote cycle",
			Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5},
		}),

		baseRatio:    gauge("base_ratio", "Share of portfolio value held in the base asset"),
		baseBalance:  gauge("balance_base", "Base asset balance"),
		quoteBalance: gauge("balance_quote", "Quote asset balance"),

		cycles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "cycles_total",
			Help:      "Tick outcomes",
		}, []string{"outcome"}),
		degenerate:     counter("degenerate_quotes_total", "Proposals discarded because buy >= sell"),
		ordersPlaced:   counter("orders_placed_total", "Orders accepted by the venue"),
		ordersRejected: counter("orders_rejected_total", "Orders rejected by budget, constraints or venue"),
		ordersCanceled: counter("orders_canceled_total", "Orders cancelled at cycle start or shutdown"),
		fills: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "fills_total",
			Help:      "Fills received by side",
		}, []string{"side"}),
		feedReconnects:  counter("feed_reconnects_total", "Candle feed reconnects"),
		candlesRecorded: counter("candles_recorded_total", "Closed candles appended to the window"),
	}
}

// RecordIndicators 更新指标快照
func (m *Monitor) RecordIndicators(vol, mom, avgVol, latestVol float64, spike bool) {
	m.volatility.Set(vol)
	m.momentum.Set(mom)
	m.avgVolume.Set(avgVol)
	m.latestVolume.Set(latestVol)
	if spike {
		m.volumeSpike.Set(1)
	} else {
		m.volumeSpike.Set(0)
	}
}

// RecordProposal 记录一次报价
func (m *Monitor) RecordProposal(mid, adjusted, buy, sell float64) {
	m.midPrice.Set(mid)
	m.adjustedMid.Set(adjusted)
	m.buyPrice.Set(buy)
	m.sellPrice.Set(sell)
}

// RecordInterval 记录当前刷新间隔
func (m *Monitor) RecordInterval(d time.Duration) {
	m.refreshInterval.Set(d.Seconds())
}

// RecordCycle 记录周期结果与耗时（耗时为 0 时不计入直方图）
func (m *Monitor) RecordCycle(outcome string, took time.Duration) {
	m.cycles.WithLabelValues(outcome).Inc()
	if took > 0 {
		m.cycleDuration.Observe(took.Seconds())
	}
}

// RecordDegenerate 记录退化报价
func (m *Monitor) RecordDegenerate() {
	m.degenerate.Inc()
}

// UpdateInventory 更新库存
func (m *Monitor) UpdateInventory(base, quote, ratio float64) {
	m.baseBalance.Set(base)
	m.quoteBalance.Set(quote)
	m.baseRatio.Set(ratio)
}

// RecordOrderPlaced 记录下单
func (m *Monitor) RecordOrderPlaced() {
	m.ordersPlaced.Inc()
}

// RecordOrderRejected 记录拒单
func (m *Monitor) RecordOrderRejected() {
	m.ordersRejected.Inc()
}

// RecordOrdersCanceled 记录撤单数量
func (m *Monitor) RecordOrdersCanceled(n int) {
	if n > 0 {
		m.ordersCanceled.Add(float64(n))
	}
}

// RecordFill 记录成交
func (m *Monitor) RecordFill(side string) {
	m.fills.WithLabelValues(side).Inc()
}

// RecordFeedReconnect 记录行情重连
func (m *Monitor) RecordFeedReconnect() {
	m.feedReconnects.Inc()
}

// RecordCandle 记录写入窗口的K线
func (m *Monitor) RecordCandle() {
	m.candlesRecorded.Inc()
}

// Handler 返回HTTP handler用于Prometheus抓取
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry 返回Prometheus registry
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}
