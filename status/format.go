package status

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"pmm-adaptive/inventory"
	"pmm-adaptive/market"
	"pmm-adaptive/order"
	"pmm-adaptive/posttrade"
)

// View 是状态页的只读快照，不参与任何定价逻辑。
type View struct {
	Symbol         string             `json:"symbol"`
	Exchange       string             `json:"exchange"`
	CandleSource   string             `json:"candleSource"`
	CandleInterval string             `json:"candleInterval"`
	InventoryMode  string             `json:"inventoryMode"`
	Balances       inventory.Balances `json:"balances"`
	AvgCost        float64            `json:"avgCost"`
	TotalValue     float64            `json:"totalValue"` // 以 mid 计价的 quote 总额
	UnrealizedPnL  float64            `json:"unrealizedPnl"`
	Orders         []order.Order      `json:"orders"`
	Top            market.Top         `json:"top"`
	Momentum       float64            `json:"momentum"`
	Volatility     float64            `json:"volatility"`
	BidSpread      float64            `json:"bidSpread"` // 比例
	AskSpread      float64            `json:"askSpread"`
	Refresh        time.Duration      `json:"refreshNs"`
	VolumeSpike    bool               `json:"volumeSpike"`
	Degraded       bool               `json:"degraded"`
	Phase          string             `json:"phase"`
	LastOutcome    string             `json:"lastOutcome"`
	NextCycleAt    time.Time          `json:"nextCycleAt"`
	Candles        []market.Candle    `json:"candles"` // 新到旧
	PostTrade      *posttrade.Stats   `json:"postTrade,omitempty"`
}

const rule = "----------------------------------------------------------------------"

// Format 渲染文本状态：余额、挂单、价差与最近 K 线。
func Format(v View) string {
	var b strings.Builder

	b.WriteString("\n  Balances:\n")
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	base, quote := splitPair(v.Symbol)
	fmt.Fprintf(tw, "    Exchange\tAsset\tTotal Balance\t\n")
	fmt.Fprintf(tw, "    %s\t%s\t%.6f\t\n", v.Exchange, base, v.Balances.Base)
	fmt.Fprintf(tw, "    %s\t%s\t%.6f\t\n", v.Exchange, quote, v.Balances.Quote)
	tw.Flush()
	if v.TotalValue > 0 {
		fmt.Fprintf(&b, "    Avg Cost: %.4f | Unrealized PnL: %.4f | Total Value: %.2f %s\n", v.AvgCost, v.UnrealizedPnL, v.TotalValue, quote)
	}

	if len(v.Orders) == 0 {
		b.WriteString("\n  No active maker orders.\n")
	} else {
		b.WriteString("\n  Orders:\n")
		tw = tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
		fmt.Fprintf(tw, "    Exchange\tMarket\tSide\tPrice\tAmount\tAge\t\n")
		for _, o := range v.Orders {
			age := "-"
			if !o.CreatedAt.IsZero() && !v.Top.Ts.IsZero() && v.Top.Ts.After(o.CreatedAt) {
				age = v.Top.Ts.Sub(o.CreatedAt).Truncate(time.Second).String()
			}
			fmt.Fprintf(tw, "    %s\t%s\t%s\t%.4f\t%.6f\t%s\t\n", v.Exchange, o.Symbol, o.Side, o.Price, o.Quantity, age)
		}
		tw.Flush()
	}

	bestBidBps, bestAskBps := v.Top.SpreadBps()
	b.WriteString("\n" + rule + "\n")
	fmt.Fprintf(&b, "  Mid Price: %.2f\n", v.Top.Mid)
	fmt.Fprintf(&b, "  RSI: %.2f\n", v.Momentum)
	fmt.Fprintf(&b, "  Bid Spread: %.2f bps | Best Bid Spread: %.2f bps\n", v.BidSpread*10000, bestBidBps)
	fmt.Fprintf(&b, "  Ask Spread: %.2f bps | Best Ask Spread: %.2f bps\n", v.AskSpread*10000, bestAskBps)
	fmt.Fprintf(&b, "  Adaptive Refresh Time: %.2fs\n", v.Refresh.Seconds())
	fmt.Fprintf(&b, "  Volume Spike Active: %t\n", v.VolumeSpike)
	if v.Degraded {
		b.WriteString("  Mode: DEGRADED (neutral indicators)\n")
	}
	b.WriteString(rule + "\n")

	if len(v.Candles) > 0 {
		fmt.Fprintf(&b, "\n  Candles: %s | Interval: %s\n", v.CandleSource, v.CandleInterval)
		tw = tabwriter.NewWriter(&b, 0, 4, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintf(tw, "    timestamp\topen\thigh\tlow\tclose\tvolume\t\n")
		for _, c := range v.Candles {
			fmt.Fprintf(tw, "    %s\t%.4f\t%.4f\t%.4f\t%.4f\t%.4f\t\n",
				c.Ts.UTC().Format("2006-01-02 15:04"), c.Open, c.High, c.Low, c.Close, c.Volume)
		}
		tw.Flush()
	}
	return b.String()
}

func splitPair(pair string) (string, string) {
	if i := strings.IndexAny(pair, "-/"); i > 0 {
		return pair[:i], pair[i+1:]
	}
	return pair, ""
}
