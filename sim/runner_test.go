package sim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pmm-adaptive/inventory"
	"pmm-adaptive/order"
)

func TestBuildRunnerValidates(t *testing.T) {
	cfg := DefaultRunnerConfig()
	cfg.Symbol = ""
	_, err := BuildRunner(cfg)
	assert.Error(t, err)

	cfg = DefaultRunnerConfig()
	cfg.Step = 0
	_, err = BuildRunner(cfg)
	assert.Error(t, err)
}

func TestRunnerNotReadyWithoutWarmup(t *testing.T) {
	r, err := BuildRunner(DefaultRunnerConfig())
	require.NoError(t, err)
	rep, err := r.Run(context.Background(), 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 10, rep.Ticks)
	assert.Zero(t, rep.Quoted)
	assert.Equal(t, 10, rep.NotReady)
}

func TestRunnerEndToEnd(t *testing.T) {
	cfg := DefaultRunnerConfig()
	cfg.Market.Volatility = 0.002
	cfg.Constraints = order.SymbolConstraints{TickSize: 0.01, StepSize: 0.001}
	r, err := BuildRunner(cfg)
	require.NoError(t, err)
	require.NoError(t, r.Warmup(40))
	assert.Equal(t, 40, r.Window.Len())

	rep, err := r.Run(context.Background(), 3*time.Hour)
	require.NoError(t, err)

	assert.Equal(t, int((3 * time.Hour).Seconds()), rep.Ticks)
	assert.Greater(t, rep.Quoted, 0)
	assert.GreaterOrEqual(t, rep.Candles, 179)
	assert.GreaterOrEqual(t, rep.End.Base, 0.0)
	assert.GreaterOrEqual(t, rep.End.Quote, 0.0)
	assert.Equal(t, r.Window.Capacity(), r.Window.Len())

	// 本地账本与模拟交易所余额一致
	venue, err := r.Paper.Balances(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, venue.Base, rep.End.Base, 1e-9)
	assert.InDelta(t, venue.Quote, rep.End.Quote, 1e-9)
	assert.Equal(t, rep.Fills, rep.PostTrade.TotalFills)
	assert.LessOrEqual(t, rep.PostTrade.AnalyzedFills, rep.PostTrade.TotalFills)

	// 挂单永不交叉
	var buy, sell float64
	for _, o := range r.Paper.OpenOrders() {
		if o.Side == order.Buy {
			buy = o.Price
		} else {
			sell = o.Price
		}
	}
	if buy > 0 && sell > 0 {
		assert.Less(t, buy, sell)
	}

	st := r.Engine.State()
	assert.GreaterOrEqual(t, st.Interval, time.Second)
	assert.LessOrEqual(t, st.Interval, 15*time.Second)
}

func TestRunnerVenueMode(t *testing.T) {
	cfg := DefaultRunnerConfig()
	cfg.InventoryMode = inventory.ModeVenue
	r, err := BuildRunner(cfg)
	require.NoError(t, err)
	require.NoError(t, r.Warmup(40))
	rep, err := r.Run(context.Background(), 30*time.Minute)
	require.NoError(t, err)
	venue, _ := r.Paper.Balances(context.Background())
	assert.Equal(t, venue, rep.End)
	assert.Equal(t, inventory.ModeVenue, r.Inventory.Mode())
}

func TestRunnerHonoursContext(t *testing.T) {
	r, err := BuildRunner(DefaultRunnerConfig())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Run(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}
