package monitor

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordIndicators(t *testing.T) {
	m := New(DefaultConfig())
	m.RecordIndicators(0.012, 71, 10, 25, true)
	assert.Equal(t, 0.012, testutil.ToFloat64(m.volatility))
	assert.Equal(t, 71.0, testutil.ToFloat64(m.momentum))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.volumeSpike))

	m.RecordIndicators(0.01, 50, 10, 5, false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.volumeSpike))
}

func TestCountersByLabel(t *testing.T) {
	m := New(DefaultConfig())
	m.RecordCycle(OutcomeLabelQuoted, 5*time.Millisecond)
	m.RecordCycle(OutcomeLabelQuoted, 0)
	m.RecordCycle(OutcomeLabelDegenerate, time.Millisecond)
	m.RecordFill("BUY")
	m.RecordOrdersCanceled(2)
	m.RecordOrdersCanceled(0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.cycles.WithLabelValues(OutcomeLabelQuoted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cycles.WithLabelValues(OutcomeLabelDegenerate)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fills.WithLabelValues("BUY")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ordersCanceled))
}

func TestRecordInterval(t *testing.T) {
	m := New(DefaultConfig())
	m.RecordInterval(1500 * time.Millisecond)
	assert.Equal(t, 1.5, testutil.ToFloat64(m.refreshInterval))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New(DefaultConfig())
	m.RecordProposal(100, 100.1, 99.5, 100.7)
	m.UpdateInventory(1, 900, 0.1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "pmm_quoter_adjusted_mid_price 100.1"), body)
	assert.Contains(t, body, "pmm_quoter_balance_quote 900")
}

func TestIndependentRegistries(t *testing.T) {
	a := New(DefaultConfig())
	b := New(DefaultConfig())
	a.RecordOrderPlaced()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.ordersPlaced))
}
