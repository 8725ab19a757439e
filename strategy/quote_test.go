package strategy

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildQuotesFlatVolatilityPinsToBook(t *testing.T) {
	cfg := DefaultQuoteConfig()
	p, err := BuildQuotes(QuoteInput{AdjustedMid: 100, Volatility: 0, BestBid: 99.9, BestAsk: 100.1}, cfg)
	require.NoError(t, err)
	assert.Equal(t, 0.0, p.BidSpread)
	assert.Equal(t, 0.0, p.AskSpread)
	assert.Equal(t, 99.9, p.Buy.Price)
	assert.Equal(t, 100.1, p.Sell.Price)
	assert.Equal(t, Buy, p.Buy.Side)
	assert.Equal(t, Sell, p.Sell.Side)
	assert.Equal(t, cfg.Amount, p.Buy.Amount)
	assert.False(t, p.Widened)
}

func TestBuildQuotesVolatilitySpread(t *testing.T) {
	cfg := DefaultQuoteConfig()
	cfg.BidSpreadScalar = 0.5
	cfg.AskSpreadScalar = 1
	p, err := BuildQuotes(QuoteInput{AdjustedMid: 100, Volatility: 0.01, BestBid: 99.99, BestAsk: 100.01}, cfg)
	require.NoError(t, err)
	assert.InDelta(t, 0.005, p.BidSpread, 1e-12)
	assert.InDelta(t, 0.01, p.AskSpread, 1e-12)
	assert.InDelta(t, 99.5, p.Buy.Price, 1e-9)
	assert.InDelta(t, 101.0, p.Sell.Price, 1e-9)
	assert.Len(t, p.Legs(), 2)
}

func TestBuildQuotesSpikeTightens(t *testing.T) {
	cfg := DefaultQuoteConfig()
	cfg.BidSpreadScalar = 1
	cfg.AskSpreadScalar = 1
	in := QuoteInput{AdjustedMid: 100, Volatility: 0.02, BestBid: 99.9, BestAsk: 100.1}
	base, err := BuildQuotes(in, cfg)
	require.NoError(t, err)
	in.VolumeSpike = true
	tight, err := BuildQuotes(in, cfg)
	require.NoError(t, err)
	assert.True(t, tight.Spike)
	assert.InDelta(t, base.Buy.Price*1.002, tight.Buy.Price, 1e-9)
	assert.InDelta(t, base.Sell.Price*0.998, tight.Sell.Price, 1e-9)
	assert.Less(t, tight.Buy.Price, tight.Sell.Price)
}

func TestBuildQuotesDegenerateRejected(t *testing.T) {
	cfg := DefaultQuoteConfig()
	// 盘口极窄且无波动：放量收紧后买价越过卖价
	in := QuoteInput{AdjustedMid: 100, Volatility: 0, BestBid: 99.99, BestAsk: 100.01, VolumeSpike: true}
	_, err := BuildQuotes(in, cfg)
	assert.True(t, errors.Is(err, ErrDegenerateQuote))
}

func TestBuildQuotesDegenerateWidened(t *testing.T) {
	cfg := DefaultQuoteConfig()
	cfg.DegeneratePolicy = DegenerateWiden
	cfg.MinSpreadRatio = 0.001
	in := QuoteInput{AdjustedMid: 100, Volatility: 0, BestBid: 99.99, BestAsk: 100.01, VolumeSpike: true}
	p, err := BuildQuotes(in, cfg)
	require.NoError(t, err)
	assert.True(t, p.Widened)
	assert.Less(t, p.Buy.Price, p.Sell.Price)
	center := (99.99*1.002 + 100.01*0.998) / 2
	assert.InDelta(t, center*0.999, p.Buy.Price, 1e-9)
	assert.InDelta(t, center*1.001, p.Sell.Price, 1e-9)
}

func TestBuildQuotesInvalidInput(t *testing.T) {
	cfg := DefaultQuoteConfig()
	good := QuoteInput{AdjustedMid: 100, Volatility: 0.01, BestBid: 99, BestAsk: 101}
	cases := []struct {
		name string
		mut  func(*QuoteInput, *QuoteConfig)
	}{
		{"zero mid", func(in *QuoteInput, _ *QuoteConfig) { in.AdjustedMid = 0 }},
		{"zero bid", func(in *QuoteInput, _ *QuoteConfig) { in.BestBid = 0 }},
		{"zero ask", func(in *QuoteInput, _ *QuoteConfig) { in.BestAsk = 0 }},
		{"crossed", func(in *QuoteInput, _ *QuoteConfig) { in.BestBid = 102 }},
		{"negative vol", func(in *QuoteInput, _ *QuoteConfig) { in.Volatility = -0.1 }},
		{"zero amount", func(_ *QuoteInput, c *QuoteConfig) { c.Amount = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in, c := good, cfg
			tc.mut(&in, &c)
			_, err := BuildQuotes(in, c)
			assert.True(t, errors.Is(err, ErrInvalidInput), "got %v", err)
		})
	}
}

func TestBuildQuotesNeverCrossed(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, policy := range []DegeneratePolicy{DegenerateReject, DegenerateWiden} {
		cfg := DefaultQuoteConfig()
		cfg.DegeneratePolicy = policy
		for i := 0; i < 1000; i++ {
			bid := 1 + rng.Float64()*1000
			ask := bid * (1 + rng.Float64()*0.01 + 1e-6)
			cfg.BidSpreadScalar = rng.Float64() * 2
			cfg.AskSpreadScalar = rng.Float64() * 2
			cfg.SpikeTighten = rng.Float64() * 0.05
			in := QuoteInput{
				AdjustedMid: (bid + ask) / 2 * (0.5 + rng.Float64()),
				Volatility:  rng.Float64() * 0.1,
				BestBid:     bid,
				BestAsk:     ask,
				VolumeSpike: rng.Intn(2) == 0,
			}
			p, err := BuildQuotes(in, cfg)
			if err != nil {
				require.True(t, errors.Is(err, ErrDegenerateQuote), "unexpected error %v", err)
				require.Equal(t, DegenerateReject, policy)
				continue
			}
			require.Less(t, p.Buy.Price, p.Sell.Price, "input %+v", in)
			require.Greater(t, p.Buy.Price, 0.0)
		}
	}
}

func TestQuoteConfigValidate(t *testing.T) {
	require.NoError(t, DefaultQuoteConfig().Validate())
	bad := DefaultQuoteConfig()
	bad.DegeneratePolicy = "ignore"
	assert.Error(t, bad.Validate())
	bad = DefaultQuoteConfig()
	bad.DegeneratePolicy = DegenerateWiden
	bad.MinSpreadRatio = 0
	assert.Error(t, bad.Validate())
	bad = DefaultQuoteConfig()
	bad.SpikeTighten = 1
	assert.Error(t, bad.Validate())
}
