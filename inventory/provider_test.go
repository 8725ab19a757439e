package inventory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	b   Balances
	err error
}

func (s *stubSource) Balances(context.Context) (Balances, error) { return s.b, s.err }

func TestManualProvider(t *testing.T) {
	p, err := NewProvider(ModeManual, Balances{Quote: 1000}, nil)
	require.NoError(t, err)
	assert.Equal(t, ModeManual, p.Mode())
	require.NoError(t, p.OnFill(1, 100))
	b, err := p.Balances(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Balances{Base: 1, Quote: 900}, b)
}

func TestManualProviderBalancesAreCopies(t *testing.T) {
	p, err := NewManualProvider(Balances{Base: 2, Quote: 100})
	require.NoError(t, err)
	snap, _ := p.Balances(context.Background())
	require.NoError(t, p.OnFill(-1, 50))
	assert.Equal(t, Balances{Base: 2, Quote: 100}, snap, "copy must not see later fills")
}

func TestVenueProvider(t *testing.T) {
	src := &stubSource{b: Balances{Base: 3, Quote: 30}}
	p, err := NewProvider(ModeVenue, Balances{}, src)
	require.NoError(t, err)
	assert.Equal(t, ModeVenue, p.Mode())
	b, err := p.Balances(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Balances{Base: 3, Quote: 30}, b)

	// 成交不改变交易所余额
	require.NoError(t, p.OnFill(-10, 1))
	b, _ = p.Balances(context.Background())
	assert.Equal(t, 3.0, b.Base)

	src.err = errors.New("timeout")
	_, err = p.Balances(context.Background())
	assert.Error(t, err)
}

func TestNewProviderErrors(t *testing.T) {
	_, err := NewProvider(ModeVenue, Balances{}, nil)
	assert.True(t, errors.Is(err, ErrNoBalanceSource))
	_, err = NewProvider("auto", Balances{}, nil)
	assert.Error(t, err)
	p, err := NewProvider(ModeManual, Balances{Base: -1}, nil)
	assert.Error(t, err)
	assert.Nil(t, p)
}

func TestProvidersValuation(t *testing.T) {
	manual, err := NewManualProvider(Balances{Quote: 1000})
	require.NoError(t, err)
	require.NoError(t, manual.OnFill(2, 100))

	src := &stubSource{b: Balances{Quote: 1000}}
	venue, err := NewVenueProvider(src)
	require.NoError(t, err)
	_, err = venue.Balances(context.Background())
	require.NoError(t, err)
	require.NoError(t, venue.OnFill(2, 100))
	// 下一次查询覆盖余额，均价保留
	src.b = Balances{Base: 2, Quote: 800}
	_, err = venue.Balances(context.Background())
	require.NoError(t, err)

	for name, v := range map[string]Valuer{"manual": manual, "venue": venue} {
		assert.InDelta(t, 100, v.AvgCost(), 1e-9, name)
		total, pnl := v.Valuation(110)
		assert.InDelta(t, 1020, total, 1e-9, name)
		assert.InDelta(t, 20, pnl, 1e-9, name)
	}
}
