package inventory

import "testing"

func TestValuation(t *testing.T) {
	l, _ := NewLedger(Balances{Quote: 1000})
	_ = l.ApplyBuy(1, 100)
	total, pnl := l.Valuation(110)
	if pnl != 10 {
		t.Fatalf("expected pnl 10 got %f", pnl)
	}
	if total != 1010 {
		t.Fatalf("expected total 1010 got %f", total)
	}
}

func TestBalancesBaseRatio(t *testing.T) {
	cases := []struct {
		b    Balances
		ref  float64
		want float64
	}{
		{Balances{}, 100, 0.5},
		{Balances{Base: 1, Quote: 100}, 100, 0.5},
		{Balances{Quote: 100}, 100, 0},
		{Balances{Base: 1}, 100, 1},
	}
	for _, tc := range cases {
		if got := tc.b.BaseRatio(tc.ref); got != tc.want {
			t.Fatalf("%+v: expected %f got %f", tc.b, tc.want, got)
		}
	}
}
