package inventory

import (
	"errors"
	"sync"
	"testing"
)

func TestLedgerFillRoundTrip(t *testing.T) {
	l, err := NewLedger(Balances{Base: 0, Quote: 1000})
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	if err := l.ApplyBuy(1, 100); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if got := l.Balances(); got != (Balances{Base: 1, Quote: 900}) {
		t.Fatalf("after buy expected {1 900} got %+v", got)
	}
	if err := l.ApplySell(1, 110); err != nil {
		t.Fatalf("sell: %v", err)
	}
	if got := l.Balances(); got != (Balances{Base: 0, Quote: 1010}) {
		t.Fatalf("after sell expected {0 1010} got %+v", got)
	}
}

func TestLedgerDecimalExact(t *testing.T) {
	l, _ := NewLedger(Balances{Quote: 1})
	for i := 0; i < 10; i++ {
		if err := l.ApplyBuy(0.1, 0.1); err != nil {
			t.Fatalf("buy: %v", err)
		}
	}
	got := l.Balances()
	if got.Base != 1 || got.Quote != 0.9 {
		t.Fatalf("expected exact {1 0.9} got %+v", got)
	}
}

func TestLedgerAvgCost(t *testing.T) {
	l, _ := NewLedger(Balances{Quote: 10000})
	_ = l.Update(1, 100)
	if l.AvgCost() != 100 {
		t.Fatalf("expected cost 100 got %f", l.AvgCost())
	}
	_ = l.Update(1, 110) // cost should move toward 105
	if l.AvgCost() != 105 {
		t.Fatalf("unexpected avg cost %f", l.AvgCost())
	}
	_ = l.Update(-1, 120)
	if l.AvgCost() != 105 {
		t.Fatalf("sell must not move cost, got %f", l.AvgCost())
	}
	_ = l.Update(-1, 120)
	if l.AvgCost() != 0 {
		t.Fatalf("flat position resets cost, got %f", l.AvgCost())
	}
}

func TestLedgerClampsNegative(t *testing.T) {
	l, _ := NewLedger(Balances{Base: 0.5, Quote: 10})
	err := l.ApplySell(1, 100)
	if !errors.Is(err, ErrBalanceClamped) {
		t.Fatalf("expected clamp error, got %v", err)
	}
	if got := l.Balances(); got.Base != 0 || got.Quote != 110 {
		t.Fatalf("unexpected balances %+v", got)
	}
	err = l.ApplyBuy(1, 1000)
	if !errors.Is(err, ErrBalanceClamped) {
		t.Fatalf("expected clamp error, got %v", err)
	}
	if got := l.Balances(); got.Base != 1 || got.Quote != 0 {
		t.Fatalf("unexpected balances %+v", got)
	}
}

func TestLedgerRejectsInvalidFill(t *testing.T) {
	l, _ := NewLedger(Balances{Base: 1, Quote: 1})
	for _, fn := range []func() error{
		func() error { return l.ApplyBuy(0, 100) },
		func() error { return l.ApplySell(-1, 100) },
		func() error { return l.Update(1, 0) },
	} {
		if err := fn(); !errors.Is(err, ErrInvalidFill) {
			t.Fatalf("expected invalid fill, got %v", err)
		}
	}
	if got := l.Balances(); got != (Balances{Base: 1, Quote: 1}) {
		t.Fatalf("balances changed: %+v", got)
	}
	if _, err := NewLedger(Balances{Base: -1}); err == nil {
		t.Fatal("expected error for negative initial balance")
	}
}

func TestLedgerConcurrentFills(t *testing.T) {
	l, _ := NewLedger(Balances{Base: 100, Quote: 100000})
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); _ = l.ApplyBuy(1, 100) }()
		go func() { defer wg.Done(); _ = l.ApplySell(1, 100) }()
	}
	wg.Wait()
	if got := l.Balances(); got != (Balances{Base: 100, Quote: 100000}) {
		t.Fatalf("expected unchanged balances, got %+v", got)
	}
}
