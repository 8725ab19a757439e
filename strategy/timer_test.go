package strategy

import (
	"testing"
	"time"
)

func TestRefreshPolicyNext(t *testing.T) {
	p := RefreshPolicy{BaseInterval: 15 * time.Second, VolatilityScalar: 30, MinInterval: time.Second}
	if got := p.Next(0); got != 15*time.Second {
		t.Fatalf("zero vol should keep base interval, got %s", got)
	}
	// 15 / (1 + 30×0.01) ≈ 11.538s
	got := p.Next(0.01)
	base := 15 * time.Second
	want := time.Duration(float64(base) / 1.3)
	if got != want {
		t.Fatalf("expected %s got %s", want, got)
	}
	if got := p.Next(-1); got != 15*time.Second {
		t.Fatalf("negative vol treated as zero, got %s", got)
	}
	if got := p.Next(100); got != time.Second {
		t.Fatalf("expected floor 1s, got %s", got)
	}
}

func TestRefreshPolicyMonotonic(t *testing.T) {
	p := DefaultRefreshPolicy()
	prev := p.Next(0)
	for v := 0.0; v <= 2; v += 0.001 {
		cur := p.Next(v)
		if cur > prev {
			t.Fatalf("interval increased at vol=%f: %s > %s", v, cur, prev)
		}
		if cur < p.MinInterval {
			t.Fatalf("interval below floor at vol=%f: %s", v, cur)
		}
		prev = cur
	}
}

func TestRefreshPolicyValidate(t *testing.T) {
	if err := DefaultRefreshPolicy().Validate(); err != nil {
		t.Fatalf("default policy invalid: %v", err)
	}
	if err := (RefreshPolicy{BaseInterval: 0, MinInterval: time.Second}).Validate(); err == nil {
		t.Fatal("expected error for zero base interval")
	}
	if err := (RefreshPolicy{BaseInterval: time.Second, VolatilityScalar: -1, MinInterval: time.Second}).Validate(); err == nil {
		t.Fatal("expected error for negative scalar")
	}
}
