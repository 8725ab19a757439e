package strategy

import (
	"fmt"
	"math"
	"time"
)

// DefaultMinInterval 自适应刷新间隔下限。
const DefaultMinInterval = time.Second

// RefreshPolicy 波动越大刷新越快：interval = base / (1 + scalar × vol)。
type RefreshPolicy struct {
	BaseInterval     time.Duration
	VolatilityScalar float64
	MinInterval      time.Duration
}

func DefaultRefreshPolicy() RefreshPolicy {
	return RefreshPolicy{
		BaseInterval:     15 * time.Second,
		VolatilityScalar: 30,
		MinInterval:      DefaultMinInterval,
	}
}

func (p RefreshPolicy) Validate() error {
	if p.BaseInterval <= 0 {
		return fmt.Errorf("base refresh interval must be > 0, got %s", p.BaseInterval)
	}
	if p.VolatilityScalar < 0 {
		return fmt.Errorf("volatility scalar must be >= 0, got %f", p.VolatilityScalar)
	}
	if p.MinInterval <= 0 {
		return fmt.Errorf("min refresh interval must be > 0, got %s", p.MinInterval)
	}
	return nil
}

// Next 返回给定波动率下的下一次刷新间隔，不低于 MinInterval。
func (p RefreshPolicy) Next(vol float64) time.Duration {
	if vol < 0 || math.IsNaN(vol) {
		vol = 0
	}
	floor := p.MinInterval
	if floor <= 0 {
		floor = DefaultMinInterval
	}
	d := time.Duration(float64(p.BaseInterval) / (1 + p.VolatilityScalar*vol))
	if d < floor {
		return floor
	}
	return d
}
