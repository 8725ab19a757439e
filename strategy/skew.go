package strategy

import (
	"errors"
	"fmt"

	"pmm-adaptive/inventory"
)

// ErrInvalidReference 参考价非正，无法计算库存占比。
var ErrInvalidReference = errors.New("reference price must be > 0")

// DefaultMinPrice 调整后中间价的下限。
const DefaultMinPrice = 1e-8

// SkewConfig 库存与动量偏移参数。
type SkewConfig struct {
	InventoryRiskScalar float64 // 库存偏离 50% 时的价格偏移系数
	MomentumSkewScalar  float64 // 超买/超卖时按参考价的偏移比例
	OversoldThreshold   float64
	OverboughtThreshold float64
	MinPrice            float64 // adjusted mid 的正数下限
}

func DefaultSkewConfig() SkewConfig {
	return SkewConfig{
		InventoryRiskScalar: 0.3,
		MomentumSkewScalar:  0.001,
		OversoldThreshold:   30,
		OverboughtThreshold: 70,
		MinPrice:            DefaultMinPrice,
	}
}

func (c SkewConfig) Validate() error {
	if c.InventoryRiskScalar < 0 {
		return fmt.Errorf("inventory risk scalar must be >= 0, got %f", c.InventoryRiskScalar)
	}
	if c.MomentumSkewScalar < 0 {
		return fmt.Errorf("momentum skew scalar must be >= 0, got %f", c.MomentumSkewScalar)
	}
	if c.OversoldThreshold < 0 || c.OverboughtThreshold > 100 || c.OversoldThreshold >= c.OverboughtThreshold {
		return fmt.Errorf("momentum thresholds must satisfy 0 <= oversold < overbought <= 100, got %f/%f",
			c.OversoldThreshold, c.OverboughtThreshold)
	}
	if c.MinPrice <= 0 {
		return fmt.Errorf("min price must be > 0, got %g", c.MinPrice)
	}
	return nil
}

// SkewResult 记录偏移的各个组成部分，便于日志与状态展示。
type SkewResult struct {
	Reference     float64
	BaseRatio     float64
	InventorySkew float64
	MomentumSkew  float64
	AdjustedMid   float64
	Clamped       bool // adjusted mid hit MinPrice
}

// ComposeSkew 将参考价按库存占比与动量区间偏移。
// 持仓 base 占比低于 50% 时抬高中间价以吸引卖单、促进买入，高于 50% 时反之。
func ComposeSkew(ref float64, bal inventory.Balances, momentum float64, cfg SkewConfig) (SkewResult, error) {
	if ref <= 0 {
		return SkewResult{}, fmt.Errorf("%w: %f", ErrInvalidReference, ref)
	}
	minPrice := cfg.MinPrice
	if minPrice <= 0 {
		minPrice = DefaultMinPrice
	}

	baseValue := bal.Base * ref
	total := baseValue + bal.Quote
	ratio := 0.5
	if total > 0 {
		ratio = baseValue / total
	}
	res := SkewResult{
		Reference:     ref,
		BaseRatio:     ratio,
		InventorySkew: (0.5 - ratio) * cfg.InventoryRiskScalar * ref,
	}

	switch {
	case momentum > cfg.OverboughtThreshold:
		res.MomentumSkew = cfg.MomentumSkewScalar * ref
	case momentum < cfg.OversoldThreshold:
		res.MomentumSkew = -cfg.MomentumSkewScalar * ref
	}

	res.AdjustedMid = ref + res.InventorySkew + res.MomentumSkew
	if res.AdjustedMid < minPrice {
		res.AdjustedMid = minPrice
		res.Clamped = true
	}
	return res, nil
}
