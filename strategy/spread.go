package strategy

import "math"

// VolatilitySpreads 按波动率与系数计算买卖两侧的比例价差（0.002 = 20bps）。
func VolatilitySpreads(vol, bidScalar, askScalar float64) (bid, ask float64) {
	if vol < 0 || math.IsNaN(vol) {
		vol = 0
	}
	return vol * bidScalar, vol * askScalar
}

// widenAround 以 center 为中心，两侧各留 ratio 的价差。
func widenAround(center, ratio float64) (buy, sell float64) {
	return center * (1 - ratio), center * (1 + ratio)
}
