package order

import (
	"fmt"
)

type transition struct {
	from Status
	to   Status
}

// 合法的状态转换；终态（FILLED, CANCELED, REJECTED）不能再转换。
var legalTransitions = map[transition]bool{
	{StatusNew, StatusAck}:      true,
	{StatusNew, StatusPartial}:  true,
	{StatusNew, StatusFilled}:   true,
	{StatusNew, StatusCanceled}: true,
	{StatusNew, StatusRejected}: true,

	{StatusAck, StatusPartial}:  true,
	{StatusAck, StatusFilled}:   true,
	{StatusAck, StatusCanceled}: true,

	{StatusPartial, StatusPartial}:  true, // 多次部分成交
	{StatusPartial, StatusFilled}:   true,
	{StatusPartial, StatusCanceled}: true,
}

// ValidateTransition 验证状态转换是否合法；相同状态视为幂等。
func ValidateTransition(from, to Status) error {
	if from == to {
		return nil
	}
	if !legalTransitions[transition{from, to}] {
		return fmt.Errorf("illegal state transition: %s -> %s", from, to)
	}
	return nil
}

// IsFinal 判断是否是终态。
func IsFinal(status Status) bool {
	switch status {
	case StatusFilled, StatusCanceled, StatusRejected:
		return true
	default:
		return false
	}
}

// IsActive 判断是否是活跃状态（可能产生成交、需要撤单）。
func IsActive(status Status) bool {
	switch status {
	case StatusNew, StatusAck, StatusPartial:
		return true
	default:
		return false
	}
}
