package alerting

import "github.com/shopspring/decimal"

// Direction of a threshold alert.
const (
	DirectionAbove = "above"
	DirectionBelow = "below"
)

// ConditionMet reports whether a threshold condition currently holds.
// Pure, exact decimal comparison, no tolerance: sub-cent alert targets are
// out of scope and an epsilon would blur the crossing edge the worker
// detects.
func ConditionMet(direction string, target, current decimal.Decimal) bool {
	if direction == DirectionBelow {
		return current.LessThanOrEqual(target)
	}
	return current.GreaterThanOrEqual(target)
}
