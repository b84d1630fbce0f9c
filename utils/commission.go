// utils/commission.go
package utils

import "math"

// CommissionPolicy holds the deployment-level rounding policy. MinAmount is
// the floor applied to tiny non-zero commissions; MaxCap caps the final
// amount when > 0, with 0 meaning uncapped.
type CommissionPolicy struct {
	MinAmount float64
	MaxCap    float64
}

// DefaultCommissionPolicy returns the policy used when no configuration is
// present: floor of 0.01, no cap.
func DefaultCommissionPolicy() CommissionPolicy {
	return CommissionPolicy{MinAmount: 0.01}
}

// CalculateCommission computes the commission on base at the given rate.
// The raw product is rounded to 2 decimal places half-up, bumped to the
// policy floor when 0 < rounded < floor, then capped when a cap is set.
// A result of 0 means "do not persist a commission record". Returns an
// invalid_input error when base < 0 or rate is outside [0,1].
func CalculateCommission(base, rate float64, policy CommissionPolicy) (float64, error) {
	if base < 0 {
		return 0, NewAppErrorf(ErrKindInvalidInput, "commission base must be >= 0, got %v", base)
	}
	if rate < 0 || rate > 1 {
		return 0, NewAppErrorf(ErrKindInvalidInput, "commission rate must be in [0,1], got %v", rate)
	}

	amount := RoundMoney(base * rate)
	if amount <= 0 {
		return 0, nil
	}
	if policy.MinAmount > 0 && amount < policy.MinAmount {
		amount = policy.MinAmount
	}
	if policy.MaxCap > 0 && amount > policy.MaxCap {
		amount = policy.MaxCap
	}
	return amount, nil
}

// RoundMoney rounds a non-negative amount to 2 decimal places, half-up.
func RoundMoney(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}
