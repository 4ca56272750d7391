// Package risk converts an approved decision into a concrete order size
// and enforces the execution preconditions. Pure arithmetic; all failure
// modes are typed validation errors with user-facing reasons.
package risk

import (
	"fmt"

	"smc-trading-bot/internal/trading"
)

// Sizing is the fully derived order size for one trade.
type Sizing struct {
	RiskAmount      float64
	StopDistance    float64
	Quantity        float64
	ProjectedProfit float64
}

// Size derives the position size from account risk. riskFraction is
// already a decimal fraction (0.06 = 6%). The quantity is chosen so a
// stop-out loses exactly riskAmount of margin at the given leverage.
func Size(balance, riskFraction, leverage, entry, stop, takeProfit float64) (Sizing, error) {
	if balance <= 0 {
		return Sizing{}, &trading.ValidationError{Reason: "balance must be positive"}
	}
	if riskFraction <= 0 || riskFraction >= 1 {
		return Sizing{}, &trading.ValidationError{Reason: "risk fraction must be between 0 and 1"}
	}
	if leverage <= 0 {
		return Sizing{}, &trading.ValidationError{Reason: "leverage must be positive"}
	}

	stopDistance := abs(entry - stop)
	if stopDistance <= 0 {
		return Sizing{}, &trading.ValidationError{Reason: "invalid stop distance"}
	}

	riskAmount := balance * riskFraction
	quantity := riskAmount / stopDistance * leverage

	return Sizing{
		RiskAmount:      riskAmount,
		StopDistance:    stopDistance,
		Quantity:        quantity,
		ProjectedProfit: quantity * abs(takeProfit-entry),
	}, nil
}

// Preconditions is everything the gate needs to approve an execution.
type Preconditions struct {
	BotRunning     bool
	Balance        float64
	MinBalance     float64
	OpenPositions  int
	MaxPositions   int
	HasOpenOnAsset bool
	Asset          string
	RewardRisk     float64
	MinRewardRisk  float64
}

// Check enforces the execution preconditions in order. The first
// violation fails the whole execution with a specific reason; sizes are
// never silently downgraded to squeeze a trade through.
func Check(p Preconditions) error {
	if !p.BotRunning {
		return &trading.ValidationError{Reason: "bot is not running"}
	}
	if p.HasOpenOnAsset {
		return &trading.ValidationError{Reason: fmt.Sprintf("position already open on %s", p.Asset)}
	}
	if p.OpenPositions >= p.MaxPositions {
		return &trading.ValidationError{Reason: fmt.Sprintf("max concurrent positions reached (%d)", p.MaxPositions)}
	}
	if p.Balance < p.MinBalance {
		return &trading.ValidationError{Reason: fmt.Sprintf("balance %.2f below minimum %.2f", p.Balance, p.MinBalance)}
	}
	if p.RewardRisk < p.MinRewardRisk {
		return &trading.ValidationError{Reason: fmt.Sprintf("reward:risk %.2f below minimum %.2f", p.RewardRisk, p.MinRewardRisk)}
	}
	return nil
}

// ReconstructQuantity re-derives the quantity from stored position
// fields. Must match the quantity computed at open time; a mismatch is
// an invariant violation.
func ReconstructQuantity(projectedProfit, takeProfit, entry float64) (float64, error) {
	distance := abs(takeProfit - entry)
	if distance <= 0 {
		return 0, &trading.InvariantViolation{Detail: "take-profit equals entry, quantity not reconstructible"}
	}
	return projectedProfit / distance, nil
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
