// Package confluence merges the structure checklist, the best entry
// candidate and the learned pattern score into a single gated trade
// decision. Pure functions, deterministic for identical inputs.
package confluence

import (
	"fmt"

	"smc-trading-bot/internal/analysis"
	"smc-trading-bot/internal/strategy"
)

// Checklist holds the five canonical confirmation criteria for the
// current timeframe.
type Checklist struct {
	SweepDetected      bool
	StructureConfirmed bool
	FVGPresent         bool
	ZoneCorrect        bool
	RewardRiskValid    bool
}

// Fixed criterion weights. They sum to 10 so a full checklist scores 10.
const (
	weightSweep      = 3.0
	weightStructure  = 2.5
	weightFVG        = 1.5
	weightZone       = 1.5
	weightRewardRisk = 1.5
)

// Score computes the 0-10 confluence score as the weighted sum of
// satisfied criteria.
func Score(cl Checklist) float64 {
	score := 0.0
	if cl.SweepDetected {
		score += weightSweep
	}
	if cl.StructureConfirmed {
		score += weightStructure
	}
	if cl.FVGPresent {
		score += weightFVG
	}
	if cl.ZoneCorrect {
		score += weightZone
	}
	if cl.RewardRiskValid {
		score += weightRewardRisk
	}
	return score
}

// Decision is the single value object the execution boundary consumes.
// Never partially populated when Execute is true.
type Decision struct {
	Execute         bool
	Reason          string
	ConfluenceScore float64
	PatternScore    float64
	CombinedScore   float64
}

// Params tunes the decision gate. Blend weight W applies to the
// confluence side; the pattern score takes 1-W.
type Params struct {
	BlendWeight          float64
	ExecuteThreshold     float64
	MinRewardRiskAuto    float64
	MinRewardRiskChecked float64
}

// DefaultParams returns the stock gate tuning.
func DefaultParams() Params {
	return Params{
		BlendWeight:          0.6,
		ExecuteThreshold:     80,
		MinRewardRiskAuto:    2.5,
		MinRewardRiskChecked: 3.0,
	}
}

// Decide gates a trade. Order of gates: context readiness, candidate
// presence, combined score threshold, reward:risk floor. The checked
// flag selects the stricter reward:risk floor used by the explicit
// checklist path.
func Decide(ctx analysis.TradingContext, cl Checklist, poi *strategy.EntryPoint, patternScore float64, params Params, checked bool) Decision {
	confluence := Score(cl)
	decision := Decision{
		ConfluenceScore: confluence,
		PatternScore:    patternScore,
		CombinedScore:   combine(confluence, patternScore, params.BlendWeight),
	}

	if !ctx.Ready {
		decision.Reason = "context not ready"
		return decision
	}

	if poi == nil {
		decision.Reason = "no entry candidate"
		return decision
	}

	if decision.CombinedScore < params.ExecuteThreshold {
		decision.Reason = fmt.Sprintf("combined score %.1f below threshold %.1f",
			decision.CombinedScore, params.ExecuteThreshold)
		return decision
	}

	minRR := params.MinRewardRiskAuto
	if checked {
		minRR = params.MinRewardRiskChecked
	}
	if poi.RewardRisk < minRR {
		decision.Reason = fmt.Sprintf("reward:risk %.2f below minimum %.2f",
			poi.RewardRisk, minRR)
		return decision
	}

	decision.Execute = true
	decision.Reason = "all gates passed"
	return decision
}

// combine blends the confluence score (scaled to 100) with the pattern
// score. Result stays in [0, 100] for any weight in (0, 1).
func combine(confluence, patternScore, weight float64) float64 {
	return confluence*10*weight + patternScore*(1-weight)
}

// SignalID identifies a signal for deduplication: the same POI at the
// same entry and reward:risk must never execute twice.
func SignalID(poi *strategy.EntryPoint) string {
	return fmt.Sprintf("%s:%.8f:%.4f", poi.ID, poi.Price, poi.RewardRisk)
}
