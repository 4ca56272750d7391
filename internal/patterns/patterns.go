// Package patterns is the learned pattern memory: per-pattern win/loss
// statistics keyed by the structural fingerprint of a setup, summarized
// into a 0-100 score for the decision gate.
package patterns

import (
	"context"
	"fmt"

	"smc-trading-bot/internal/analysis"
	"smc-trading-bot/internal/strategy"
)

// Stat is the running record for one pattern.
type Stat struct {
	PatternID         string
	Wins              int
	Losses            int
	TimesTested       int
	AccumulatedReward float64
}

// Store is the pattern memory contract. Implementations must tolerate
// concurrent writers (upsert semantics on Record).
type Store interface {
	// Score returns the pattern's 0-100 score. Untested patterns score
	// a neutral 50.
	Score(ctx context.Context, userID, patternID string) (float64, error)
	// Record folds a settled trade outcome into the pattern's counters.
	Record(ctx context.Context, userID, patternID string, win bool, reward float64) error
	// Reset wipes all statistics for a user. Idempotent.
	Reset(ctx context.Context, userID string) error
}

// ID derives the pattern fingerprint from the structural state a trade
// was taken under. Same setup, same id, across sessions and restarts.
func ID(sweep analysis.SweepDirection, structure analysis.StructureEvent, fvg analysis.FVGSignal, zone analysis.ZoneClass, session analysis.Session) string {
	return fmt.Sprintf("%s|%s|%s|%s|%s", sweep, structure, fvg, zone, session)
}

// IDForEntry fingerprints an entry against its structure snapshot.
func IDForEntry(entry *strategy.EntryPoint, snap analysis.Snapshot, session analysis.Session) string {
	return ID(snap.Sweep, snap.Structure, snap.FVG, snap.Zone, session)
}

// Samples below this count pull the score toward neutral; a pattern has
// to prove itself before its win rate moves the gate much.
const scoreSmoothing = 10.0

// ScoreFromStat converts raw counters to the 0-100 score. The win rate
// is damped toward 50 for small samples: weight = n / (n + smoothing).
func ScoreFromStat(stat Stat) float64 {
	total := stat.Wins + stat.Losses
	if total == 0 {
		return 50
	}

	winRate := float64(stat.Wins) / float64(total)
	weight := float64(total) / (float64(total) + scoreSmoothing)
	score := 50 + (winRate-0.5)*100*weight

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
