// Package strategy implements the liquidity-sweep engine: it accumulates
// liquidity zones per symbol, flags sweep-and-reversal events against
// them and derives sniper entry candidates with laddered take-profits.
package strategy

import (
	"time"
)

// ZoneSide tells which side of the book the resting liquidity sits on.
// Stops cluster above swing highs (buy side) and below swing lows (sell
// side).
type ZoneSide string

const (
	BuySide  ZoneSide = "buy_side"
	SellSide ZoneSide = "sell_side"
)

// Direction of a trade entry.
type Direction string

const (
	Long  Direction = "long"
	Short Direction = "short"
)

// LiquidityZone is a tracked swing level. Strength is recomputed each
// pass from touch count and volume near the level; Swept flips to true
// exactly once and never back.
type LiquidityZone struct {
	ID        string
	Price     float64
	Side      ZoneSide
	Strength  float64
	Timestamp time.Time
	Swept     bool
}

// SweepSignal records a pierce-and-reversal through a zone. At most one
// per zone, ever.
type SweepSignal struct {
	ID            string
	ZoneID        string
	Side          ZoneSide
	SweepPrice    float64
	ReversalPrice float64
	Timestamp     time.Time
	Confirmed     bool
}

// EntryPoint is a sniper entry candidate derived from a confirmed sweep.
// TakeProfits are ordered 2R, 3R, 5R; RewardRisk is measured against the
// middle target, the one positions are managed to.
type EntryPoint struct {
	ID          string
	Price       float64
	Direction   Direction
	StopLoss    float64
	TakeProfits [3]float64
	RewardRisk  float64
	Confidence  float64
	Timestamp   time.Time
}

// Result is one analysis pass over a symbol's candle window.
type Result struct {
	Zones   []LiquidityZone
	Sweeps  []SweepSignal
	Entries []EntryPoint
}

// State holds the accumulated zones, sweeps and entries for one symbol.
// Owned by the caller, one per symbol; passed into Analyze each cycle.
// The seen set outlives eviction so swept zones are never resurrected
// within the session.
type State struct {
	Symbol  string
	Zones   []*LiquidityZone
	Sweeps  []SweepSignal
	Entries []EntryPoint

	seen map[string]struct{}
}

// NewState creates the per-symbol strategy state.
func NewState(symbol string) *State {
	return &State{
		Symbol: symbol,
		seen:   make(map[string]struct{}),
	}
}

// Config tunes the sweep engine. All fields have working defaults.
type Config struct {
	MinZoneStrength   float64
	SweepThresholdPct float64
	MaxActiveEntries  int
	EntryWindow       time.Duration
	Retention         time.Duration
}

// DefaultConfig returns the stock engine tuning.
func DefaultConfig() Config {
	return Config{
		MinZoneStrength:   60,
		SweepThresholdPct: 0.1,
		MaxActiveEntries:  3,
		EntryWindow:       time.Hour,
		Retention:         24 * time.Hour,
	}
}
