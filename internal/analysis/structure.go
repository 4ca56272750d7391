// Package analysis computes per-timeframe market structure from candle
// sequences: trend, swing points, liquidity sweeps, break-of-structure
// events, fair value gaps and premium/discount zones. Every detector
// degrades to its neutral value when history is short; nothing here
// returns an error.
package analysis

import (
	"smc-trading-bot/internal/binance"
)

// TrendDirection represents market trend
type TrendDirection string

const (
	TrendBullish TrendDirection = "bullish"
	TrendBearish TrendDirection = "bearish"
	TrendNeutral TrendDirection = "neutral"
)

// SweepDirection marks a liquidity sweep above or below a prior swing.
type SweepDirection string

const (
	SweepNone SweepDirection = "none"
	SweepHigh SweepDirection = "high"
	SweepLow  SweepDirection = "low"
)

// StructureEvent classifies a structural break at the current candle.
type StructureEvent string

const (
	StructureNone StructureEvent = "none"
	BOSUp         StructureEvent = "BOS_up"
	BOSDown       StructureEvent = "BOS_down"
	CHOCHUp       StructureEvent = "CHOCH_up"
	CHOCHDown     StructureEvent = "CHOCH_down"
)

// Snapshot is the full structure read-out for one candle index.
type Snapshot struct {
	Trend     TrendDirection
	Sweep     SweepDirection
	Structure StructureEvent
	FVG       FVGSignal
	Zone      ZoneClass
}

const (
	trendLookback     = 20
	trendMonotoneSpan = 10
	sweepLookback     = 30
	sweepWindow       = 5
	structureLookback = 20
)

// Analyze computes the structure snapshot at index idx of the candle
// series. Candles must be ordered by time ascending; idx is the candle
// under evaluation (typically the latest closed one).
func Analyze(candles []binance.Kline, idx int) Snapshot {
	return Snapshot{
		Trend:     DetectTrend(candles, idx),
		Sweep:     DetectSweep(candles, idx),
		Structure: DetectStructure(candles, idx),
		FVG:       DetectFVG(candles, idx),
		Zone:      ClassifyZone(candles, idx),
	}
}

// DetectTrend classifies the trend over the last 20 candles ending at idx.
// Bullish requires the most recent 10 highs and the most recent 10 lows to
// both be non-decreasing; bearish mirrors with non-increasing. Anything
// else, or insufficient history, is neutral.
func DetectTrend(candles []binance.Kline, idx int) TrendDirection {
	if idx < 0 || idx >= len(candles) || idx+1 < trendLookback {
		return TrendNeutral
	}

	start := idx - trendMonotoneSpan + 1

	rising := true
	falling := true
	for i := start + 1; i <= idx; i++ {
		if candles[i].High < candles[i-1].High || candles[i].Low < candles[i-1].Low {
			rising = false
		}
		if candles[i].High > candles[i-1].High || candles[i].Low > candles[i-1].Low {
			falling = false
		}
	}

	if rising && !falling {
		return TrendBullish
	}
	if falling && !rising {
		return TrendBearish
	}
	return TrendNeutral
}

// isSwingHigh reports whether candle i is a 5-candle fractal high: its
// high strictly exceeds the highs two positions to each side.
func isSwingHigh(candles []binance.Kline, i int) bool {
	if i < 2 || i >= len(candles)-2 {
		return false
	}
	h := candles[i].High
	return h > candles[i-1].High && h > candles[i-2].High &&
		h > candles[i+1].High && h > candles[i+2].High
}

// isSwingLow mirrors isSwingHigh for lows.
func isSwingLow(candles []binance.Kline, i int) bool {
	if i < 2 || i >= len(candles)-2 {
		return false
	}
	l := candles[i].Low
	return l < candles[i-1].Low && l < candles[i-2].Low &&
		l < candles[i+1].Low && l < candles[i+2].Low
}

// DetectSweep looks back 30 candles (excluding the most recent 5) for the
// prevailing swing high and low, then scans the last 5 candles for a
// pierce-and-reversal: a high beyond the swing high with a close back
// under it is a sweep-high, mirrored for lows. The first qualifying
// candle decides; later ones in the window are not re-evaluated.
func DetectSweep(candles []binance.Kline, idx int) SweepDirection {
	if idx < 0 || idx >= len(candles) || idx+1 < sweepLookback+sweepWindow {
		return SweepNone
	}

	lookStart := idx - sweepWindow - sweepLookback + 1
	lookEnd := idx - sweepWindow

	var swingHigh, swingLow float64
	haveHigh, haveLow := false, false
	for i := lookStart; i <= lookEnd; i++ {
		if isSwingHigh(candles, i) && (!haveHigh || candles[i].High > swingHigh) {
			swingHigh = candles[i].High
			haveHigh = true
		}
		if isSwingLow(candles, i) && (!haveLow || candles[i].Low < swingLow) {
			swingLow = candles[i].Low
			haveLow = true
		}
	}

	for i := idx - sweepWindow + 1; i <= idx; i++ {
		if haveHigh && candles[i].High > swingHigh && candles[i].Close < swingHigh {
			return SweepHigh
		}
		if haveLow && candles[i].Low < swingLow && candles[i].Close > swingLow {
			return SweepLow
		}
	}

	return SweepNone
}

// DetectStructure classifies a BOS/CHOCH at idx. Requires at least two
// prior swing highs and two prior swing lows in the 20-candle lookback;
// the close breaking the last swing level is read against the trend to
// decide continuation (BOS) versus reversal (CHOCH).
func DetectStructure(candles []binance.Kline, idx int) StructureEvent {
	if idx < 0 || idx >= len(candles) || idx+1 < structureLookback {
		return StructureNone
	}

	var highs, lows []float64
	for i := idx - structureLookback + 1; i < idx; i++ {
		if isSwingHigh(candles, i) {
			highs = append(highs, candles[i].High)
		}
		if isSwingLow(candles, i) {
			lows = append(lows, candles[i].Low)
		}
	}

	if len(highs) < 2 || len(lows) < 2 {
		return StructureNone
	}

	lastHigh := highs[len(highs)-1]
	lastLow := lows[len(lows)-1]
	close := candles[idx].Close
	trend := DetectTrend(candles, idx)

	switch {
	case close > lastHigh && trend == TrendBullish:
		return BOSUp
	case close > lastHigh && trend == TrendBearish:
		return CHOCHUp
	case close < lastLow && trend == TrendBearish:
		return BOSDown
	case close < lastLow && trend == TrendBullish:
		return CHOCHDown
	}

	return StructureNone
}
