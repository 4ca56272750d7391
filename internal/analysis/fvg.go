package analysis

import (
	"smc-trading-bot/internal/binance"
)

// FVGSignal marks a fair value gap ending at the current candle.
type FVGSignal string

const (
	FVGNone    FVGSignal = "none"
	FVGBullish FVGSignal = "bullish"
	FVGBearish FVGSignal = "bearish"
)

// Minimum full-gap size relative to the average price of the window.
const fvgMinGapPct = 0.05

// Body share of the middle candle's range that qualifies the relaxed
// dominant-body fallback.
const fvgDominantBodyShare = 0.60

// DetectFVG tests the three-candle window ending at idx for a fair value
// gap. A bullish gap exists when the third candle's low clears the first
// candle's high by more than 0.05% of the window's average price (bearish
// mirrored). A relaxed fallback accepts a partial gap when the middle
// candle's body dominates its range (>60%) in the gap direction.
func DetectFVG(candles []binance.Kline, idx int) FVGSignal {
	if idx < 2 || idx >= len(candles) {
		return FVGNone
	}

	c1 := candles[idx-2]
	c2 := candles[idx-1]
	c3 := candles[idx]

	avgPrice := (c1.Close + c2.Close + c3.Close) / 3
	if avgPrice <= 0 {
		return FVGNone
	}
	minGap := avgPrice * fvgMinGapPct / 100

	if c3.Low-c1.High > minGap {
		return FVGBullish
	}
	if c1.Low-c3.High > minGap {
		return FVGBearish
	}

	// Relaxed path: a dominant-bodied middle candle with any partial gap
	// in its direction still counts as an imbalance.
	candleRange := c2.High - c2.Low
	if candleRange <= 0 {
		return FVGNone
	}
	body := abs(c2.Close - c2.Open)
	if body/candleRange <= fvgDominantBodyShare {
		return FVGNone
	}

	if c2.Close > c2.Open && c3.Low > c1.High {
		return FVGBullish
	}
	if c2.Close < c2.Open && c1.Low > c3.High {
		return FVGBearish
	}

	return FVGNone
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
