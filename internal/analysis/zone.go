package analysis

import (
	"smc-trading-bot/internal/binance"
)

// ZoneClass places the current close inside the trailing range: premium
// (upper band), discount (lower band) or equilibrium between them.
type ZoneClass string

const (
	ZonePremium     ZoneClass = "premium"
	ZoneDiscount    ZoneClass = "discount"
	ZoneEquilibrium ZoneClass = "equilibrium"
)

const zoneLookback = 50

// Band half-width as a fraction of the trailing range.
const zoneBandShare = 0.20

// ClassifyZone classifies the close at idx against the trailing 50-candle
// high/low range. Closes above midpoint + 20% of range are premium, below
// midpoint - 20% are discount. Insufficient history or a flat range
// defaults to equilibrium.
func ClassifyZone(candles []binance.Kline, idx int) ZoneClass {
	if idx < 0 || idx >= len(candles) || idx+1 < zoneLookback {
		return ZoneEquilibrium
	}

	high := candles[idx].High
	low := candles[idx].Low
	for i := idx - zoneLookback + 1; i <= idx; i++ {
		if candles[i].High > high {
			high = candles[i].High
		}
		if candles[i].Low < low {
			low = candles[i].Low
		}
	}

	priceRange := high - low
	if priceRange <= 0 {
		return ZoneEquilibrium
	}

	mid := (high + low) / 2
	band := priceRange * zoneBandShare
	close := candles[idx].Close

	switch {
	case close > mid+band:
		return ZonePremium
	case close < mid-band:
		return ZoneDiscount
	default:
		return ZoneEquilibrium
	}
}

// RangeBounds returns the trailing 50-candle high and low ending at idx,
// or (0, 0, false) with insufficient history.
func RangeBounds(candles []binance.Kline, idx int) (high, low float64, ok bool) {
	if idx < 0 || idx >= len(candles) || idx+1 < zoneLookback {
		return 0, 0, false
	}
	high = candles[idx].High
	low = candles[idx].Low
	for i := idx - zoneLookback + 1; i <= idx; i++ {
		if candles[i].High > high {
			high = candles[i].High
		}
		if candles[i].Low < low {
			low = candles[i].Low
		}
	}
	return high, low, true
}
