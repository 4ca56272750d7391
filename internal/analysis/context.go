package analysis

import (
	"time"

	"smc-trading-bot/internal/binance"
)

// Bias is the higher-timeframe directional lean.
type Bias string

const (
	BiasBull  Bias = "BULL"
	BiasBear  Bias = "BEAR"
	BiasRange Bias = "RANGE"
)

// BiasStrength grades how much weight the bias deserves.
type BiasStrength string

const (
	StrengthForte    BiasStrength = "FORTE"
	StrengthModerado BiasStrength = "MODERADO"
	StrengthFraco    BiasStrength = "FRACO"
)

// Session is the active trading session by UTC hour.
type Session string

const (
	SessionOceania Session = "OCEANIA"
	SessionAsia    Session = "ASIA"
	SessionLondon  Session = "LONDON"
	SessionNY      Session = "NY"
)

// TradingContext is the higher-timeframe read every decision is gated on.
// Ready must be true before any downstream stage is trusted; it is derived
// fresh each analysis cycle.
type TradingContext struct {
	Ready        bool
	Bias         Bias
	BiasStrength BiasStrength
	RangeHigh    float64
	RangeLow     float64
	Session      Session
}

// BuildContext derives the trading context from higher-timeframe candles.
// Not ready until there is enough history for both trend and range; bias
// follows the trend, strength is upgraded when a structural break confirms
// the same direction.
func BuildContext(htfCandles []binance.Kline, now time.Time) TradingContext {
	ctx := TradingContext{Session: SessionFor(now)}

	idx := len(htfCandles) - 1
	high, low, ok := RangeBounds(htfCandles, idx)
	if !ok {
		return ctx
	}

	trend := DetectTrend(htfCandles, idx)
	structure := DetectStructure(htfCandles, idx)

	ctx.Ready = true
	ctx.RangeHigh = high
	ctx.RangeLow = low

	switch trend {
	case TrendBullish:
		ctx.Bias = BiasBull
		ctx.BiasStrength = StrengthModerado
		if structure == BOSUp {
			ctx.BiasStrength = StrengthForte
		} else if structure == CHOCHDown {
			ctx.BiasStrength = StrengthFraco
		}
	case TrendBearish:
		ctx.Bias = BiasBear
		ctx.BiasStrength = StrengthModerado
		if structure == BOSDown {
			ctx.BiasStrength = StrengthForte
		} else if structure == CHOCHUp {
			ctx.BiasStrength = StrengthFraco
		}
	default:
		ctx.Bias = BiasRange
		ctx.BiasStrength = StrengthFraco
	}

	return ctx
}

// SessionFor maps a UTC instant to its trading session.
func SessionFor(now time.Time) Session {
	switch hour := now.UTC().Hour(); {
	case hour >= 21:
		return SessionOceania
	case hour < 7:
		return SessionAsia
	case hour < 13:
		return SessionLondon
	default:
		return SessionNY
	}
}
