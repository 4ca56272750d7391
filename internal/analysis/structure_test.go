package analysis

import (
	"testing"

	"smc-trading-bot/internal/binance"
)

func k(open, high, low, close float64) binance.Kline {
	return binance.Kline{Open: open, High: high, Low: low, Close: close, Volume: 1000}
}

// flatSeries builds n identical candles well clear of the given levels.
func flatSeries(n int) []binance.Kline {
	candles := make([]binance.Kline, n)
	for i := range candles {
		candles[i] = k(104, 106, 103, 105)
	}
	return candles
}

func TestDetectTrend(t *testing.T) {
	rising := make([]binance.Kline, 25)
	for i := range rising {
		base := 100 + float64(i)
		rising[i] = k(base, base+2, base-1, base+1)
	}

	falling := make([]binance.Kline, 25)
	for i := range falling {
		base := 200 - float64(i)
		falling[i] = k(base, base+2, base-1, base+1)
	}

	mixed := flatSeries(25)
	mixed[20] = k(104, 110, 103, 105) // spike breaks monotone highs
	mixed[22] = k(104, 106, 95, 105)  // dip breaks monotone lows

	tests := []struct {
		name    string
		candles []binance.Kline
		want    TrendDirection
	}{
		{"rising highs and lows", rising, TrendBullish},
		{"falling highs and lows", falling, TrendBearish},
		{"mixed", mixed, TrendNeutral},
		{"insufficient history", rising[:10], TrendNeutral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectTrend(tt.candles, len(tt.candles)-1); got != tt.want {
				t.Errorf("DetectTrend = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDetectSweepLow(t *testing.T) {
	// Candle 30 is a fractal swing low at 100; candle 35 pierces to 98 but
	// closes back above at 101: a sweep of the low.
	candles := flatSeries(40)
	candles[30] = k(104, 106, 100, 105)
	candles[35] = k(104, 106, 98, 101)

	if got := DetectSweep(candles, 35); got != SweepLow {
		t.Errorf("DetectSweep(35) = %s, want %s", got, SweepLow)
	}
}

func TestDetectSweepHigh(t *testing.T) {
	// Swing high at 110 on candle 28; candle 36 wicks to 111 and closes
	// back under at 108.
	candles := flatSeries(42)
	candles[28] = k(104, 110, 103, 105)
	candles[36] = k(104, 111, 103, 108)

	if got := DetectSweep(candles, 36); got != SweepHigh {
		t.Errorf("DetectSweep(36) = %s, want %s", got, SweepHigh)
	}
}

func TestDetectSweepNoPierce(t *testing.T) {
	candles := flatSeries(40)
	candles[30] = k(104, 106, 100, 105)

	if got := DetectSweep(candles, 35); got != SweepNone {
		t.Errorf("DetectSweep = %s, want %s", got, SweepNone)
	}
}

func TestDetectSweepInsufficientHistory(t *testing.T) {
	candles := flatSeries(20)
	if got := DetectSweep(candles, 19); got != SweepNone {
		t.Errorf("DetectSweep on short series = %s, want %s", got, SweepNone)
	}
}

func TestDetectStructureNeedsTwoSwingsEachSide(t *testing.T) {
	// Only one swing high and one swing low in the lookback: no event even
	// though the close breaks above the swing high.
	candles := flatSeries(30)
	candles[20] = k(104, 110, 103, 105)
	candles[24] = k(104, 106, 100, 105)
	candles[29] = k(104, 112, 103, 111)

	if got := DetectStructure(candles, 29); got != StructureNone {
		t.Errorf("DetectStructure = %s, want %s", got, StructureNone)
	}
}

func TestDetectStructureBOSUp(t *testing.T) {
	// Two swing highs (108 @21, 109 @27) and two swing lows (101 @24,
	// 102 @28) inside the lookback, then ten rising candles so the trend
	// is bullish and the close at 39 breaks the last swing high.
	candles := flatSeries(40)
	candles[21] = k(104, 108, 103, 105)
	candles[24] = k(104, 106, 101, 105)
	candles[27] = k(104, 109, 103, 105)
	candles[28] = k(104, 106, 102, 105)
	for i := 30; i < 40; i++ {
		base := 105 + float64(i-30)
		candles[i] = k(base, base+2, base-1, base+1)
	}

	if got := DetectStructure(candles, 39); got != BOSUp {
		t.Errorf("DetectStructure = %s, want %s", got, BOSUp)
	}
}

func TestAnalyzeShortSeriesIsNeutral(t *testing.T) {
	snap := Analyze(flatSeries(5), 4)
	if snap.Trend != TrendNeutral || snap.Sweep != SweepNone ||
		snap.Structure != StructureNone || snap.FVG != FVGNone ||
		snap.Zone != ZoneEquilibrium {
		t.Errorf("expected all-neutral snapshot, got %+v", snap)
	}
}
