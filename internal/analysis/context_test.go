package analysis

import (
	"testing"
	"time"

	"smc-trading-bot/internal/binance"
)

func TestClassifyZone(t *testing.T) {
	// 50-candle range 100-200: midpoint 150, bands at 130/170.
	build := func(close float64) []binance.Kline {
		candles := make([]binance.Kline, 50)
		for i := range candles {
			candles[i] = k(150, 152, 148, 150)
		}
		candles[10] = k(150, 200, 148, 160)
		candles[20] = k(150, 152, 100, 140)
		candles[49] = k(close, close+1, close-1, close)
		return candles
	}

	tests := []struct {
		name  string
		close float64
		want  ZoneClass
	}{
		{"upper band", 185, ZonePremium},
		{"lower band", 115, ZoneDiscount},
		{"middle", 150, ZoneEquilibrium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyZone(build(tt.close), 49); got != tt.want {
				t.Errorf("ClassifyZone(close=%v) = %s, want %s", tt.close, got, tt.want)
			}
		})
	}
}

func TestClassifyZoneShortSeries(t *testing.T) {
	if got := ClassifyZone(flatSeries(10), 9); got != ZoneEquilibrium {
		t.Errorf("expected equilibrium with short history, got %s", got)
	}
}

func TestBuildContext(t *testing.T) {
	rising := make([]binance.Kline, 60)
	for i := range rising {
		base := 100 + float64(i)
		rising[i] = k(base, base+2, base-1, base+1)
	}

	ctx := BuildContext(rising, time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	if !ctx.Ready {
		t.Fatal("expected ready context with 60 candles")
	}
	if ctx.Bias != BiasBull {
		t.Errorf("expected BULL bias, got %s", ctx.Bias)
	}
	if ctx.Session != SessionLondon {
		t.Errorf("expected LONDON session at 09:00 UTC, got %s", ctx.Session)
	}
	if ctx.RangeHigh <= ctx.RangeLow {
		t.Errorf("invalid range %v-%v", ctx.RangeLow, ctx.RangeHigh)
	}
}

func TestBuildContextNotReady(t *testing.T) {
	ctx := BuildContext(flatSeries(10), time.Now())
	if ctx.Ready {
		t.Error("expected not-ready context with 10 candles")
	}
}

func TestSessionFor(t *testing.T) {
	tests := []struct {
		hour int
		want Session
	}{
		{22, SessionOceania},
		{23, SessionOceania},
		{0, SessionAsia},
		{3, SessionAsia},
		{6, SessionAsia},
		{7, SessionLondon},
		{12, SessionLondon},
		{13, SessionNY},
		{20, SessionNY},
		{21, SessionOceania},
	}

	for _, tt := range tests {
		now := time.Date(2026, 3, 10, tt.hour, 30, 0, 0, time.UTC)
		if got := SessionFor(now); got != tt.want {
			t.Errorf("SessionFor(hour=%d) = %s, want %s", tt.hour, got, tt.want)
		}
	}
}
