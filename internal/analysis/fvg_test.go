package analysis

import (
	"testing"

	"smc-trading-bot/internal/binance"
)

func TestDetectFVG(t *testing.T) {
	tests := []struct {
		name    string
		candles []binance.Kline
		want    FVGSignal
	}{
		{
			// c1 high 100, c3 low 102: full bullish gap of ~2%.
			name: "bullish gap",
			candles: []binance.Kline{
				k(99, 100, 98, 99.5),
				k(100, 102, 99.8, 101.8),
				k(102.2, 103, 102, 102.5),
			},
			want: FVGBullish,
		},
		{
			// c1 low 102, c3 high 100: full bearish gap.
			name: "bearish gap",
			candles: []binance.Kline{
				k(103, 104, 102, 102.5),
				k(102, 102.2, 100, 100.2),
				k(99.8, 100, 99, 99.5),
			},
			want: FVGBearish,
		},
		{
			// Overlapping candles, no imbalance.
			name: "no gap",
			candles: []binance.Kline{
				k(99, 101, 98, 100),
				k(100, 102, 99, 101),
				k(101, 103, 100, 102),
			},
			want: FVGNone,
		},
		{
			// Gap below the 0.05% floor and an indecisive middle candle:
			// neither the full nor the relaxed path qualifies.
			name: "gap too small",
			candles: []binance.Kline{
				k(99.9, 100.00, 99.5, 99.9),
				k(99.9, 100.05, 99.9, 99.95),
				k(100.01, 100.2, 100.01, 100.1),
			},
			want: FVGNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectFVG(tt.candles, len(tt.candles)-1); got != tt.want {
				t.Errorf("DetectFVG = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDetectFVGShortSeries(t *testing.T) {
	candles := []binance.Kline{k(99, 100, 98, 99)}
	if got := DetectFVG(candles, 0); got != FVGNone {
		t.Errorf("DetectFVG on short series = %s, want %s", got, FVGNone)
	}
}
