package patterns

import (
	"context"
	"testing"

	"smc-trading-bot/internal/analysis"
)

func TestID(t *testing.T) {
	a := ID(analysis.SweepLow, analysis.BOSUp, analysis.FVGBullish, analysis.ZoneDiscount, analysis.SessionLondon)
	b := ID(analysis.SweepLow, analysis.BOSUp, analysis.FVGBullish, analysis.ZoneDiscount, analysis.SessionLondon)
	c := ID(analysis.SweepLow, analysis.BOSUp, analysis.FVGBullish, analysis.ZoneDiscount, analysis.SessionNY)

	if a != b {
		t.Error("same setup must yield the same pattern id")
	}
	if a == c {
		t.Error("different sessions must yield different pattern ids")
	}
}

func TestScoreFromStat(t *testing.T) {
	tests := []struct {
		name string
		stat Stat
		want func(float64) bool
	}{
		{"untested is neutral", Stat{}, func(s float64) bool { return s == 50 }},
		{"one win barely moves", Stat{Wins: 1}, func(s float64) bool { return s > 50 && s < 60 }},
		{"one loss barely moves", Stat{Losses: 1}, func(s float64) bool { return s > 40 && s < 50 }},
		{"many wins scores high", Stat{Wins: 90, Losses: 10}, func(s float64) bool { return s > 80 }},
		{"many losses scores low", Stat{Wins: 10, Losses: 90}, func(s float64) bool { return s < 20 }},
		{"even record stays neutral", Stat{Wins: 50, Losses: 50}, func(s float64) bool { return s == 50 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScoreFromStat(tt.stat)
			if !tt.want(got) {
				t.Errorf("ScoreFromStat(%+v) = %v", tt.stat, got)
			}
			if got < 0 || got > 100 {
				t.Errorf("score %v out of [0,100]", got)
			}
		})
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	score, err := store.Score(ctx, "user-1", "p1")
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if score != 50 {
		t.Errorf("expected neutral 50 for untested pattern, got %v", score)
	}

	for i := 0; i < 20; i++ {
		if err := store.Record(ctx, "user-1", "p1", true, 2.5); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	score, _ = store.Score(ctx, "user-1", "p1")
	if score <= 70 {
		t.Errorf("expected high score after 20 wins, got %v", score)
	}

	// Users are isolated from each other.
	other, _ := store.Score(ctx, "user-2", "p1")
	if other != 50 {
		t.Errorf("expected user isolation, got %v", other)
	}

	if err := store.Reset(ctx, "user-1"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	score, _ = store.Score(ctx, "user-1", "p1")
	if score != 50 {
		t.Errorf("expected neutral after reset, got %v", score)
	}

	// Reset of an absent user is a no-op.
	if err := store.Reset(ctx, "user-1"); err != nil {
		t.Fatalf("second Reset: %v", err)
	}
}
