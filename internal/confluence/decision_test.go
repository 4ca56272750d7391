package confluence

import (
	"strings"
	"testing"

	"smc-trading-bot/internal/analysis"
	"smc-trading-bot/internal/strategy"
)

func fullChecklist() Checklist {
	return Checklist{
		SweepDetected:      true,
		StructureConfirmed: true,
		FVGPresent:         true,
		ZoneCorrect:        true,
		RewardRiskValid:    true,
	}
}

func readyContext() analysis.TradingContext {
	return analysis.TradingContext{
		Ready:        true,
		Bias:         analysis.BiasBull,
		BiasStrength: analysis.StrengthForte,
		Session:      analysis.SessionLondon,
	}
}

func TestScore(t *testing.T) {
	tests := []struct {
		name string
		cl   Checklist
		want float64
	}{
		{"all criteria", fullChecklist(), 10},
		{"none", Checklist{}, 0},
		{"sweep only", Checklist{SweepDetected: true}, 3},
		{"sweep and structure", Checklist{SweepDetected: true, StructureConfirmed: true}, 5.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Score(tt.cl); got != tt.want {
				t.Errorf("Score = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDecideContextGate(t *testing.T) {
	poi := &strategy.EntryPoint{ID: "poi-1", Price: 100, RewardRisk: 3}

	decision := Decide(analysis.TradingContext{Ready: false}, fullChecklist(), poi, 90, DefaultParams(), false)
	if decision.Execute {
		t.Error("expected hold with unready context")
	}
	if !strings.Contains(decision.Reason, "context") {
		t.Errorf("reason should mention context, got %q", decision.Reason)
	}
}

func TestDecideNoCandidate(t *testing.T) {
	decision := Decide(readyContext(), fullChecklist(), nil, 90, DefaultParams(), false)
	if decision.Execute {
		t.Error("expected hold without a candidate")
	}
}

func TestDecideExecutes(t *testing.T) {
	// Full checklist (60 of the combined score) plus pattern 80 (32):
	// combined 92 clears the threshold; RR 3 clears the auto floor.
	poi := &strategy.EntryPoint{ID: "poi-1", Price: 100, RewardRisk: 3}

	decision := Decide(readyContext(), fullChecklist(), poi, 80, DefaultParams(), false)
	if !decision.Execute {
		t.Fatalf("expected execute, got hold: %s", decision.Reason)
	}
	if decision.CombinedScore != 92 {
		t.Errorf("expected combined 92, got %v", decision.CombinedScore)
	}
	if decision.ConfluenceScore != 10 {
		t.Errorf("expected confluence 10, got %v", decision.ConfluenceScore)
	}
}

func TestDecideCombinedBelowThreshold(t *testing.T) {
	// Weak pattern drags the combined score under 80.
	poi := &strategy.EntryPoint{ID: "poi-1", Price: 100, RewardRisk: 3}

	decision := Decide(readyContext(), fullChecklist(), poi, 40, DefaultParams(), false)
	if decision.Execute {
		t.Error("expected hold below threshold")
	}
	if decision.CombinedScore != 76 {
		t.Errorf("expected combined 76, got %v", decision.CombinedScore)
	}
	if !strings.Contains(decision.Reason, "threshold") {
		t.Errorf("reason should name the failed gate, got %q", decision.Reason)
	}
}

func TestDecideRewardRiskFloors(t *testing.T) {
	params := DefaultParams()

	tests := []struct {
		name    string
		rr      float64
		checked bool
		want    bool
	}{
		{"auto floor pass", 2.6, false, true},
		{"auto floor fail", 2.4, false, false},
		{"checklist floor pass", 3.0, true, true},
		{"checklist floor fail", 2.8, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			poi := &strategy.EntryPoint{ID: "poi-1", Price: 100, RewardRisk: tt.rr}
			decision := Decide(readyContext(), fullChecklist(), poi, 90, params, tt.checked)
			if decision.Execute != tt.want {
				t.Errorf("Execute = %v, want %v (%s)", decision.Execute, tt.want, decision.Reason)
			}
			if !tt.want && !strings.Contains(decision.Reason, "reward:risk") {
				t.Errorf("reason should name reward:risk, got %q", decision.Reason)
			}
		})
	}
}

func TestDecideDeterminism(t *testing.T) {
	poi := &strategy.EntryPoint{ID: "poi-1", Price: 100, RewardRisk: 3}
	ctx := readyContext()
	cl := fullChecklist()

	first := Decide(ctx, cl, poi, 73.5, DefaultParams(), false)
	for i := 0; i < 10; i++ {
		again := Decide(ctx, cl, poi, 73.5, DefaultParams(), false)
		if again != first {
			t.Fatalf("decision not deterministic: %+v vs %+v", again, first)
		}
	}
}

func TestSignalID(t *testing.T) {
	a := &strategy.EntryPoint{ID: "poi-1", Price: 100.5, RewardRisk: 3}
	b := &strategy.EntryPoint{ID: "poi-1", Price: 100.5, RewardRisk: 3}
	c := &strategy.EntryPoint{ID: "poi-1", Price: 100.6, RewardRisk: 3}

	if SignalID(a) != SignalID(b) {
		t.Error("identical signals must share an id")
	}
	if SignalID(a) == SignalID(c) {
		t.Error("different entry prices must produce different ids")
	}
}
