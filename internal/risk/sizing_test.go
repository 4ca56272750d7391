package risk

import (
	"math"
	"strings"
	"testing"

	"smc-trading-bot/internal/trading"
)

func TestSize(t *testing.T) {
	// balance 10000, 6% risk, 20x leverage, entry 42350.50 stop 42100.00:
	// riskAmount 600, stopDistance 250.50, quantity 600/250.50*20 ≈ 47.90.
	sizing, err := Size(10000, 0.06, 20, 42350.50, 42100.00, 43000.00)
	if err != nil {
		t.Fatalf("Size: %v", err)
	}

	if sizing.RiskAmount != 600 {
		t.Errorf("riskAmount = %v, want 600", sizing.RiskAmount)
	}
	if math.Abs(sizing.StopDistance-250.50) > 1e-9 {
		t.Errorf("stopDistance = %v, want 250.50", sizing.StopDistance)
	}
	if math.Abs(sizing.Quantity-47.90) > 0.01 {
		t.Errorf("quantity = %v, want ≈47.90", sizing.Quantity)
	}
	wantProfit := sizing.Quantity * (43000.00 - 42350.50)
	if math.Abs(sizing.ProjectedProfit-wantProfit) > 1e-9 {
		t.Errorf("projectedProfit = %v, want %v", sizing.ProjectedProfit, wantProfit)
	}
}

func TestSizeInvalidStopDistance(t *testing.T) {
	_, err := Size(10000, 0.06, 20, 42350.50, 42350.50, 43000.00)
	if err == nil {
		t.Fatal("expected error for zero stop distance")
	}
	if !trading.IsValidation(err) {
		t.Errorf("expected ValidationError, got %T", err)
	}
	if !strings.Contains(err.Error(), "stop distance") {
		t.Errorf("reason should name the stop distance, got %q", err.Error())
	}
}

func TestSizeInvalidInputs(t *testing.T) {
	tests := []struct {
		name                        string
		balance, fraction, leverage float64
	}{
		{"zero balance", 0, 0.06, 20},
		{"zero fraction", 10000, 0, 20},
		{"fraction of one", 10000, 1, 20},
		{"zero leverage", 10000, 0.06, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Size(tt.balance, tt.fraction, tt.leverage, 100, 99, 103)
			if !trading.IsValidation(err) {
				t.Errorf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestCheck(t *testing.T) {
	valid := Preconditions{
		BotRunning:    true,
		Balance:       10000,
		MinBalance:    100,
		OpenPositions: 1,
		MaxPositions:  3,
		Asset:         "BTCUSDT",
		RewardRisk:    3.0,
		MinRewardRisk: 3.0,
	}

	if err := Check(valid); err != nil {
		t.Fatalf("expected valid preconditions to pass: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Preconditions)
		reason string
	}{
		{"not running", func(p *Preconditions) { p.BotRunning = false }, "not running"},
		{"duplicate position", func(p *Preconditions) { p.HasOpenOnAsset = true }, "already open"},
		{"max positions", func(p *Preconditions) { p.OpenPositions = 3 }, "max concurrent"},
		{"low balance", func(p *Preconditions) { p.Balance = 50 }, "below minimum"},
		{"low reward risk", func(p *Preconditions) { p.RewardRisk = 2.9 }, "reward:risk"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			err := Check(p)
			if !trading.IsValidation(err) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.reason) {
				t.Errorf("reason %q should contain %q", err.Error(), tt.reason)
			}
		})
	}
}

func TestReconstructQuantity(t *testing.T) {
	// Round trip: quantity sized at open must be reconstructible from the
	// stored projected profit and price levels.
	sizing, err := Size(10000, 0.06, 20, 42350.50, 42100.00, 43000.00)
	if err != nil {
		t.Fatalf("Size: %v", err)
	}

	got, err := ReconstructQuantity(sizing.ProjectedProfit, 43000.00, 42350.50)
	if err != nil {
		t.Fatalf("ReconstructQuantity: %v", err)
	}
	if math.Abs(got-sizing.Quantity) > 1e-9 {
		t.Errorf("reconstructed %v, sized %v", got, sizing.Quantity)
	}

	if _, err := ReconstructQuantity(100, 42350.50, 42350.50); err == nil {
		t.Error("expected invariant violation for zero target distance")
	}
}
