package supervisor

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"smc-trading-bot/internal/binance"
	"smc-trading-bot/internal/database"
	"smc-trading-bot/internal/events"
	"smc-trading-bot/internal/patterns"
)

type fakeStore struct {
	positions []*database.Position
	updates   []int64
	settled   []int64
	balance   float64
}

func (s *fakeStore) GetOpenPositions(ctx context.Context, userID string) ([]*database.Position, error) {
	return s.positions, nil
}

func (s *fakeStore) GetPositionByID(ctx context.Context, userID string, positionID int64) (*database.Position, error) {
	for _, pos := range s.positions {
		if pos.ID == positionID {
			return pos, nil
		}
	}
	return nil, errors.New("not found")
}

func (s *fakeStore) UpdatePositionPrice(ctx context.Context, positionID int64, currentPrice, pnl float64) error {
	s.updates = append(s.updates, positionID)
	return nil
}

func (s *fakeStore) SettlePosition(ctx context.Context, pos *database.Position, exitPrice float64, result database.OperationResult, pnl float64) (float64, error) {
	s.settled = append(s.settled, pos.ID)
	s.balance += pnl
	return s.balance, nil
}

type fakePricer struct {
	prices   map[string]float64
	priceErr map[string]error
	closed   []binance.OrderRequest
}

func (c *fakePricer) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]binance.Kline, error) {
	return nil, nil
}

func (c *fakePricer) GetPrice(ctx context.Context, symbol string) (float64, error) {
	if err := c.priceErr[symbol]; err != nil {
		return 0, err
	}
	return c.prices[symbol], nil
}

func (c *fakePricer) GetSymbolFilters(ctx context.Context, symbol string) (binance.SymbolFilters, error) {
	return binance.DefaultFilters(symbol), nil
}

func (c *fakePricer) PlaceMarketOrder(ctx context.Context, req binance.OrderRequest) (*binance.OrderResult, error) {
	c.closed = append(c.closed, req)
	return &binance.OrderResult{OrderID: "close-1", Status: "FILLED"}, nil
}

func (c *fakePricer) GetBalance(ctx context.Context, asset string) (float64, error) {
	return 0, nil
}

// position builds a consistent long with entry 100, stop 95, target 110
// and quantity 2 (projected profit 20).
func longPosition(id int64) *database.Position {
	return &database.Position{
		ID:              id,
		UserID:          "user-1",
		Symbol:          "BTCUSDT",
		Direction:       "long",
		EntryPrice:      100,
		CurrentPrice:    100,
		StopLoss:        95,
		TakeProfit:      110,
		Quantity:        2,
		ProjectedProfit: 20,
		RewardRisk:      3,
		PatternID:       "low|BOS_up|bullish|discount|LONDON",
		OpenedAt:        time.Now(),
	}
}

func newSupervisor(store *fakeStore, patternStore patterns.Store) *Supervisor {
	return New(store, patternStore, events.NewEventBus(), zerolog.Nop(), 1e-6)
}

func TestRunCycleRefreshesOpenPosition(t *testing.T) {
	store := &fakeStore{positions: []*database.Position{longPosition(1)}}
	client := &fakePricer{prices: map[string]float64{"BTCUSDT": 104}}
	sup := newSupervisor(store, patterns.NewMemoryStore())

	sup.RunCycle(context.Background(), "user-1", client, database.ModePaper)

	if len(store.updates) != 1 {
		t.Fatalf("expected 1 price refresh, got %d", len(store.updates))
	}
	if len(store.settled) != 0 {
		t.Errorf("no exit should trigger at 104, settled %d", len(store.settled))
	}
}

func TestRunCycleClosesOnTakeProfit(t *testing.T) {
	store := &fakeStore{positions: []*database.Position{longPosition(1)}}
	client := &fakePricer{prices: map[string]float64{"BTCUSDT": 111}}
	patternStore := patterns.NewMemoryStore()
	sup := newSupervisor(store, patternStore)
	ctx := context.Background()

	sup.RunCycle(ctx, "user-1", client, database.ModePaper)

	if len(store.settled) != 1 {
		t.Fatalf("expected settlement at 111 >= target 110, settled %d", len(store.settled))
	}
	// (111-100)*2 = 22 realized.
	if math.Abs(store.balance-22) > 1e-9 {
		t.Errorf("balance = %v, want 22", store.balance)
	}
	// Paper mode closes without an exchange order.
	if len(client.closed) != 0 {
		t.Errorf("paper close must not hit the exchange, placed %d orders", len(client.closed))
	}

	// The win landed in pattern memory.
	score, _ := patternStore.Score(ctx, "user-1", "low|BOS_up|bullish|discount|LONDON")
	if score <= 50 {
		t.Errorf("expected pattern score above neutral after a win, got %v", score)
	}
}

func TestRunCycleClosesOnStopLoss(t *testing.T) {
	store := &fakeStore{positions: []*database.Position{longPosition(1)}}
	client := &fakePricer{prices: map[string]float64{"BTCUSDT": 94}}
	sup := newSupervisor(store, patterns.NewMemoryStore())

	sup.RunCycle(context.Background(), "user-1", client, database.ModePaper)

	if len(store.settled) != 1 {
		t.Fatalf("expected settlement at 94 <= stop 95, settled %d", len(store.settled))
	}
	// (94-100)*2 = -12 realized.
	if math.Abs(store.balance-(-12)) > 1e-9 {
		t.Errorf("balance = %v, want -12", store.balance)
	}
}

func TestRunCycleShortExits(t *testing.T) {
	short := longPosition(1)
	short.Direction = "short"
	short.StopLoss = 105
	short.TakeProfit = 90
	short.ProjectedProfit = 20 // |90-100| * 2

	tests := []struct {
		name    string
		price   float64
		settled bool
		pnl     float64
	}{
		{"short win at target", 89, true, 22},
		{"short loss at stop", 106, true, -12},
		{"short stays open", 99, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos := *short
			store := &fakeStore{positions: []*database.Position{&pos}}
			client := &fakePricer{prices: map[string]float64{"BTCUSDT": tt.price}}
			sup := newSupervisor(store, patterns.NewMemoryStore())

			sup.RunCycle(context.Background(), "user-1", client, database.ModePaper)

			if tt.settled && len(store.settled) != 1 {
				t.Fatalf("expected settlement at %v", tt.price)
			}
			if !tt.settled && len(store.settled) != 0 {
				t.Fatalf("expected no settlement at %v", tt.price)
			}
			if tt.settled && math.Abs(store.balance-tt.pnl) > 1e-9 {
				t.Errorf("pnl = %v, want %v", store.balance, tt.pnl)
			}
		})
	}
}

func TestRunCyclePerAssetIsolation(t *testing.T) {
	good := longPosition(1)
	bad := longPosition(2)
	bad.Symbol = "ETHUSDT"

	store := &fakeStore{positions: []*database.Position{bad, good}}
	client := &fakePricer{
		prices:   map[string]float64{"BTCUSDT": 104},
		priceErr: map[string]error{"ETHUSDT": errors.New("fetch failed")},
	}
	sup := newSupervisor(store, patterns.NewMemoryStore())

	sup.RunCycle(context.Background(), "user-1", client, database.ModePaper)

	// The failed ETH fetch must not block the BTC evaluation.
	if len(store.updates) != 1 || store.updates[0] != 1 {
		t.Errorf("expected position 1 refreshed despite position 2 failure, updates %v", store.updates)
	}
}

func TestRunCycleQuantityMismatchSkips(t *testing.T) {
	pos := longPosition(1)
	pos.Quantity = 5 // stored quantity disagrees with projectedProfit/|tp-entry| = 2

	store := &fakeStore{positions: []*database.Position{pos}}
	client := &fakePricer{prices: map[string]float64{"BTCUSDT": 111}}
	sup := newSupervisor(store, patterns.NewMemoryStore())

	sup.RunCycle(context.Background(), "user-1", client, database.ModePaper)

	if len(store.settled) != 0 {
		t.Errorf("inconsistent position must not settle, settled %d", len(store.settled))
	}
	if len(store.updates) != 0 {
		t.Errorf("inconsistent position must not refresh, updates %d", len(store.updates))
	}
}

func TestRunCycleRealModeClosesOnExchange(t *testing.T) {
	store := &fakeStore{positions: []*database.Position{longPosition(1)}}
	client := &fakePricer{prices: map[string]float64{"BTCUSDT": 111}}
	sup := newSupervisor(store, patterns.NewMemoryStore())

	sup.RunCycle(context.Background(), "user-1", client, database.ModeReal)

	if len(client.closed) != 1 {
		t.Fatalf("expected 1 close order, got %d", len(client.closed))
	}
	if client.closed[0].Side != binance.SideSell {
		t.Errorf("long close must sell, got %s", client.closed[0].Side)
	}
	if len(store.settled) != 1 {
		t.Errorf("expected settlement after exchange close")
	}
}

func TestCloseManual(t *testing.T) {
	pos := longPosition(7)
	pos.CurrentPrice = 103

	store := &fakeStore{positions: []*database.Position{pos}}
	client := &fakePricer{}
	sup := newSupervisor(store, patterns.NewMemoryStore())

	if err := sup.CloseManual(context.Background(), "user-1", 7, client, database.ModePaper); err != nil {
		t.Fatalf("CloseManual: %v", err)
	}

	if len(store.settled) != 1 {
		t.Fatalf("expected manual settlement")
	}
	// (103-100)*2 = 6 at the last known price.
	if math.Abs(store.balance-6) > 1e-9 {
		t.Errorf("pnl = %v, want 6", store.balance)
	}
}

func TestBalanceConservation(t *testing.T) {
	// Sequential closes must accumulate exactly the sum of per-close PnL.
	a := longPosition(1)
	b := longPosition(2)
	b.Symbol = "ETHUSDT"

	store := &fakeStore{positions: []*database.Position{a, b}}
	client := &fakePricer{prices: map[string]float64{"BTCUSDT": 111, "ETHUSDT": 94}}
	sup := newSupervisor(store, patterns.NewMemoryStore())

	sup.RunCycle(context.Background(), "user-1", client, database.ModePaper)

	// +22 from the BTC win, -12 from the ETH loss.
	if math.Abs(store.balance-10) > 1e-9 {
		t.Errorf("balance = %v, want 10", store.balance)
	}
}
