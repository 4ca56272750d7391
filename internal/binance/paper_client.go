package binance

import (
	"context"
	"strconv"
	"sync"

	"github.com/google/uuid"
)

// PaperClient simulates order execution while serving real market data
// through the wrapped source. Orders get a synthetic id and fill at the
// intended price; the simulated balance is adjusted by nothing here —
// bookkeeping stays with the position supervisor, same as real mode.
type PaperClient struct {
	data    MarketDataSource
	mu      sync.Mutex
	balance float64
	orders  []OrderResult
}

// NewPaperClient creates a paper trading client with a starting balance.
func NewPaperClient(data MarketDataSource, startingBalance float64) *PaperClient {
	return &PaperClient{
		data:    data,
		balance: startingBalance,
	}
}

func (p *PaperClient) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]Kline, error) {
	return p.data.GetKlines(ctx, symbol, interval, limit)
}

func (p *PaperClient) GetPrice(ctx context.Context, symbol string) (float64, error) {
	return p.data.GetPrice(ctx, symbol)
}

// GetSymbolFilters returns permissive defaults; paper fills are not bound
// by real lot rules but quantities still round the same way as real mode.
func (p *PaperClient) GetSymbolFilters(ctx context.Context, symbol string) (SymbolFilters, error) {
	return DefaultFilters(symbol), nil
}

// PlaceMarketOrder simulates an immediate full fill at the intended price.
func (p *PaperClient) PlaceMarketOrder(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	qty, err := strconv.ParseFloat(req.Quantity, 64)
	if err != nil {
		return nil, &APIError{Code: -1013, Message: "invalid quantity"}
	}

	result := OrderResult{
		OrderID:  "paper-" + uuid.New().String(),
		Symbol:   req.Symbol,
		Side:     req.Side,
		Price:    req.Price,
		Quantity: qty,
		Status:   "FILLED",
	}

	p.mu.Lock()
	p.orders = append(p.orders, result)
	p.mu.Unlock()

	return &result, nil
}

func (p *PaperClient) GetBalance(ctx context.Context, asset string) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balance, nil
}

// SetBalance updates the simulated balance (used when reconciling paper
// PnL back into the account).
func (p *PaperClient) SetBalance(balance float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.balance = balance
}

// Orders returns the simulated order history.
func (p *PaperClient) Orders() []OrderResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]OrderResult, len(p.orders))
	copy(out, p.orders)
	return out
}
