package binance

import "context"

// MarketDataSource supplies candles and current prices.
type MarketDataSource interface {
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]Kline, error)
	GetPrice(ctx context.Context, symbol string) (float64, error)
}

// ExchangeClient is the full exchange surface: market data plus signed
// order and account operations. Implemented by Client (real) and
// PaperClient (simulated).
type ExchangeClient interface {
	MarketDataSource
	GetSymbolFilters(ctx context.Context, symbol string) (SymbolFilters, error)
	PlaceMarketOrder(ctx context.Context, req OrderRequest) (*OrderResult, error)
	GetBalance(ctx context.Context, asset string) (float64, error)
}

var (
	_ ExchangeClient = (*Client)(nil)
	_ ExchangeClient = (*PaperClient)(nil)
)
