package binance

import (
	"fmt"
	"strconv"
	"strings"
)

// Kline represents a candlestick. Candles are immutable once fetched and
// ordered by open time ascending.
type Kline struct {
	OpenTime  int64   `json:"openTime"`
	Open      float64 `json:"open,string"`
	High      float64 `json:"high,string"`
	Low       float64 `json:"low,string"`
	Close     float64 `json:"close,string"`
	Volume    float64 `json:"volume,string"`
	CloseTime int64   `json:"closeTime"`
}

// OrderSide is the exchange order side.
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// OrderRequest describes a market order to submit. Quantity is already
// rounded and formatted to the symbol's rules by the caller. Price is the
// intended entry price: ignored by the real client (market orders fill at
// the book), used as the simulated fill price in paper mode.
type OrderRequest struct {
	Symbol   string
	Side     OrderSide
	Quantity string
	Price    float64
}

// OrderResult is the fill information returned by the exchange (or
// synthesized in paper mode).
type OrderResult struct {
	OrderID  string
	Symbol   string
	Side     OrderSide
	Price    float64
	Quantity float64
	Status   string
}

// APIError is an error response from the exchange ({code, msg}).
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("binance API error %d: %s", e.Code, e.Message)
}

// SymbolFilters holds the lot-size and precision rules for a symbol.
type SymbolFilters struct {
	Symbol            string
	StepSize          float64
	QuantityPrecision int
	MinQuantity       float64
	MinNotional       float64
}

// DefaultFilters are the conservative fallback rules used when the
// exchange-info lookup fails. Coarse on purpose: rounding down against a
// large step never over-sizes an order.
func DefaultFilters(symbol string) SymbolFilters {
	return SymbolFilters{
		Symbol:            symbol,
		StepSize:          0.001,
		QuantityPrecision: 3,
		MinQuantity:       0.001,
		MinNotional:       10,
	}
}

// precisionFromStep derives the quantity precision from a step size string
// such as "0.00100000" (3 decimal places).
func precisionFromStep(step string) int {
	step = strings.TrimRight(step, "0")
	if i := strings.Index(step, "."); i >= 0 {
		return len(step) - i - 1
	}
	return 0
}

func parseFloat(val interface{}) float64 {
	switch v := val.(type) {
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	case float64:
		return v
	default:
		return 0
	}
}
