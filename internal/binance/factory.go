package binance

import (
	"time"
)

// Mode selects between simulated and real order execution.
type Mode string

const (
	ModePaper Mode = "paper"
	ModeReal  Mode = "real"
)

// NewExchangeClient builds the exchange client for a trading mode. Real
// mode requires credentials; paper mode wraps a public (unsigned) client
// for market data and simulates fills locally.
func NewExchangeClient(mode Mode, apiKey, secretKey, baseURL string, timeout time.Duration, paperBalance float64) ExchangeClient {
	if mode == ModeReal {
		return NewClient(apiKey, secretKey, baseURL, timeout)
	}
	public := NewClient("", "", baseURL, timeout)
	return NewPaperClient(public, paperBalance)
}
