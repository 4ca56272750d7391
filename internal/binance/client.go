package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client talks to the Binance REST API. Market-data endpoints are public;
// order and account endpoints are signed with the per-user secret.
type Client struct {
	apiKey     string
	secretKey  string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Binance client. The timeout bounds every request;
// a timed-out order submission surfaces as a context deadline error so the
// caller can treat the outcome as unknown.
func NewClient(apiKey, secretKey, baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		apiKey:     apiKey,
		secretKey:  secretKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// GetKlines fetches candlestick data, oldest first.
func (c *Client) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]Kline, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))

	body, err := c.get(ctx, "/api/v3/klines", params)
	if err != nil {
		return nil, fmt.Errorf("error fetching klines: %w", err)
	}

	var rawKlines [][]interface{}
	if err := json.Unmarshal(body, &rawKlines); err != nil {
		return nil, fmt.Errorf("error parsing klines: %w", err)
	}

	klines := make([]Kline, len(rawKlines))
	for i, raw := range rawKlines {
		if len(raw) < 7 {
			return nil, fmt.Errorf("malformed kline row %d", i)
		}
		klines[i] = Kline{
			OpenTime:  int64(raw[0].(float64)),
			Open:      parseFloat(raw[1]),
			High:      parseFloat(raw[2]),
			Low:       parseFloat(raw[3]),
			Close:     parseFloat(raw[4]),
			Volume:    parseFloat(raw[5]),
			CloseTime: int64(raw[6].(float64)),
		}
	}

	return klines, nil
}

// GetPrice fetches the current price for a symbol.
func (c *Client) GetPrice(ctx context.Context, symbol string) (float64, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	body, err := c.get(ctx, "/api/v3/ticker/price", params)
	if err != nil {
		return 0, fmt.Errorf("error fetching price: %w", err)
	}

	var priceResp struct {
		Symbol string  `json:"symbol"`
		Price  float64 `json:"price,string"`
	}
	if err := json.Unmarshal(body, &priceResp); err != nil {
		return 0, fmt.Errorf("error parsing price: %w", err)
	}

	return priceResp.Price, nil
}

// GetSymbolFilters fetches the lot-size and precision rules for a symbol.
func (c *Client) GetSymbolFilters(ctx context.Context, symbol string) (SymbolFilters, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	body, err := c.get(ctx, "/api/v3/exchangeInfo", params)
	if err != nil {
		return SymbolFilters{}, fmt.Errorf("error fetching exchange info: %w", err)
	}

	var info struct {
		Symbols []struct {
			Symbol  string `json:"symbol"`
			Filters []struct {
				FilterType  string `json:"filterType"`
				StepSize    string `json:"stepSize"`
				MinQty      string `json:"minQty"`
				MinNotional string `json:"minNotional"`
			} `json:"filters"`
		} `json:"symbols"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return SymbolFilters{}, fmt.Errorf("error parsing exchange info: %w", err)
	}

	for _, s := range info.Symbols {
		if s.Symbol != symbol {
			continue
		}
		filters := SymbolFilters{Symbol: symbol}
		for _, f := range s.Filters {
			switch f.FilterType {
			case "LOT_SIZE":
				filters.StepSize = parseFloat(f.StepSize)
				filters.MinQuantity = parseFloat(f.MinQty)
				filters.QuantityPrecision = precisionFromStep(f.StepSize)
			case "NOTIONAL", "MIN_NOTIONAL":
				filters.MinNotional = parseFloat(f.MinNotional)
			}
		}
		if filters.StepSize == 0 {
			return SymbolFilters{}, fmt.Errorf("no LOT_SIZE filter for %s", symbol)
		}
		return filters, nil
	}

	return SymbolFilters{}, fmt.Errorf("symbol %s not found in exchange info", symbol)
}

// PlaceMarketOrder submits a signed market order and returns the fill.
func (c *Client) PlaceMarketOrder(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", string(req.Side))
	params.Set("type", "MARKET")
	params.Set("quantity", req.Quantity)
	params.Set("newOrderRespType", "FULL")

	body, err := c.signedPost(ctx, "/api/v3/order", params)
	if err != nil {
		return nil, err
	}

	var orderResp struct {
		Symbol      string  `json:"symbol"`
		OrderID     int64   `json:"orderId"`
		Price       float64 `json:"price,string"`
		ExecutedQty float64 `json:"executedQty,string"`
		Status      string  `json:"status"`
		Fills       []struct {
			Price float64 `json:"price,string"`
			Qty   float64 `json:"qty,string"`
		} `json:"fills"`
	}
	if err := json.Unmarshal(body, &orderResp); err != nil {
		return nil, fmt.Errorf("error parsing order response: %w", err)
	}

	// Average fill price; market orders report price=0 at the top level.
	avgPrice := orderResp.Price
	if len(orderResp.Fills) > 0 {
		var notional, qty float64
		for _, f := range orderResp.Fills {
			notional += f.Price * f.Qty
			qty += f.Qty
		}
		if qty > 0 {
			avgPrice = notional / qty
		}
	}

	return &OrderResult{
		OrderID:  strconv.FormatInt(orderResp.OrderID, 10),
		Symbol:   orderResp.Symbol,
		Side:     req.Side,
		Price:    avgPrice,
		Quantity: orderResp.ExecutedQty,
		Status:   orderResp.Status,
	}, nil
}

// GetBalance fetches the free balance for an asset from the signed
// account endpoint.
func (c *Client) GetBalance(ctx context.Context, asset string) (float64, error) {
	body, err := c.signedGet(ctx, "/api/v3/account", url.Values{})
	if err != nil {
		return 0, err
	}

	var account struct {
		Balances []struct {
			Asset string  `json:"asset"`
			Free  float64 `json:"free,string"`
		} `json:"balances"`
	}
	if err := json.Unmarshal(body, &account); err != nil {
		return 0, fmt.Errorf("error parsing account: %w", err)
	}

	for _, b := range account.Balances {
		if b.Asset == asset {
			return b.Free, nil
		}
	}
	return 0, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	endpoint := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	return c.do(req)
}

func (c *Client) signedGet(ctx context.Context, path string, params url.Values) ([]byte, error) {
	query := c.signQuery(params)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.URL.RawQuery = query
	req.Header.Set("X-MBX-APIKEY", c.apiKey)

	return c.do(req)
}

func (c *Client) signedPost(ctx context.Context, path string, params url.Values) ([]byte, error) {
	query := c.signQuery(params)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.URL.RawQuery = query
	req.Header.Set("X-MBX-APIKEY", c.apiKey)

	return c.do(req)
}

// signQuery appends the timestamp and HMAC-SHA256 signature over the
// canonical query string. The signature must cover the exact encoding
// submitted in the request.
func (c *Client) signQuery(params url.Values) string {
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	query := params.Encode()

	mac := hmac.New(sha256.New, []byte(c.secretKey))
	mac.Write([]byte(query))

	return query + "&signature=" + hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{}
		if jsonErr := json.Unmarshal(body, apiErr); jsonErr == nil && apiErr.Code != 0 {
			return nil, apiErr
		}
		return nil, fmt.Errorf("API error (HTTP %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}
