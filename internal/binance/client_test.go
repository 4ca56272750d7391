package binance

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestPrecisionFromStep(t *testing.T) {
	tests := []struct {
		step string
		want int
	}{
		{"0.00100000", 3},
		{"0.00010000", 4},
		{"1.00000000", 0},
		{"0.1", 1},
		{"1", 0},
	}

	for _, tt := range tests {
		if got := precisionFromStep(tt.step); got != tt.want {
			t.Errorf("precisionFromStep(%q) = %d, want %d", tt.step, got, tt.want)
		}
	}
}

func TestGetKlines(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/klines" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`[[1700000000000,"42000.00","42100.00","41900.00","42050.00","123.45",1700000899999,"0",0,"0","0","0"]]`))
	}))
	defer server.Close()

	client := NewClient("", "", server.URL, 5*time.Second)
	klines, err := client.GetKlines(context.Background(), "BTCUSDT", "15m", 1)
	if err != nil {
		t.Fatalf("GetKlines: %v", err)
	}
	if len(klines) != 1 {
		t.Fatalf("expected 1 kline, got %d", len(klines))
	}
	k := klines[0]
	if k.Open != 42000 || k.High != 42100 || k.Low != 41900 || k.Close != 42050 {
		t.Errorf("unexpected OHLC: %+v", k)
	}
	if k.Volume != 123.45 {
		t.Errorf("expected volume 123.45, got %v", k.Volume)
	}
}

func TestAPIErrorMapping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"code":-2015,"msg":"Invalid API-key, IP, or permissions for action."}`))
	}))
	defer server.Close()

	client := NewClient("key", "secret", server.URL, 5*time.Second)
	_, err := client.PlaceMarketOrder(context.Background(), OrderRequest{
		Symbol:   "BTCUSDT",
		Side:     SideBuy,
		Quantity: "0.001",
	})
	if err == nil {
		t.Fatal("expected error for rejected order")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.Code != -2015 {
		t.Errorf("expected code -2015, got %d", apiErr.Code)
	}
}

func TestSignedRequestCarriesSignature(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		if r.Header.Get("X-MBX-APIKEY") != "test-key" {
			t.Errorf("missing API key header")
		}
		w.Write([]byte(`{"balances":[{"asset":"USDT","free":"1000.00","locked":"0"}]}`))
	}))
	defer server.Close()

	client := NewClient("test-key", "test-secret", server.URL, 5*time.Second)
	balance, err := client.GetBalance(context.Background(), "USDT")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance != 1000 {
		t.Errorf("expected balance 1000, got %v", balance)
	}
	if gotQuery == "" {
		t.Fatal("expected signed query")
	}
	for _, param := range []string{"timestamp=", "signature="} {
		if !containsParam(gotQuery, param) {
			t.Errorf("query missing %s: %s", param, gotQuery)
		}
	}
}

func containsParam(query, param string) bool {
	for i := 0; i+len(param) <= len(query); i++ {
		if query[i:i+len(param)] == param {
			return true
		}
	}
	return false
}

func TestPaperClientFillsAtIntendedPrice(t *testing.T) {
	paper := NewPaperClient(nil, 10000)

	result, err := paper.PlaceMarketOrder(context.Background(), OrderRequest{
		Symbol:   "BTCUSDT",
		Side:     SideBuy,
		Quantity: "0.5",
		Price:    42350.50,
	})
	if err != nil {
		t.Fatalf("PlaceMarketOrder: %v", err)
	}
	if result.Price != 42350.50 {
		t.Errorf("expected fill at intended price 42350.50, got %v", result.Price)
	}
	if result.Quantity != 0.5 {
		t.Errorf("expected quantity 0.5, got %v", result.Quantity)
	}
	if result.Status != "FILLED" {
		t.Errorf("expected FILLED, got %s", result.Status)
	}
	if result.OrderID == "" {
		t.Error("expected synthetic order id")
	}

	balance, _ := paper.GetBalance(context.Background(), "USDT")
	if balance != 10000 {
		t.Errorf("expected balance 10000, got %v", balance)
	}
}
