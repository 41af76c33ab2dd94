package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestGoldAPIFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/price/XAU") {
			t.Fatalf("路径应为 /price/XAU, 实际 %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"name": "Gold", "price": 2350.5, "symbol": "XAU"})
	}))
	defer srv.Close()

	g := NewGoldAPI(GoldAPIOptions{BaseURL: srv.URL, Timeout: time.Second, UserAgent: "test"}, noopLogger())

	price, err := g.FetchSpot(context.Background(), "XAU")
	if err != nil {
		t.Fatalf("成功响应不应报错: %v", err)
	}
	if price.Cmp(decimal.NewFromFloat(2350.5)) != 0 {
		t.Fatalf("期望价格 2350.5, 实际 %s", price.String())
	}
}

func TestGoldAPIFetchNotSupported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	g := NewGoldAPI(GoldAPIOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())

	_, err := g.FetchSpot(context.Background(), "HG")
	if !errors.Is(err, ErrSymbolNotSupported) {
		t.Fatalf("HTTP 404 应返回 ErrSymbolNotSupported, 实际 %v", err)
	}
}

func TestGoldAPIFetchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := NewGoldAPI(GoldAPIOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())

	if _, err := g.FetchSpot(context.Background(), "XAU"); err == nil {
		t.Fatal("HTTP 500 应返回错误")
	}
}

func TestGoldAPIFetchMissingPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"name": "Gold"})
	}))
	defer srv.Close()

	g := NewGoldAPI(GoldAPIOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())

	if _, err := g.FetchSpot(context.Background(), "XAU"); err == nil {
		t.Fatal("缺少 price 字段应返回错误")
	}
}
