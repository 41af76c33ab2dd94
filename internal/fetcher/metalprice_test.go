package fetcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestMetalPriceFetchMissingKey(t *testing.T) {
	m := NewMetalPrice(MetalPriceOptions{}, noopLogger())
	if _, err := m.FetchSpot(context.Background(), "XPT"); err == nil {
		t.Fatal("未配置 api key 时应返回错误")
	}
}

func TestMetalPriceFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if query.Get("base") != "USD" || query.Get("currencies") != "XPT" {
			t.Fatalf("查询参数不正确: %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"rates":   map[string]float64{"USDXPT": 987.65},
		})
	}))
	defer srv.Close()

	m := NewMetalPrice(MetalPriceOptions{BaseURL: srv.URL, APIKey: "key", Timeout: time.Second}, noopLogger())

	price, err := m.FetchSpot(context.Background(), "XPT")
	if err != nil {
		t.Fatalf("成功响应不应报错: %v", err)
	}
	if price.Cmp(decimal.NewFromFloat(987.65)) != 0 {
		t.Fatalf("期望价格 987.65, 实际 %s", price.String())
	}
}

func TestMetalPriceFetchUnsuccessful(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false})
	}))
	defer srv.Close()

	m := NewMetalPrice(MetalPriceOptions{BaseURL: srv.URL, APIKey: "key", Timeout: time.Second}, noopLogger())

	if _, err := m.FetchSpot(context.Background(), "XPT"); err == nil {
		t.Fatal("success=false 应返回错误")
	}
}
