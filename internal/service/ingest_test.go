package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Paint3141/precious-metals/internal/config"
	"github.com/Paint3141/precious-metals/internal/fetcher"
	"github.com/Paint3141/precious-metals/internal/storage"
)

type fakeSpot struct {
	prices map[string]decimal.Decimal
}

func (f *fakeSpot) FetchSpot(ctx context.Context, symbol string) (decimal.Decimal, error) {
	price, ok := f.prices[symbol]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: %s", fetcher.ErrSymbolNotSupported, symbol)
	}
	return price, nil
}

type fakeFX struct {
	rates map[string]decimal.Decimal
	err   error
}

func (f *fakeFX) FetchRates(ctx context.Context) (map[string]decimal.Decimal, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.rates, nil
}

func ingestorConfig() *config.Config {
	return &config.Config{
		Symbols: config.SymbolsConfig{
			Commodities: []config.CommodityConfig{
				{Symbol: "XAU", Name: "Gold", Source: "goldapi"},
				{Symbol: "HG", Name: "Copper (per pound)", Source: "goldapi"},
				{Symbol: "XPT", Name: "Platinum", Source: "metalprice"},
			},
			Currencies: []string{"GBP", "EUR"},
		},
	}
}

func TestIngestorCommoditiesSkipsUnsupported(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := storage.NewMemoryStore()

	sources := map[string]fetcher.SpotPriceFetcher{
		// HG is missing: the upstream does not quote it.
		"goldapi": &fakeSpot{prices: map[string]decimal.Decimal{"XAU": decimal.NewFromInt(2350)}},
	}

	ingestor := NewIngestor(ingestorConfig(), sources, nil, store, store, zerolog.Nop())

	if err := ingestor.RunTask(context.Background(), TaskCommodities, now); err != nil {
		t.Fatalf("RunTask 不应报错: %v", err)
	}

	count, _ := store.CountPrices(context.Background())
	if count != 1 {
		t.Fatalf("期望保存 1 条价格, 实际 %d", count)
	}

	point, ok, _ := store.LatestPrice(context.Background(), "XAU")
	if !ok || point.USDPrice.Cmp(decimal.NewFromInt(2350)) != 0 {
		t.Fatalf("XAU 价格不正确: %v ok=%v", point.USDPrice, ok)
	}
	if point.Name != "Gold" {
		t.Fatalf("应保存展示名, 实际 %q", point.Name)
	}
}

func TestIngestorPlatinumTaskOnlyMetalPrice(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := storage.NewMemoryStore()

	sources := map[string]fetcher.SpotPriceFetcher{
		"goldapi":    &fakeSpot{prices: map[string]decimal.Decimal{"XAU": decimal.NewFromInt(2350)}},
		"metalprice": &fakeSpot{prices: map[string]decimal.Decimal{"XPT": decimal.NewFromInt(987)}},
	}

	ingestor := NewIngestor(ingestorConfig(), sources, nil, store, store, zerolog.Nop())

	if err := ingestor.RunTask(context.Background(), TaskPlatinum, now); err != nil {
		t.Fatalf("RunTask 不应报错: %v", err)
	}

	count, _ := store.CountPrices(context.Background())
	if count != 1 {
		t.Fatalf("platinum 任务只应保存 metalprice 来源, 实际 %d 条", count)
	}
	if _, ok, _ := store.LatestPrice(context.Background(), "XPT"); !ok {
		t.Fatal("应保存 XPT 价格")
	}
}

func TestIngestorFXFiltersConfiguredCurrencies(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := storage.NewMemoryStore()

	fx := &fakeFX{rates: map[string]decimal.Decimal{
		"GBP": decimal.NewFromFloat(0.79),
		"EUR": decimal.NewFromFloat(0.92),
		"CHF": decimal.NewFromFloat(0.88),
	}}

	ingestor := NewIngestor(ingestorConfig(), nil, fx, store, store, zerolog.Nop())

	if err := ingestor.RunTask(context.Background(), TaskFX, now); err != nil {
		t.Fatalf("RunTask 不应报错: %v", err)
	}

	rates := store.FXRates()
	if len(rates) != 2 {
		t.Fatalf("只应保存配置内货币, 实际 %d 条", len(rates))
	}
	for _, rate := range rates {
		if rate.Currency == "CHF" {
			t.Fatal("CHF 未配置, 不应保存")
		}
	}
}

func TestIngestorUnknownTask(t *testing.T) {
	ingestor := NewIngestor(ingestorConfig(), nil, nil, storage.NewMemoryStore(), nil, zerolog.Nop())
	if err := ingestor.RunTask(context.Background(), "bogus", time.Now().UTC()); err == nil {
		t.Fatal("未知任务应报错")
	}
}
