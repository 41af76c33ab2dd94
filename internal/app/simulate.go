package app

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Paint3141/precious-metals/internal/config"
	"github.com/Paint3141/precious-metals/internal/service"
	"github.com/Paint3141/precious-metals/internal/storage"
)

// SimulateAlert 用合成历史模拟一次告警流程。
// A baseline older than every configured window and a fresh latest point
// are seeded into an in-memory store, then the real checker and notifier
// run against it. The persisted ledger is untouched.
func (a *App) SimulateAlert(ctx context.Context, symbol string, oldPrice, newPrice decimal.Decimal) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting 未启用")
	}

	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("未配置任何告警通道")
	}

	now := time.Now().UTC()

	var longest time.Duration
	for _, window := range a.Config.Alerting.Windows {
		if window.Period > longest {
			longest = window.Period
		}
	}

	store := storage.NewMemoryStore()
	name := a.Config.CommodityName(symbol)

	if err := store.InsertPricePoint(ctx, storage.PricePoint{
		Symbol:    symbol,
		Name:      name,
		USDPrice:  oldPrice,
		FetchedAt: now.Add(-longest - time.Hour),
	}); err != nil {
		return err
	}
	if err := store.InsertPricePoint(ctx, storage.PricePoint{
		Symbol:    symbol,
		Name:      name,
		USDPrice:  newPrice,
		FetchedAt: now,
	}); err != nil {
		return err
	}

	// Narrow the tracked universe to the simulated symbol.
	cfg := *a.Config
	cfg.Symbols.Commodities = []config.CommodityConfig{{Symbol: symbol, Name: name, Source: "goldapi"}}

	checker := service.NewChecker(&cfg, store, store, notifier, a.Logger)
	return checker.Run(ctx, now)
}
