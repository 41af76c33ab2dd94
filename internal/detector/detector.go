package detector

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Paint3141/precious-metals/internal/storage"
)

// Window is a named lookback period with its breach threshold and the
// minimum spacing between two alerts for the same symbol+window.
type Window struct {
	Label        string
	Period       time.Duration
	ThresholdPct decimal.Decimal
	Cooldown     time.Duration
}

// Change is the computed movement of one symbol over one window.
type Change struct {
	Symbol    string
	Window    Window
	PctChange decimal.Decimal
	Baseline  storage.PricePoint
	Current   storage.PricePoint
}

// Direction classifies the sign of the movement.
func (c Change) Direction() string {
	switch c.PctChange.Sign() {
	case 1:
		return "up"
	case -1:
		return "down"
	default:
		return "flat"
	}
}

// Calculator computes percentage changes against the price history.
type Calculator struct {
	store  storage.PriceStore
	logger zerolog.Logger
}

// NewCalculator constructs a Calculator over a price store.
func NewCalculator(store storage.PriceStore, logger zerolog.Logger) *Calculator {
	return &Calculator{store: store, logger: logger.With().Str("component", "detector").Logger()}
}

// ChangeFor computes the movement of symbol over the window ending at now.
// ok=false means the change is undetermined: no baseline old enough, no
// latest point, or a zero baseline price. Undetermined is a normal outcome,
// not an error; errors are reserved for store failures.
func (c *Calculator) ChangeFor(ctx context.Context, symbol string, window Window, now time.Time) (Change, bool, error) {
	target := now.Add(-window.Period)

	baseline, ok, err := c.store.PriceAtOrBefore(ctx, symbol, target)
	if err != nil {
		return Change{}, false, err
	}
	if !ok {
		c.logger.Debug().Str("symbol", symbol).Str("window", window.Label).Msg("history too short for window")
		return Change{}, false, nil
	}

	current, ok, err := c.store.LatestPrice(ctx, symbol)
	if err != nil {
		return Change{}, false, err
	}
	if !ok {
		return Change{}, false, nil
	}

	if baseline.USDPrice.IsZero() {
		return Change{}, false, nil
	}

	pct := current.USDPrice.Sub(baseline.USDPrice).
		Div(baseline.USDPrice).
		Mul(decimal.NewFromInt(100))

	return Change{
		Symbol:    symbol,
		Window:    window,
		PctChange: pct,
		Baseline:  baseline,
		Current:   current,
	}, true, nil
}

// Breached reports whether a change crosses its window threshold.
// The boundary is inclusive: exactly threshold percent breaches.
func Breached(pct decimal.Decimal, window Window) bool {
	return pct.Abs().GreaterThanOrEqual(window.ThresholdPct)
}
