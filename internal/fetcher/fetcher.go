package fetcher

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrSymbolNotSupported reports that an upstream has no quote for a symbol.
// Callers skip the symbol rather than failing the run.
var ErrSymbolNotSupported = errors.New("fetcher: symbol not supported by upstream")

// SpotPriceFetcher retrieves the latest USD price for a single symbol.
type SpotPriceFetcher interface {
	FetchSpot(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// FXRateFetcher retrieves conversion rates vs USD keyed by currency code.
type FXRateFetcher interface {
	FetchRates(ctx context.Context) (map[string]decimal.Decimal, error)
}
