package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// PricePoint represents one persisted USD price observation.
// Rows are append-only; the per-symbol series is ordered by FetchedAt.
type PricePoint struct {
	ID        int64
	Symbol    string
	Name      string
	USDPrice  decimal.Decimal
	FetchedAt time.Time
}

// FXRate represents one persisted currency rate vs USD.
type FXRate struct {
	ID        int64
	Currency  string
	RateVsUSD decimal.Decimal
	FetchedAt time.Time
}

// SentAlert records the last emission per (symbol, window label).
// At most one row exists per key; RecordSent overwrites in place.
type SentAlert struct {
	Symbol     string
	Label      string
	LastSentAt time.Time
}
