package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process implementation of PriceStore, FXRateStore,
// and AlertLedger. It backs the simulate-alert command and tests; the
// cooldown and upsert semantics match the Postgres store.
type MemoryStore struct {
	mu     sync.Mutex
	prices map[string][]PricePoint
	fx     []FXRate
	sent   map[string]time.Time
	nextID int64
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		prices: make(map[string][]PricePoint),
		sent:   make(map[string]time.Time),
	}
}

// InsertPricePoint appends one observation, keeping the series ordered.
func (m *MemoryStore) InsertPricePoint(ctx context.Context, point PricePoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertLocked(point)
	return nil
}

// InsertPricePoints appends a batch of observations.
func (m *MemoryStore) InsertPricePoints(ctx context.Context, points []PricePoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, point := range points {
		m.insertLocked(point)
	}
	return nil
}

func (m *MemoryStore) insertLocked(point PricePoint) {
	m.nextID++
	point.ID = m.nextID
	series := append(m.prices[point.Symbol], point)
	sort.SliceStable(series, func(i, j int) bool {
		return series[i].FetchedAt.Before(series[j].FetchedAt)
	})
	m.prices[point.Symbol] = series
}

// LatestPrice returns the newest observation for a symbol.
func (m *MemoryStore) LatestPrice(ctx context.Context, symbol string) (PricePoint, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	series := m.prices[symbol]
	if len(series) == 0 {
		return PricePoint{}, false, nil
	}
	return series[len(series)-1], true, nil
}

// PriceAtOrBefore returns the newest observation at or before target.
func (m *MemoryStore) PriceAtOrBefore(ctx context.Context, symbol string, target time.Time) (PricePoint, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	series := m.prices[symbol]
	for i := len(series) - 1; i >= 0; i-- {
		if !series[i].FetchedAt.After(target) {
			return series[i], true, nil
		}
	}
	return PricePoint{}, false, nil
}

// ListSymbols lists the distinct recorded symbols.
func (m *MemoryStore) ListSymbols(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	symbols := make([]string, 0, len(m.prices))
	for symbol := range m.prices {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols, nil
}

// ListPricesBetween lists a symbol's observations within [from, to).
func (m *MemoryStore) ListPricesBetween(ctx context.Context, symbol string, from, to time.Time) ([]PricePoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	points := make([]PricePoint, 0)
	for _, point := range m.prices[symbol] {
		if point.FetchedAt.Before(from) || !point.FetchedAt.Before(to) {
			continue
		}
		points = append(points, point)
	}
	return points, nil
}

// ListRecentPrices lists the newest observations across all symbols.
func (m *MemoryStore) ListRecentPrices(ctx context.Context, limit int) ([]PricePoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := make([]PricePoint, 0)
	for _, series := range m.prices {
		all = append(all, series...)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].FetchedAt.After(all[j].FetchedAt)
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// CountPrices counts stored observations.
func (m *MemoryStore) CountPrices(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	for _, series := range m.prices {
		count += int64(len(series))
	}
	return count, nil
}

// InsertFXRate appends one currency rate observation.
func (m *MemoryStore) InsertFXRate(ctx context.Context, rate FXRate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	rate.ID = m.nextID
	m.fx = append(m.fx, rate)
	return nil
}

// FXRates returns a copy of the recorded fx rates.
func (m *MemoryStore) FXRates() []FXRate {
	m.mu.Lock()
	defer m.mu.Unlock()

	rates := make([]FXRate, len(m.fx))
	copy(rates, m.fx)
	return rates
}

// CanSend reports whether the cooldown for (symbol, label) has elapsed.
func (m *MemoryStore) CanSend(ctx context.Context, symbol, label string, now time.Time, cooldown time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lastSentAt, ok := m.sent[symbol+"|"+label]
	if !ok {
		return true, nil
	}
	return now.Sub(lastSentAt) >= cooldown, nil
}

// RecordSent upserts last_sent_at for (symbol, label).
func (m *MemoryStore) RecordSent(ctx context.Context, symbol, label string, sentAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sent[symbol+"|"+label] = sentAt
	return nil
}

// SentAt exposes the ledger entry for a key; ok=false means never sent.
func (m *MemoryStore) SentAt(symbol, label string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	at, ok := m.sent[symbol+"|"+label]
	return at, ok
}

// SentCount reports the number of live ledger entries.
func (m *MemoryStore) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

var _ PriceStore = (*MemoryStore)(nil)
var _ FXRateStore = (*MemoryStore)(nil)
var _ AlertLedger = (*MemoryStore)(nil)
