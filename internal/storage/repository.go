package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	insertPricePointSQL = `INSERT INTO commodity_prices (
        symbol,
        name,
        usd_price,
        fetched_at
    ) VALUES (
        $1,$2,$3,$4
    );`

	latestPriceSQL = `SELECT
        id,
        symbol,
        name,
        usd_price,
        fetched_at
    FROM commodity_prices
    WHERE symbol = $1
    ORDER BY fetched_at DESC
    LIMIT 1;`

	priceAtOrBeforeSQL = `SELECT
        id,
        symbol,
        name,
        usd_price,
        fetched_at
    FROM commodity_prices
    WHERE symbol = $1
      AND fetched_at <= $2
    ORDER BY fetched_at DESC
    LIMIT 1;`

	listSymbolsSQL = `SELECT DISTINCT symbol FROM commodity_prices ORDER BY symbol;`

	listPricesBetweenSQL = `SELECT
        id,
        symbol,
        name,
        usd_price,
        fetched_at
    FROM commodity_prices
    WHERE symbol = $1
      AND fetched_at >= $2
      AND fetched_at < $3
    ORDER BY fetched_at;`

	listRecentPricesSQL = `SELECT
        id,
        symbol,
        name,
        usd_price,
        fetched_at
    FROM commodity_prices
    ORDER BY fetched_at DESC
    LIMIT $1;`

	countPricesSQL = `SELECT COUNT(*) FROM commodity_prices;`

	insertFXRateSQL = `INSERT INTO fx_rates (
        currency,
        rate_vs_usd,
        fetched_at
    ) VALUES (
        $1,$2,$3
    );`

	lastSentAtSQL = `SELECT last_sent_at FROM sent_alerts
    WHERE symbol = $1 AND label = $2;`

	recordSentSQL = `INSERT INTO sent_alerts (
        symbol,
        label,
        last_sent_at
    ) VALUES (
        $1,$2,$3
    )
    ON CONFLICT (symbol, label) DO UPDATE
    SET last_sent_at = EXCLUDED.last_sent_at;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// PriceStore defines operations over the append-only price history.
type PriceStore interface {
	InsertPricePoint(ctx context.Context, point PricePoint) error
	InsertPricePoints(ctx context.Context, points []PricePoint) error
	// LatestPrice returns the most recent point for the symbol. ok=false
	// means the symbol has never been recorded; that is not an error.
	LatestPrice(ctx context.Context, symbol string) (PricePoint, bool, error)
	// PriceAtOrBefore returns the newest point with fetched_at <= target.
	// ok=false means history is too short to answer.
	PriceAtOrBefore(ctx context.Context, symbol string, target time.Time) (PricePoint, bool, error)
	ListSymbols(ctx context.Context) ([]string, error)
	ListPricesBetween(ctx context.Context, symbol string, from, to time.Time) ([]PricePoint, error)
	ListRecentPrices(ctx context.Context, limit int) ([]PricePoint, error)
	CountPrices(ctx context.Context) (int64, error)
}

// FXRateStore defines operations for currency rate persistence.
type FXRateStore interface {
	InsertFXRate(ctx context.Context, rate FXRate) error
}

// AlertLedger tracks last alert emission per (symbol, window label).
type AlertLedger interface {
	// CanSend reports whether the cooldown for the key has elapsed. A key
	// with no record always allows sending.
	CanSend(ctx context.Context, symbol, label string, now time.Time, cooldown time.Duration) (bool, error)
	// RecordSent upserts last_sent_at for the key in a single atomic statement.
	RecordSent(ctx context.Context, symbol, label string, sentAt time.Time) error
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to price history, FX rates, and the alert ledger.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// Best effort: the lock is released anyway when the connection closes.
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// InsertPricePoint appends one price observation.
func (s *Store) InsertPricePoint(ctx context.Context, point PricePoint) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	_, execErr := pool.Exec(ctx, insertPricePointSQL,
		point.Symbol,
		point.Name,
		point.USDPrice.String(),
		point.FetchedAt,
	)
	if execErr != nil {
		return fmt.Errorf("insert price point: %w", execErr)
	}
	return nil
}

// InsertPricePoints appends a batch of price observations.
func (s *Store) InsertPricePoints(ctx context.Context, points []PricePoint) error {
	if len(points) == 0 {
		return nil
	}
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, point := range points {
		batch.Queue(insertPricePointSQL,
			point.Symbol,
			point.Name,
			point.USDPrice.String(),
			point.FetchedAt,
		)
	}

	results := pool.SendBatch(ctx, batch)
	defer results.Close()

	for range points {
		if _, execErr := results.Exec(); execErr != nil {
			return fmt.Errorf("insert price points: %w", execErr)
		}
	}
	return nil
}

// LatestPrice returns the most recent observation for a symbol.
func (s *Store) LatestPrice(ctx context.Context, symbol string) (PricePoint, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return PricePoint{}, false, err
	}

	point, scanErr := scanPricePoint(pool.QueryRow(ctx, latestPriceSQL, symbol))
	if errors.Is(scanErr, pgx.ErrNoRows) {
		return PricePoint{}, false, nil
	}
	if scanErr != nil {
		return PricePoint{}, false, fmt.Errorf("latest price: %w", scanErr)
	}
	return point, true, nil
}

// PriceAtOrBefore returns the newest observation at or before target.
func (s *Store) PriceAtOrBefore(ctx context.Context, symbol string, target time.Time) (PricePoint, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return PricePoint{}, false, err
	}

	point, scanErr := scanPricePoint(pool.QueryRow(ctx, priceAtOrBeforeSQL, symbol, target))
	if errors.Is(scanErr, pgx.ErrNoRows) {
		return PricePoint{}, false, nil
	}
	if scanErr != nil {
		return PricePoint{}, false, fmt.Errorf("price at or before: %w", scanErr)
	}
	return point, true, nil
}

// ListSymbols lists the distinct symbols present in the history.
func (s *Store) ListSymbols(ctx context.Context) ([]string, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSymbolsSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list symbols: %w", queryErr)
	}
	defer rows.Close()

	symbols := make([]string, 0)
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, err
		}
		symbols = append(symbols, symbol)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return symbols, nil
}

// ListPricesBetween lists a symbol's observations within a time window.
func (s *Store) ListPricesBetween(ctx context.Context, symbol string, from, to time.Time) ([]PricePoint, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listPricesBetweenSQL, symbol, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list prices between: %w", queryErr)
	}
	defer rows.Close()

	return collectPricePoints(rows, 0)
}

// ListRecentPrices lists the most recent observations across all symbols.
func (s *Store) ListRecentPrices(ctx context.Context, limit int) ([]PricePoint, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentPricesSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent prices: %w", queryErr)
	}
	defer rows.Close()

	return collectPricePoints(rows, limit)
}

// CountPrices counts stored observations.
func (s *Store) CountPrices(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countPricesSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count prices: %w", scanErr)
	}
	return count, nil
}

// InsertFXRate appends one currency rate observation.
func (s *Store) InsertFXRate(ctx context.Context, rate FXRate) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	_, execErr := pool.Exec(ctx, insertFXRateSQL,
		rate.Currency,
		rate.RateVsUSD.String(),
		rate.FetchedAt,
	)
	if execErr != nil {
		return fmt.Errorf("insert fx rate: %w", execErr)
	}
	return nil
}

// CanSend reports whether the cooldown for (symbol, label) has elapsed.
func (s *Store) CanSend(ctx context.Context, symbol, label string, now time.Time, cooldown time.Duration) (bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return false, err
	}

	var lastSentAt time.Time
	scanErr := pool.QueryRow(ctx, lastSentAtSQL, symbol, label).Scan(&lastSentAt)
	if errors.Is(scanErr, pgx.ErrNoRows) {
		return true, nil
	}
	if scanErr != nil {
		return false, fmt.Errorf("last sent at: %w", scanErr)
	}

	return now.Sub(lastSentAt) >= cooldown, nil
}

// RecordSent upserts last_sent_at for (symbol, label).
func (s *Store) RecordSent(ctx context.Context, symbol, label string, sentAt time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	if _, execErr := pool.Exec(ctx, recordSentSQL, symbol, label, sentAt); execErr != nil {
		return fmt.Errorf("record sent: %w", execErr)
	}
	return nil
}

func collectPricePoints(rows pgx.Rows, sizeHint int) ([]PricePoint, error) {
	points := make([]PricePoint, 0, sizeHint)
	for rows.Next() {
		point, scanErr := scanPricePoint(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		points = append(points, point)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return points, nil
}

func scanPricePoint(row pgx.Row) (PricePoint, error) {
	var (
		point    PricePoint
		priceStr string
	)

	if err := row.Scan(
		&point.ID,
		&point.Symbol,
		&point.Name,
		&priceStr,
		&point.FetchedAt,
	); err != nil {
		return PricePoint{}, err
	}

	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return PricePoint{}, fmt.Errorf("parse usd price: %w", err)
	}
	point.USDPrice = price

	return point, nil
}

var _ PriceStore = (*Store)(nil)
var _ FXRateStore = (*Store)(nil)
var _ AlertLedger = (*Store)(nil)
var _ AdvisoryLocker = (*Store)(nil)
