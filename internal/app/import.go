package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Paint3141/precious-metals/internal/storage"
)

const importBatchSize = 500

// Import 从宽格式 CSV 回灌历史价格。
// The CSV carries one time column plus one price column per instrument;
// import.columns maps column headers onto tracked symbols.
func (a *App) Import(ctx context.Context, opts ImportOptions) error {
	if opts.CSVPath == "" {
		return errors.New("--csv must be provided")
	}
	if len(a.Config.Import.Columns) == 0 {
		return errors.New("import.columns 未配置")
	}

	var store *storage.Store
	var closeStore func()
	var err error
	var priceStore storage.PriceStore

	if opts.DryRun {
		a.Logger.Warn().Msg("导入 dry-run：不会写入数据库")
	} else {
		store, closeStore, err = a.openStore(ctx)
		if err != nil {
			return err
		}
		if store == nil {
			return errors.New("database.dsn 未配置，无法导入")
		}
		if closeStore != nil {
			defer closeStore()
		}
		priceStore = store
	}

	file, err := os.Open(opts.CSVPath)
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("read csv header: %w", err)
	}

	timeIdx := -1
	symbolByIdx := make(map[int]string)
	for idx, column := range header {
		if column == a.Config.Import.TimeColumn {
			timeIdx = idx
			continue
		}
		if symbol, ok := a.Config.Import.Columns[column]; ok {
			symbolByIdx[idx] = symbol
		}
	}
	if timeIdx < 0 {
		return fmt.Errorf("csv missing time column %q", a.Config.Import.TimeColumn)
	}
	if len(symbolByIdx) == 0 {
		return errors.New("csv has no mapped price columns")
	}

	imported := 0
	skipped := 0
	batch := make([]storage.PricePoint, 0, importBatchSize)

	flush := func() error {
		if len(batch) == 0 || priceStore == nil {
			batch = batch[:0]
			return nil
		}
		if err := priceStore.InsertPricePoints(ctx, batch); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		record, readErr := reader.Read()
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return fmt.Errorf("read csv row: %w", readErr)
		}

		fetchedAt, parseErr := time.Parse(a.Config.Import.TimeLayout, record[timeIdx])
		if parseErr != nil {
			skipped++
			a.Logger.Warn().Str("value", record[timeIdx]).Msg("跳过无效时间的行")
			continue
		}
		fetchedAt = fetchedAt.UTC()

		if opts.Cutoff != nil && !fetchedAt.Before(opts.Cutoff.UTC()) {
			skipped++
			continue
		}

		for idx, symbol := range symbolByIdx {
			if idx >= len(record) || record[idx] == "" {
				continue
			}
			price, convErr := decimal.NewFromString(record[idx])
			if convErr != nil {
				skipped++
				a.Logger.Warn().Str("symbol", symbol).Str("value", record[idx]).Msg("跳过无效价格")
				continue
			}

			batch = append(batch, storage.PricePoint{
				Symbol:    symbol,
				Name:      a.Config.CommodityName(symbol),
				USDPrice:  price,
				FetchedAt: fetchedAt,
			})
			imported++

			if len(batch) >= importBatchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
	}

	if err := flush(); err != nil {
		return err
	}

	a.Logger.Info().Int("imported", imported).Int("skipped", skipped).Bool("dry_run", opts.DryRun).Msg("导入完成")
	return nil
}
