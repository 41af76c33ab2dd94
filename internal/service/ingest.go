package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Paint3141/precious-metals/internal/config"
	"github.com/Paint3141/precious-metals/internal/fetcher"
	"github.com/Paint3141/precious-metals/internal/storage"
)

// Ingest tasks mirror the upstream split: metalpriceapi is rate limited,
// so its symbols run on a separate task from the rest.
const (
	TaskCommodities = "commodities"
	TaskPlatinum    = "platinum"
	TaskFX          = "fx"
	TaskAll         = "all"
)

// Ingestor fetches upstream prices and appends them to the history.
// A failed fetch for one symbol is logged and skipped; a failed store
// write aborts the run.
type Ingestor struct {
	commodities []config.CommodityConfig
	currencies  []string
	sources     map[string]fetcher.SpotPriceFetcher
	fx          fetcher.FXRateFetcher
	prices      storage.PriceStore
	fxStore     storage.FXRateStore
	logger      zerolog.Logger
}

// NewIngestor constructs the ingestion service. sources is keyed by the
// commodity source name (goldapi, metalprice, chainlink).
func NewIngestor(cfg *config.Config, sources map[string]fetcher.SpotPriceFetcher, fx fetcher.FXRateFetcher, prices storage.PriceStore, fxStore storage.FXRateStore, logger zerolog.Logger) *Ingestor {
	return &Ingestor{
		commodities: cfg.Symbols.Commodities,
		currencies:  cfg.Symbols.Currencies,
		sources:     sources,
		fx:          fx,
		prices:      prices,
		fxStore:     fxStore,
		logger:      logger.With().Str("component", "ingestor").Logger(),
	}
}

// RunTask executes one named ingestion task.
func (i *Ingestor) RunTask(ctx context.Context, task string, now time.Time) error {
	switch task {
	case TaskCommodities:
		return i.ingestCommodities(ctx, now, false)
	case TaskPlatinum:
		return i.ingestCommodities(ctx, now, true)
	case TaskFX:
		return i.ingestFX(ctx, now)
	case TaskAll:
		if err := i.ingestCommodities(ctx, now, false); err != nil {
			return err
		}
		if err := i.ingestCommodities(ctx, now, true); err != nil {
			return err
		}
		return i.ingestFX(ctx, now)
	default:
		return fmt.Errorf("unknown ingest task %q", task)
	}
}

func (i *Ingestor) ingestCommodities(ctx context.Context, now time.Time, metalPriceOnly bool) error {
	saved := 0
	for _, commodity := range i.commodities {
		if (commodity.Source == "metalprice") != metalPriceOnly {
			continue
		}

		source, ok := i.sources[commodity.Source]
		if !ok {
			i.logger.Warn().Str("symbol", commodity.Symbol).Str("source", commodity.Source).Msg("no fetcher for source")
			continue
		}

		price, err := source.FetchSpot(ctx, commodity.Symbol)
		if errors.Is(err, fetcher.ErrSymbolNotSupported) {
			i.logger.Warn().Str("symbol", commodity.Symbol).Msg("symbol not supported by upstream")
			continue
		}
		if err != nil {
			i.logger.Error().Err(err).Str("symbol", commodity.Symbol).Msg("fetch failed")
			continue
		}

		point := storage.PricePoint{
			Symbol:    commodity.Symbol,
			Name:      displayName(commodity),
			USDPrice:  price,
			FetchedAt: now,
		}
		if err := i.prices.InsertPricePoint(ctx, point); err != nil {
			return fmt.Errorf("save price for %s: %w", commodity.Symbol, err)
		}

		saved++
		i.logger.Info().Str("symbol", commodity.Symbol).Str("usd_price", price.String()).Msg("price recorded")
	}

	i.logger.Info().Int("saved", saved).Bool("metalprice_only", metalPriceOnly).Msg("commodity ingest complete")
	return nil
}

func (i *Ingestor) ingestFX(ctx context.Context, now time.Time) error {
	if i.fx == nil {
		i.logger.Warn().Msg("fx fetcher not configured; skipping fx ingest")
		return nil
	}

	rates, err := i.fx.FetchRates(ctx)
	if err != nil {
		i.logger.Error().Err(err).Msg("fetch fx rates failed")
		return nil
	}

	saved := 0
	for _, currency := range i.currencies {
		rate, ok := rates[currency]
		if !ok {
			i.logger.Warn().Str("currency", currency).Msg("currency missing from upstream table")
			continue
		}

		record := storage.FXRate{
			Currency:  currency,
			RateVsUSD: rate,
			FetchedAt: now,
		}
		if err := i.fxStore.InsertFXRate(ctx, record); err != nil {
			return fmt.Errorf("save fx rate for %s: %w", currency, err)
		}
		saved++
	}

	i.logger.Info().Int("saved", saved).Msg("fx ingest complete")
	return nil
}
