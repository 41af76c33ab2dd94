package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Paint3141/precious-metals/internal/alerting"
	"github.com/Paint3141/precious-metals/internal/config"
	"github.com/Paint3141/precious-metals/internal/fetcher"
	"github.com/Paint3141/precious-metals/internal/scheduler"
	"github.com/Paint3141/precious-metals/internal/service"
	"github.com/Paint3141/precious-metals/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newSources() map[string]fetcher.SpotPriceFetcher {
	sources := map[string]fetcher.SpotPriceFetcher{
		"goldapi": fetcher.NewGoldAPI(fetcher.GoldAPIOptions{
			BaseURL:   a.Config.Fetch.GoldAPI.BaseURL,
			Timeout:   a.Config.Fetch.GoldAPI.RequestTimeout,
			UserAgent: a.Config.Fetch.GoldAPI.UserAgent,
		}, a.Logger),
		"metalprice": fetcher.NewMetalPrice(fetcher.MetalPriceOptions{
			BaseURL: a.Config.Fetch.MetalPrice.BaseURL,
			APIKey:  a.Config.Fetch.MetalPrice.APIKey,
			Timeout: a.Config.Fetch.MetalPrice.RequestTimeout,
		}, a.Logger),
	}

	feeds := make(map[string]fetcher.Feed)
	for _, commodity := range a.Config.Symbols.Commodities {
		if commodity.Source == "chainlink" {
			feeds[commodity.Symbol] = fetcher.Feed{
				Address:  commodity.Feed,
				Decimals: commodity.FeedDecimals,
			}
		}
	}
	if len(feeds) > 0 {
		sources["chainlink"] = fetcher.NewChainlink(fetcher.ChainlinkOptions{
			RPCURL:  a.Config.Fetch.Ethereum.RPCURL,
			Timeout: a.Config.Fetch.Ethereum.RequestTimeout,
			Feeds:   feeds,
		}, a.Logger)
	}

	return sources
}

func (a *App) newFXFetcher() fetcher.FXRateFetcher {
	if a.Config.Fetch.ExchangeRate.APIKey == "" {
		return nil
	}
	return fetcher.NewExchangeRate(fetcher.ExchangeRateOptions{
		BaseURL: a.Config.Fetch.ExchangeRate.BaseURL,
		APIKey:  a.Config.Fetch.ExchangeRate.APIKey,
		Timeout: a.Config.Fetch.ExchangeRate.RequestTimeout,
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// Run executes the long-running watch service: each tick ingests fresh
// prices, then evaluates movements and dispatches alerts.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database.dsn not configured; cannot run")
	}
	if closeStore != nil {
		defer closeStore()
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	ingestor := service.NewIngestor(a.Config, a.newSources(), a.newFXFetcher(), store, store, a.Logger)
	checker := service.NewChecker(a.Config, store, store, a.newNotifier(), a.Logger)

	a.Logger.Info().Msg("starting watch service")
	err = sched.Run(ctx, func(ctx context.Context, bucket time.Time) error {
		if err := ingestor.RunTask(ctx, service.TaskAll, bucket); err != nil {
			return err
		}
		if !a.Config.Alerting.Enabled {
			return nil
		}
		return checker.Run(ctx, time.Now().UTC())
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("watch service terminated with error")
		return err
	}

	a.Logger.Info().Msg("watch service stopped")
	return nil
}

// ExportOptions hold parameters for exporting price history.
type ExportOptions struct {
	Symbol    string
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// IngestOptions configure a one-shot ingestion run.
type IngestOptions struct {
	Task string
}

// ImportOptions configure the CSV history import.
type ImportOptions struct {
	CSVPath string
	Cutoff  *time.Time
	DryRun  bool
}
