package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Paint3141/precious-metals/internal/alerting"
	"github.com/Paint3141/precious-metals/internal/config"
	"github.com/Paint3141/precious-metals/internal/detector"
	"github.com/Paint3141/precious-metals/internal/storage"
)

// Checker evaluates the recorded price history for significant movements
// and dispatches deduplicated alerts. Each Run is a complete, stateless
// invocation; all shared state lives in the price store and alert ledger.
type Checker struct {
	calc        *detector.Calculator
	ledger      storage.AlertLedger
	notifier    alerting.Notifier
	logger      zerolog.Logger
	commodities []config.CommodityConfig
	windows     []detector.Window
	locker      storage.AdvisoryLocker
	lockKey     int64
}

// NewChecker constructs the movement checker.
func NewChecker(cfg *config.Config, prices storage.PriceStore, ledger storage.AlertLedger, notifier alerting.Notifier, logger zerolog.Logger) *Checker {
	windows := make([]detector.Window, 0, len(cfg.Alerting.Windows))
	for _, w := range cfg.Alerting.Windows {
		windows = append(windows, detector.Window{
			Label:        w.Label,
			Period:       w.Period,
			ThresholdPct: decimal.NewFromFloat(w.ThresholdPct),
			Cooldown:     w.Cooldown,
		})
	}

	var locker storage.AdvisoryLocker
	if l, ok := prices.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Checker{
		calc:        detector.NewCalculator(prices, logger),
		ledger:      ledger,
		notifier:    notifier,
		logger:      logger.With().Str("component", "checker").Logger(),
		commodities: cfg.Symbols.Commodities,
		windows:     windows,
		locker:      locker,
		lockKey:     cfg.Scheduler.AdvisoryLockKey,
	}
}

// Run 对每个 symbol × window 执行一次变动评估。
// Evaluation order is fixed: configured commodity order crossed with
// configured window order. Store or ledger failures abort the invocation;
// undetermined changes and active cooldowns are skipped silently.
func (c *Checker) Run(ctx context.Context, now time.Time) error {
	unlock, proceed, err := c.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		c.logger.Debug().Msg("skip check because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	emitted := 0
	suppressed := 0

	for _, commodity := range c.commodities {
		for _, window := range c.windows {
			change, ok, err := c.calc.ChangeFor(ctx, commodity.Symbol, window, now)
			if err != nil {
				return fmt.Errorf("compute change for %s/%s: %w", commodity.Symbol, window.Label, err)
			}
			if !ok {
				continue
			}

			if !detector.Breached(change.PctChange, window) {
				continue
			}

			allowed, err := c.ledger.CanSend(ctx, commodity.Symbol, window.Label, now, window.Cooldown)
			if err != nil {
				return fmt.Errorf("check cooldown for %s/%s: %w", commodity.Symbol, window.Label, err)
			}
			if !allowed {
				suppressed++
				c.logger.Debug().Str("symbol", commodity.Symbol).Str("window", window.Label).Msg("冷却期内, 跳过告警")
				continue
			}

			if c.notifier == nil {
				c.logger.Warn().Str("symbol", commodity.Symbol).Str("window", window.Label).Msg("未配置告警通道, 无法发送")
				continue
			}

			note := alerting.Notification{
				Symbol:       commodity.Symbol,
				Name:         displayName(commodity),
				WindowLabel:  window.Label,
				Period:       window.Period,
				PctChange:    change.PctChange,
				ThresholdPct: window.ThresholdPct,
				OldPrice:     change.Baseline.USDPrice,
				NewPrice:     change.Current.USDPrice,
				Direction:    change.Direction(),
				At:           now,
			}

			if err := c.notifier.Notify(ctx, note); err != nil {
				// The ledger stays unadvanced so the next invocation retries.
				c.logger.Error().Err(err).Str("symbol", commodity.Symbol).Str("window", window.Label).Msg("failed to dispatch alert")
				continue
			}

			if err := c.ledger.RecordSent(ctx, commodity.Symbol, window.Label, now); err != nil {
				return fmt.Errorf("record sent for %s/%s: %w", commodity.Symbol, window.Label, err)
			}

			emitted++
			c.logger.Info().Str("symbol", commodity.Symbol).
				Str("window", window.Label).
				Str("pct_change", change.PctChange.String()).
				Msg("alert emitted")
		}
	}

	c.logger.Info().Int("emitted", emitted).Int("suppressed", suppressed).Msg("check complete")
	return nil
}

func (c *Checker) acquireLock(ctx context.Context) (func(), bool, error) {
	if c.lockKey == 0 || c.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := c.locker.TryAdvisoryLock(ctx, c.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}

func displayName(commodity config.CommodityConfig) string {
	if commodity.Name != "" {
		return commodity.Name
	}
	return commodity.Symbol
}
