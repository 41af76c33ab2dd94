package app

import (
	"context"
	"errors"
	"time"

	"github.com/Paint3141/precious-metals/internal/service"
)

// Check performs one movement evaluation over the recorded history.
// It is safe to invoke at arbitrary frequency: the ledger cooldown
// absorbs over-triggering.
func (a *App) Check(ctx context.Context) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting 未启用")
	}

	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("未配置任何告警通道")
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database.dsn 未配置，无法检查")
	}
	if closeStore != nil {
		defer closeStore()
	}

	checker := service.NewChecker(a.Config, store, store, notifier, a.Logger)
	return checker.Run(ctx, time.Now().UTC())
}
