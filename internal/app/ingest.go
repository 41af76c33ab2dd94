package app

import (
	"context"
	"errors"
	"time"

	"github.com/Paint3141/precious-metals/internal/service"
)

// Ingest performs one fetch-and-store run for the named task.
func (a *App) Ingest(ctx context.Context, opts IngestOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database.dsn 未配置，无法采集")
	}
	if closeStore != nil {
		defer closeStore()
	}

	ingestor := service.NewIngestor(a.Config, a.newSources(), a.newFXFetcher(), store, store, a.Logger)
	return ingestor.RunTask(ctx, opts.Task, time.Now().UTC())
}
