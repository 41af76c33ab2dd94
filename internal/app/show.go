package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"
)

// Show prints recent price observations.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show prices")
	}
	if closeStore != nil {
		defer closeStore()
	}

	points, err := store.ListRecentPrices(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(points) == 0 {
		fmt.Fprintln(os.Stdout, "no prices found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tSymbol\tName\tUSD Price")

	for _, point := range points {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\n",
			point.FetchedAt.UTC().Format(time.RFC3339),
			point.Symbol,
			point.Name,
			formatDecimal(point.USDPrice, 2),
		)
	}

	writer.Flush()
	return nil
}
