package cli

import (
	"github.com/spf13/cobra"

	"github.com/Paint3141/precious-metals/internal/app"
)

var (
	ingestTask string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch and store current prices once",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.IngestOptions{
			Task: ingestTask,
		}
		return getApp().Ingest(cmd.Context(), opts)
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestTask, "task", "all", "Ingest task: commodities, platinum, fx, or all")
}
