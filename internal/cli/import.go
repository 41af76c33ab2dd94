package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Paint3141/precious-metals/internal/app"
)

var (
	importCSVPath string
	importCutoff  string
	importDryRun  bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import historical prices from a wide-format CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		if importCSVPath == "" {
			return fmt.Errorf("--csv must be provided")
		}

		opts := app.ImportOptions{
			CSVPath: importCSVPath,
			DryRun:  importDryRun,
		}

		if importCutoff != "" {
			cutoff, err := time.Parse(time.RFC3339, importCutoff)
			if err != nil {
				return fmt.Errorf("invalid --cutoff value: %w", err)
			}
			opts.Cutoff = &cutoff
		}

		return getApp().Import(cmd.Context(), opts)
	},
}

func init() {
	importCmd.Flags().StringVar(&importCSVPath, "csv", "", "Path to the CSV file to import")
	importCmd.Flags().StringVar(&importCutoff, "cutoff", "", "Skip rows at or after this timestamp (RFC3339)")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Parse without writing to storage")
}
