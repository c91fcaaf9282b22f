package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/natural-conversion/internal/ledger"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List recorded tile runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("ledger"); err != nil {
			return err
		}

		led, err := initLedger(ctx)
		if err != nil {
			return err
		}
		defer led.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		year, _ := cmd.Flags().GetInt("year")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := led.List(ctx, ledger.Filter{Status: ledger.Status(status), Year: year, Limit: limit})
		if err != nil {
			return eris.Wrap(err, "status")
		}
		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No tile runs found.")
			return nil
		}
		formatRuns(os.Stdout, runs)
		return nil
	},
}

func init() {
	statusCmd.Flags().String("status", "", "filter by status (written, skipped, failed)")
	statusCmd.Flags().Int("year", 0, "filter by tile year")
	statusCmd.Flags().Int("limit", 50, "max number of runs to display")
	rootCmd.AddCommand(statusCmd)
}

// formatRuns writes a tabular list of tile runs to w.
func formatRuns(out io.Writer, runs []ledger.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "INDEX\tTILE\tSTATUS\tPIXELS\tNATURAL_HA\tDURATION\tFINISHED\tERROR")
	for _, r := range runs {
		errMsg := r.Error
		if len(errMsg) > 60 {
			errMsg = errMsg[:57] + "..."
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%.1f\t%.1fs\t%s\t%s\n",
			r.TileIndex,
			r.Name,
			r.Status,
			r.Pixels,
			r.NaturalConversionHa,
			float64(r.DurationMs)/1000,
			r.FinishedAt.Format("2006-01-02 15:04"),
			errMsg,
		)
	}
	_ = w.Flush()
}
