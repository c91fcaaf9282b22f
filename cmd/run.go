package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/natural-conversion/internal/block"
	"github.com/sells-group/natural-conversion/internal/classify"
	"github.com/sells-group/natural-conversion/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process the full input extent into one local grid file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("run"); err != nil {
			return err
		}
		out, _ := cmd.Flags().GetString("out")

		exec, err := newExecutor(cfg)
		if err != nil {
			return err
		}
		extent := &pipeline.Extent{
			Layout:      inputLayout(cfg),
			FinalYear:   cfg.Inputs.FinalYear,
			Executor:    exec,
			BlockWidth:  cfg.Grid.BlockWidth,
			BlockHeight: cfg.Grid.BlockHeight,
		}

		if dir := filepath.Dir(out); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return eris.Wrapf(err, "create %s", dir)
			}
		}
		tmp := out + ".tmp"
		f, err := os.Create(tmp)
		if err != nil {
			return eris.Wrapf(err, "create %s", tmp)
		}
		sum, err := extent.Run(ctx, f)
		if cerr := f.Close(); err == nil && cerr != nil {
			err = eris.Wrapf(cerr, "close %s", tmp)
		}
		if err != nil {
			_ = os.Remove(tmp)
			return err
		}
		if err := os.Rename(tmp, out); err != nil {
			return eris.Wrapf(err, "rename %s", tmp)
		}

		fmt.Printf("wrote %s\n", out)
		formatSummary(os.Stdout, sum)
		return nil
	},
}

func init() {
	runCmd.Flags().String("out", "natural_conversion.ncg", "output grid file")
	rootCmd.AddCommand(runCmd)
}

// formatSummary writes per-class pixel counts and area totals to w.
func formatSummary(w io.Writer, s block.Summary) {
	_, _ = fmt.Fprintf(w, "blocks: %d  pixels: %d\n", s.Blocks, s.Pixels)
	for c, n := range s.ByClass {
		_, _ = fmt.Fprintf(w, "  class %d: %d\n", c, n)
	}
	_, _ = fmt.Fprintf(w, "area: %.1f ha\n", s.AreaHa)
	_, _ = fmt.Fprintf(w, "natural conversion: %.1f ha (classes %d-%d)\n",
		s.NaturalConversionHa, classify.Conversion, classify.CropGainNatural)
}
