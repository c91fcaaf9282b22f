package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/natural-conversion/internal/codebook"
	"github.com/sells-group/natural-conversion/internal/transition"
)

var codebookCmd = &cobra.Command{
	Use:   "codebook",
	Short: "Inspect the configured codebooks",
}

var codebookShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print a codebook as a table or as YAML",
	Long:  "Prints the transition codebook, or the cover recode legend with --which cover-recode. --yaml emits a file that can be used as a codebook source.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		which, _ := cmd.Flags().GetString("which")
		var src codebook.Source
		switch which {
		case "transitions":
			src = cfg.Codebook.Transitions
		case "cover-recode":
			src = cfg.Codebook.CoverRecode
		default:
			return eris.Errorf("unknown codebook %q (transitions, cover-recode)", which)
		}

		cb, err := codebook.Load(src)
		if err != nil {
			return err
		}
		if asYAML, _ := cmd.Flags().GetBool("yaml"); asYAML {
			return codebook.WriteYAML(os.Stdout, which, cb)
		}
		formatCodebook(os.Stdout, cb)
		return nil
	},
}

func init() {
	codebookShowCmd.Flags().String("which", "transitions", "codebook to show (transitions, cover-recode)")
	codebookShowCmd.Flags().Bool("yaml", false, "print YAML instead of a table")

	codebookCmd.AddCommand(codebookShowCmd)
	rootCmd.AddCommand(codebookCmd)
}

// formatCodebook writes the entries of cb to w, splitting transition codes
// into their initial and final classes.
func formatCodebook(out io.Writer, cb *transition.Codebook) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CODE\tINITIAL\tFINAL\tMEANING")
	for _, e := range cb.Entries() {
		initial, final := transition.Split(e.Code, transition.Multiplier)
		_, _ = fmt.Fprintf(w, "%d\t%d\t%d\t%d\n", e.Code, initial, final, e.Meaning)
	}
	_ = w.Flush()
}
