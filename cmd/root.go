package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/natural-conversion/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "natconv",
	Short: "Natural-conversion classification engine",
	Long:  "Classifies land-cover change between two years, measures the natural area converted to agriculture in hectares, and runs it tile by tile as an idempotent job array.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
