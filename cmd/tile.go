package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/natural-conversion/internal/artifact"
	"github.com/sells-group/natural-conversion/internal/metrics"
	"github.com/sells-group/natural-conversion/internal/pipeline"
)

// arrayIndexEnv carries the job index when running as an AWS Batch array job.
const arrayIndexEnv = "AWS_BATCH_JOB_ARRAY_INDEX"

var tileCmd = &cobra.Command{
	Use:   "tile",
	Short: "Process one tile of the job array",
	Long:  "Processes the tile selected by --index (or AWS_BATCH_JOB_ARRAY_INDEX). The tile is skipped when its output already exists in the store.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("tile"); err != nil {
			return err
		}
		flagIndex, _ := cmd.Flags().GetInt("index")
		index, err := resolveIndex(flagIndex, cmd.Flags().Changed("index"), os.Getenv(arrayIndexEnv))
		if err != nil {
			return err
		}

		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr); err != nil {
				zap.L().Warn("metrics server stopped", zap.Error(err))
			}
		}()

		job, cleanup, err := newTileJob(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		res, err := job.Run(ctx, index)
		if err != nil {
			return err
		}
		fmt.Printf("%s %s %s\n", res.Tile.Name(), res.Outcome, res.Key)
		return nil
	},
}

func init() {
	tileCmd.Flags().Int("index", 0, "tile index in the job array (default from "+arrayIndexEnv+")")
	rootCmd.AddCommand(tileCmd)
}

// resolveIndex prefers an explicit flag over the job array environment.
func resolveIndex(flagIndex int, flagSet bool, env string) (int, error) {
	if flagSet {
		return flagIndex, nil
	}
	if env == "" {
		return 0, eris.Errorf("tile index required: pass --index or set %s", arrayIndexEnv)
	}
	n, err := strconv.Atoi(env)
	if err != nil {
		return 0, eris.Wrapf(err, "parse %s=%q", arrayIndexEnv, env)
	}
	return n, nil
}

func newTileJob(ctx context.Context) (*pipeline.Job, func(), error) {
	exec, err := newExecutor(cfg)
	if err != nil {
		return nil, nil, err
	}
	store, err := artifact.Open(cfg.Output.Store, artifact.Options{
		Retry:             cfg.Retry,
		RequestsPerSecond: cfg.Output.RequestsPerSecond,
	})
	if err != nil {
		return nil, nil, err
	}
	led, err := initLedger(ctx)
	if err != nil {
		return nil, nil, err
	}
	job := &pipeline.Job{
		Planner:     cfg.Tiles.Planner(),
		Layout:      inputLayout(cfg),
		Executor:    exec,
		BlockWidth:  cfg.Grid.BlockWidth,
		BlockHeight: cfg.Grid.BlockHeight,
		Gate:        artifact.Gate{Store: store},
		Ledger:      led,
		Prefix:      cfg.Output.Prefix,
	}
	return job, func() { _ = led.Close() }, nil
}
