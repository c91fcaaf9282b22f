package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/natural-conversion/internal/artifact"
	"github.com/sells-group/natural-conversion/internal/block"
	"github.com/sells-group/natural-conversion/internal/ledger"
	"github.com/sells-group/natural-conversion/internal/metrics"
	"github.com/sells-group/natural-conversion/internal/raster"
	"github.com/sells-group/natural-conversion/internal/tiles"
)

// OutputKey names the artifact of a tile, e.g.
// "natural_conversion/natural_conversion_1992-2015_10W_20N.ncg".
func OutputKey(prefix string, initial, final int, b tiles.Bounds) string {
	name := fmt.Sprintf("natural_conversion_%d-%d_%s_%s%s",
		initial, final, tiles.XCoordString(b.West), tiles.YCoordString(b.North), raster.FileExt)
	return path.Join(prefix, name)
}

// Compute splits in into blocks and runs them through exec.
func Compute(ctx context.Context, exec *block.Executor, in *raster.Block, blockWidth, blockHeight int) (*raster.Block, block.Summary, error) {
	windows, err := raster.Partition(in.Axes.Width, in.Axes.Height, blockWidth, blockHeight)
	if err != nil {
		return nil, block.Summary{}, err
	}
	return exec.Run(ctx, in.Axes, block.NewMemorySource(in), windows)
}

// Job processes single tiles of a job array.
type Job struct {
	Planner     tiles.Planner
	Layout      Layout
	Executor    *block.Executor
	BlockWidth  int
	BlockHeight int
	Gate        artifact.Gate
	Ledger      ledger.Ledger
	Prefix      string
}

// Result reports what a tile job did. Summary is empty when the tile was
// skipped.
type Result struct {
	Tile     tiles.Tile
	Key      string
	Outcome  artifact.Outcome
	Summary  block.Summary
	Duration time.Duration
}

// Run processes the tile at index. A tile whose artifact already exists is
// skipped without reading any input. Every planned tile is recorded in the
// ledger, failures included.
func (j *Job) Run(ctx context.Context, index int) (*Result, error) {
	tile, err := j.Planner.Plan(index)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: plan tile %d", index)
	}
	initial, final := j.Layout.InitialYear, tile.Year
	res := &Result{Tile: tile, Key: OutputKey(j.Prefix, initial, final, tile.Bounds)}

	log := zap.L().With(
		zap.String("component", "pipeline.job"),
		zap.Int("index", index),
		zap.String("tile", tile.Name()),
		zap.String("key", res.Key),
	)
	log.Info("tile job starting")

	start := time.Now()
	if final <= initial {
		err = eris.Errorf("pipeline: tile year %d is not after initial year %d", final, initial)
	} else {
		res.Outcome, err = j.Gate.Run(ctx, res.Key, func(ctx context.Context) ([]byte, error) {
			return j.produce(ctx, tile, initial, final, &res.Summary)
		})
	}
	res.Duration = time.Since(start)

	j.record(ctx, log, res, err)
	if err != nil {
		metrics.TilesTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
		log.Error("tile job failed", zap.Duration("duration", res.Duration), zap.Error(err))
		return res, err
	}

	metrics.TilesTotal.WithLabelValues(res.Outcome.String()).Inc()
	log.Info("tile job complete",
		zap.String("outcome", res.Outcome.String()),
		zap.Int64("pixels", res.Summary.Pixels),
		zap.Float64("natural_conversion_ha", res.Summary.NaturalConversionHa),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

func (j *Job) produce(ctx context.Context, tile tiles.Tile, initial, final int, sum *block.Summary) ([]byte, error) {
	paths := j.Layout.Resolve(initial, final, &tile.Bounds)
	in, err := LoadInputs(ctx, paths, &tile.Bounds)
	if err != nil {
		return nil, err
	}
	out, s, err := Compute(ctx, j.Executor, in, j.BlockWidth, j.BlockHeight)
	if err != nil {
		return nil, err
	}
	*sum = s

	var buf bytes.Buffer
	if err := raster.Encode(&buf, out); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// record writes the run to the ledger. Ledger failures never fail the tile.
func (j *Job) record(ctx context.Context, log *zap.Logger, res *Result, jobErr error) {
	if j.Ledger == nil {
		return
	}
	run := &ledger.Run{
		TileIndex:           res.Tile.Index,
		Year:                res.Tile.Year,
		Name:                res.Tile.Name(),
		Key:                 res.Key,
		Pixels:              res.Summary.Pixels,
		NaturalConversionHa: res.Summary.NaturalConversionHa,
		DurationMs:          res.Duration.Milliseconds(),
	}
	switch {
	case jobErr != nil:
		run.Status = ledger.StatusFailed
		run.Error = jobErr.Error()
	case res.Outcome == artifact.Skipped:
		run.Status = ledger.StatusSkipped
	default:
		run.Status = ledger.StatusWritten
	}
	if fp, err := res.Tile.EWKB(); err != nil {
		log.Warn("pipeline: encode footprint", zap.Error(err))
	} else {
		run.Footprint = fp
	}
	if err := j.Ledger.Record(ctx, run); err != nil {
		log.Warn("pipeline: failed to record tile run", zap.Error(err))
	}
}

// Extent processes every input pixel in one pass, without tiling or the gate.
type Extent struct {
	Layout      Layout
	FinalYear   int
	Executor    *block.Executor
	BlockWidth  int
	BlockHeight int
}

// Run loads the full inputs, processes them and writes the output grid to w.
func (e *Extent) Run(ctx context.Context, w io.Writer) (block.Summary, error) {
	if e.FinalYear <= e.Layout.InitialYear {
		return block.Summary{}, eris.Errorf("pipeline: final year %d is not after initial year %d", e.FinalYear, e.Layout.InitialYear)
	}
	log := zap.L().With(
		zap.String("component", "pipeline.extent"),
		zap.Int("initial", e.Layout.InitialYear),
		zap.Int("final", e.FinalYear),
	)
	start := time.Now()

	in, err := LoadInputs(ctx, e.Layout.Resolve(e.Layout.InitialYear, e.FinalYear, nil), nil)
	if err != nil {
		return block.Summary{}, err
	}
	out, sum, err := Compute(ctx, e.Executor, in, e.BlockWidth, e.BlockHeight)
	if err != nil {
		return block.Summary{}, err
	}
	if err := raster.Encode(w, out); err != nil {
		return block.Summary{}, err
	}

	log.Info("extent processed",
		zap.Int("blocks", sum.Blocks),
		zap.Int64("pixels", sum.Pixels),
		zap.Float64("area_ha", sum.AreaHa),
		zap.Float64("natural_conversion_ha", sum.NaturalConversionHa),
		zap.Duration("duration", time.Since(start)),
	)
	return sum, nil
}
