package block

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/natural-conversion/internal/metrics"
	"github.com/sells-group/natural-conversion/internal/raster"
)

// Source supplies the input layers of one window. It is the only place a
// worker may block.
type Source interface {
	ReadBlock(ctx context.Context, w raster.Window) (Input, error)
}

// MemorySource serves windows of an input block already held in memory.
type MemorySource struct {
	block *raster.Block
}

// NewMemorySource wraps a block whose layers use the input layer names.
func NewMemorySource(b *raster.Block) *MemorySource {
	return &MemorySource{block: b}
}

// ReadBlock implements Source.
func (s *MemorySource) ReadBlock(_ context.Context, w raster.Window) (Input, error) {
	sub, err := s.block.Window(w)
	if err != nil {
		return Input{}, err
	}
	return InputFromBlock(sub)
}

// Executor runs a Processor over many windows with a bounded worker pool.
type Executor struct {
	Processor *Processor
	Workers   int // default GOMAXPROCS
}

// Run processes every window of the grid described by axes and reassembles the
// outputs into one block. Windows complete in any order; placement depends
// only on each window's position.
func (e *Executor) Run(ctx context.Context, axes raster.Axes, src Source, windows []raster.Window) (*raster.Block, Summary, error) {
	workers := e.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	log := zap.L().With(
		zap.String("component", "block.executor"),
		zap.Int("blocks", len(windows)),
		zap.Int("workers", workers),
	)
	log.Debug("processing blocks")

	mosaic := raster.NewMosaic(axes, OutputSpecs)
	var (
		mu    sync.Mutex
		total Summary
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, w := range windows {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			start := time.Now()

			in, err := src.ReadBlock(gCtx, w)
			if err != nil {
				return eris.Wrapf(err, "block: read window %+v", w)
			}
			out, err := e.Processor.Process(in)
			if err != nil {
				return eris.Wrapf(err, "block: process window %+v", w)
			}
			if err := mosaic.Paste(out); err != nil {
				return eris.Wrapf(err, "block: place window %+v", w)
			}
			s, err := Summarize(out)
			if err != nil {
				return err
			}

			mu.Lock()
			total.Merge(s)
			mu.Unlock()

			metrics.BlocksProcessed.Inc()
			metrics.ObserveClasses(s.ByClass[:])
			metrics.NaturalConversionHectares.Add(s.NaturalConversionHa)
			metrics.BlockSeconds.Observe(time.Since(start).Seconds())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, Summary{}, err
	}

	log.Debug("blocks processed",
		zap.Int64("pixels", total.Pixels),
		zap.Float64("natural_conversion_ha", total.NaturalConversionHa),
	)
	return mosaic.Block(), total, nil
}
