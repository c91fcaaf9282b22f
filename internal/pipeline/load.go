package pipeline

import (
	"context"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/natural-conversion/internal/block"
	"github.com/sells-group/natural-conversion/internal/raster"
	"github.com/sells-group/natural-conversion/internal/tiles"
)

type inputFile struct {
	layer string
	path  string
	dtype raster.DType
}

func (p Paths) files() []inputFile {
	out := []inputFile{{block.LayerInitialCover, p.InitialCover, raster.Int32}}
	if p.Transition != "" {
		out = append(out, inputFile{block.LayerTransition, p.Transition, raster.Int32})
	} else {
		out = append(out, inputFile{block.LayerFinalCover, p.FinalCover, raster.Int32})
	}
	return append(out,
		inputFile{block.LayerCropInitial, p.CropInitial, raster.Float32},
		inputFile{block.LayerCropFinal, p.CropFinal, raster.Float32},
	)
}

// LoadInputs reads the input grids and assembles them into one block using
// the block package's input layer names. With bounds set only the pixels
// whose centres fall inside them are read. All inputs must land on the same
// grid; nothing is resampled.
func LoadInputs(ctx context.Context, p Paths, bounds *tiles.Bounds) (*raster.Block, error) {
	files := p.files()
	layers := make([]*raster.Block, len(files))

	g, gCtx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			b, err := loadLayer(gCtx, f, bounds)
			if err != nil {
				return err
			}
			layers[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := raster.NewBlock(layers[0].Axes)
	for i, l := range layers {
		if !out.Axes.SameGrid(l.Axes) {
			return nil, eris.Errorf("pipeline: %s is not on the grid of %s", files[i].path, files[0].path)
		}
		if err := out.Add(l.Layers[0]); err != nil {
			return nil, err
		}
	}

	zap.L().Debug("inputs loaded",
		zap.String("component", "pipeline.load"),
		zap.Int("width", out.Axes.Width),
		zap.Int("height", out.Axes.Height),
		zap.Float64("west", out.Axes.West()),
		zap.Float64("north", out.Axes.North()),
	)
	return out, nil
}

// loadLayer reads one single-layer grid file and renames its layer.
func loadLayer(ctx context.Context, f inputFile, bounds *tiles.Bounds) (*raster.Block, error) {
	fh, err := os.Open(f.path)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: open %s", f.layer)
	}
	defer fh.Close()

	h, err := raster.ReadHeader(fh)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: %s", f.path)
	}
	if len(h.Layers) != 1 {
		return nil, eris.Errorf("pipeline: %s has %d layers, want 1", f.path, len(h.Layers))
	}
	if h.Layers[0].DType != f.dtype {
		return nil, eris.Errorf("pipeline: %s is %s, %s must be %s", f.path, h.Layers[0].DType, f.layer, f.dtype)
	}

	w := h.Axes.Full()
	if bounds != nil {
		w, err = h.Axes.WindowFor(bounds.West, bounds.South, bounds.East, bounds.North)
		if err != nil {
			return nil, eris.Wrapf(err, "pipeline: %s", f.path)
		}
	}

	if _, err := fh.Seek(0, io.SeekStart); err != nil {
		return nil, eris.Wrapf(err, "pipeline: rewind %s", f.path)
	}
	b, err := raster.ReadWindow(ctxReader{ctx: ctx, r: fh}, w)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: read %s", f.path)
	}
	b.Layers[0].Name = f.layer
	return b, nil
}

// ctxReader stops a long read once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
