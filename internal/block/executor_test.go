package block

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/natural-conversion/internal/raster"
)

// randomInputBlock builds a reproducible input block with every cover class
// and a spread of cropland fractions.
func randomInputBlock(t *testing.T, axes raster.Axes) *raster.Block {
	t.Helper()
	rng := rand.New(rand.NewPCG(1, 2))
	n := axes.Size()
	initial := make([]int32, n)
	final := make([]int32, n)
	ci := make([]float32, n)
	cf := make([]float32, n)
	for i := 0; i < n; i++ {
		initial[i] = int32(rng.IntN(7)) - 1
		final[i] = int32(rng.IntN(7)) - 1
		ci[i] = rng.Float32()
		cf[i] = rng.Float32()
	}
	b := raster.NewBlock(axes)
	require.NoError(t, b.Add(raster.IntLayer(LayerInitialCover, initial)))
	require.NoError(t, b.Add(raster.IntLayer(LayerFinalCover, final)))
	require.NoError(t, b.Add(raster.FloatLayer(LayerCropInitial, ci)))
	require.NoError(t, b.Add(raster.FloatLayer(LayerCropFinal, cf)))
	return b
}

func TestExecutor_PartitionIndependent(t *testing.T) {
	axes := raster.Axes{X0: -30, Y0: 60, XRes: 0.5, YRes: 0.5, Width: 37, Height: 23}
	src := NewMemorySource(randomInputBlock(t, axes))
	p := testProcessor(t)

	// Reference: the whole grid as one block.
	in, err := src.ReadBlock(context.Background(), axes.Full())
	require.NoError(t, err)
	want, err := p.Process(in)
	require.NoError(t, err)

	for _, size := range [][2]int{{1, 1}, {5, 3}, {16, 16}, {37, 23}, {100, 100}} {
		windows, err := raster.Partition(axes.Width, axes.Height, size[0], size[1])
		require.NoError(t, err)
		for _, workers := range []int{1, 4} {
			e := &Executor{Processor: p, Workers: workers}
			got, summary, err := e.Run(context.Background(), axes, src, windows)
			require.NoError(t, err)
			assert.Equal(t, want.Layers, got.Layers, "blocks %v workers %d", size, workers)
			assert.Equal(t, len(windows), summary.Blocks)
			assert.Equal(t, int64(axes.Size()), summary.Pixels)
		}
	}
}

type failingSource struct {
	inner Source
	fail  raster.Window
}

func (s failingSource) ReadBlock(ctx context.Context, w raster.Window) (Input, error) {
	if w == s.fail {
		return Input{}, errors.New("read failed")
	}
	return s.inner.ReadBlock(ctx, w)
}

func TestExecutor_SourceError(t *testing.T) {
	axes := raster.Axes{X0: 0, Y0: 10, XRes: 1, YRes: 1, Width: 8, Height: 8}
	windows, err := raster.Partition(8, 8, 4, 4)
	require.NoError(t, err)
	src := failingSource{inner: NewMemorySource(randomInputBlock(t, axes)), fail: windows[2]}

	e := &Executor{Processor: testProcessor(t), Workers: 2}
	_, _, err = e.Run(context.Background(), axes, src, windows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read failed")
}

func TestExecutor_Canceled(t *testing.T) {
	axes := raster.Axes{X0: 0, Y0: 10, XRes: 1, YRes: 1, Width: 4, Height: 4}
	windows, err := raster.Partition(4, 4, 2, 2)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := &Executor{Processor: testProcessor(t)}
	_, _, err = e.Run(ctx, axes, NewMemorySource(randomInputBlock(t, axes)), windows)
	assert.ErrorIs(t, err, context.Canceled)
}
