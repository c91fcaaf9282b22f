package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/natural-conversion/internal/artifact"
	"github.com/sells-group/natural-conversion/internal/block"
	"github.com/sells-group/natural-conversion/internal/classify"
	"github.com/sells-group/natural-conversion/internal/ledger"
	"github.com/sells-group/natural-conversion/internal/raster"
	"github.com/sells-group/natural-conversion/internal/tiles"
	"github.com/sells-group/natural-conversion/internal/transition"
)

// testAxes covers 20W-20E, 20S-20N at one degree.
func testAxes() raster.Axes {
	return raster.Axes{X0: -20, Y0: 20, XRes: 1, YRes: 1, Width: 40, Height: 40}
}

func writeGrid(t *testing.T, path string, axes raster.Axes, l raster.Layer) {
	t.Helper()
	b := raster.NewBlock(axes)
	require.NoError(t, b.Add(l))
	var buf bytes.Buffer
	require.NoError(t, raster.Encode(&buf, b))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func fillInts(n int, v int32) []int32 {
	out := make([]int32, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func fillFloats(n int, v float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// writeInputs lays out 1992 and 2015 grids where every pixel turns from
// natural cover (1) to class 3 with no cropland.
func writeInputs(t *testing.T, dir string) {
	t.Helper()
	axes := testAxes()
	n := axes.Size()
	writeGrid(t, filepath.Join(dir, "lc_1992.ncg"), axes, raster.IntLayer("lc", fillInts(n, 1)))
	writeGrid(t, filepath.Join(dir, "lc_2015.ncg"), axes, raster.IntLayer("lc", fillInts(n, 3)))
	writeGrid(t, filepath.Join(dir, "croplands_1992.ncg"), axes, raster.FloatLayer("crops", fillFloats(n, 0)))
	writeGrid(t, filepath.Join(dir, "croplands_2015.ncg"), axes, raster.FloatLayer("crops", fillFloats(n, 0)))
}

func testLayout(dir string) Layout {
	return Layout{Dir: dir, Cover: "lc_{year}.ncg", Crops: "croplands_{year}.ncg", InitialYear: 1992}
}

func testExecutor(t *testing.T) *block.Executor {
	t.Helper()
	cb, err := transition.NewCodebook([]int32{1003}, []int16{1})
	require.NoError(t, err)
	p, err := block.NewProcessor(cb, nil)
	require.NoError(t, err)
	return &block.Executor{Processor: p, Workers: 2}
}

func testPlanner() tiles.Planner {
	return tiles.Planner{Years: []int{2015}, TileWidth: 10, TileHeight: 10, MinX: -20, MaxX: 20, MinY: -20, MaxY: 20}
}

type memLedger struct {
	mu   sync.Mutex
	runs []ledger.Run
	err  error
}

func (m *memLedger) Migrate(context.Context) error { return nil }

func (m *memLedger) Record(_ context.Context, r *ledger.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.runs = append(m.runs, *r)
	return nil
}

func (m *memLedger) List(context.Context, ledger.Filter) ([]ledger.Run, error) { return m.runs, nil }

func (m *memLedger) Close() error { return nil }

func newJob(t *testing.T, inputDir string) (*Job, *memLedger, string) {
	t.Helper()
	outDir := t.TempDir()
	store, err := artifact.NewFileStore(outDir)
	require.NoError(t, err)
	led := &memLedger{}
	return &Job{
		Planner:     testPlanner(),
		Layout:      testLayout(inputDir),
		Executor:    testExecutor(t),
		BlockWidth:  4,
		BlockHeight: 3,
		Gate:        artifact.Gate{Store: store},
		Ledger:      led,
		Prefix:      "natural_conversion",
	}, led, outDir
}

func TestExpand(t *testing.T) {
	b := &tiles.Bounds{West: -10, South: 10, East: 0, North: 20}
	tests := []struct {
		tmpl string
		vars Vars
		want string
	}{
		{"lc_{year}.ncg", Vars{Year: 2015}, "lc_2015.ncg"},
		{"trans_{initial}-{final}.ncg", Vars{Initial: 1992, Final: 2015}, "trans_1992-2015.ncg"},
		{"Croplands_250m_{year}_{x}_{y}.ncg", Vars{Year: 2003, Bounds: b}, "Croplands_250m_2003_10W_20N.ncg"},
		{"crops_{x}.ncg", Vars{}, "crops_{x}.ncg"},
	}
	for _, tt := range tests {
		t.Run(tt.tmpl, func(t *testing.T) {
			assert.Equal(t, tt.want, Expand(tt.tmpl, tt.vars))
		})
	}
}

func TestLayout_Resolve(t *testing.T) {
	l := testLayout("data")
	p := l.Resolve(1992, 2015, nil)
	assert.Equal(t, filepath.Join("data", "lc_1992.ncg"), p.InitialCover)
	assert.Equal(t, filepath.Join("data", "lc_2015.ncg"), p.FinalCover)
	assert.Empty(t, p.Transition)
	assert.Equal(t, filepath.Join("data", "croplands_1992.ncg"), p.CropInitial)
	assert.Equal(t, filepath.Join("data", "croplands_2015.ncg"), p.CropFinal)

	l.Transition = "trans_{initial}_{final}.ncg"
	p = l.Resolve(1992, 2015, nil)
	assert.Empty(t, p.FinalCover)
	assert.Equal(t, filepath.Join("data", "trans_1992_2015.ncg"), p.Transition)
}

func TestOutputKey(t *testing.T) {
	b := tiles.Bounds{West: -10, South: 10, East: 0, North: 20}
	assert.Equal(t, "natural_conversion/natural_conversion_1992-2015_10W_20N.ncg", OutputKey("natural_conversion", 1992, 2015, b))
	assert.Equal(t, "natural_conversion_1992-2015_10W_20N.ncg", OutputKey("", 1992, 2015, b))
}

func TestLoadInputs_Window(t *testing.T) {
	dir := t.TempDir()
	writeInputs(t, dir)

	b := &tiles.Bounds{West: -10, South: 0, East: 0, North: 10}
	in, err := LoadInputs(context.Background(), testLayout(dir).Resolve(1992, 2015, b), b)
	require.NoError(t, err)

	assert.Equal(t, 10, in.Axes.Width)
	assert.Equal(t, 10, in.Axes.Height)
	assert.InDelta(t, -10, in.Axes.West(), 1e-9)
	assert.InDelta(t, 10, in.Axes.North(), 1e-9)
	for _, name := range []string{block.LayerInitialCover, block.LayerFinalCover, block.LayerCropInitial, block.LayerCropFinal} {
		l, ok := in.Layer(name)
		require.True(t, ok, name)
		assert.Equal(t, 100, l.Len())
	}
}

func TestLoadInputs_GridMismatch(t *testing.T) {
	dir := t.TempDir()
	writeInputs(t, dir)
	other := raster.Axes{X0: -20, Y0: 20, XRes: 0.5, YRes: 0.5, Width: 80, Height: 80}
	writeGrid(t, filepath.Join(dir, "croplands_2015.ncg"), other, raster.FloatLayer("crops", fillFloats(other.Size(), 0)))

	_, err := LoadInputs(context.Background(), testLayout(dir).Resolve(1992, 2015, nil), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not on the grid")
}

func TestLoadInputs_WrongDType(t *testing.T) {
	dir := t.TempDir()
	writeInputs(t, dir)
	axes := testAxes()
	writeGrid(t, filepath.Join(dir, "croplands_1992.ncg"), axes, raster.IntLayer("crops", fillInts(axes.Size(), 0)))

	_, err := LoadInputs(context.Background(), testLayout(dir).Resolve(1992, 2015, nil), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be float32")
}

func TestLoadInputs_Missing(t *testing.T) {
	_, err := LoadInputs(context.Background(), testLayout(t.TempDir()).Resolve(1992, 2015, nil), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoadInputs_Cancelled(t *testing.T) {
	dir := t.TempDir()
	writeInputs(t, dir)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := LoadInputs(ctx, testLayout(dir).Resolve(1992, 2015, nil), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestJob_WritesThenSkips(t *testing.T) {
	dir := t.TempDir()
	writeInputs(t, dir)
	job, led, outDir := newJob(t, dir)
	ctx := context.Background()

	// Index 5 is the second column, second row: 10W-0E, 0N-10N.
	res, err := job.Run(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, artifact.Written, res.Outcome)
	assert.Equal(t, "2015_10W_10N", res.Tile.Name())
	assert.Equal(t, "natural_conversion/natural_conversion_1992-2015_10W_10N.ncg", res.Key)
	assert.Equal(t, int64(100), res.Summary.Pixels)
	assert.Equal(t, int64(100), res.Summary.ByClass[classify.Conversion])
	assert.Greater(t, res.Summary.NaturalConversionHa, 0.0)
	assert.InDelta(t, res.Summary.AreaHa, res.Summary.NaturalConversionHa, 1e-3)

	f, err := os.Open(filepath.Join(outDir, filepath.FromSlash(res.Key)))
	require.NoError(t, err)
	defer f.Close()
	out, err := raster.Decode(f)
	require.NoError(t, err)
	assert.InDelta(t, -10, out.Axes.West(), 1e-9)
	assert.InDelta(t, 10, out.Axes.North(), 1e-9)
	classes, err := out.Ints(block.LayerClassification)
	require.NoError(t, err)
	assert.Equal(t, fillInts(100, int32(classify.Conversion)), classes)

	// With the inputs gone, only the gate can make the second run succeed.
	require.NoError(t, os.RemoveAll(dir))
	res, err = job.Run(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, artifact.Skipped, res.Outcome)
	assert.Zero(t, res.Summary.Pixels)

	require.Len(t, led.runs, 2)
	assert.Equal(t, ledger.StatusWritten, led.runs[0].Status)
	assert.Equal(t, int64(100), led.runs[0].Pixels)
	assert.NotEmpty(t, led.runs[0].Footprint)
	assert.Equal(t, ledger.StatusSkipped, led.runs[1].Status)
	assert.Equal(t, 5, led.runs[1].TileIndex)
	assert.Equal(t, 2015, led.runs[1].Year)
}

func TestJob_PrecomputedTransitions(t *testing.T) {
	dir := t.TempDir()
	writeInputs(t, dir)
	axes := testAxes()
	writeGrid(t, filepath.Join(dir, "trans_1992_2015.ncg"), axes, raster.IntLayer("trans", fillInts(axes.Size(), 1003)))
	require.NoError(t, os.Remove(filepath.Join(dir, "lc_2015.ncg")))

	job, _, _ := newJob(t, dir)
	job.Layout.Transition = "trans_{initial}_{final}.ncg"
	res, err := job.Run(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(100), res.Summary.ByClass[classify.Conversion])
}

func TestJob_IndexOutOfRange(t *testing.T) {
	job, led, _ := newJob(t, t.TempDir())
	_, err := job.Run(context.Background(), 16)
	require.Error(t, err)
	assert.True(t, errors.Is(err, tiles.ErrIndexOutOfRange))
	assert.Empty(t, led.runs)
}

func TestJob_FailureIsRecorded(t *testing.T) {
	job, led, outDir := newJob(t, t.TempDir())
	res, err := job.Run(context.Background(), 0)
	require.Error(t, err)
	require.NotNil(t, res)

	require.Len(t, led.runs, 1)
	assert.Equal(t, ledger.StatusFailed, led.runs[0].Status)
	assert.NotEmpty(t, led.runs[0].Error)

	_, statErr := os.Stat(filepath.Join(outDir, filepath.FromSlash(res.Key)))
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestJob_YearNotAfterInitial(t *testing.T) {
	job, led, _ := newJob(t, t.TempDir())
	job.Layout.InitialYear = 2015
	_, err := job.Run(context.Background(), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not after initial year")
	require.Len(t, led.runs, 1)
	assert.Equal(t, ledger.StatusFailed, led.runs[0].Status)
}

func TestJob_LedgerErrorDoesNotFailTile(t *testing.T) {
	dir := t.TempDir()
	writeInputs(t, dir)
	job, led, _ := newJob(t, dir)
	led.err = errors.New("ledger down")

	res, err := job.Run(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, artifact.Written, res.Outcome)
}

func TestExtent_Run(t *testing.T) {
	dir := t.TempDir()
	writeInputs(t, dir)
	e := &Extent{Layout: testLayout(dir), FinalYear: 2015, Executor: testExecutor(t), BlockWidth: 7, BlockHeight: 9}

	var buf bytes.Buffer
	sum, err := e.Run(context.Background(), &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(1600), sum.Pixels)
	assert.Equal(t, 6*5, sum.Blocks)

	out, err := raster.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, testAxes(), out.Axes)
	natural, err := out.Floats(block.LayerNaturalConversion)
	require.NoError(t, err)
	areas, err := out.Floats(block.LayerAreaPixel)
	require.NoError(t, err)
	assert.Equal(t, areas, natural)
	// Rows nearer the equator hold more area.
	assert.Greater(t, areas[20*40], areas[0])
}

func TestExtent_RejectsYears(t *testing.T) {
	e := &Extent{Layout: testLayout(t.TempDir()), FinalYear: 1992, Executor: testExecutor(t), BlockWidth: 8, BlockHeight: 8}
	_, err := e.Run(context.Background(), &bytes.Buffer{})
	require.Error(t, err)
}
