package block

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/natural-conversion/internal/area"
	"github.com/sells-group/natural-conversion/internal/classify"
	"github.com/sells-group/natural-conversion/internal/raster"
	"github.com/sells-group/natural-conversion/internal/transition"
)

func testCodebook(t *testing.T) *transition.Codebook {
	t.Helper()
	cb, err := transition.NewCodebook([]int32{1005}, []int16{1})
	require.NoError(t, err)
	return cb
}

func testProcessor(t *testing.T) *Processor {
	t.Helper()
	p, err := NewProcessor(testCodebook(t), nil)
	require.NoError(t, err)
	return p
}

// scenarioInput is the 2x2 example: natural->other with cropland gain in the
// north-west pixel, unflagged cropland gain on natural land in the south-east.
func scenarioInput() Input {
	return Input{
		Axes:         raster.Axes{X0: 20, Y0: 1, XRes: 1, YRes: 1, Width: 2, Height: 2},
		InitialCover: []int32{1, 1, 2, 1},
		FinalCover:   []int32{5, 1, 1, 1},
		CropInitial:  []float32{0, 0, 0, 0},
		CropFinal:    []float32{1, 0, 0, 1},
	}
}

func TestProcess_Scenario(t *testing.T) {
	out, err := testProcessor(t).Process(scenarioInput())
	require.NoError(t, err)

	classes, err := out.Ints(LayerClassification)
	require.NoError(t, err)
	assert.Equal(t, []int32{2, 0, 0, 3}, classes)

	areas, err := out.Floats(LayerAreaPixel)
	require.NoError(t, err)
	north := float32(area.CellArea(0.5, 1, 1))
	south := float32(area.CellArea(-0.5, 1, 1))
	assert.Equal(t, []float32{north, north, south, south}, areas)

	natural, err := out.Floats(LayerNaturalConversion)
	require.NoError(t, err)
	assert.Equal(t, []float32{north, 0, 0, south}, natural)

	assert.Equal(t, raster.Axes{X0: 20, Y0: 1, XRes: 1, YRes: 1, Width: 2, Height: 2}, out.Axes)
}

func TestProcess_PrecomputedTransitions(t *testing.T) {
	in := scenarioInput()
	in.Transition = []int32{1005, 1001, 2001, 1001}
	in.FinalCover = nil

	out, err := testProcessor(t).Process(in)
	require.NoError(t, err)
	classes, err := out.Ints(LayerClassification)
	require.NoError(t, err)
	assert.Equal(t, []int32{2, 0, 0, 3}, classes)
}

func TestProcess_NoDataPropagates(t *testing.T) {
	in := scenarioInput()
	in.InitialCover = []int32{0, -1, 2, 1}
	in.FinalCover = []int32{5, 1, 0, 1}
	in.CropFinal = []float32{1, 1, 1, 0}

	out, err := testProcessor(t).Process(in)
	require.NoError(t, err)
	classes, err := out.Ints(LayerClassification)
	require.NoError(t, err)
	// Pixel 2 keeps its forest cover for the crop rule even though its
	// transition is nodata.
	assert.Equal(t, []int32{0, 0, int32(classify.CropGainForest), 0}, classes)
}

func TestProcess_CoverRecode(t *testing.T) {
	recode, err := transition.NewCodebook([]int32{10, 60, 190, 200}, []int16{1, 2, 4, 5})
	require.NoError(t, err)
	transitions, err := transition.NewCodebook([]int32{10200}, []int16{1})
	require.NoError(t, err)
	p, err := NewProcessor(transitions, recode)
	require.NoError(t, err)

	in := Input{
		Axes:         raster.Axes{X0: 0, Y0: 10, XRes: 1, YRes: 1, Width: 4, Height: 1},
		InitialCover: []int32{60, 190, 200, 10},
		FinalCover:   []int32{10, 10, 10, 200},
		CropInitial:  []float32{0, 0, 0, 0},
		CropFinal:    []float32{1, 1, 1, 0},
	}
	out, err := p.Process(in)
	require.NoError(t, err)
	classes, err := out.Ints(LayerClassification)
	require.NoError(t, err)
	assert.Equal(t, []int32{4, 5, 6, 1}, classes)
}

func TestProcess_Validation(t *testing.T) {
	p := testProcessor(t)

	in := scenarioInput()
	in.CropFinal = []float32{1.5, 0, 0, 1}
	_, err := p.Process(in)
	assert.Error(t, err)

	in = scenarioInput()
	in.Transition = []int32{1, 2, 3, 4}
	_, err = p.Process(in)
	assert.Error(t, err, "both final cover and transitions set")

	in = scenarioInput()
	in.FinalCover = nil
	_, err = p.Process(in)
	assert.Error(t, err, "neither final cover nor transitions set")

	in = scenarioInput()
	in.CropInitial = []float32{0}
	_, err = p.Process(in)
	assert.Error(t, err)

	in = scenarioInput()
	in.Axes.YRes = 0
	_, err = p.Process(in)
	assert.Error(t, err)
}

func TestNewProcessor_RequiresCodebook(t *testing.T) {
	_, err := NewProcessor(nil, nil)
	assert.Error(t, err)
}

func TestInputFromBlock(t *testing.T) {
	in := scenarioInput()
	b := raster.NewBlock(in.Axes)
	require.NoError(t, b.Add(raster.IntLayer(LayerInitialCover, in.InitialCover)))
	require.NoError(t, b.Add(raster.IntLayer(LayerFinalCover, in.FinalCover)))
	require.NoError(t, b.Add(raster.FloatLayer(LayerCropInitial, in.CropInitial)))
	require.NoError(t, b.Add(raster.FloatLayer(LayerCropFinal, in.CropFinal)))

	got, err := InputFromBlock(b)
	require.NoError(t, err)
	assert.Equal(t, in, got)

	empty := raster.NewBlock(in.Axes)
	_, err = InputFromBlock(empty)
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	out, err := testProcessor(t).Process(scenarioInput())
	require.NoError(t, err)
	s, err := Summarize(out)
	require.NoError(t, err)
	assert.Equal(t, int64(4), s.Pixels)
	assert.Equal(t, int64(2), s.ByClass[0])
	assert.Equal(t, int64(1), s.ByClass[2])
	assert.Equal(t, int64(1), s.ByClass[3])
	assert.InEpsilon(t, 2*area.CellArea(0.5, 1, 1), s.NaturalConversionHa, 1e-6)

	var total Summary
	total.Merge(s)
	total.Merge(s)
	assert.Equal(t, 2, total.Blocks)
	assert.Equal(t, int64(8), total.Pixels)
}
