// Package block applies the transition codec, the area model and the
// conversion classifier to spatial blocks, and runs them over a worker pool.
package block

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/natural-conversion/internal/area"
	"github.com/sells-group/natural-conversion/internal/classify"
	"github.com/sells-group/natural-conversion/internal/raster"
	"github.com/sells-group/natural-conversion/internal/transition"
)

// Input layer names.
const (
	LayerInitialCover = "lc_initial"
	LayerFinalCover   = "lc_final"
	LayerTransition   = "trans"
	LayerCropInitial  = "crops_initial"
	LayerCropFinal    = "crops_final"
)

// Output layer names.
const (
	LayerClassification    = "transition"
	LayerAreaPixel         = "area_pixel"
	LayerNaturalConversion = "area_natural_conversion"
)

// OutputSpecs is the layer layout of every processed block.
var OutputSpecs = []raster.LayerSpec{
	{Name: LayerClassification, DType: raster.Int32},
	{Name: LayerAreaPixel, DType: raster.Float32},
	{Name: LayerNaturalConversion, DType: raster.Float32},
}

// Input holds the co-registered layers of one block. Exactly one of FinalCover
// and Transition is set.
type Input struct {
	Axes         raster.Axes
	InitialCover []int32
	FinalCover   []int32
	Transition   []int32
	CropInitial  []float32
	CropFinal    []float32
}

// InputFromBlock picks the input layers out of a block by name.
func InputFromBlock(b *raster.Block) (Input, error) {
	in := Input{Axes: b.Axes}
	var err error
	if in.InitialCover, err = b.Ints(LayerInitialCover); err != nil {
		return Input{}, err
	}
	if in.CropInitial, err = b.Floats(LayerCropInitial); err != nil {
		return Input{}, err
	}
	if in.CropFinal, err = b.Floats(LayerCropFinal); err != nil {
		return Input{}, err
	}
	if _, ok := b.Layer(LayerTransition); ok {
		in.Transition, err = b.Ints(LayerTransition)
	} else {
		in.FinalCover, err = b.Ints(LayerFinalCover)
	}
	if err != nil {
		return Input{}, err
	}
	return in, nil
}

func (in Input) validate() error {
	if (in.FinalCover == nil) == (in.Transition == nil) {
		return eris.New("block: exactly one of final cover and transition codes is required")
	}
	n := in.Axes.Size()
	for name, size := range map[string]int{
		LayerInitialCover: len(in.InitialCover),
		LayerCropInitial:  len(in.CropInitial),
		LayerCropFinal:    len(in.CropFinal),
		LayerFinalCover:   len(in.FinalCover) + len(in.Transition),
	} {
		if size != n {
			return eris.Errorf("block: layer %s has %d pixels, axes have %d", name, size, n)
		}
	}
	if err := classify.ValidateFraction(LayerCropInitial, in.CropInitial); err != nil {
		return err
	}
	return classify.ValidateFraction(LayerCropFinal, in.CropFinal)
}

// Processor turns one Input into the classification and area layers. It holds
// only immutable codebooks and may be shared by all workers.
type Processor struct {
	transitions *transition.Codebook
	coverRecode *transition.Codebook
	multiplier  int32
}

// NewProcessor builds a processor. coverRecode is optional; when set, initial
// cover codes are mapped through it before classification.
func NewProcessor(transitions, coverRecode *transition.Codebook) (*Processor, error) {
	if transitions == nil {
		return nil, eris.New("block: transition codebook is required")
	}
	return &Processor{
		transitions: transitions,
		coverRecode: coverRecode,
		multiplier:  transition.Multiplier,
	}, nil
}

// Process classifies every pixel of the block and computes its cell and
// natural-conversion areas. The output shares the input's axes.
func (p *Processor) Process(in Input) (*raster.Block, error) {
	if err := in.Axes.Validate(); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	codes := in.Transition
	if codes == nil {
		var err error
		codes, err = transition.EncodeLayer(in.InitialCover, in.FinalCover, p.multiplier)
		if err != nil {
			return nil, err
		}
	}
	meaning := p.transitions.DecodeLayer(codes)

	cover := in.InitialCover
	if p.coverRecode != nil {
		cover = p.coverRecode.Recode(cover)
	}

	classes, err := classify.ClassifyLayer(meaning, cover, in.CropInitial, in.CropFinal)
	if err != nil {
		return nil, err
	}

	rows := area.CellAreas(in.Axes.Latitudes(), in.Axes.XRes, in.Axes.YRes)
	pixelArea := area.Fill(rows, in.Axes.Width)

	classLayer := make([]int32, len(classes))
	natural := make([]float32, len(classes))
	for i, c := range classes {
		classLayer[i] = int32(c)
		if classify.IsNaturalConversion(c) {
			natural[i] = pixelArea[i]
		}
	}

	out := raster.NewBlock(in.Axes)
	out.Layers = []raster.Layer{
		raster.IntLayer(LayerClassification, classLayer),
		raster.FloatLayer(LayerAreaPixel, pixelArea),
		raster.FloatLayer(LayerNaturalConversion, natural),
	}
	return out, nil
}
