package block

import (
	"github.com/sells-group/natural-conversion/internal/classify"
	"github.com/sells-group/natural-conversion/internal/raster"
)

// Summary aggregates the output of one or more processed blocks.
type Summary struct {
	Blocks              int
	Pixels              int64
	ByClass             [classify.MaxCode + 1]int64
	AreaHa              float64
	NaturalConversionHa float64
}

// Summarize counts classes and sums areas over a processed block.
func Summarize(b *raster.Block) (Summary, error) {
	classes, err := b.Ints(LayerClassification)
	if err != nil {
		return Summary{}, err
	}
	areas, err := b.Floats(LayerAreaPixel)
	if err != nil {
		return Summary{}, err
	}
	natural, err := b.Floats(LayerNaturalConversion)
	if err != nil {
		return Summary{}, err
	}
	s := Summary{Blocks: 1, Pixels: int64(len(classes))}
	for i, c := range classes {
		if c >= 0 && int(c) < len(s.ByClass) {
			s.ByClass[c]++
		}
		s.AreaHa += float64(areas[i])
		s.NaturalConversionHa += float64(natural[i])
	}
	return s, nil
}

// Merge adds o into s.
func (s *Summary) Merge(o Summary) {
	s.Blocks += o.Blocks
	s.Pixels += o.Pixels
	for i := range s.ByClass {
		s.ByClass[i] += o.ByClass[i]
	}
	s.AreaHa += o.AreaHa
	s.NaturalConversionHa += o.NaturalConversionHa
}
