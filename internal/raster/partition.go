package raster

import (
	"sync"

	"github.com/rotisserie/eris"
)

// Partition splits a width x height grid into blocks of at most blockWidth x
// blockHeight pixels, row-major from the north-west corner.
func Partition(width, height, blockWidth, blockHeight int) ([]Window, error) {
	if blockWidth <= 0 || blockHeight <= 0 {
		return nil, eris.Errorf("raster: block size must be positive, got %dx%d", blockWidth, blockHeight)
	}
	var out []Window
	for row := 0; row < height; row += blockHeight {
		for col := 0; col < width; col += blockWidth {
			out = append(out, Window{
				Col:    col,
				Row:    row,
				Width:  min(blockWidth, width-col),
				Height: min(blockHeight, height-row),
			})
		}
	}
	return out, nil
}

// Mosaic reassembles blocks into one grid by their coordinates. Blocks may be
// pasted in any order and from any goroutine.
type Mosaic struct {
	mu    sync.Mutex
	block *Block
	specs []LayerSpec
}

// NewMosaic allocates the full grid for the given layer layout.
func NewMosaic(axes Axes, specs []LayerSpec) *Mosaic {
	b := NewBlock(axes)
	for _, s := range specs {
		l := Layer{Name: s.Name}
		if s.DType == Float32 {
			l.Floats = make([]float32, axes.Size())
		} else {
			l.Ints = make([]int32, axes.Size())
		}
		b.Layers = append(b.Layers, l)
	}
	return &Mosaic{block: b, specs: specs}
}

// Paste copies part into the mosaic at the position given by its axes.
func (m *Mosaic) Paste(part *Block) error {
	w, err := m.block.Axes.Offset(part.Axes)
	if err != nil {
		return err
	}
	for i, s := range m.specs {
		l, ok := part.Layer(s.Name)
		if !ok || l.DType() != s.DType {
			return eris.Errorf("raster: block is missing %s layer %q", s.DType, s.Name)
		}
		dst := m.block.Layers[i]
		m.mu.Lock()
		if s.DType == Float32 {
			paste(dst.Floats, m.block.Axes.Width, w, l.Floats)
		} else {
			paste(dst.Ints, m.block.Axes.Width, w, l.Ints)
		}
		m.mu.Unlock()
	}
	return nil
}

// Block returns the assembled grid.
func (m *Mosaic) Block() *Block {
	return m.block
}
