package raster

import (
	"github.com/rotisserie/eris"
)

// DType names the element type of a layer.
type DType string

// Supported layer element types.
const (
	Int32   DType = "int32"
	Float32 DType = "float32"
)

// Layer is a named row-major array. Exactly one of Ints or Floats is set.
type Layer struct {
	Name   string
	Ints   []int32
	Floats []float32
}

// IntLayer builds an int32 layer.
func IntLayer(name string, data []int32) Layer { return Layer{Name: name, Ints: data} }

// FloatLayer builds a float32 layer.
func FloatLayer(name string, data []float32) Layer { return Layer{Name: name, Floats: data} }

// DType returns the element type of the layer.
func (l Layer) DType() DType {
	if l.Floats != nil {
		return Float32
	}
	return Int32
}

// Len returns the number of pixels in the layer.
func (l Layer) Len() int {
	if l.Floats != nil {
		return len(l.Floats)
	}
	return len(l.Ints)
}

// LayerSpec describes a layer without its data.
type LayerSpec struct {
	Name  string `json:"name"`
	DType DType  `json:"dtype"`
}

// Block is a set of co-registered layers sharing one set of axes. Blocks are
// produced once and never mutated after they are handed on.
type Block struct {
	Axes   Axes
	Layers []Layer
}

// NewBlock returns an empty block on the given axes.
func NewBlock(axes Axes) *Block {
	return &Block{Axes: axes}
}

// Add appends a layer after checking that it covers the block's axes.
func (b *Block) Add(l Layer) error {
	if l.Len() != b.Axes.Size() {
		return eris.Errorf("raster: layer %q has %d pixels, block has %d", l.Name, l.Len(), b.Axes.Size())
	}
	if _, ok := b.Layer(l.Name); ok {
		return eris.Errorf("raster: duplicate layer %q", l.Name)
	}
	b.Layers = append(b.Layers, l)
	return nil
}

// Layer returns the named layer.
func (b *Block) Layer(name string) (Layer, bool) {
	for _, l := range b.Layers {
		if l.Name == name {
			return l, true
		}
	}
	return Layer{}, false
}

// Ints returns the data of a named int32 layer.
func (b *Block) Ints(name string) ([]int32, error) {
	l, ok := b.Layer(name)
	if !ok {
		return nil, eris.Errorf("raster: no layer %q", name)
	}
	if l.DType() != Int32 {
		return nil, eris.Errorf("raster: layer %q is %s, want int32", name, l.DType())
	}
	return l.Ints, nil
}

// Floats returns the data of a named float32 layer.
func (b *Block) Floats(name string) ([]float32, error) {
	l, ok := b.Layer(name)
	if !ok {
		return nil, eris.Errorf("raster: no layer %q", name)
	}
	if l.DType() != Float32 {
		return nil, eris.Errorf("raster: layer %q is %s, want float32", name, l.DType())
	}
	return l.Floats, nil
}

// Specs lists the block's layers without data.
func (b *Block) Specs() []LayerSpec {
	out := make([]LayerSpec, len(b.Layers))
	for i, l := range b.Layers {
		out[i] = LayerSpec{Name: l.Name, DType: l.DType()}
	}
	return out
}

// Window returns a copy of the pixels of w as a new block.
func (b *Block) Window(w Window) (*Block, error) {
	if !b.Axes.Contains(w) {
		return nil, eris.Errorf("raster: window %+v outside %dx%d block", w, b.Axes.Width, b.Axes.Height)
	}
	out := NewBlock(b.Axes.Sub(w))
	for _, l := range b.Layers {
		sub := Layer{Name: l.Name}
		if l.DType() == Float32 {
			sub.Floats = crop(l.Floats, b.Axes.Width, w)
		} else {
			sub.Ints = crop(l.Ints, b.Axes.Width, w)
		}
		out.Layers = append(out.Layers, sub)
	}
	return out, nil
}

func crop[T any](src []T, width int, w Window) []T {
	out := make([]T, 0, w.Size())
	for r := w.Row; r < w.Row+w.Height; r++ {
		start := r*width + w.Col
		out = append(out, src[start:start+w.Width]...)
	}
	return out
}

func paste[T any](dst []T, width int, w Window, src []T) {
	for r := 0; r < w.Height; r++ {
		start := (w.Row+r)*width + w.Col
		copy(dst[start:start+w.Width], src[r*w.Width:(r+1)*w.Width])
	}
}
