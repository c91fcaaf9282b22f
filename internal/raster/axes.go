// Package raster holds the in-memory grid model shared by the engine: axes of
// a regular latitude/longitude grid, named layers, spatial blocks, the
// partitioner that splits an extent into blocks and the mosaic that
// reassembles them.
package raster

import (
	"math"

	"github.com/rotisserie/eris"
)

// alignTol is the fraction of a pixel within which two grids count as aligned.
const alignTol = 1e-6

// Axes describes a north-up window of a regular parent grid. X0/Y0 are the west
// and north edges of the parent grid in degrees and pixels are XRes wide and
// YRes tall. Col/Row place the window inside the parent. Coordinates are always
// derived from the parent origin and integer offsets, so a pixel gets the same
// latitude whichever window it is read through.
type Axes struct {
	X0     float64 `json:"x0"`
	Y0     float64 `json:"y0"`
	XRes   float64 `json:"x_res"`
	YRes   float64 `json:"y_res"`
	Col    int     `json:"col,omitempty"`
	Row    int     `json:"row,omitempty"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
}

// Window is a pixel rectangle within a grid.
type Window struct {
	Col    int `json:"col"`
	Row    int `json:"row"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Size returns the number of pixels in the window.
func (w Window) Size() int { return w.Width * w.Height }

// Validate checks that the axes describe a usable grid.
func (a Axes) Validate() error {
	if a.XRes <= 0 || a.YRes <= 0 {
		return eris.Errorf("raster: resolution must be positive (x %v, y %v)", a.XRes, a.YRes)
	}
	if a.Width < 0 || a.Height < 0 {
		return eris.Errorf("raster: negative grid size %dx%d", a.Width, a.Height)
	}
	if a.North() > 90+alignTol || a.South() < -90-alignTol {
		return eris.Errorf("raster: grid spans latitudes outside [-90, 90]")
	}
	return nil
}

// Size returns the number of pixels in the grid.
func (a Axes) Size() int { return a.Width * a.Height }

// West returns the west edge of the window.
func (a Axes) West() float64 { return a.X0 + float64(a.Col)*a.XRes }

// North returns the north edge of the window.
func (a Axes) North() float64 { return a.Y0 - float64(a.Row)*a.YRes }

// East returns the east edge of the window.
func (a Axes) East() float64 { return a.X0 + float64(a.Col+a.Width)*a.XRes }

// South returns the south edge of the window.
func (a Axes) South() float64 { return a.Y0 - float64(a.Row+a.Height)*a.YRes }

// Lat returns the latitude of the centre of row.
func (a Axes) Lat(row int) float64 { return a.Y0 - (float64(a.Row+row)+0.5)*a.YRes }

// Lon returns the longitude of the centre of col.
func (a Axes) Lon(col int) float64 { return a.X0 + (float64(a.Col+col)+0.5)*a.XRes }

// Latitudes returns the centre latitude of every row, north to south.
func (a Axes) Latitudes() []float64 {
	out := make([]float64, a.Height)
	for r := range out {
		out[r] = a.Lat(r)
	}
	return out
}

// Full returns the window covering the whole grid.
func (a Axes) Full() Window { return Window{Width: a.Width, Height: a.Height} }

// Sub returns the axes of a window of the grid.
func (a Axes) Sub(w Window) Axes {
	a.Col += w.Col
	a.Row += w.Row
	a.Width = w.Width
	a.Height = w.Height
	return a
}

// Contains reports whether w lies entirely inside the grid.
func (a Axes) Contains(w Window) bool {
	return w.Col >= 0 && w.Row >= 0 && w.Width >= 0 && w.Height >= 0 &&
		w.Col+w.Width <= a.Width && w.Row+w.Height <= a.Height
}

// SameGrid reports whether b covers exactly the pixels of a.
func (a Axes) SameGrid(b Axes) bool {
	if a.Width != b.Width || a.Height != b.Height || !a.Aligned(b) {
		return false
	}
	w, err := a.Offset(b)
	return err == nil && w.Col == 0 && w.Row == 0
}

// Aligned reports whether b shares a's resolution and its pixel edges fall on
// a's pixel edges.
func (a Axes) Aligned(b Axes) bool {
	if !near(a.XRes, b.XRes, a.XRes) || !near(a.YRes, b.YRes, a.YRes) {
		return false
	}
	dx := (b.X0 - a.X0) / a.XRes
	dy := (a.Y0 - b.Y0) / a.YRes
	return math.Abs(dx-math.Round(dx)) < alignTol && math.Abs(dy-math.Round(dy)) < alignTol
}

// Offset returns the window that b occupies within a. b must be aligned with a.
func (a Axes) Offset(b Axes) (Window, error) {
	if !a.Aligned(b) {
		return Window{}, eris.New("raster: grids are not aligned")
	}
	w := Window{
		Col:    int(math.Round((b.X0-a.X0)/a.XRes)) + b.Col - a.Col,
		Row:    int(math.Round((a.Y0-b.Y0)/a.YRes)) + b.Row - a.Row,
		Width:  b.Width,
		Height: b.Height,
	}
	if !a.Contains(w) {
		return Window{}, eris.Errorf("raster: window %+v outside %dx%d grid", w, a.Width, a.Height)
	}
	return w, nil
}

// WindowFor returns the pixels whose centres fall inside the bounding box,
// clipped to the grid. An empty intersection is an error.
func (a Axes) WindowFor(west, south, east, north float64) (Window, error) {
	x0, y0 := a.West(), a.North()
	c0 := int(math.Ceil((west-x0)/a.XRes - 0.5 - alignTol))
	c1 := int(math.Ceil((east-x0)/a.XRes - 0.5 - alignTol))
	r0 := int(math.Ceil((y0-north)/a.YRes - 0.5 - alignTol))
	r1 := int(math.Ceil((y0-south)/a.YRes - 0.5 - alignTol))
	c0, c1 = clamp(c0, 0, a.Width), clamp(c1, 0, a.Width)
	r0, r1 = clamp(r0, 0, a.Height), clamp(r1, 0, a.Height)
	if c1 <= c0 || r1 <= r0 {
		return Window{}, eris.Errorf("raster: bounds (%v, %v, %v, %v) do not intersect the grid", west, south, east, north)
	}
	return Window{Col: c0, Row: r0, Width: c1 - c0, Height: r1 - r0}, nil
}

func near(a, b, scale float64) bool {
	return math.Abs(a-b) <= alignTol*scale
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
