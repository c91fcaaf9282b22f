// Package tiles enumerates the global tile/year pairs that independent tile
// jobs process. The enumeration is the only coordination between jobs, so the
// order must never depend on anything but the planner's configuration.
package tiles

import (
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
)

// ErrIndexOutOfRange is returned when a job index names no tile.
var ErrIndexOutOfRange = errors.New("tiles: index out of range")

// Bounds is a bounding box in degrees.
type Bounds struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

// Tile is one unit of tile-level work.
type Tile struct {
	Index  int    `json:"index"`
	Year   int    `json:"year"`
	Bounds Bounds `json:"bounds"`
}

// Name identifies the tile by year and north-west corner, e.g. "2015_10W_20N".
func (t Tile) Name() string {
	return fmt.Sprintf("%d_%s_%s", t.Year, XCoordString(t.Bounds.West), YCoordString(t.Bounds.North))
}

// Planner enumerates tiles year by year, then west to east, then north to south.
type Planner struct {
	Years      []int
	TileWidth  int // degrees
	TileHeight int // degrees
	MinX       int
	MaxX       int
	MinY       int
	MaxY       int
}

// DefaultPlanner covers the globe in 10-degree tiles for the cropland years.
func DefaultPlanner() Planner {
	return Planner{
		Years:      []int{2003, 2015},
		TileWidth:  10,
		TileHeight: 10,
		MinX:       -180,
		MaxX:       180,
		MinY:       -90,
		MaxY:       90,
	}
}

// Validate checks that the planner describes a non-empty tiling.
func (p Planner) Validate() error {
	if len(p.Years) == 0 {
		return eris.New("tiles: no years configured")
	}
	if p.TileWidth <= 0 || p.TileHeight <= 0 {
		return eris.Errorf("tiles: tile size must be positive, got %dx%d", p.TileWidth, p.TileHeight)
	}
	if p.MaxX <= p.MinX || p.MaxY <= p.MinY {
		return eris.Errorf("tiles: empty extent x [%d, %d) y (%d, %d]", p.MinX, p.MaxX, p.MinY, p.MaxY)
	}
	return nil
}

func (p Planner) columns() int { return ceilDiv(p.MaxX-p.MinX, p.TileWidth) }
func (p Planner) rows() int    { return ceilDiv(p.MaxY-p.MinY, p.TileHeight) }

// PerYear returns the number of tiles for one year.
func (p Planner) PerYear() int { return p.columns() * p.rows() }

// Count returns the total number of tile/year pairs.
func (p Planner) Count() int { return len(p.Years) * p.PerYear() }

// Plan returns the index-th tile of the enumeration.
func (p Planner) Plan(index int) (Tile, error) {
	if err := p.Validate(); err != nil {
		return Tile{}, err
	}
	if index < 0 || index >= p.Count() {
		return Tile{}, eris.Wrapf(ErrIndexOutOfRange, "index %d, %d tiles", index, p.Count())
	}
	perYear := p.PerYear()
	year := p.Years[index/perYear]
	rem := index % perYear
	col, row := rem/p.rows(), rem%p.rows()

	west := p.MinX + col*p.TileWidth
	north := p.MaxY - row*p.TileHeight
	return Tile{
		Index: index,
		Year:  year,
		Bounds: Bounds{
			West:  float64(west),
			South: float64(north - p.TileHeight),
			East:  float64(west + p.TileWidth),
			North: float64(north),
		},
	}, nil
}

// All returns every tile in enumeration order.
func (p Planner) All() ([]Tile, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	out := make([]Tile, 0, p.Count())
	for i := 0; i < p.Count(); i++ {
		t, err := p.Plan(i)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// XCoordString formats a longitude for file names: -10 -> "10W", 20 -> "20E".
func XCoordString(x float64) string {
	if x < 0 {
		return fmt.Sprintf("%gW", -x)
	}
	return fmt.Sprintf("%gE", x)
}

// YCoordString formats a latitude for file names: -10 -> "10S", 20 -> "20N".
func YCoordString(y float64) string {
	if y < 0 {
		return fmt.Sprintf("%gS", -y)
	}
	return fmt.Sprintf("%gN", y)
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
