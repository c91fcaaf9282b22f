// Package pipeline wires the engine into jobs: it locates and loads the input
// grids for a tile, runs the block executor over them and stores the result
// behind the idempotency gate.
package pipeline

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sells-group/natural-conversion/internal/tiles"
)

// Layout locates input grids. File names are templates; see Expand.
type Layout struct {
	Dir         string
	Cover       string
	Crops       string
	Transition  string // optional precomputed transition codes
	InitialYear int
}

// Vars are the values substituted into a file name template.
type Vars struct {
	Year    int
	Initial int
	Final   int
	Bounds  *tiles.Bounds
}

// Expand replaces {year}, {initial} and {final} in tmpl. When bounds are set,
// {x} and {y} become the tile's north-west corner, e.g. "10W" and "20N", so
// pre-tiled inputs can be addressed directly.
func Expand(tmpl string, v Vars) string {
	pairs := []string{
		"{year}", strconv.Itoa(v.Year),
		"{initial}", strconv.Itoa(v.Initial),
		"{final}", strconv.Itoa(v.Final),
	}
	if v.Bounds != nil {
		pairs = append(pairs,
			"{x}", tiles.XCoordString(v.Bounds.West),
			"{y}", tiles.YCoordString(v.Bounds.North),
		)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// Paths are the resolved input files of one comparison. Exactly one of
// FinalCover and Transition is set.
type Paths struct {
	InitialCover string
	FinalCover   string
	Transition   string
	CropInitial  string
	CropFinal    string
}

// Resolve expands the layout for a comparison from initial to final. bounds
// may be nil for whole-extent runs.
func (l Layout) Resolve(initial, final int, bounds *tiles.Bounds) Paths {
	at := func(tmpl string, year int) string {
		return filepath.Join(l.Dir, Expand(tmpl, Vars{Year: year, Initial: initial, Final: final, Bounds: bounds}))
	}
	p := Paths{
		InitialCover: at(l.Cover, initial),
		CropInitial:  at(l.Crops, initial),
		CropFinal:    at(l.Crops, final),
	}
	if l.Transition != "" {
		p.Transition = at(l.Transition, final)
	} else {
		p.FinalCover = at(l.Cover, final)
	}
	return p
}
