package tiles

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

// SRID of every tile footprint (WGS84 lon/lat).
const SRID = 4326

// Geom returns the bounds as a go-geom bounding box.
func (b Bounds) Geom() *geom.Bounds {
	return geom.NewBounds(geom.XY).Set(b.West, b.South, b.East, b.North)
}

// ring returns the closed clockwise outer ring starting at the north-west corner.
func (b Bounds) ring() []float64 {
	return []float64{
		b.West, b.North,
		b.East, b.North,
		b.East, b.South,
		b.West, b.South,
		b.West, b.North,
	}
}

// Polygon returns the tile footprint with SRID 4326.
func (t Tile) Polygon() *geom.Polygon {
	flat := t.Bounds.ring()
	return geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)}).SetSRID(SRID)
}

// EWKB encodes the tile footprint as little-endian EWKB for the run ledger.
func (t Tile) EWKB() ([]byte, error) {
	data, err := ewkb.Marshal(t.Polygon(), ewkb.NDR)
	if err != nil {
		return nil, eris.Wrapf(err, "tiles: encode footprint %s", t.Name())
	}
	return data, nil
}
