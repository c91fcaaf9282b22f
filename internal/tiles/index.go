package tiles

import (
	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Shapefile attribute columns, in SetFields order.
var indexFields = []shp.Field{
	shp.NumberField("INDEX", 10),
	shp.NumberField("YEAR", 4),
	shp.StringField("NAME", 32),
}

// WriteIndex writes one polygon per tile to a shapefile at path (.shp, .shx
// and .dbf siblings) so the job array can be inspected in a GIS.
func WriteIndex(path string, tiles []Tile) error {
	w, err := shp.Create(path, shp.POLYGON)
	if err != nil {
		return eris.Wrapf(err, "tiles: create shapefile %s", path)
	}
	defer w.Close()

	if err := w.SetFields(indexFields); err != nil {
		return eris.Wrap(err, "tiles: set shapefile fields")
	}

	for _, t := range tiles {
		row := int(w.Write(shapePolygon(t.Bounds)))
		attrs := []any{t.Index, t.Year, t.Name()}
		for field, v := range attrs {
			if err := w.WriteAttribute(row, field, v); err != nil {
				return eris.Wrapf(err, "tiles: write attribute %d of tile %d", field, t.Index)
			}
		}
	}

	zap.L().Debug("tiles: wrote index", zap.String("path", path), zap.Int("tiles", len(tiles)))
	return nil
}

func shapePolygon(b Bounds) *shp.Polygon {
	flat := b.ring()
	points := make([]shp.Point, 0, len(flat)/2)
	for i := 0; i < len(flat); i += 2 {
		points = append(points, shp.Point{X: flat[i], Y: flat[i+1]})
	}
	p := shp.Polygon(*shp.NewPolyLine([][]shp.Point{points}))
	return &p
}
