// Package area computes the ground area of cells on a regular latitude/longitude
// grid using the WGS84 ellipsoid.
package area

import "math"

// WGS84 axes in metres.
const (
	SemiMajor = 6378137.0
	SemiMinor = 6356752.3142
)

// m2ToHa converts square metres to hectares.
const m2ToHa = 1e-4

var eccentricity = math.Sqrt(1 - (SemiMinor/SemiMajor)*(SemiMinor/SemiMajor))

// SliceArea returns the area in square metres of the ellipsoidal zone between
// the equator and the parallel at latitude phi (radians). The result is signed:
// negative for southern latitudes.
func SliceArea(phi float64) float64 {
	e := eccentricity
	s := math.Sin(phi)
	zp := 1 + e*s
	zm := 1 - e*s
	return math.Pi * SemiMinor * SemiMinor * (math.Atanh(e*s)/e + s/(zp*zm))
}

// CellArea returns the area in hectares of a cell centred on latitude lat
// (degrees) that is xRes degrees wide and yRes degrees tall.
func CellArea(lat, xRes, yRes float64) float64 {
	phiMin := deg2rad(lat - yRes/2)
	phiMax := deg2rad(lat + yRes/2)
	return (SliceArea(phiMax) - SliceArea(phiMin)) * (xRes / 360.0) * m2ToHa
}

// CellAreas applies CellArea to every latitude in lats.
func CellAreas(lats []float64, xRes, yRes float64) []float64 {
	out := make([]float64, len(lats))
	for i, lat := range lats {
		out[i] = CellArea(lat, xRes, yRes)
	}
	return out
}

// Fill returns a row-major width x height layer where every cell of row r holds
// rowAreas[r]. Area on a regular angular grid depends on the row only.
func Fill(rowAreas []float64, width int) []float32 {
	out := make([]float32, len(rowAreas)*width)
	for r, a := range rowAreas {
		row := out[r*width : (r+1)*width]
		v := float32(a)
		for c := range row {
			row[c] = v
		}
	}
	return out
}

func deg2rad(d float64) float64 {
	return d * math.Pi / 180.0
}
