package area

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCellArea_Equator(t *testing.T) {
	// 1x1 degree cell on the equator: ~12,308.9 km2.
	got := CellArea(0, 1, 1)
	assert.InDelta(t, 1230892.0, got, 5.0)
}

func TestCellArea_KnownLatitudes(t *testing.T) {
	tests := []struct {
		name string
		lat  float64
		res  float64
		want float64
	}{
		{"mid latitude", 45, 1, 876227.48},
		{"polar row", 89.5, 1, 10886.67},
		{"300m equatorial pixel", 0, 1.0 / 360, 9.4977},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CellArea(tt.lat, tt.res, tt.res)
			assert.InEpsilon(t, tt.want, got, 1e-5)
		})
	}
}

func TestCellArea_DecreasesTowardPoles(t *testing.T) {
	prev := CellArea(0.5, 1, 1)
	for lat := 1.5; lat < 90; lat++ {
		north := CellArea(lat, 1, 1)
		south := CellArea(-lat, 1, 1)
		assert.Less(t, north, prev, "lat %v", lat)
		assert.InDelta(t, north, south, 1e-6*north, "hemispheres should be symmetric at %v", lat)
		prev = north
	}
}

func TestSliceArea_WholeEllipsoid(t *testing.T) {
	// Surface of the WGS84 ellipsoid is ~510.07 million km2.
	total := 2 * SliceArea(math.Pi/2) * m2ToHa
	assert.InEpsilon(t, 5.1006562e10, total, 1e-6)
	assert.InDelta(t, 0, SliceArea(0), 1e-9)
	assert.InDelta(t, -SliceArea(0.3), SliceArea(-0.3), 1e-3)
}

func TestCellAreas(t *testing.T) {
	lats := []float64{10, 0, -10}
	got := CellAreas(lats, 0.5, 0.5)
	require.Len(t, got, 3)
	for i, lat := range lats {
		assert.Equal(t, CellArea(lat, 0.5, 0.5), got[i])
	}
	assert.Empty(t, CellAreas(nil, 1, 1))
}

func TestFill(t *testing.T) {
	out := Fill([]float64{2, 3}, 3)
	assert.Equal(t, []float32{2, 2, 2, 3, 3, 3}, out)
	assert.Empty(t, Fill(nil, 4))
}
