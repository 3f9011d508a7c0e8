package mesh

import (
	"math"
	"testing"

	"github.com/ctessum/sparse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/globe2video/internal/grid"
)

func coords(nx, ny int) (*grid.Coord, *grid.Coord) {
	lon := sparse.ZerosDense(nx, ny)
	lat := sparse.ZerosDense(nx, ny)
	for i := 0; i < nx; i++ {
		for j := 0; j < ny; j++ {
			lon.Elements[i*ny+j] = float64(10 * i)
			lat.Elements[i*ny+j] = float64(10 * j)
		}
	}
	return &grid.Coord{Name: "lon", Dims: []string{"x", "y"}, Values: lon},
		&grid.Coord{Name: "lat", Dims: []string{"x", "y"}, Values: lat}
}

func TestBuild(t *testing.T) {
	lon, lat := coords(4, 3)
	m, err := Build(lon, lat, 1)
	require.NoError(t, err)

	assert.Equal(t, 12, m.NumPoints())
	assert.Len(t, m.Cells, 6)
	assert.Equal(t, [4]int{0, 3, 4, 1}, m.Cells[0])
	for _, p := range m.Points {
		assert.InDelta(t, 1.0, p.Norm(), 1e-12)
	}
	// point (1,0) is lon=10, lat=0
	assert.InDelta(t, math.Cos(10*math.Pi/180), m.Points[3].X, 1e-12)
}

func TestBuildDropsMaskedCells(t *testing.T) {
	lon, lat := coords(4, 3)
	lon.Values.Elements[4] = math.NaN() // interior point (1,1)

	m, err := Build(lon, lat, 1)
	require.NoError(t, err)
	assert.Len(t, m.Cells, 2)
	for _, cell := range m.Cells {
		assert.NotContains(t, cell[:], 4)
	}
	assert.True(t, math.IsNaN(m.Points[4].X))
}

func TestBuildRejectsBadGrids(t *testing.T) {
	lon, lat := coords(1, 3)
	_, err := Build(lon, lat, 1)
	assert.Error(t, err)

	lon, _ = coords(4, 3)
	_, lat = coords(3, 4)
	_, err = Build(lon, lat, 1)
	assert.Error(t, err)

	lon, lat = coords(2, 2)
	lat.Values.Elements[0] = math.NaN()
	_, err = Build(lon, lat, 1)
	assert.Error(t, err)
}

func TestSetScalarsKeepsTopology(t *testing.T) {
	lon, lat := coords(4, 3)
	m, err := Build(lon, lat, 1)
	require.NoError(t, err)
	points, cells := &m.Points[0], &m.Cells[0]

	require.NoError(t, m.SetScalars("data-frame", make([]float64, 12)))
	vals := make([]float64, 12)
	vals[11] = math.NaN()
	require.NoError(t, m.SetScalars("data-frame", vals))

	assert.Same(t, points, &m.Points[0])
	assert.Same(t, cells, &m.Cells[0])
	name, active := m.Active()
	assert.Equal(t, "data-frame", name)
	assert.True(t, math.IsNaN(active[11]))

	assert.Error(t, m.SetScalars("data-frame", make([]float64, 3)))
}

func TestThresholdAndRange(t *testing.T) {
	lon, lat := coords(3, 3)
	m, err := Build(lon, lat, 1)
	require.NoError(t, err)
	assert.Len(t, m.Threshold(), 4, "no scalars keeps every cell")

	vals := []float64{0, 1, 2, 3, 4, 5, 6, 7, math.NaN()}
	require.NoError(t, m.SetScalars("v", vals))
	keep := m.Threshold()
	assert.Equal(t, []int{0, 1, 2}, keep)

	lo, hi, ok := m.ScalarRange(keep)
	require.True(t, ok)
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 7.0, hi)
	assert.InDelta(t, 2.0, m.CellScalar(0), 1e-12)
}
