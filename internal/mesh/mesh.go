// Package mesh turns 2-D longitude/latitude fields into a quad mesh on the
// sphere. Geometry is fixed at Build time; only point scalars change after.
package mesh

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/golang/geo/s2"
	"gonum.org/v1/gonum/floats"

	"github.com/ivlev/globe2video/internal/grid"
)

// Mesh is a structured quad mesh. Points are stored row-major over the
// (x, y) grid, index i*NY+j, matching grid.Frame.Flatten.
type Mesh struct {
	Points []r3.Vector
	Cells  [][4]int
	NX, NY int
	Radius float64

	PointData map[string][]float64
	active    string
}

// Builder builds meshes at a fixed radius.
type Builder struct {
	Radius float64
}

// Build implements the mesher used by the animation driver.
func (b Builder) Build(lon, lat *grid.Coord) (*Mesh, error) {
	r := b.Radius
	if r == 0 {
		r = 1
	}
	return Build(lon, lat, r)
}

// Build creates the mesh for lon/lat fields ordered (x, y). A point with a
// NaN coordinate is kept so indices line up with the data, but every cell
// touching it is left out.
func Build(lon, lat *grid.Coord, radius float64) (*Mesh, error) {
	ls, as := lon.Values.Shape, lat.Values.Shape
	if len(ls) != 2 || len(as) != 2 {
		return nil, fmt.Errorf("mesh: coordinates must be 2-D, got %v and %v", ls, as)
	}
	if ls[0] != as[0] || ls[1] != as[1] {
		return nil, fmt.Errorf("mesh: lon shape %v does not match lat shape %v", ls, as)
	}
	nx, ny := ls[0], ls[1]
	if nx < 2 || ny < 2 {
		return nil, fmt.Errorf("mesh: grid %dx%d is too small, need at least 2x2", nx, ny)
	}

	m := &Mesh{
		Points:    make([]r3.Vector, nx*ny),
		NX:        nx,
		NY:        ny,
		Radius:    radius,
		PointData: make(map[string][]float64),
	}
	missing := make([]bool, nx*ny)
	nan := math.NaN()
	for i := range m.Points {
		lo, la := lon.Values.Elements[i], lat.Values.Elements[i]
		if math.IsNaN(lo) || math.IsNaN(la) {
			missing[i] = true
			m.Points[i] = r3.Vector{X: nan, Y: nan, Z: nan}
			continue
		}
		m.Points[i] = s2.PointFromLatLng(s2.LatLngFromDegrees(la, lo)).Vector.Mul(radius)
	}

	for i := 0; i < nx-1; i++ {
		for j := 0; j < ny-1; j++ {
			cell := [4]int{i*ny + j, (i+1)*ny + j, (i+1)*ny + j + 1, i*ny + j + 1}
			if missing[cell[0]] || missing[cell[1]] || missing[cell[2]] || missing[cell[3]] {
				continue
			}
			m.Cells = append(m.Cells, cell)
		}
	}
	if len(m.Cells) == 0 {
		return nil, fmt.Errorf("mesh: every cell of the %dx%d grid is masked", nx, ny)
	}
	return m, nil
}

// NumPoints returns the number of mesh points.
func (m *Mesh) NumPoints() int { return len(m.Points) }

// SetScalars binds values as the named point array and makes it active.
// Points and cells are left untouched.
func (m *Mesh) SetScalars(name string, values []float64) error {
	if len(values) != len(m.Points) {
		return fmt.Errorf("mesh: %q has %d values for %d points", name, len(values), len(m.Points))
	}
	m.PointData[name] = values
	m.active = name
	return nil
}

// Active returns the active scalar array and its name.
func (m *Mesh) Active() (string, []float64) {
	return m.active, m.PointData[m.active]
}

// Threshold returns the indices of cells whose corner scalars are all
// finite. Without active scalars every cell is kept.
func (m *Mesh) Threshold() []int {
	_, values := m.Active()
	keep := make([]int, 0, len(m.Cells))
	for c, cell := range m.Cells {
		if values != nil && !finiteAt(values, cell[:]) {
			continue
		}
		keep = append(keep, c)
	}
	return keep
}

// CellScalar returns the mean active scalar over the corners of cell c.
func (m *Mesh) CellScalar(c int) float64 {
	_, values := m.Active()
	cell := m.Cells[c]
	return (values[cell[0]] + values[cell[1]] + values[cell[2]] + values[cell[3]]) / 4
}

// ScalarRange returns the min and max active scalar over the given cells.
func (m *Mesh) ScalarRange(cells []int) (lo, hi float64, ok bool) {
	_, values := m.Active()
	if values == nil || len(cells) == 0 {
		return 0, 0, false
	}
	vals := make([]float64, 0, len(cells)*4)
	for _, c := range cells {
		for _, p := range m.Cells[c] {
			vals = append(vals, values[p])
		}
	}
	return floats.Min(vals), floats.Max(vals), true
}

// Center returns the centroid of cell c.
func (m *Mesh) Center(c int) r3.Vector {
	cell := m.Cells[c]
	sum := m.Points[cell[0]].Add(m.Points[cell[1]]).Add(m.Points[cell[2]]).Add(m.Points[cell[3]])
	return sum.Mul(0.25)
}

func finiteAt(values []float64, idx []int) bool {
	for _, i := range idx {
		v := values[i]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
