// Package grid holds the gridded time series model: a scalar array over
// named axes plus the 2-D longitude/latitude fields that place each cell
// on the globe.
package grid

import (
	"fmt"
	"sort"

	"github.com/ctessum/sparse"
)

// Names identifies the axes and coordinate fields of a series.
type Names struct {
	X    string `yaml:"x_dim"`
	Y    string `yaml:"y_dim"`
	Time string `yaml:"time_dim"`
	Lon  string `yaml:"lon_name"`
	Lat  string `yaml:"lat_name"`
}

// DefaultNames returns the axis names used when none are configured.
func DefaultNames() Names {
	return Names{X: "x", Y: "y", Time: "time", Lon: "lon", Lat: "lat"}
}

func (n Names) withDefaults() Names {
	d := DefaultNames()
	if n.X == "" {
		n.X = d.X
	}
	if n.Y == "" {
		n.Y = d.Y
	}
	if n.Time == "" {
		n.Time = d.Time
	}
	if n.Lon == "" {
		n.Lon = d.Lon
	}
	if n.Lat == "" {
		n.Lat = d.Lat
	}
	return n
}

// Coord is a coordinate field indexed by one or more of the series axes.
type Coord struct {
	Name   string
	Dims   []string
	Values *sparse.DenseArray
}

// Clone returns a deep copy of c.
func (c *Coord) Clone() *Coord {
	return &Coord{
		Name:   c.Name,
		Dims:   append([]string(nil), c.Dims...),
		Values: cloneArray(c.Values),
	}
}

// Series is a scalar field over named axes with its coordinate fields.
// Name is the name of the scalar field.
type Series struct {
	Name   string
	Dims   []string
	Data   *sparse.DenseArray
	Coords map[string]*Coord
	Attrs  map[string]string

	names      Names
	normalized bool
	masked     bool
}

// Names returns the axis and coordinate names the series was normalized with.
func (s *Series) Names() Names { return s.names }

// Lon returns the longitude field of a normalized series.
func (s *Series) Lon() *Coord { return s.Coords[s.names.Lon] }

// Lat returns the latitude field of a normalized series.
func (s *Series) Lat() *Coord { return s.Coords[s.names.Lat] }

// Shape returns the length of each axis, in Dims order.
func (s *Series) Shape() []int { return append([]int(nil), s.Data.Shape...) }

// NumFrames returns the length of the time axis.
func (s *Series) NumFrames() int {
	i := indexOf(s.Dims, s.names.withDefaults().Time)
	if i < 0 {
		return 0
	}
	return s.Data.Shape[i]
}

// CheckScalarField reports a SchemaError when the normalized series has
// an auxiliary axis longer than one, so a frame would hold more values
// than the grid has points.
func (s *Series) CheckScalarField() error {
	if !s.normalized {
		return fmt.Errorf("grid: scalar field check on a series that was not normalized")
	}
	var long []string
	for i, n := range s.Data.Shape[3:] {
		if n != 1 {
			long = append(long, s.Dims[3+i])
		}
	}
	if len(long) > 0 {
		return &SchemaError{
			Kind:     KindAuxiliaryAxes,
			Present:  long,
			Required: []string{s.Dims[0], s.Dims[1], s.Dims[2]},
		}
	}
	return nil
}

// Normalize validates s against names and returns a copy with its axes
// ordered (x, y, time, ...rest) and its lon/lat fields ordered (x, y).
// The mesh builder depends on that order and produces wrong geometry
// otherwise. s is not modified.
func Normalize(s *Series, names Names) (*Series, error) {
	names = names.withDefaults()
	if s == nil || s.Data == nil {
		return nil, fmt.Errorf("grid: series has no data")
	}
	if len(s.Dims) != len(s.Data.Shape) {
		return nil, fmt.Errorf("grid: series %q has %d dimension names but data of rank %d", s.Name, len(s.Dims), len(s.Data.Shape))
	}

	if missing := missingFrom(s.Dims, names.X, names.Y, names.Time); len(missing) > 0 {
		return nil, &SchemaError{
			Kind:     KindDimension,
			Missing:  missing,
			Present:  append([]string(nil), s.Dims...),
			Required: []string{names.X, names.Y, names.Time},
		}
	}

	coordNames := make([]string, 0, len(s.Coords))
	for name := range s.Coords {
		coordNames = append(coordNames, name)
	}
	sort.Strings(coordNames)
	if missing := missingFrom(coordNames, names.Lon, names.Lat); len(missing) > 0 {
		return nil, &SchemaError{
			Kind:     KindCoordinate,
			Missing:  missing,
			Present:  coordNames,
			Required: []string{names.Lon, names.Lat},
		}
	}

	lon, lat := s.Coords[names.Lon], s.Coords[names.Lat]
	if len(lon.Dims) != 2 || len(lat.Dims) != 2 {
		return nil, &SchemaError{
			Kind:      KindCoordinateRank,
			Required:  []string{names.Lon, names.Lat},
			CoordDims: map[string][]string{names.Lon: lon.Dims, names.Lat: lat.Dims},
		}
	}
	for _, c := range []*Coord{lon, lat} {
		if c.Values == nil || len(c.Values.Shape) != len(c.Dims) {
			rank := 0
			if c.Values != nil {
				rank = len(c.Values.Shape)
			}
			return nil, fmt.Errorf("grid: coordinate %q has %d dimension names but values of rank %d", c.Name, len(c.Dims), rank)
		}
		if missing := missingFrom(c.Dims, names.X, names.Y); len(missing) > 0 {
			return nil, &SchemaError{
				Kind:      KindCoordinateDims,
				Missing:   missing,
				Present:   append([]string(nil), c.Dims...),
				Required:  []string{names.X, names.Y},
				CoordDims: map[string][]string{names.Lon: lon.Dims, names.Lat: lat.Dims},
			}
		}
	}

	order := []string{names.X, names.Y, names.Time}
	for _, d := range s.Dims {
		if d != names.X && d != names.Y && d != names.Time {
			order = append(order, d)
		}
	}
	data := transpose(s.Data, permutation(s.Dims, order))

	out := &Series{
		Name:       s.Name,
		Dims:       order,
		Data:       data,
		Coords:     make(map[string]*Coord, len(s.Coords)),
		Attrs:      make(map[string]string, len(s.Attrs)),
		names:      names,
		normalized: true,
	}
	for k, v := range s.Attrs {
		out.Attrs[k] = v
	}
	for name, c := range s.Coords {
		out.Coords[name] = c.Clone()
	}

	nx, ny := data.Shape[0], data.Shape[1]
	for _, name := range []string{names.Lon, names.Lat} {
		c := out.Coords[name]
		xy := []string{names.X, names.Y}
		c.Values = transpose(c.Values, permutation(c.Dims, xy))
		c.Dims = xy
		if c.Values.Shape[0] != nx || c.Values.Shape[1] != ny {
			return nil, fmt.Errorf("grid: coordinate %q has shape %v, data grid is %dx%d", name, c.Values.Shape, nx, ny)
		}
	}
	return out, nil
}

func missingFrom(have []string, want ...string) []string {
	var missing []string
	for _, w := range want {
		if indexOf(have, w) < 0 {
			missing = append(missing, w)
		}
	}
	return missing
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

// permutation maps each target axis to its position in from.
func permutation(from, to []string) []int {
	perm := make([]int, len(to))
	for i, d := range to {
		perm[i] = indexOf(from, d)
	}
	return perm
}

func strides(shape []int) []int {
	st := make([]int, len(shape))
	n := 1
	for i := len(shape) - 1; i >= 0; i-- {
		st[i] = n
		n *= shape[i]
	}
	return st
}

// transpose returns a row-major copy of a with axis i of the result taken
// from axis perm[i] of a.
func transpose(a *sparse.DenseArray, perm []int) *sparse.DenseArray {
	shape := make([]int, len(perm))
	for i, p := range perm {
		shape[i] = a.Shape[p]
	}
	out := sparse.ZerosDense(shape...)
	if len(out.Elements) == 0 {
		return out
	}

	srcStrides := strides(a.Shape)
	idx := make([]int, len(shape))
	for n := range out.Elements {
		src := 0
		for i, p := range perm {
			src += idx[i] * srcStrides[p]
		}
		out.Elements[n] = a.Elements[src]

		for i := len(idx) - 1; i >= 0; i-- {
			idx[i]++
			if idx[i] < shape[i] {
				break
			}
			idx[i] = 0
		}
	}
	return out
}

func cloneArray(a *sparse.DenseArray) *sparse.DenseArray {
	if a == nil {
		return nil
	}
	out := sparse.ZerosDense(a.Shape...)
	copy(out.Elements, a.Elements)
	return out
}
