package source

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"

	"github.com/ivlev/globe2video/internal/grid"
)

// Variable attributes copied into Series.Attrs.
var keptAttributes = []string{"units", "long_name", "standard_name", "description"}

// NetCDFSource reads classic (CDF-1/CDF-2) netCDF files.
type NetCDFSource struct {
	file   *os.File
	f      *cdf.File
	coords []string
}

// OpenNetCDF opens path. coords names coordinate variables to load in
// addition to those listed in the variable's "coordinates" attribute.
func OpenNetCDF(path string, coords ...string) (*NetCDFSource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	f, err := cdf.Open(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("source: %s: %w", path, err)
	}
	return &NetCDFSource{file: file, f: f, coords: coords}, nil
}

// Variables lists the variables in the file.
func (s *NetCDFSource) Variables() []string {
	return s.f.Header.Variables()
}

// Load reads variable and its coordinates. An empty variable selects the
// first variable of rank three or more.
func (s *NetCDFSource) Load(variable string) (*grid.Series, error) {
	h := s.f.Header
	vars := h.Variables()
	if variable == "" {
		sorted := append([]string(nil), vars...)
		sort.Strings(sorted)
		for _, v := range sorted {
			if len(h.Dimensions(v)) >= 3 {
				variable = v
				break
			}
		}
		if variable == "" {
			return nil, fmt.Errorf("source: no variable with time and two spatial dimensions")
		}
	}
	if !contains(vars, variable) {
		return nil, fmt.Errorf("source: variable %q not found, have %v", variable, vars)
	}

	data, err := s.read(variable)
	if err != nil {
		return nil, err
	}
	series := &grid.Series{
		Name:   variable,
		Dims:   h.Dimensions(variable),
		Data:   data,
		Coords: make(map[string]*grid.Coord),
		Attrs:  make(map[string]string),
	}
	for _, a := range keptAttributes {
		if v, ok := h.GetAttribute(variable, a).(string); ok {
			series.Attrs[a] = v
		}
	}

	names := append([]string(nil), s.coords...)
	if c, ok := h.GetAttribute(variable, "coordinates").(string); ok {
		names = append(names, strings.Fields(c)...)
	}
	// dimension coordinates: a 1-D variable named after its dimension
	for _, d := range series.Dims {
		if !contains(vars, d) {
			continue
		}
		if dims := h.Dimensions(d); len(dims) == 1 && dims[0] == d {
			names = append(names, d)
		}
	}
	for _, name := range names {
		if _, done := series.Coords[name]; done || !contains(vars, name) {
			continue
		}
		values, err := s.read(name)
		if err != nil {
			return nil, err
		}
		series.Coords[name] = &grid.Coord{Name: name, Dims: h.Dimensions(name), Values: values}
	}
	return series, nil
}

func (s *NetCDFSource) Close() error {
	return s.file.Close()
}

// read loads a numeric variable as float64, mapping fill values to NaN.
func (s *NetCDFSource) read(name string) (*sparse.DenseArray, error) {
	h := s.f.Header
	arr := sparse.ZerosDense(h.Lengths(name)...)
	r := s.f.Reader(name, nil, nil)
	buf := r.Zero(len(arr.Elements))
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("source: reading %s: %w", name, err)
	}

	switch b := buf.(type) {
	case []float64:
		copy(arr.Elements, b)
	case []float32:
		for i, v := range b {
			arr.Elements[i] = float64(v)
		}
	case []int32:
		for i, v := range b {
			arr.Elements[i] = float64(v)
		}
	case []int16:
		for i, v := range b {
			arr.Elements[i] = float64(v)
		}
	case []int8:
		for i, v := range b {
			arr.Elements[i] = float64(v)
		}
	case []uint8:
		for i, v := range b {
			arr.Elements[i] = float64(v)
		}
	default:
		return nil, fmt.Errorf("source: variable %s has unsupported type %T", name, buf)
	}

	for _, attr := range []string{"_FillValue", "missing_value"} {
		fill, ok := scalarAttribute(h.GetAttribute(name, attr))
		if !ok {
			continue
		}
		for i, v := range arr.Elements {
			if v == fill {
				arr.Elements[i] = math.NaN()
			}
		}
	}
	return arr, nil
}

func scalarAttribute(a interface{}) (float64, bool) {
	switch v := a.(type) {
	case []float64:
		if len(v) > 0 {
			return v[0], true
		}
	case []float32:
		if len(v) > 0 {
			return float64(v[0]), true
		}
	case []int32:
		if len(v) > 0 {
			return float64(v[0]), true
		}
	case []int16:
		if len(v) > 0 {
			return float64(v[0]), true
		}
	}
	return 0, false
}

// WriteNetCDF writes the series data and coordinates to w as doubles. The
// coordinate names are recorded in the variable's "coordinates" attribute.
func WriteNetCDF(w cdf.ReaderWriterAt, s *grid.Series) error {
	if s.Name == "" {
		return fmt.Errorf("source: series has no name")
	}
	lengths := make(map[string]int)
	var dims []string
	addDims := func(names []string, shape []int) error {
		if len(names) != len(shape) {
			return fmt.Errorf("source: %d dimension names for rank %d", len(names), len(shape))
		}
		for i, d := range names {
			n, seen := lengths[d]
			if !seen {
				lengths[d] = shape[i]
				dims = append(dims, d)
			} else if n != shape[i] {
				return fmt.Errorf("source: dimension %s has lengths %d and %d", d, n, shape[i])
			}
		}
		return nil
	}
	if err := addDims(s.Dims, s.Data.Shape); err != nil {
		return err
	}
	coordNames := make([]string, 0, len(s.Coords))
	for name, c := range s.Coords {
		if err := addDims(c.Dims, c.Values.Shape); err != nil {
			return fmt.Errorf("%w (coordinate %s)", err, name)
		}
		coordNames = append(coordNames, name)
	}
	sort.Strings(coordNames)

	dimLengths := make([]int, len(dims))
	for i, d := range dims {
		dimLengths[i] = lengths[d]
	}
	h := cdf.NewHeader(dims, dimLengths)
	h.AddVariable(s.Name, s.Dims, []float64{0})
	attrNames := make([]string, 0, len(s.Attrs))
	for k := range s.Attrs {
		if k != "coordinates" {
			attrNames = append(attrNames, k)
		}
	}
	sort.Strings(attrNames)
	for _, k := range attrNames {
		h.AddAttribute(s.Name, k, s.Attrs[k])
	}
	var auxiliary []string
	for _, name := range coordNames {
		c := s.Coords[name]
		if name == s.Name {
			return fmt.Errorf("source: coordinate %s shadows the data variable", name)
		}
		// dimension coordinates are found by name and need no listing
		if len(c.Dims) != 1 || c.Dims[0] != name {
			auxiliary = append(auxiliary, name)
		}
		h.AddVariable(name, c.Dims, []float64{0})
	}
	if len(auxiliary) > 0 {
		h.AddAttribute(s.Name, "coordinates", strings.Join(auxiliary, " "))
	}
	h.Define()

	f, err := cdf.Create(w, h)
	if err != nil {
		return err
	}
	if err := writeVariable(f, s.Name, s.Data); err != nil {
		return err
	}
	for _, name := range coordNames {
		if err := writeVariable(f, name, s.Coords[name].Values); err != nil {
			return err
		}
	}
	return cdf.UpdateNumRecs(w)
}

func writeVariable(f *cdf.File, name string, data *sparse.DenseArray) error {
	end := f.Header.Lengths(name)
	start := make([]int, len(end))
	if _, err := f.Writer(name, start, end).Write(data.Elements); err != nil {
		return fmt.Errorf("source: writing %s: %w", name, err)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
