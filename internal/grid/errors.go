package grid

import (
	"fmt"
	"sort"
	"strings"
)

// Kinds of schema violation reported by SchemaError.
const (
	KindDimension      = "dimension"
	KindCoordinate     = "coordinate"
	KindCoordinateRank = "coordinate-rank"
	KindCoordinateDims = "coordinate-dims"
	KindAuxiliaryAxes  = "auxiliary-axes"
)

// SchemaError reports input data that lacks the axes or coordinate fields
// needed to build a globe mesh. Missing holds exactly the names that were
// required but absent, Present the names the data actually carries.
type SchemaError struct {
	Kind      string
	Missing   []string
	Present   []string
	Required  []string
	CoordDims map[string][]string
}

func (e *SchemaError) Error() string {
	switch e.Kind {
	case KindDimension:
		return fmt.Sprintf("grid: could not find dimension(s) %v. Got %v", e.Missing, e.Present)
	case KindCoordinate:
		return fmt.Sprintf("grid: could not find coordinate(s) %v. Got %v", e.Missing, e.Present)
	case KindCoordinateRank:
		return fmt.Sprintf("grid: expected coordinates %v to be 2-dimensional. Got %s", e.Required, e.describeCoordDims())
	case KindCoordinateDims:
		return fmt.Sprintf("grid: expected coordinates to be indexed by %v. Got %s", e.Required, e.describeCoordDims())
	case KindAuxiliaryAxes:
		return fmt.Sprintf("grid: expected one value per grid cell and time step, but axes %v have more than one entry. Select a single index along them", e.Present)
	}
	return "grid: schema error"
}

func (e *SchemaError) describeCoordDims() string {
	names := make([]string, 0, len(e.CoordDims))
	for name := range e.CoordDims {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		dims := e.CoordDims[name]
		parts = append(parts, fmt.Sprintf("%s: %d-D %v", name, len(dims), dims))
	}
	return strings.Join(parts, ", ")
}

// IndexError reports an index outside [0, Len).
type IndexError struct {
	What  string
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("%s index %d out of range [0, %d)", e.What, e.Index, e.Len)
}
