package grid

import (
	"fmt"

	"github.com/ctessum/sparse"
)

// Frame is one time step of a series with the time axis dropped. Its
// axes are (x, y, ...rest).
type Frame struct {
	Index int
	Dims  []string
	Data  *sparse.DenseArray

	// Mask is the frame's own validity under MaskPerFrame, nil otherwise.
	Mask *Mask

	lon, lat             *Coord
	maskedLon, maskedLat *Coord
}

// Frame extracts time step i. It never modifies s and returns equal data
// for equal i.
func (s *Series) Frame(i int, policy MaskPolicy) (*Frame, error) {
	if !s.normalized {
		return nil, fmt.Errorf("grid: frame requested from a series that was not normalized")
	}
	nt := s.NumFrames()
	if i < 0 || i >= nt {
		return nil, &IndexError{What: "frame", Index: i, Len: nt}
	}

	shape := s.Data.Shape
	nx, ny := shape[0], shape[1]
	rest := 1
	for _, n := range shape[3:] {
		rest *= n
	}

	outShape := append([]int{nx, ny}, shape[3:]...)
	data := sparse.ZerosDense(outShape...)
	for cell := 0; cell < nx*ny; cell++ {
		src := (cell*nt + i) * rest
		copy(data.Elements[cell*rest:(cell+1)*rest], s.Data.Elements[src:src+rest])
	}

	f := &Frame{
		Index: i,
		Dims:  append([]string{s.Dims[0], s.Dims[1]}, s.Dims[3:]...),
		Data:  data,
		lon:   s.Lon(),
		lat:   s.Lat(),
	}
	if policy == MaskPerFrame {
		f.Mask = ValidMask(data)
	}
	return f, nil
}

// Coords returns the frame's longitude and latitude fields. Under
// MaskPerFrame they are copies with the frame's invalid cells set to NaN,
// built on first use; otherwise they are the series' own fields. The
// renderer never needs them, since the shared mesh drops missing cells by
// their scalars.
func (f *Frame) Coords() (lon, lat *Coord, err error) {
	if f.Mask == nil {
		return f.lon, f.lat, nil
	}
	if f.maskedLon == nil {
		if f.maskedLon, err = f.Mask.Apply(f.lon); err != nil {
			return nil, nil, err
		}
		if f.maskedLat, err = f.Mask.Apply(f.lat); err != nil {
			f.maskedLon = nil
			return nil, nil, err
		}
	}
	return f.maskedLon, f.maskedLat, nil
}

// Flatten returns the frame values in row-major (x, y, ...rest) order,
// the point order used by the mesh builder.
func (f *Frame) Flatten() []float64 {
	return append([]float64(nil), f.Data.Elements...)
}
