package grid

import (
	"fmt"
	"math"

	"github.com/ctessum/sparse"
)

// MaskPolicy selects when the missing-data mask is derived.
type MaskPolicy string

const (
	// MaskOnce derives the mask from one reference frame and applies it to
	// the coordinate fields a single time; validity is assumed constant
	// over time.
	MaskOnce MaskPolicy = "once"
	// MaskPerFrame derives a fresh mask for every extracted frame.
	MaskPerFrame MaskPolicy = "per-frame"
)

// ParseMaskPolicy accepts "once", "per-frame" or "" (once).
func ParseMaskPolicy(s string) (MaskPolicy, error) {
	switch MaskPolicy(s) {
	case "", MaskOnce:
		return MaskOnce, nil
	case MaskPerFrame:
		return MaskPerFrame, nil
	}
	return "", fmt.Errorf("grid: unknown mask policy %q (want %q or %q)", s, MaskOnce, MaskPerFrame)
}

// Mask marks the grid cells holding valid data, row-major over (x, y).
type Mask struct {
	NX, NY int
	Valid  []bool
}

// ValidMask derives a mask from a frame shaped (x, y, ...rest). A cell is
// valid when none of its values across the remaining axes is NaN.
func ValidMask(frame *sparse.DenseArray) *Mask {
	nx, ny := frame.Shape[0], frame.Shape[1]
	per := 1
	for _, n := range frame.Shape[2:] {
		per *= n
	}

	m := &Mask{NX: nx, NY: ny, Valid: make([]bool, nx*ny)}
	for cell := range m.Valid {
		ok := true
		for _, v := range frame.Elements[cell*per : (cell+1)*per] {
			if math.IsNaN(v) {
				ok = false
				break
			}
		}
		m.Valid[cell] = ok
	}
	return m
}

// Count returns the number of valid cells.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Valid {
		if v {
			n++
		}
	}
	return n
}

// Equal reports whether m and o mark the same cells.
func (m *Mask) Equal(o *Mask) bool {
	if m.NX != o.NX || m.NY != o.NY {
		return false
	}
	for i := range m.Valid {
		if m.Valid[i] != o.Valid[i] {
			return false
		}
	}
	return true
}

// Apply returns a copy of the (x, y) coordinate field c with every invalid
// position replaced by NaN, so the mesh builder leaves those cells out
// instead of treating them as real locations.
func (m *Mask) Apply(c *Coord) (*Coord, error) {
	if len(c.Values.Shape) != 2 || c.Values.Shape[0] != m.NX || c.Values.Shape[1] != m.NY {
		return nil, fmt.Errorf("grid: mask is %dx%d, coordinate %q has shape %v", m.NX, m.NY, c.Name, c.Values.Shape)
	}
	out := c.Clone()
	for i, ok := range m.Valid {
		if !ok {
			out.Values.Elements[i] = math.NaN()
		}
	}
	return out, nil
}

// ApplyMask masks the longitude and latitude fields of s in place. It may
// be called once per series.
func (s *Series) ApplyMask(m *Mask) error {
	if !s.normalized {
		return fmt.Errorf("grid: mask applied to a series that was not normalized")
	}
	if s.masked {
		return fmt.Errorf("grid: mask already applied to series %q", s.Name)
	}
	lon, err := m.Apply(s.Lon())
	if err != nil {
		return err
	}
	lat, err := m.Apply(s.Lat())
	if err != nil {
		return err
	}
	s.Coords[s.names.Lon] = lon
	s.Coords[s.names.Lat] = lat
	s.masked = true
	return nil
}

// Masked reports whether ApplyMask has been called on s.
func (s *Series) Masked() bool { return s.masked }
