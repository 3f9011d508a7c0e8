// Package camera builds camera trajectories around the globe: lon/lat/radius
// samples converted to Cartesian points and joined into a polyline, one
// point per animation frame.
package camera

import (
	"fmt"

	"github.com/golang/geo/r3"
	"github.com/golang/geo/s2"
)

// ToCartesian converts longitude and latitude (degrees) and a radius given
// in planet radii into Cartesian points:
//
//	x = r·cos(lat)·cos(lon), y = r·cos(lat)·sin(lon), z = r·sin(lat)
func ToCartesian(lon, lat, r []float64) ([]r3.Vector, error) {
	if len(lon) != len(lat) || len(lon) != len(r) {
		return nil, fmt.Errorf("camera: lon, lat and radius lengths differ (%d, %d, %d)", len(lon), len(lat), len(r))
	}
	pts := make([]r3.Vector, len(lon))
	for i := range lon {
		p := s2.PointFromLatLng(s2.LatLngFromDegrees(lat[i], lon[i]))
		pts[i] = p.Vector.Mul(r[i])
	}
	return pts, nil
}

// Path is an ordered polyline; Lines[i] joins Points[i] and Points[i+1].
type Path struct {
	Points []r3.Vector
	Lines  [][2]int
}

// LineFromPoints connects consecutive points into a polyline.
func LineFromPoints(pts []r3.Vector) *Path {
	p := &Path{Points: append([]r3.Vector(nil), pts...)}
	for i := 0; i+1 < len(pts); i++ {
		p.Lines = append(p.Lines, [2]int{i, i + 1})
	}
	return p
}

// NewPath converts matched lon/lat/radius samples into a camera path.
func NewPath(lon, lat, r []float64) (*Path, error) {
	pts, err := ToCartesian(lon, lat, r)
	if err != nil {
		return nil, err
	}
	return LineFromPoints(pts), nil
}

// Len returns the number of points on the path.
func (p *Path) Len() int { return len(p.Points) }

// At returns the camera position for frame i.
func (p *Path) At(i int) r3.Vector { return p.Points[i] }
