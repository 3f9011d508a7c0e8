package render

import (
	"github.com/ctessum/sparse"

	"github.com/ivlev/globe2video/internal/grid"
)

// lonLatGrid returns (x=lon, y=lat) coordinate fields covering the globe
// at step degrees.
func lonLatGrid(step float64) (*grid.Coord, *grid.Coord) {
	nx := int(360/step) + 1
	ny := int(180/step) + 1
	lon := sparse.ZerosDense(nx, ny)
	lat := sparse.ZerosDense(nx, ny)
	for i := 0; i < nx; i++ {
		for j := 0; j < ny; j++ {
			lon.Elements[i*ny+j] = -180 + step*float64(i)
			lat.Elements[i*ny+j] = -90 + step*float64(j)
		}
	}
	return &grid.Coord{Name: "lon", Dims: []string{"x", "y"}, Values: lon},
		&grid.Coord{Name: "lat", Dims: []string{"x", "y"}, Values: lat}
}
