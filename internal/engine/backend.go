package engine

import (
	"context"

	"github.com/golang/geo/r3"

	"github.com/ivlev/globe2video/internal/grid"
	"github.com/ivlev/globe2video/internal/mesh"
	"github.com/ivlev/globe2video/internal/render"
	"github.com/ivlev/globe2video/internal/video"
)

// Plotter is the drawing context an Animation owns for one preview or
// render call.
type Plotter interface {
	AddMesh(name string, m *mesh.Mesh, opts render.MeshOptions) (*render.Actor, error)
	SetPosition(p r3.Vector)
	SetFocalPoint(p r3.Vector)
	SetRoll(deg float64)
	OpenMovie(path string) error
	WriteFrame() error
	Show(ctx context.Context) error
	Close() error
}

// PlotterFactory creates a plotter for the given window options.
type PlotterFactory func(opts render.Options) (Plotter, error)

// Mesher turns (x, y) ordered longitude and latitude fields into a mesh.
type Mesher interface {
	Build(lon, lat *grid.Coord) (*mesh.Mesh, error)
}

// RenderPlotters returns a factory for software plotters with a base
// layer, writing movies through movies and previews through viewer.
func RenderPlotters(movies video.Opener, viewer video.Viewer) PlotterFactory {
	return func(opts render.Options) (Plotter, error) {
		p, err := render.New(opts, movies, viewer)
		if err != nil {
			return nil, err
		}
		if err := p.AddBaseLayer(); err != nil {
			return nil, err
		}
		return p, nil
	}
}
