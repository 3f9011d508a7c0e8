// Package render is a software globe renderer: it draws quad meshes on the
// sphere with a perspective camera, colors them through a colormap and
// feeds the frames to a movie stream or a preview viewer.
package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"runtime"
	"sort"

	"github.com/fogleman/gg"
	"github.com/golang/geo/r3"
	"github.com/golang/geo/s2"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/globe2video/internal/mesh"
	"github.com/ivlev/globe2video/internal/system"
	"github.com/ivlev/globe2video/internal/video"
)

// ErrClosed is returned by a Plotter after Close.
var ErrClosed = errors.New("render: plotter closed")

// Options configure a Plotter.
type Options struct {
	Width, Height int
	Background    color.Color
	// BaseColor paints a sphere under the data; BaseTexture, when set,
	// replaces the flat color with an equirectangular image.
	BaseColor   color.Color
	BaseTexture image.Image
	// ViewAngle is the vertical field of view in degrees; 0 keeps the
	// default camera's.
	ViewAngle float64
}

// MeshOptions style a mesh actor. A nil Clim scales colors to the finite
// range of the actor's current scalars.
type MeshOptions struct {
	Cmap string
	Clim *[2]float64
}

// Actor is a mesh drawn by the plotter with its current frame styling.
type Actor struct {
	Name  string
	Mesh  *mesh.Mesh
	Cells []int // cells passing the finite-scalar threshold
	Cmap  string
	Clim  [2]float64
	Auto  bool // Clim was derived from the data

	cmap Colormap
}

type baseLayer struct {
	mesh   *mesh.Mesh
	colors []color.Color
}

// Plotter owns the scene, the camera and an optional open movie stream.
type Plotter struct {
	opts   Options
	camera Camera

	base   *baseLayer
	actors map[string]*Actor
	order  []string

	frames *system.FramePool

	openMovie video.Opener
	viewer    video.Viewer
	movie     video.Stream
	closed    bool
}

// New returns a plotter. movies and viewer may be nil when the plotter is
// only used for screenshots.
func New(opts Options, movies video.Opener, viewer video.Viewer) (*Plotter, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("render: invalid window size %dx%d", opts.Width, opts.Height)
	}
	if opts.Background == nil {
		opts.Background = color.Black
	}
	cam := DefaultCamera()
	if opts.ViewAngle > 0 {
		cam.ViewAngle = opts.ViewAngle
	}
	return &Plotter{
		opts:      opts,
		camera:    cam,
		frames:    system.NewFramePool(opts.Width, opts.Height),
		actors:    make(map[string]*Actor),
		openMovie: movies,
		viewer:    viewer,
	}, nil
}

// AddBaseLayer adds the underlay sphere, slightly inside the unit sphere.
func (p *Plotter) AddBaseLayer() error {
	if p.opts.BaseColor == nil && p.opts.BaseTexture == nil {
		return nil
	}
	const step = 5.0
	m, centers, err := lonLatSphere(step, 0.995)
	if err != nil {
		return err
	}
	colors := make([]color.Color, len(m.Cells))
	for c := range m.Cells {
		if p.opts.BaseTexture != nil {
			colors[c] = sampleTexture(p.opts.BaseTexture, centers[c].Lng.Degrees(), centers[c].Lat.Degrees())
		} else {
			colors[c] = p.opts.BaseColor
		}
	}
	p.base = &baseLayer{mesh: m, colors: colors}
	return nil
}

// AddMesh adds the named actor or replaces an existing one. The mesh must
// have active scalars.
func (p *Plotter) AddMesh(name string, m *mesh.Mesh, opts MeshOptions) (*Actor, error) {
	if p.closed {
		return nil, ErrClosed
	}
	_, values := m.Active()
	if values == nil {
		return nil, fmt.Errorf("render: mesh %q has no active scalars", name)
	}
	cmap, err := LookupColormap(opts.Cmap)
	if err != nil {
		return nil, err
	}

	a := &Actor{Name: name, Mesh: m, Cells: m.Threshold(), Cmap: opts.Cmap, cmap: cmap}
	if opts.Clim != nil {
		a.Clim = *opts.Clim
	} else {
		lo, hi, ok := m.ScalarRange(a.Cells)
		if !ok {
			lo, hi = 0, 1
		}
		a.Clim, a.Auto = [2]float64{lo, hi}, true
	}

	if _, exists := p.actors[name]; !exists {
		p.order = append(p.order, name)
	}
	p.actors[name] = a
	return a, nil
}

// Actor returns the named actor, or nil.
func (p *Plotter) Actor(name string) *Actor { return p.actors[name] }

// Camera returns the current camera.
func (p *Plotter) Camera() Camera { return p.camera }

// SetPosition moves the camera.
func (p *Plotter) SetPosition(pos r3.Vector) { p.camera.Position = pos }

// SetFocalPoint sets the point the camera looks at.
func (p *Plotter) SetFocalPoint(fp r3.Vector) { p.camera.FocalPoint = fp }

// SetRoll sets the camera roll in degrees.
func (p *Plotter) SetRoll(deg float64) { p.camera.Roll = deg }

// Screenshot renders the scene. The returned buffer comes from the
// plotter's frame pool; callers that are done with it may hand it back
// with Release.
func (p *Plotter) Screenshot() (*image.RGBA, error) {
	if p.closed {
		return nil, ErrClosed
	}
	img := p.frames.Get()
	dc := gg.NewContextForRGBA(img)
	dc.SetColor(p.opts.Background)
	dc.Clear()

	v := p.camera.view(p.opts.Width, p.opts.Height)
	if p.base != nil {
		cells := allCells(len(p.base.mesh.Cells))
		if err := p.drawCells(dc, v, p.base.mesh, cells, func(c int) color.Color { return p.base.colors[c] }); err != nil {
			return nil, err
		}
	}
	for _, name := range p.order {
		a := p.actors[name]
		err := p.drawCells(dc, v, a.Mesh, a.Cells, func(c int) color.Color {
			return a.cmap(normalize(a.Mesh.CellScalar(c), a.Clim))
		})
		if err != nil {
			return nil, err
		}
	}
	return img, nil
}

// Release hands a Screenshot buffer back to the plotter for reuse.
func (p *Plotter) Release(img *image.RGBA) { p.frames.Put(img) }

// OpenMovie starts a movie stream at path sized to the window.
func (p *Plotter) OpenMovie(path string) error {
	if p.closed {
		return ErrClosed
	}
	if p.openMovie == nil {
		return errors.New("render: plotter has no movie writer")
	}
	if p.movie != nil {
		return errors.New("render: movie already open")
	}
	s, err := p.openMovie(path, p.opts.Width, p.opts.Height)
	if err != nil {
		return err
	}
	p.movie = s
	return nil
}

// WriteFrame renders the current view and appends it to the movie.
func (p *Plotter) WriteFrame() error {
	if p.closed {
		return ErrClosed
	}
	if p.movie == nil {
		return errors.New("render: no movie open")
	}
	img, err := p.Screenshot()
	if err != nil {
		return err
	}
	defer p.Release(img)
	return p.movie.WriteFrame(img)
}

// Show renders the current view and blocks in the viewer.
func (p *Plotter) Show(ctx context.Context) error {
	if p.viewer == nil {
		return errors.New("render: plotter has no viewer")
	}
	img, err := p.Screenshot()
	if err != nil {
		return err
	}
	defer p.Release(img)
	return p.viewer.Show(ctx, img)
}

// Close finalizes an open movie and releases the plotter. It is safe to
// call more than once.
func (p *Plotter) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	if p.movie != nil {
		err := p.movie.Close()
		p.movie = nil
		return err
	}
	return nil
}

type quad struct {
	pts   [4]screenPoint
	depth float64
	color color.Color
}

func (p *Plotter) drawCells(dc *gg.Context, v view, m *mesh.Mesh, cells []int, colorOf func(int) color.Color) error {
	pts, err := projectAll(v, m.Points)
	if err != nil {
		return err
	}

	quads := make([]quad, 0, len(cells))
	for _, c := range cells {
		if !v.facing(m.Center(c)) {
			continue
		}
		q := quad{color: colorOf(c)}
		visible := true
		for k, idx := range m.Cells[c] {
			q.pts[k] = pts[idx]
			if !pts[idx].OK {
				visible = false
				break
			}
			q.depth += pts[idx].Depth
		}
		if visible {
			quads = append(quads, q)
		}
	}
	sort.Slice(quads, func(i, j int) bool { return quads[i].depth > quads[j].depth })

	dc.SetLineWidth(1)
	for _, q := range quads {
		dc.NewSubPath()
		dc.MoveTo(q.pts[0].X, q.pts[0].Y)
		for _, sp := range q.pts[1:] {
			dc.LineTo(sp.X, sp.Y)
		}
		dc.ClosePath()
		dc.SetColor(q.color)
		dc.FillPreserve()
		dc.Stroke()
	}
	return nil
}

// projectAll projects points to screen space, fanned out over CPUs.
func projectAll(v view, points []r3.Vector) ([]screenPoint, error) {
	const chunk = 4096
	out := make([]screenPoint, len(points))

	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for start := 0; start < len(points); start += chunk {
		start := start
		end := start + chunk
		if end > len(points) {
			end = len(points)
		}
		g.Go(func() error {
			for i := start; i < end; i++ {
				out[i] = v.project(points[i])
			}
			return nil
		})
	}
	return out, g.Wait()
}

func allCells(n int) []int {
	cells := make([]int, n)
	for i := range cells {
		cells[i] = i
	}
	return cells
}

// lonLatSphere tessellates a sphere of the given radius into step-degree
// quads and returns each cell's center.
func lonLatSphere(step, radius float64) (*mesh.Mesh, []s2.LatLng, error) {
	lon, lat := lonLatGrid(step)
	m, err := mesh.Build(lon, lat, radius)
	if err != nil {
		return nil, nil, err
	}
	centers := make([]s2.LatLng, len(m.Cells))
	for c := range m.Cells {
		centers[c] = s2.LatLngFromPoint(s2.Point{Vector: m.Center(c).Normalize()})
	}
	return m, centers, nil
}
