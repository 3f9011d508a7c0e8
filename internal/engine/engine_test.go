package engine

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/ctessum/sparse"
	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/ivlev/globe2video/internal/camera"
	"github.com/ivlev/globe2video/internal/config"
	"github.com/ivlev/globe2video/internal/grid"
	"github.com/ivlev/globe2video/internal/logging"
	"github.com/ivlev/globe2video/internal/mesh"
	"github.com/ivlev/globe2video/internal/render"
)

const nx, ny, nt = 4, 3, 5

// cellValue encodes the time step in the hundreds so captured frames can
// be identified from their scalars.
func cellValue(x, y, t int) float64 { return float64(t*100 + x*10 + y) }

// sstSeries is a 4x3 grid with 5 time steps stored (time, y, x).
func sstSeries() *grid.Series {
	data := sparse.ZerosDense(nt, ny, nx)
	for t := 0; t < nt; t++ {
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				data.Set(cellValue(x, y, t), t, y, x)
			}
		}
	}
	lon := sparse.ZerosDense(ny, nx)
	lat := sparse.ZerosDense(ny, nx)
	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			lon.Set(-30+20*float64(x), y, x)
			lat.Set(-20+20*float64(y), y, x)
		}
	}
	return &grid.Series{
		Name: "sst",
		Dims: []string{"time", "y", "x"},
		Data: data,
		Coords: map[string]*grid.Coord{
			"lon": {Name: "lon", Dims: []string{"y", "x"}, Values: lon},
			"lat": {Name: "lat", Dims: []string{"y", "x"}, Values: lat},
		},
	}
}

type addCall struct {
	name  string
	mesh  *mesh.Mesh
	cells [][4]int
	clim  *[2]float64
	cmap  string
	first float64
	drawn []int
}

type fakePlotter struct {
	opts      render.Options
	adds      []addCall
	positions []r3.Vector
	focal     []r3.Vector
	rolls     []float64
	movie     string
	captured  []int
	shown     []int
	closes    int

	failWriteAt int // 1-based WriteFrame call that fails
	writeErr    error
	closeErr    error
}

func (p *fakePlotter) AddMesh(name string, m *mesh.Mesh, opts render.MeshOptions) (*render.Actor, error) {
	_, values := m.Active()
	cells := m.Threshold()
	p.adds = append(p.adds, addCall{name: name, mesh: m, cells: m.Cells, clim: opts.Clim, cmap: opts.Cmap, first: values[0], drawn: cells})
	return &render.Actor{Name: name, Mesh: m, Cells: cells, Cmap: opts.Cmap}, nil
}

func (p *fakePlotter) SetPosition(v r3.Vector)   { p.positions = append(p.positions, v) }
func (p *fakePlotter) SetFocalPoint(v r3.Vector) { p.focal = append(p.focal, v) }
func (p *fakePlotter) SetRoll(deg float64)       { p.rolls = append(p.rolls, deg) }

func (p *fakePlotter) OpenMovie(path string) error {
	p.movie = path
	return nil
}

func (p *fakePlotter) currentFrame() int {
	return int(p.adds[len(p.adds)-1].first) / 100
}

func (p *fakePlotter) WriteFrame() error {
	if p.failWriteAt > 0 && len(p.captured)+1 == p.failWriteAt {
		return p.writeErr
	}
	p.captured = append(p.captured, p.currentFrame())
	return nil
}

func (p *fakePlotter) Show(context.Context) error {
	p.shown = append(p.shown, p.currentFrame())
	return nil
}

func (p *fakePlotter) Close() error {
	p.closes++
	return p.closeErr
}

type countingMesher struct {
	builds int
	built  *mesh.Mesh
	err    error
}

func (m *countingMesher) Build(lon, lat *grid.Coord) (*mesh.Mesh, error) {
	m.builds++
	if m.err != nil {
		return nil, m.err
	}
	out, err := mesh.Build(lon, lat, 1)
	m.built = out
	return out, err
}

type fixture struct {
	plotter *fakePlotter
	mesher  *countingMesher
	opts    []Option
}

func newFixture() *fixture {
	f := &fixture{plotter: &fakePlotter{}, mesher: &countingMesher{}}
	f.opts = []Option{
		WithMesher(f.mesher),
		WithPlotterFactory(func(opts render.Options) (Plotter, error) {
			f.plotter.opts = opts
			return f.plotter, nil
		}),
	}
	return f
}

func TestRenderCapturesEveryFrameInOrder(t *testing.T) {
	f := newFixture()
	a, err := New(sstSeries(), nil, f.opts...)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, a.Frames())
	assert.Equal(t, "sst", a.FieldName())

	require.NoError(t, a.Render(context.Background(), "out.mp4", 0, 0))

	p := f.plotter
	assert.Equal(t, "out.mp4", p.movie)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, p.captured)
	assert.Equal(t, 1, p.closes)
	assert.Equal(t, 3840, p.opts.Width)
	assert.Equal(t, 2160, p.opts.Height)
	assert.Equal(t, Closed, a.State())

	require.Equal(t, 1, f.mesher.builds)
	m := f.mesher.built
	assert.Equal(t, nx, m.NX)
	assert.Equal(t, ny, m.NY)
	require.Len(t, p.adds, nt)
	for i, add := range p.adds {
		assert.Equal(t, "sst", add.name)
		assert.Same(t, m, add.mesh, "frame %d", i)
		assert.Same(t, &m.Cells[0], &add.cells[0], "topology rebuilt at frame %d", i)
		assert.Nil(t, add.clim, "clim passed at frame %d", i)
		assert.Equal(t, "inferno", add.cmap)
	}
	assert.Empty(t, p.positions, "no camera path, no camera moves")
}

func TestRenderUsesRequestedResolution(t *testing.T) {
	f := newFixture()
	a, err := New(sstSeries(), nil, append(f.opts, WithLogger(logging.NewTest(t)))...)
	require.NoError(t, err)
	require.NoError(t, a.Render(context.Background(), "out.mp4", 1280, 720))
	assert.Equal(t, 1280, f.plotter.opts.Width)
	assert.Equal(t, 720, f.plotter.opts.Height)
}

func TestRenderFixedClim(t *testing.T) {
	f := newFixture()
	cfg := config.Default()
	cfg.Clim = []float64{0, 500}
	cfg.Cmap = "coolwarm"
	a, err := New(sstSeries(), cfg, f.opts...)
	require.NoError(t, err)
	require.NoError(t, a.Render(context.Background(), "out.mp4", 0, 0))
	for _, add := range f.plotter.adds {
		assert.Equal(t, &[2]float64{0, 500}, add.clim)
		assert.Equal(t, "coolwarm", add.cmap)
	}
}

func TestSyncCameraFollowsPath(t *testing.T) {
	path, err := camera.NewPath(
		[]float64{0, 10, 20, 30, 40},
		[]float64{0, 5, 10, 5, 0},
		[]float64{3, 3, 3.5, 4, 4},
	)
	require.NoError(t, err)

	f := newFixture()
	a, err := New(sstSeries(), nil, append(f.opts, WithCameraPath(path))...)
	require.NoError(t, err)
	require.NoError(t, a.Render(context.Background(), "out.mp4", 0, 0))

	p := f.plotter
	assert.Equal(t, path.Points, p.positions)
	for i := range p.positions {
		assert.Equal(t, r3.Vector{}, p.focal[i])
		assert.Equal(t, -90.0, p.rolls[i])
	}
}

func TestCameraPathShorterThanSequence(t *testing.T) {
	path, err := camera.NewPath([]float64{0, 1, 2, 3}, []float64{0, 0, 0, 0}, []float64{3, 3, 3, 3})
	require.NoError(t, err)

	f := newFixture()
	_, err = New(sstSeries(), nil, append(f.opts, WithCameraPath(path))...)
	var ie *grid.IndexError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, 4, ie.Len)
	assert.Equal(t, 4, ie.Index)
}

func TestPreviewShowsOneFrame(t *testing.T) {
	f := newFixture()
	a, err := New(sstSeries(), nil, f.opts...)
	require.NoError(t, err)

	require.NoError(t, a.Preview(context.Background(), 2))
	p := f.plotter
	assert.Equal(t, []int{2}, p.shown)
	assert.Empty(t, p.captured)
	assert.Empty(t, p.movie)
	assert.Equal(t, 1, p.closes)
	assert.Equal(t, Closed, a.State())
}

func TestPreviewFrameOutOfRange(t *testing.T) {
	f := newFixture()
	a, err := New(sstSeries(), nil, f.opts...)
	require.NoError(t, err)

	for _, frame := range []int{-1, nt} {
		err := a.Preview(context.Background(), frame)
		var ie *grid.IndexError
		require.ErrorAs(t, err, &ie)
		assert.Equal(t, frame, ie.Index)
	}
	assert.Equal(t, 0, f.mesher.builds)
	assert.Equal(t, 0, f.plotter.closes)
}

func TestRunSequence(t *testing.T) {
	f := newFixture()
	a, err := New(sstSeries(), nil, f.opts...)
	require.NoError(t, err)

	require.NoError(t, a.RunSequence(context.Background(), ModePreview, Target{Frame: 4}))
	assert.Equal(t, []int{4}, f.plotter.shown)

	require.NoError(t, a.RunSequence(context.Background(), ModeRender, Target{Filename: "seq.mp4"}))
	assert.Equal(t, "seq.mp4", f.plotter.movie)
	assert.Len(t, f.plotter.captured, nt)

	assert.Error(t, a.RunSequence(context.Background(), Mode(7), Target{}))
}

func TestBackendErrorAbortsAndReleases(t *testing.T) {
	boom := errors.New("encoder died")
	f := newFixture()
	f.plotter.failWriteAt = 3
	f.plotter.writeErr = boom
	a, err := New(sstSeries(), nil, f.opts...)
	require.NoError(t, err)

	err = a.Render(context.Background(), "out.mp4", 0, 0)
	assert.Same(t, boom, err)
	assert.Equal(t, []int{0, 1}, f.plotter.captured)
	assert.Equal(t, 1, f.plotter.closes)
	assert.NotEqual(t, Closed, a.State())
}

func TestCloseErrorIsReported(t *testing.T) {
	closeErr := errors.New("moov atom not written")
	f := newFixture()
	f.plotter.closeErr = closeErr
	a, err := New(sstSeries(), nil, f.opts...)
	require.NoError(t, err)

	err = a.Render(context.Background(), "out.mp4", 0, 0)
	assert.ErrorIs(t, err, closeErr)
	assert.Len(t, f.plotter.captured, nt)
}

func TestMesherErrorPropagates(t *testing.T) {
	boom := errors.New("degenerate grid")
	f := newFixture()
	f.mesher.err = boom
	a, err := New(sstSeries(), nil, f.opts...)
	require.NoError(t, err)

	assert.Same(t, boom, a.Render(context.Background(), "out.mp4", 0, 0))
	assert.Empty(t, f.plotter.movie)
	assert.Equal(t, 1, f.plotter.closes)
}

func TestPlotterFactoryErrorPropagates(t *testing.T) {
	boom := errors.New("no display")
	a, err := New(sstSeries(), nil, WithPlotterFactory(func(render.Options) (Plotter, error) { return nil, boom }))
	require.NoError(t, err)
	assert.Same(t, boom, a.Preview(context.Background(), 0))
}

func TestRenderStopsOnCancel(t *testing.T) {
	f := newFixture()
	a, err := New(sstSeries(), nil, f.opts...)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, a.Render(ctx, "out.mp4", 0, 0), context.Canceled)
	assert.Empty(t, f.plotter.captured)
	assert.Equal(t, 1, f.plotter.closes)
}

func TestMaskOnceExcludesCellInEveryFrame(t *testing.T) {
	s := sstSeries()
	// (x=1, y=2) has no data in the reference frame
	s.Data.Set(math.NaN(), 0, 2, 1)
	input := s.Coords["lon"].Values.Get(2, 1)

	f := newFixture()
	a, err := New(s, nil, f.opts...)
	require.NoError(t, err)
	require.NotNil(t, a.Mask())
	assert.Equal(t, nx*ny-1, a.Mask().Count())
	assert.True(t, math.IsNaN(a.Series().Lon().Values.Get(1, 2)))
	assert.Equal(t, input, s.Coords["lon"].Values.Get(2, 1), "input series untouched")

	require.NoError(t, a.Render(context.Background(), "out.mp4", 0, 0))
	masked := 1*ny + 2
	m := f.mesher.built
	assert.Less(t, len(m.Cells), (nx-1)*(ny-1))
	for _, add := range f.plotter.adds {
		for _, c := range add.drawn {
			assert.NotContains(t, m.Cells[c][:], masked)
		}
	}
	for _, cell := range m.Cells {
		assert.NotContains(t, cell[:], masked)
	}
}

func TestMaskPerFrameKeepsTopology(t *testing.T) {
	s := sstSeries()
	s.Data.Set(math.NaN(), 2, 2, 1)

	cfg := config.Default()
	cfg.MaskPolicy = string(grid.MaskPerFrame)
	f := newFixture()
	a, err := New(s, cfg, f.opts...)
	require.NoError(t, err)
	assert.Nil(t, a.Mask())

	frame, err := a.ExtractFrame(2)
	require.NoError(t, err)
	require.NotNil(t, frame.Mask)
	lon, _, err := frame.Coords()
	require.NoError(t, err)
	assert.True(t, math.IsNaN(lon.Values.Get(1, 2)))

	require.NoError(t, a.Render(context.Background(), "out.mp4", 0, 0))
	full := (nx - 1) * (ny - 1)
	masked := 1*ny + 2
	for i, add := range f.plotter.adds {
		assert.Len(t, add.cells, full, "topology is built once, unmasked")
		if i == 2 {
			assert.Less(t, len(add.drawn), full)
			for _, c := range add.drawn {
				assert.NotContains(t, add.cells[c][:], masked)
			}
		} else {
			assert.Len(t, add.drawn, full)
		}
	}
}

func TestMaskReferenceFrameOutOfRange(t *testing.T) {
	cfg := config.Default()
	cfg.MaskFrame = nt
	_, err := New(sstSeries(), cfg, newFixture().opts...)
	var ie *grid.IndexError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "mask reference frame", ie.What)
}

func TestExtractFrameIsIdempotent(t *testing.T) {
	a, err := New(sstSeries(), nil, newFixture().opts...)
	require.NoError(t, err)

	f1, err := a.ExtractFrame(3)
	require.NoError(t, err)
	f2, err := a.ExtractFrame(3)
	require.NoError(t, err)
	assert.Equal(t, f1.Flatten(), f2.Flatten())
	assert.Equal(t, []string{"x", "y"}, f1.Dims)
	assert.Equal(t, cellValue(2, 1, 3), f1.Data.Get(2, 1))

	f1.Data.Set(-1, 0, 0)
	f3, err := a.ExtractFrame(3)
	require.NoError(t, err)
	assert.Equal(t, f2.Flatten(), f3.Flatten())
}

func TestFieldNameResolution(t *testing.T) {
	cfg := config.Default()
	cfg.FieldName = "temperature"
	a, err := New(sstSeries(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "temperature", a.FieldName())

	s := sstSeries()
	s.Name = ""
	a, err = New(s, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultFieldName, a.FieldName())
}

func TestNewRejectsBadSchema(t *testing.T) {
	s := sstSeries()
	delete(s.Coords, "lat")
	_, err := New(s, nil)
	var se *grid.SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, []string{"lat"}, se.Missing)
}

// withLevel inserts a level axis of length n after time.
func withLevel(s *grid.Series, n int) *grid.Series {
	data := sparse.ZerosDense(nt, n, ny, nx)
	for t := 0; t < nt; t++ {
		for l := 0; l < n; l++ {
			for y := 0; y < ny; y++ {
				for x := 0; x < nx; x++ {
					data.Set(s.Data.Get(t, y, x), t, l, y, x)
				}
			}
		}
	}
	s.Data = data
	s.Dims = []string{"time", "level", "y", "x"}
	return s
}

func TestNewRejectsAuxiliaryAxis(t *testing.T) {
	f := newFixture()
	_, err := New(withLevel(sstSeries(), 2), nil, f.opts...)
	var se *grid.SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, grid.KindAuxiliaryAxes, se.Kind)
	assert.Equal(t, []string{"level"}, se.Present)
	assert.Equal(t, 0, f.mesher.builds)
	assert.Empty(t, f.plotter.movie, "no movie is opened for an unusable series")
}

func TestRenderAcceptsSingletonAuxiliaryAxis(t *testing.T) {
	f := newFixture()
	a, err := New(withLevel(sstSeries(), 1), nil, f.opts...)
	require.NoError(t, err)
	require.NoError(t, a.Render(context.Background(), "out.mp4", 0, 0))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, f.plotter.captured)
}

func TestNewRejectsBadColors(t *testing.T) {
	cfg := config.Default()
	cfg.BackgroundColor = "not-a-color"
	_, err := New(sstSeries(), cfg)
	assert.Error(t, err)
}

type recordingProgress struct {
	total, increments, stops int
}

func (p *recordingProgress) Start(total int) { p.total = total }
func (p *recordingProgress) Increment()      { p.increments++ }
func (p *recordingProgress) Stop()           { p.stops++ }

func TestRenderReportsProgress(t *testing.T) {
	f := newFixture()
	progress := &recordingProgress{}
	a, err := New(sstSeries(), nil, append(f.opts, WithProgress(progress))...)
	require.NoError(t, err)
	require.NoError(t, a.Render(context.Background(), "out.mp4", 0, 0))
	assert.Equal(t, recordingProgress{total: nt, increments: nt, stops: 1}, *progress)
}

func TestDefaultProgressLogs(t *testing.T) {
	log, logs := logging.NewObserved(zapcore.InfoLevel)
	f := newFixture()
	a, err := New(sstSeries(), nil, append(f.opts, WithLogger(log))...)
	require.NoError(t, err)
	require.NoError(t, a.Render(context.Background(), "out.mp4", 0, 0))

	ready := logs.FilterMessageSnippet("Ready").All()
	require.Len(t, ready, nt)
	assert.Equal(t, "[>] Ready: 5/5", ready[nt-1].Message)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "camera-synced", CameraSynced.String())
	assert.Equal(t, "State(42)", State(42).String())
}
