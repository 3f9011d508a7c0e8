// Package engine drives a globe animation: it binds each frame of a
// normalized series onto a mesh built once, moves the camera along an
// optional path and hands every view to a plotter.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang/geo/r3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ivlev/globe2video/internal/camera"
	"github.com/ivlev/globe2video/internal/config"
	"github.com/ivlev/globe2video/internal/grid"
	"github.com/ivlev/globe2video/internal/mesh"
	"github.com/ivlev/globe2video/internal/render"
	"github.com/ivlev/globe2video/internal/video"
)

// DefaultFieldName names the scalar field when neither the configuration
// nor the series provides one.
const DefaultFieldName = "data-frame"

// CameraRoll is the roll applied whenever the camera follows a path; it
// keeps north up for the globe's axis.
const CameraRoll = -90.0

// State is the progress of an Animation through a preview or render call.
type State int

const (
	Uninitialized State = iota
	MeshCreated
	FrameBound
	CameraSynced
	FrameCaptured
	Closed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case MeshCreated:
		return "mesh-created"
	case FrameBound:
		return "frame-bound"
	case CameraSynced:
		return "camera-synced"
	case FrameCaptured:
		return "frame-captured"
	case Closed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Animation renders a gridded time series frame by frame. It is not safe
// for concurrent use.
type Animation struct {
	cfg    *config.Config
	series *grid.Series
	policy grid.MaskPolicy
	mask   *grid.Mask
	field  string
	frames []int
	path   *camera.Path

	mesher     Mesher
	newPlotter PlotterFactory
	plotOpts   render.Options
	log        *zap.SugaredLogger
	progress   Progress

	state State
}

// Option configures an Animation.
type Option func(*Animation)

func WithMesher(m Mesher) Option { return func(a *Animation) { a.mesher = m } }

func WithPlotterFactory(f PlotterFactory) Option { return func(a *Animation) { a.newPlotter = f } }

// WithCameraPath moves the camera to path.At(i) on frame i. It takes
// precedence over the configured camera scenario.
func WithCameraPath(p *camera.Path) Option { return func(a *Animation) { a.path = p } }

func WithLogger(l *zap.SugaredLogger) Option { return func(a *Animation) { a.log = l } }

func WithProgress(p Progress) Option { return func(a *Animation) { a.progress = p } }

// New validates and normalizes series and prepares the animation. The
// input series is not modified. A nil cfg means config.Default().
func New(series *grid.Series, cfg *config.Config, opts ...Option) (*Animation, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s, err := grid.Normalize(series, cfg.Names)
	if err != nil {
		return nil, err
	}
	if err := s.CheckScalarField(); err != nil {
		return nil, err
	}

	a := &Animation{
		cfg:    cfg,
		series: s,
		policy: cfg.Policy(),
		field:  resolveFieldName(cfg.FieldName, s.Name),
		frames: make([]int, s.NumFrames()),
	}
	for i := range a.frames {
		a.frames[i] = i
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.log == nil {
		a.log = zap.NewNop().Sugar()
	}
	if a.progress == nil {
		a.progress = &logProgress{log: a.log}
	}
	if a.mesher == nil {
		a.mesher = mesh.Builder{Radius: 1}
	}

	if a.policy == grid.MaskOnce {
		if err := a.applyReferenceMask(); err != nil {
			return nil, err
		}
	}

	if a.path == nil && cfg.CameraScenario != "" {
		sc, err := camera.ReadScenario(cfg.CameraScenario)
		if err != nil {
			return nil, err
		}
		if a.path, err = camera.PathFromScenario(sc, len(a.frames)); err != nil {
			return nil, err
		}
	}
	if a.path != nil && a.path.Len() < len(a.frames) {
		return nil, &grid.IndexError{What: "camera path point", Index: len(a.frames) - 1, Len: a.path.Len()}
	}

	if a.plotOpts, err = plotOptions(cfg); err != nil {
		return nil, err
	}

	a.log.Infow("[*] Animation ready",
		"field", a.field,
		"grid", fmt.Sprintf("%dx%d", s.Data.Shape[0], s.Data.Shape[1]),
		"frames", len(a.frames),
		"mask_policy", a.policy,
		"camera_path", a.path != nil,
	)
	return a, nil
}

func resolveFieldName(configured, seriesName string) string {
	switch {
	case configured != "":
		return configured
	case seriesName != "":
		return seriesName
	}
	return DefaultFieldName
}

// applyReferenceMask masks the series coordinates with the validity of the
// configured reference frame. It runs once, at construction.
func (a *Animation) applyReferenceMask() error {
	ref, err := a.series.Frame(a.cfg.MaskFrame, grid.MaskOnce)
	var ie *grid.IndexError
	if errors.As(err, &ie) {
		ie.What = "mask reference frame"
	}
	if err != nil {
		return err
	}
	a.mask = grid.ValidMask(ref.Data)
	if err := a.series.ApplyMask(a.mask); err != nil {
		return err
	}
	if invalid := len(a.mask.Valid) - a.mask.Count(); invalid > 0 {
		a.log.Infow("[*] Missing-data cells excluded from the mesh", "cells", invalid, "reference_frame", a.cfg.MaskFrame)
	}
	return nil
}

func plotOptions(cfg *config.Config) (render.Options, error) {
	opts := render.Options{Width: cfg.Width, Height: cfg.Height, ViewAngle: cfg.ViewAngle}
	var err error
	if opts.Background, err = render.ParseColor(cfg.BackgroundColor); err != nil {
		return opts, err
	}
	if cfg.BaseColor != "" {
		if opts.BaseColor, err = render.ParseColor(cfg.BaseColor); err != nil {
			return opts, err
		}
	}
	if cfg.BaseTexture != "" {
		if opts.BaseTexture, err = render.LoadTexture(cfg.BaseTexture); err != nil {
			return opts, err
		}
	}
	return opts, nil
}

// Series returns the normalized (and, under the once policy, masked)
// series the animation reads from.
func (a *Animation) Series() *grid.Series { return a.series }

// FieldName returns the name the scalar field is bound under.
func (a *Animation) FieldName() string { return a.field }

// Mask returns the reference mask, or nil under the per-frame policy.
func (a *Animation) Mask() *grid.Mask { return a.mask }

// State returns where the last preview or render call got to.
func (a *Animation) State() State { return a.state }

// Frames returns the frame sequence in render order.
func (a *Animation) Frames() []int { return append([]int(nil), a.frames...) }

// ExtractFrame returns time step i with the time axis dropped.
func (a *Animation) ExtractFrame(i int) (*grid.Frame, error) {
	return a.series.Frame(i, a.policy)
}

// UpdateMeshScalars binds the frame values onto m as the active field name
// and adds or replaces the actor of that name. The topology of m is left
// as it is. Without configured color limits the plotter scales each frame
// to its own range.
func (a *Animation) UpdateMeshScalars(p Plotter, m *mesh.Mesh, f *grid.Frame, name string) (*render.Actor, error) {
	if err := m.SetScalars(name, f.Flatten()); err != nil {
		return nil, err
	}
	return p.AddMesh(name, m, render.MeshOptions{Cmap: a.cfg.Cmap, Clim: a.cfg.ColorLimits()})
}

// SyncCamera places the camera at path point i, looking at the origin with
// north up. It does nothing without a camera path.
func (a *Animation) SyncCamera(p Plotter, i int) error {
	if a.path == nil {
		return nil
	}
	if i < 0 || i >= a.path.Len() {
		return &grid.IndexError{What: "camera path point", Index: i, Len: a.path.Len()}
	}
	p.SetPosition(a.path.At(i))
	p.SetFocalPoint(r3.Vector{})
	p.SetRoll(CameraRoll)
	return nil
}

// SetFrame extracts frame i, binds it onto m and moves the camera.
func (a *Animation) SetFrame(p Plotter, m *mesh.Mesh, i int) (*render.Actor, error) {
	f, err := a.ExtractFrame(i)
	if err != nil {
		return nil, err
	}
	actor, err := a.UpdateMeshScalars(p, m, f, a.field)
	if err != nil {
		return nil, err
	}
	a.state = FrameBound
	if err := a.SyncCamera(p, i); err != nil {
		return nil, err
	}
	a.state = CameraSynced
	return actor, nil
}

// Mode selects what RunSequence does.
type Mode int

const (
	ModePreview Mode = iota
	ModeRender
)

// Target carries the arguments of a RunSequence call: Frame for previews,
// Filename and size for renders.
type Target struct {
	Frame         int
	Filename      string
	Width, Height int
}

// RunSequence previews target.Frame or renders the whole sequence to
// target.Filename.
func (a *Animation) RunSequence(ctx context.Context, mode Mode, target Target) error {
	switch mode {
	case ModePreview:
		return a.Preview(ctx, target.Frame)
	case ModeRender:
		return a.Render(ctx, target.Filename, target.Width, target.Height)
	}
	return fmt.Errorf("engine: unknown mode %d", mode)
}

// Preview shows a single frame and blocks until the viewer returns.
func (a *Animation) Preview(ctx context.Context, frame int) (err error) {
	if frame < 0 || frame >= len(a.frames) {
		return &grid.IndexError{What: "preview frame", Index: frame, Len: len(a.frames)}
	}
	a.state = Uninitialized
	p, err := a.plotterFactory(ctx)(a.plotOpts)
	if err != nil {
		return err
	}
	defer func() { err = a.release(p, err) }()

	m, err := a.buildMesh()
	if err != nil {
		return err
	}
	if _, err := a.SetFrame(p, m, frame); err != nil {
		return err
	}
	return p.Show(ctx)
}

// Render writes every frame, in order, as one movie at filename. A zero
// width or height takes the configured resolution. The first failure
// aborts the sequence; the movie is finalized either way.
func (a *Animation) Render(ctx context.Context, filename string, width, height int) (err error) {
	opts := a.plotOpts
	if width > 0 && height > 0 {
		opts.Width, opts.Height = width, height
	}
	a.state = Uninitialized
	start := time.Now()

	p, err := a.plotterFactory(ctx)(opts)
	if err != nil {
		return err
	}
	defer func() {
		err = a.release(p, err)
		if err == nil && a.cfg.ShowStats {
			a.report(start, len(a.frames), filename)
		}
	}()

	m, err := a.buildMesh()
	if err != nil {
		return err
	}
	if err := p.OpenMovie(filename); err != nil {
		return err
	}

	a.log.Infow("[*] Rendering", "output", filename, "resolution", fmt.Sprintf("%dx%d", opts.Width, opts.Height), "frames", len(a.frames))
	a.progress.Start(len(a.frames))
	defer a.progress.Stop()
	for _, i := range a.frames {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := a.SetFrame(p, m, i); err != nil {
			return err
		}
		if err := p.WriteFrame(); err != nil {
			return err
		}
		a.state = FrameCaptured
		a.progress.Increment()
	}
	return nil
}

func (a *Animation) buildMesh() (*mesh.Mesh, error) {
	s := a.series
	m, err := a.mesher.Build(s.Lon(), s.Lat())
	if err != nil {
		return nil, err
	}
	a.state = MeshCreated
	return m, nil
}

// release closes p and combines its error with err. The animation only
// reaches Closed when the whole call succeeded.
func (a *Animation) release(p Plotter, err error) error {
	cerr := p.Close()
	if err == nil && cerr == nil {
		a.state = Closed
	}
	return multierr.Append(err, cerr)
}

func (a *Animation) plotterFactory(ctx context.Context) PlotterFactory {
	if a.newPlotter != nil {
		return a.newPlotter
	}
	enc := video.Encoding{FPS: a.cfg.FPS, Encoder: a.cfg.VideoEncoder, Quality: a.cfg.Quality}
	if enc.Encoder == "" {
		enc.Encoder = video.BestH264Encoder()
	}
	if enc.Quality == 0 {
		enc.Quality = video.DefaultQuality(enc.Encoder)
	}
	return RenderPlotters(video.FFmpegOpener(ctx, enc), video.FFplayViewer{Title: a.field})
}
