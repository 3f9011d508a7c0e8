package render

import (
	"math"

	"github.com/golang/geo/r3"
)

// Camera is a perspective camera. Roll (degrees) turns the view about the
// direction of projection, starting from +Y as the up reference; a roll of
// -90 puts +Z (north) up for a camera in the equatorial plane.
type Camera struct {
	Position   r3.Vector
	FocalPoint r3.Vector
	Roll       float64
	ViewAngle  float64
}

// DefaultCamera looks at the globe from above lon=0, lat=0 with north up.
func DefaultCamera() Camera {
	return Camera{
		Position:  r3.Vector{X: 4.5},
		Roll:      -90,
		ViewAngle: 30,
	}
}

type view struct {
	eye                 r3.Vector
	forward, right, up  r3.Vector
	scale, cx, cy, near float64
}

func (c Camera) view(width, height int) view {
	f := c.FocalPoint.Sub(c.Position).Normalize()
	ref := r3.Vector{Y: 1}
	if math.Abs(f.Dot(ref)) > 0.999 {
		ref = r3.Vector{Z: 1}
	}
	up0 := ref.Sub(f.Mul(f.Dot(ref))).Normalize()

	rad := c.Roll * math.Pi / 180
	up := up0.Mul(math.Cos(rad)).Add(f.Cross(up0).Mul(math.Sin(rad))).Normalize()

	angle := c.ViewAngle
	if angle <= 0 {
		angle = 30
	}
	return view{
		eye:     c.Position,
		forward: f,
		right:   f.Cross(up),
		up:      up,
		scale:   float64(height) / 2 / math.Tan(angle*math.Pi/360),
		cx:      float64(width) / 2,
		cy:      float64(height) / 2,
		near:    1e-6,
	}
}

type screenPoint struct {
	X, Y  float64
	Depth float64
	OK    bool
}

func (v view) project(p r3.Vector) screenPoint {
	d := p.Sub(v.eye)
	z := d.Dot(v.forward)
	if z <= v.near || math.IsNaN(z) {
		return screenPoint{}
	}
	return screenPoint{
		X:     v.cx + d.Dot(v.right)/z*v.scale,
		Y:     v.cy - d.Dot(v.up)/z*v.scale,
		Depth: z,
		OK:    true,
	}
}

// facing reports whether a sphere surface patch centred at c faces the eye.
func (v view) facing(c r3.Vector) bool {
	return c.Dot(v.eye.Sub(c)) > 0
}
