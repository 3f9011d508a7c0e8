// Package system holds process-level helpers: frame buffer reuse and
// resource usage reporting.
package system

import (
	"image"
	"sync"
)

// FramePool recycles the RGBA buffers of one window size, so a long
// render does not allocate a full-resolution frame per step.
type FramePool struct {
	rect image.Rectangle
	pool sync.Pool
}

// NewFramePool returns a pool of width x height frames.
func NewFramePool(width, height int) *FramePool {
	p := &FramePool{rect: image.Rect(0, 0, width, height)}
	p.pool.New = func() interface{} { return image.NewRGBA(p.rect) }
	return p
}

// Bounds returns the size of every frame handed out.
func (p *FramePool) Bounds() image.Rectangle { return p.rect }

// Get returns a frame. Its contents are unspecified.
func (p *FramePool) Get() *image.RGBA {
	return p.pool.Get().(*image.RGBA)
}

// Put returns img for reuse. Frames of another size are dropped.
func (p *FramePool) Put(img *image.RGBA) {
	if img == nil || img.Rect != p.rect {
		return
	}
	p.pool.Put(img)
}
