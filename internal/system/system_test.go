package system

import (
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFramePool(t *testing.T) {
	p := NewFramePool(8, 6)
	rect := image.Rect(0, 0, 8, 6)
	assert.Equal(t, rect, p.Bounds())

	img := p.Get()
	assert.Equal(t, rect, img.Bounds())
	p.Put(img)

	// frames of another size never come back out of the pool
	p.Put(image.NewRGBA(image.Rect(0, 0, 3, 3)))
	for i := 0; i < 4; i++ {
		assert.Equal(t, rect, p.Get().Bounds())
	}
	p.Put(nil)
}

func TestMeasure(t *testing.T) {
	u := Measure(time.Now().Add(-2*time.Second), 48)
	assert.Equal(t, 48, u.Frames)
	assert.InDelta(t, 24, u.FPS, 1)
	assert.GreaterOrEqual(t, u.Elapsed, 2*time.Second)
}
