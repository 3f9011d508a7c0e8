package render

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// textureWidth x textureHeight is the working resolution of base textures.
const (
	textureWidth  = 720
	textureHeight = 360
)

// LoadTexture reads an equirectangular image (PNG, JPEG, TIFF, BMP or WebP)
// and resamples it to the working resolution.
func LoadTexture(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("render: decode texture %s: %w", path, err)
	}
	return resampleTexture(src), nil
}

func resampleTexture(src image.Image) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, textureWidth, textureHeight))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}

// sampleTexture returns the texel at lon/lat (degrees) of an
// equirectangular image.
func sampleTexture(img image.Image, lon, lat float64) color.Color {
	b := img.Bounds()
	x := int((lon + 180) / 360 * float64(b.Dx()))
	y := int((90 - lat) / 180 * float64(b.Dy()))
	x = ((x % b.Dx()) + b.Dx()) % b.Dx()
	if y < 0 {
		y = 0
	} else if y >= b.Dy() {
		y = b.Dy() - 1
	}
	return img.At(b.Min.X+x, b.Min.Y+y)
}
