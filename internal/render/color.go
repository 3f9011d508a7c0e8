package render

import (
	"fmt"
	"image/color"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/colornames"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
)

// ParseColor accepts a CSS color name ("black", "gray") or a hex triplet
// ("#1e1e1e").
func ParseColor(s string) (color.Color, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if c, ok := colornames.Map[name]; ok {
		return c, nil
	}
	c, err := colorful.Hex(name)
	if err != nil {
		return nil, fmt.Errorf("render: unknown color %q", s)
	}
	return c, nil
}

// Colormap maps t in [0, 1] to a color.
type Colormap func(t float64) color.Color

var colormaps = map[string]func() palette.ColorMap{
	"inferno":            moreland.ExtendedBlackBody,
	"blackbody-extended": moreland.ExtendedBlackBody,
	"blackbody":          moreland.BlackBody,
	"kindlmann":          moreland.Kindlmann,
	"kindlmann-extended": moreland.ExtendedKindlmann,
	"coolwarm":           func() palette.ColorMap { return moreland.SmoothBlueRed() },
}

// LookupColormap returns the named colormap.
func LookupColormap(name string) (Colormap, error) {
	switch name {
	case "heat":
		return fromPalette(palette.Heat(256, 1)), nil
	case "gray", "greys":
		return func(t float64) color.Color {
			v := uint8(math.Round(clamp01(t) * 255))
			return color.RGBA{R: v, G: v, B: v, A: 255}
		}, nil
	}

	ctor, ok := colormaps[name]
	if !ok {
		return nil, fmt.Errorf("render: unknown colormap %q", name)
	}
	cm := ctor()
	cm.SetMin(0)
	cm.SetMax(1)
	return func(t float64) color.Color {
		c, err := cm.At(clamp01(t))
		if err != nil {
			return color.Transparent
		}
		return c
	}, nil
}

func fromPalette(p palette.Palette) Colormap {
	colors := p.Colors()
	return func(t float64) color.Color {
		i := int(math.Round(clamp01(t) * float64(len(colors)-1)))
		return colors[i]
	}
}

func clamp01(t float64) float64 {
	switch {
	case math.IsNaN(t), t < 0:
		return 0
	case t > 1:
		return 1
	}
	return t
}

// normalize maps v into [0, 1] over clim. A degenerate range maps to 0.5.
func normalize(v float64, clim [2]float64) float64 {
	span := clim[1] - clim[0]
	if span == 0 {
		return 0.5
	}
	return clamp01((v - clim[0]) / span)
}
