// Package config holds the animation settings and their YAML form.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ivlev/globe2video/internal/grid"
)

const (
	DefaultWidth  = 3840
	DefaultHeight = 2160
	DefaultFPS    = 24
)

type Config struct {
	grid.Names `yaml:",inline"`

	Cmap string `yaml:"cmap"`
	// Clim is empty for per-frame auto scaling, or [min, max].
	Clim      []float64 `yaml:"clim"`
	FieldName string    `yaml:"field_name"`

	BackgroundColor string `yaml:"background_color"`
	BaseColor       string `yaml:"base_color"`
	BaseTexture     string `yaml:"base_texture"`
	// ViewAngle is the camera's vertical field of view in degrees, 0 for
	// the renderer default.
	ViewAngle float64 `yaml:"view_angle"`

	MaskPolicy string `yaml:"mask_policy"`
	MaskFrame  int    `yaml:"mask_frame"`

	Width        int    `yaml:"width"`
	Height       int    `yaml:"height"`
	FPS          int    `yaml:"fps"`
	VideoEncoder string `yaml:"video_encoder"`
	Quality      int    `yaml:"quality"`

	CameraScenario string `yaml:"camera_scenario"`
	ShowStats      bool   `yaml:"show_stats"`
	LogLevel       string `yaml:"log_level"`
}

// Default returns the settings used when no file or flag overrides them.
func Default() *Config {
	return &Config{
		Names:           grid.DefaultNames(),
		Cmap:            "inferno",
		BackgroundColor: "black",
		BaseColor:       "gray",
		MaskPolicy:      string(grid.MaskOnce),
		Width:           DefaultWidth,
		Height:          DefaultHeight,
		FPS:             DefaultFPS,
		LogLevel:        "info",
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if _, err := grid.ParseMaskPolicy(c.MaskPolicy); err != nil {
		return err
	}
	if c.MaskFrame < 0 {
		return fmt.Errorf("mask_frame must not be negative, got %d", c.MaskFrame)
	}
	switch len(c.Clim) {
	case 0:
	case 2:
		if !(c.Clim[0] < c.Clim[1]) {
			return fmt.Errorf("clim must be [min, max] with min < max, got %v", c.Clim)
		}
	default:
		return fmt.Errorf("clim must have two values, got %d", len(c.Clim))
	}
	if c.Width <= 0 || c.Height <= 0 || c.Width%2 != 0 || c.Height%2 != 0 {
		return fmt.Errorf("resolution %dx%d must be positive and even", c.Width, c.Height)
	}
	if c.ViewAngle < 0 || c.ViewAngle >= 180 {
		return fmt.Errorf("view_angle must be in [0, 180), got %g", c.ViewAngle)
	}
	if c.FPS <= 0 {
		return fmt.Errorf("fps must be positive, got %d", c.FPS)
	}
	for name, v := range map[string]string{
		"x_dim": c.X, "y_dim": c.Y, "time_dim": c.Time, "lon_name": c.Lon, "lat_name": c.Lat,
	} {
		if v == "" {
			return fmt.Errorf("%s must not be empty", name)
		}
	}
	return nil
}

// ColorLimits returns the fixed color range, or nil for auto scaling.
func (c *Config) ColorLimits() *[2]float64 {
	if len(c.Clim) != 2 {
		return nil
	}
	return &[2]float64{c.Clim[0], c.Clim[1]}
}

// Policy returns the parsed mask policy. Call Validate first.
func (c *Config) Policy() grid.MaskPolicy {
	p, _ := grid.ParseMaskPolicy(c.MaskPolicy)
	return p
}
