package video

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
)

// Viewer displays a single rendered frame.
type Viewer interface {
	Show(ctx context.Context, img image.Image) error
}

// FFplayViewer opens the frame in an ffplay window and blocks until the
// window is closed.
type FFplayViewer struct {
	Title string
}

func (v FFplayViewer) Show(ctx context.Context, img image.Image) error {
	dir, err := os.MkdirTemp("", "globe2video_")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "preview.png")
	if err := WritePNG(path, img); err != nil {
		return err
	}

	title := v.Title
	if title == "" {
		title = "globe2video preview"
	}
	cmd := exec.CommandContext(ctx, "ffplay", "-hide_banner", "-loglevel", "error", "-window_title", title, path)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffplay error: %w, output: %s", err, string(out))
	}
	return nil
}

// FileViewer writes the frame as a PNG, for headless previews.
type FileViewer struct {
	Path string
}

func (v FileViewer) Show(_ context.Context, img image.Image) error {
	return WritePNG(v.Path, img)
}

// WritePNG encodes img to path.
func WritePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
