// Package video writes rendered frames into an encoded movie with ffmpeg
// and shows single frames for preview.
package video

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"io"
	"os/exec"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// Stream accepts frames of a fixed size until closed.
type Stream interface {
	WriteFrame(img image.Image) error
	Close() error
}

// Opener opens a movie stream at path with the given pixel size.
type Opener func(path string, width, height int) (Stream, error)

// FFmpegOpener returns an Opener that pipes raw RGBA frames into ffmpeg.
func FFmpegOpener(ctx context.Context, enc Encoding) Opener {
	return func(path string, width, height int) (Stream, error) {
		if _, err := exec.LookPath("ffmpeg"); err != nil {
			return nil, err
		}
		cmd, err := Command(ctx, path, width, height, enc)
		if err != nil {
			return nil, err
		}

		s := &ffmpegStream{cmd: cmd, width: width, height: height}
		cmd.Stdout = &s.log
		cmd.Stderr = &s.log
		s.stdin, err = cmd.StdinPipe()
		if err != nil {
			return nil, fmt.Errorf("stdin pipe error: %w", err)
		}
		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("ffmpeg start error: %w", err)
		}
		return s, nil
	}
}

// Command builds the ffmpeg invocation that encodes width x height RGBA
// frames read from stdin into path.
func Command(ctx context.Context, path string, width, height int, enc Encoding) (*exec.Cmd, error) {
	if width <= 0 || height <= 0 || width%2 != 0 || height%2 != 0 {
		return nil, fmt.Errorf("video: resolution %dx%d must be positive and even", width, height)
	}
	fps := enc.FPS
	if fps <= 0 {
		fps = 24
	}
	encoder := enc.Encoder
	if encoder == "" {
		encoder = "libx264"
	}
	enc.Encoder = encoder

	out := ffmpeg.KwArgs{
		"c:v":     encoder,
		"pix_fmt": "yuv420p",
	}
	for k, v := range enc.qualityArgs() {
		out[k] = v
	}

	stream := ffmpeg.Input("pipe:", ffmpeg.KwArgs{
		"f":         "rawvideo",
		"pix_fmt":   "rgba",
		"s":         fmt.Sprintf("%dx%d", width, height),
		"framerate": fps,
	}).Output(path, out)
	if ctx == nil {
		ctx = context.Background()
	}
	// the overwrite flag lives in the stream context, so set ctx first
	stream.Context = ctx
	stream = stream.OverWriteOutput()
	return stream.Compile(), nil
}

type ffmpegStream struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	log    bytes.Buffer
	width  int
	height int
	frames int
	closed bool
}

func (s *ffmpegStream) WriteFrame(img image.Image) error {
	b := img.Bounds()
	if b.Dx() != s.width || b.Dy() != s.height {
		return fmt.Errorf("video: frame is %dx%d, stream expects %dx%d", b.Dx(), b.Dy(), s.width, s.height)
	}
	if err := writeRawRGBA(s.stdin, img); err != nil {
		return fmt.Errorf("write raw error: %w", err)
	}
	s.frames++
	return nil
}

func (s *ffmpegStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.stdin.Close()
	if err := s.cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg wait error after %d frames: %w\n%s", s.frames, err, s.log.String())
	}
	return nil
}

func writeRawRGBA(w io.Writer, img image.Image) error {
	bounds := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != bounds.Dx()*4 || rgba.Rect.Min.X != 0 || rgba.Rect.Min.Y != 0 {
		rgba = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	}
	_, err := w.Write(rgba.Pix)
	return err
}
