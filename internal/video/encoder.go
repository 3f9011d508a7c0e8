package video

import (
	"os/exec"
	"strings"
)

// Encoding selects the codec and output frame rate of a movie.
type Encoding struct {
	FPS     int
	Encoder string // ffmpeg encoder name, e.g. libx264
	Quality int    // CRF for libx264, CQ for nvenc, bitrate/100 kbit/s for videotoolbox
}

// BestH264Encoder returns the first hardware H.264 encoder ffmpeg reports,
// falling back to libx264.
func BestH264Encoder() string {
	out, err := exec.Command("ffmpeg", "-hide_banner", "-encoders").CombinedOutput()
	if err != nil {
		return "libx264"
	}
	for _, name := range []string{"h264_videotoolbox", "h264_nvenc"} {
		if strings.Contains(string(out), name) {
			return name
		}
	}
	return "libx264"
}

// DefaultQuality returns a sensible quality setting for encoder.
func DefaultQuality(encoder string) int {
	switch encoder {
	case "h264_videotoolbox":
		return 75
	case "h264_nvenc":
		return 28
	default:
		return 23
	}
}

// qualityArgs maps Quality onto the flag each encoder understands.
func (e Encoding) qualityArgs() map[string]interface{} {
	q := e.Quality
	if q == 0 {
		q = DefaultQuality(e.Encoder)
	}
	switch e.Encoder {
	case "h264_videotoolbox":
		return map[string]interface{}{"b:v": q * 100 * 1000}
	case "h264_nvenc":
		return map[string]interface{}{"cq": q}
	default:
		return map[string]interface{}{"crf": q, "preset": "medium"}
	}
}
