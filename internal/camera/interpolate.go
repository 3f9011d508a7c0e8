package camera

import "math"

// Interpolate samples keyframes at frames 0..frames-1. Before the first and
// after the last keyframe the camera holds still; in between positions are
// eased in and out, with longitude taking the shorter way round.
func Interpolate(keyframes []Keyframe, frames int) (lon, lat, r []float64) {
	lon = make([]float64, frames)
	lat = make([]float64, frames)
	r = make([]float64, frames)
	if len(keyframes) == 0 {
		return lon, lat, r
	}

	k := 0
	for f := 0; f < frames; f++ {
		for k+1 < len(keyframes) && f >= keyframes[k+1].Frame {
			k++
		}
		prev := keyframes[k]
		if f <= prev.Frame || k+1 == len(keyframes) {
			lon[f], lat[f], r[f] = wrapLon(prev.Lon), prev.Lat, prev.Radius
			continue
		}
		next := keyframes[k+1]

		span := float64(next.Frame - prev.Frame)
		t := easeInOutCubic(float64(f-prev.Frame) / span)

		lon[f] = wrapLon(prev.Lon + lonDelta(prev.Lon, next.Lon)*t)
		lat[f] = lerp(prev.Lat, next.Lat, t)
		r[f] = lerp(prev.Radius, next.Radius, t)
	}
	return lon, lat, r
}

// Orbit circles the globe at a fixed latitude and distance.
func Orbit(frames int, startLon, lat, radius, turns float64) (*Path, error) {
	lon := make([]float64, frames)
	lats := make([]float64, frames)
	r := make([]float64, frames)
	for f := range lon {
		lon[f] = wrapLon(startLon + 360*turns*float64(f)/float64(frames))
		lats[f] = lat
		r[f] = radius
	}
	return NewPath(lon, lats, r)
}

func lonDelta(from, to float64) float64 {
	d := math.Mod(to-from, 360)
	if d > 180 {
		d -= 360
	} else if d < -180 {
		d += 360
	}
	return d
}

func wrapLon(lon float64) float64 {
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func easeInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}
