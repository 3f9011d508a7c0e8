package camera

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Scenario describes a camera flight as keyframes pinned to frame indices.
type Scenario struct {
	Version   string     `yaml:"version"`
	Keyframes []Keyframe `yaml:"keyframes"`
}

// Keyframe is a camera position at a given frame.
type Keyframe struct {
	Frame  int     `yaml:"frame"`
	Lon    float64 `yaml:"lon"`    // degrees
	Lat    float64 `yaml:"lat"`    // degrees
	Radius float64 `yaml:"radius"` // planet radii
}

// WriteScenario writes a scenario to a YAML file
func WriteScenario(sc *Scenario, path string) error {
	data, err := yaml.Marshal(sc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ReadScenario reads a scenario from a YAML file
func ReadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("camera: parse %s: %w", path, err)
	}
	if len(sc.Keyframes) == 0 {
		return nil, fmt.Errorf("camera: scenario %s has no keyframes", path)
	}
	for i, kf := range sc.Keyframes {
		if kf.Radius <= 1 {
			return nil, fmt.Errorf("camera: keyframe %d radius %.3f is inside the globe", i, kf.Radius)
		}
	}
	sort.SliceStable(sc.Keyframes, func(i, j int) bool {
		return sc.Keyframes[i].Frame < sc.Keyframes[j].Frame
	})
	return &sc, nil
}

// PathFromScenario samples the scenario once per frame.
func PathFromScenario(sc *Scenario, frames int) (*Path, error) {
	lon, lat, r := Interpolate(sc.Keyframes, frames)
	return NewPath(lon, lat, r)
}
