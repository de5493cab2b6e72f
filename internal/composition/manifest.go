package composition

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Manifest is the sequenced timeline of a composition, as exported by `plan`.
type Manifest struct {
	ID      string          `yaml:"id"`
	Width   int             `yaml:"width"`
	Height  int             `yaml:"height"`
	FPS     int             `yaml:"fps"`
	Frames  int             `yaml:"frames"`
	Seconds float64         `yaml:"seconds"`
	Slides  []ManifestSlide `yaml:"slides"`
	Audio   []AudioTrack    `yaml:"audio,omitempty"`
}

// ManifestSlide is one slide interval [Start, End) in frames.
type ManifestSlide struct {
	Index     int    `yaml:"index"`
	Name      string `yaml:"name"`
	Start     int    `yaml:"start"`
	End       int    `yaml:"end"`
	Duration  int    `yaml:"duration"`
	Narration string `yaml:"narration,omitempty"`
}

func (c *Composition) Manifest() Manifest {
	m := Manifest{
		ID:      c.ID,
		Width:   c.Width,
		Height:  c.Height,
		FPS:     c.FPS,
		Frames:  c.DurationInFrames(),
		Seconds: c.Seconds(),
		Audio:   c.AudioTracks(),
	}
	for i, s := range c.Slides {
		m.Slides = append(m.Slides, ManifestSlide{
			Index:     i,
			Name:      s.Name,
			Start:     c.plan.Start(i),
			End:       c.plan.End(i),
			Duration:  c.plan.Duration(i),
			Narration: s.Narration,
		})
	}
	return m
}

// WriteManifest writes a manifest to a YAML file
func WriteManifest(m Manifest, path string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// ReadManifest reads a manifest from a YAML file
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}

	return &m, nil
}
