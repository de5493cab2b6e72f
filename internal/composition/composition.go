package composition

import (
	"errors"
	"fmt"
	"math"

	"github.com/ivlev/marketreel/internal/animate"
	"github.com/ivlev/marketreel/internal/scene"
	"github.com/ivlev/marketreel/internal/timeline"
)

var (
	ErrInvalid       = errors.New("composition: invalid definition")
	ErrDurationDrift = errors.New("composition: declared duration differs from slide plan")
)

const defaultAudioPadding = 1.0

// Slide is one timed page of a composition.
//
// The length comes from the first of Duration (frames), Seconds, or
// NarrationSeconds (+ the composition's audio padding) that is set.
type Slide struct {
	Name             string      `yaml:"name"`
	Duration         int         `yaml:"duration,omitempty"`
	Seconds          float64     `yaml:"seconds,omitempty"`
	NarrationSeconds float64     `yaml:"narration_seconds,omitempty"`
	Narration        string      `yaml:"narration,omitempty"`
	Fade             int         `yaml:"fade,omitempty"`
	Background       string      `yaml:"background,omitempty"`
	Content          scene.Block `yaml:"content"`
}

// Music is a looped bed under the narration for the whole composition.
type Music struct {
	Src    string  `yaml:"src"`
	Volume float64 `yaml:"volume"`
}

// Composition is a named video: geometry, frame rate and the slide sequence.
type Composition struct {
	ID             string  `yaml:"id"`
	Title          string  `yaml:"title,omitempty"`
	Width          int     `yaml:"width"`
	Height         int     `yaml:"height"`
	FPS            int     `yaml:"fps"`
	Background     string  `yaml:"background,omitempty"`
	Color          string  `yaml:"color,omitempty"`
	AudioPadding   float64 `yaml:"audio_padding,omitempty"`
	DeclaredFrames int     `yaml:"declared_frames,omitempty"`
	Music          *Music  `yaml:"music,omitempty"`
	Slides         []Slide `yaml:"slides"`

	plan timeline.Plan
}

// Prepare resolves slide lengths into a plan and compiles slide content.
// A composition must be prepared before it is rendered.
func (c *Composition) Prepare() error {
	if c.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalid)
	}
	if c.Width <= 0 || c.Height <= 0 || c.Width%2 != 0 || c.Height%2 != 0 {
		return fmt.Errorf("%w: %s: size %dx%d must be positive and even", ErrInvalid, c.ID, c.Width, c.Height)
	}
	if c.FPS <= 0 {
		return fmt.Errorf("%w: %s: fps must be positive", ErrInvalid, c.ID)
	}
	if len(c.Slides) == 0 {
		return fmt.Errorf("%w: %s: no slides", ErrInvalid, c.ID)
	}

	padding := c.AudioPadding
	if padding == 0 {
		padding = defaultAudioPadding
	}

	frames := make([]int, len(c.Slides))
	for i := range c.Slides {
		s := &c.Slides[i]
		switch {
		case s.Duration > 0:
			frames[i] = s.Duration
		case s.Seconds > 0:
			frames[i] = int(math.Ceil(s.Seconds * float64(c.FPS)))
		case s.NarrationSeconds > 0:
			frames[i] = int(math.Ceil((s.NarrationSeconds + padding) * float64(c.FPS)))
		default:
			return fmt.Errorf("%w: %s: slide %d (%s) has no length", ErrInvalid, c.ID, i, s.Name)
		}
		if s.Fade < 0 || 2*s.Fade > frames[i] {
			return fmt.Errorf("%w: %s: slide %d fade %d does not fit %d frames", ErrInvalid, c.ID, i, s.Fade, frames[i])
		}
		if err := s.Content.Prepare(); err != nil {
			return fmt.Errorf("%s: slide %d (%s): %w", c.ID, i, s.Name, err)
		}
	}

	plan, err := timeline.NewPlan(frames...)
	if err != nil {
		return fmt.Errorf("%s: %w", c.ID, err)
	}
	c.plan = plan
	return nil
}

func (c *Composition) Plan() timeline.Plan { return c.plan }

// DurationInFrames is derived from the slide plan; DeclaredFrames never wins.
func (c *Composition) DurationInFrames() int { return c.plan.Total() }

func (c *Composition) Seconds() float64 { return c.plan.Seconds(c.FPS) }

// CheckDeclared reports drift between a hand-declared frame count and the plan.
func (c *Composition) CheckDeclared() error {
	if c.DeclaredFrames == 0 || c.DeclaredFrames == c.DurationInFrames() {
		return nil
	}
	return fmt.Errorf("%w: %s declares %d frames, slides add up to %d",
		ErrDurationDrift, c.ID, c.DeclaredFrames, c.DurationInFrames())
}

// Frame is everything needed to draw one output frame.
type Frame struct {
	Index      int
	Slide      int
	Local      int
	Width      int
	Height     int
	Background string
	Color      string
	Opacity    float64
	Root       *scene.Node
}

// Frame evaluates the composition at a global frame number.
func (c *Composition) Frame(position int) Frame {
	pos := c.plan.Locate(position)
	s := &c.Slides[pos.Slide]

	bg := s.Background
	if bg == "" {
		bg = c.Background
	}

	return Frame{
		Index:      position,
		Slide:      pos.Slide,
		Local:      pos.Local,
		Width:      c.Width,
		Height:     c.Height,
		Background: bg,
		Color:      c.Color,
		Opacity:    slideOpacity(s.Fade, c.plan.Duration(pos.Slide), pos.Local),
		Root:       scene.Evaluate(&s.Content, float64(pos.Local), float64(c.FPS)),
	}
}

// slideOpacity fades a slide in over the first fade frames and out over the last.
func slideOpacity(fade, duration, local int) float64 {
	if fade <= 0 {
		return 1
	}
	f, d := float64(fade), float64(duration)
	opts := animate.ClampBoth(animate.InOut(animate.Quad))
	if 2*fade == duration {
		return animate.Interpolate(float64(local), []float64{0, f, d}, []float64{0, 1, 0}, opts)
	}
	return animate.Interpolate(float64(local), []float64{0, f, d - f, d}, []float64{0, 1, 1, 0}, opts)
}

// AudioTrack places an audio file on the output timeline, in frames.
type AudioTrack struct {
	Src    string  `yaml:"src"`
	From   int     `yaml:"from"`
	To     int     `yaml:"to"`
	Volume float64 `yaml:"volume"`
	Loop   bool    `yaml:"loop,omitempty"`
}

// AudioTracks lists narration ranged to each narrated slide, then the music bed.
func (c *Composition) AudioTracks() []AudioTrack {
	var tracks []AudioTrack
	for i, s := range c.Slides {
		if s.Narration == "" {
			continue
		}
		tracks = append(tracks, AudioTrack{
			Src:    s.Narration,
			From:   c.plan.Start(i),
			To:     c.plan.End(i),
			Volume: 1,
		})
	}
	if c.Music != nil && c.Music.Src != "" {
		vol := c.Music.Volume
		if vol <= 0 {
			vol = 0.2
		}
		tracks = append(tracks, AudioTrack{Src: c.Music.Src, From: 0, To: c.plan.Total(), Volume: vol, Loop: true})
	}
	return tracks
}
