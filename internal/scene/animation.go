package scene

import (
	"fmt"

	"github.com/ivlev/marketreel/internal/animate"
)

type Property string

const (
	PropOpacity    Property = "opacity"
	PropScale      Property = "scale"
	PropTranslateX Property = "translateX"
	PropTranslateY Property = "translateY"
)

// Animation drives one property from slide-local frames.
//
// Curve animations map Frames -> Values through the easing. Spring animations
// map the spring's 0..1 progress onto Values (default [0,1]).
type Animation struct {
	Property Property              `yaml:"property"`
	Frames   []float64             `yaml:"frames,omitempty"`
	Values   []float64             `yaml:"values,omitempty"`
	Easing   string                `yaml:"easing,omitempty"`
	Clamp    string                `yaml:"clamp,omitempty"` // right (default), both, left, none
	Spring   *animate.SpringConfig `yaml:"spring,omitempty"`
	Delay    float64               `yaml:"delay,omitempty"`

	curve *animate.Curve
}

func clampOptions(mode string) (animate.Options, error) {
	switch mode {
	case "", "right":
		return animate.Options{ExtrapolateRight: animate.Clamp}, nil
	case "both":
		return animate.Options{ExtrapolateLeft: animate.Clamp, ExtrapolateRight: animate.Clamp}, nil
	case "left":
		return animate.Options{ExtrapolateLeft: animate.Clamp}, nil
	case "none":
		return animate.Options{}, nil
	}
	return animate.Options{}, fmt.Errorf("unknown clamp mode %q", mode)
}

func (a *Animation) compile() error {
	c, err := a.build()
	if err != nil {
		return err
	}
	a.curve = c
	return nil
}

func (a *Animation) build() (*animate.Curve, error) {
	switch a.Property {
	case PropOpacity, PropScale, PropTranslateX, PropTranslateY:
	default:
		return nil, fmt.Errorf("%w: unknown property %q", ErrInvalidBlock, a.Property)
	}

	if a.Spring != nil {
		if len(a.Values) != 0 && len(a.Values) != 2 {
			return nil, fmt.Errorf("%w: spring values need exactly 2 entries", ErrInvalidBlock)
		}
		return nil, nil
	}

	opts, err := clampOptions(a.Clamp)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBlock, err)
	}
	ease, err := animate.ParseEasing(a.Easing)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBlock, err)
	}
	opts.Easing = ease

	c := animate.Curve{Domain: a.Frames, Range: a.Values, Options: opts}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if a.Delay != 0 {
		c = c.Shift(a.Delay)
	}
	return &c, nil
}

// Value evaluates the animation at a slide-local frame.
func (a *Animation) Value(frame, fps float64) float64 {
	if a.Spring != nil {
		from, to := 0.0, 1.0
		if len(a.Values) == 2 {
			from, to = a.Values[0], a.Values[1]
		}
		p := animate.Spring(frame-a.Delay, fps, *a.Spring)
		return from + (to-from)*p
	}
	c := a.curve
	if c == nil {
		// not prepared
		var err error
		if c, err = a.build(); err != nil {
			return identity(a.Property)
		}
	}
	return c.At(frame)
}

func identity(p Property) float64 {
	switch p {
	case PropOpacity, PropScale:
		return 1
	}
	return 0
}
