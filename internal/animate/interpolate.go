package animate

import (
	"errors"
	"fmt"
)

var ErrInvalidCurve = errors.New("animate: invalid curve")

// Extrapolate selects what happens outside the curve's domain.
type Extrapolate string

const (
	Extend   Extrapolate = "extend"
	Clamp    Extrapolate = "clamp"
	Identity Extrapolate = "identity"
)

// Options configures a single interpolation.
type Options struct {
	Easing           Easing
	ExtrapolateLeft  Extrapolate
	ExtrapolateRight Extrapolate
}

// ClampBoth is the most common call-site policy.
func ClampBoth(e Easing) Options {
	return Options{Easing: e, ExtrapolateLeft: Clamp, ExtrapolateRight: Clamp}
}

// ClampRight leaves the left edge extended, the way entrances are usually written.
func ClampRight(e Easing) Options {
	return Options{Easing: e, ExtrapolateRight: Clamp}
}

// Interpolate maps value through the piecewise curve (domain[i], out[i]).
// Easing is applied to the normalized position inside the active segment.
// Domain must be strictly increasing with len(domain) == len(out) >= 2;
// violating that is a programming error and panics.
func Interpolate(value float64, domain, out []float64, opts Options) float64 {
	if err := checkCurve(domain, out); err != nil {
		panic(err)
	}

	seg := segment(domain, value)
	inMin, inMax := domain[seg], domain[seg+1]
	outMin, outMax := out[seg], out[seg+1]

	if value < inMin {
		switch opts.ExtrapolateLeft {
		case Clamp:
			value = inMin
		case Identity:
			return value
		}
	}
	if value > inMax {
		switch opts.ExtrapolateRight {
		case Clamp:
			value = inMax
		case Identity:
			return value
		}
	}

	if outMin == outMax {
		return outMin
	}

	t := (value - inMin) / (inMax - inMin)
	if t != 0 && t != 1 {
		ease := opts.Easing
		if ease == nil {
			ease = Linear
		}
		t = ease(t)
	}
	return lerp(outMin, outMax, t)
}

// segment returns i such that domain[i] <= value < domain[i+1], using the
// first or last segment for values outside the domain.
func segment(domain []float64, value float64) int {
	last := len(domain) - 2
	for i := 1; i <= last; i++ {
		if value < domain[i] {
			return i - 1
		}
	}
	return last
}

func checkCurve(domain, out []float64) error {
	if len(domain) < 2 {
		return fmt.Errorf("%w: need at least 2 points, got %d", ErrInvalidCurve, len(domain))
	}
	if len(domain) != len(out) {
		return fmt.Errorf("%w: domain has %d points, range has %d", ErrInvalidCurve, len(domain), len(out))
	}
	for i := 1; i < len(domain); i++ {
		if domain[i] <= domain[i-1] {
			return fmt.Errorf("%w: domain must be strictly increasing (%v)", ErrInvalidCurve, domain)
		}
	}
	return nil
}

// lerp is exact at both ends: t=0 yields a, t=1 yields b.
func lerp(a, b, t float64) float64 {
	return a*(1-t) + b*t
}

// Curve is a reusable animation curve.
type Curve struct {
	Domain  []float64
	Range   []float64
	Options Options
}

func (c Curve) Validate() error {
	return checkCurve(c.Domain, c.Range)
}

func (c Curve) At(frame float64) float64 {
	return Interpolate(frame, c.Domain, c.Range, c.Options)
}

// Shift moves the curve's domain by delta frames.
func (c Curve) Shift(delta float64) Curve {
	d := make([]float64, len(c.Domain))
	for i, v := range c.Domain {
		d[i] = v + delta
	}
	c.Domain = d
	return c
}
