package animate

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Easing maps normalized progress in [0,1] to eased progress.
type Easing func(t float64) float64

func Linear(t float64) float64 { return t }

func Quad(t float64) float64 { return t * t }

func Cubic(t float64) float64 { return t * t * t }

func Sin(t float64) float64 { return 1 - math.Cos(t*math.Pi/2) }

func Exp(t float64) float64 { return math.Pow(2, 10*(t-1)) }

func Circle(t float64) float64 { return 1 - math.Sqrt(1-t*t) }

// Back overshoots slightly before moving forward.
func Back(t float64) float64 {
	const s = 1.70158
	return t * t * ((s+1)*t - s)
}

// In runs e forwards; kept for symmetry in declarative curves.
func In(e Easing) Easing { return e }

// Out runs e backwards.
func Out(e Easing) Easing {
	return func(t float64) float64 { return 1 - e(1-t) }
}

// InOut runs e forwards for the first half and backwards for the second.
func InOut(e Easing) Easing {
	return func(t float64) float64 {
		if t < 0.5 {
			return e(t*2) / 2
		}
		return 1 - e((1-t)*2)/2
	}
}

// Bezier is a CSS-style cubic-bezier(x1, y1, x2, y2) timing function.
func Bezier(x1, y1, x2, y2 float64) Easing {
	sample := func(a1, a2, t float64) float64 {
		// B(t) for P0=0, P3=1
		u := 1 - t
		return 3*u*u*t*a1 + 3*u*t*t*a2 + t*t*t
	}
	slope := func(a1, a2, t float64) float64 {
		u := 1 - t
		return 3*u*u*a1 + 6*u*t*(a2-a1) + 3*t*t*(1-a2)
	}
	solveX := func(x float64) float64 {
		t := x
		for i := 0; i < 8; i++ {
			d := slope(x1, x2, t)
			if math.Abs(d) < 1e-7 {
				break
			}
			err := sample(x1, x2, t) - x
			if math.Abs(err) < 1e-7 {
				return t
			}
			t -= err / d
		}
		lo, hi := 0.0, 1.0
		t = x
		for i := 0; i < 50; i++ {
			v := sample(x1, x2, t)
			if math.Abs(v-x) < 1e-7 {
				break
			}
			if v < x {
				lo = t
			} else {
				hi = t
			}
			t = (lo + hi) / 2
		}
		return t
	}
	return func(t float64) float64 {
		if t <= 0 || t >= 1 {
			return t
		}
		return sample(y1, y2, solveX(t))
	}
}

var baseEasings = map[string]Easing{
	"linear": Linear,
	"quad":   Quad,
	"cubic":  Cubic,
	"sin":    Sin,
	"exp":    Exp,
	"circle": Circle,
	"back":   Back,
	"ease":   Bezier(0.25, 0.1, 0.25, 1),
}

// ParseEasing reads declarative easings such as "quad", "out(quad)",
// "inOut(cubic)" or "bezier(0.42,0,0.58,1)". Empty means linear.
func ParseEasing(s string) (Easing, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Linear, nil
	}
	if e, ok := baseEasings[s]; ok {
		return e, nil
	}

	open := strings.IndexByte(s, '(')
	if open < 0 || !strings.HasSuffix(s, ")") {
		return nil, fmt.Errorf("unknown easing %q", s)
	}
	name, arg := s[:open], s[open+1:len(s)-1]

	switch name {
	case "in", "out", "inOut":
		inner, err := ParseEasing(arg)
		if err != nil {
			return nil, err
		}
		switch name {
		case "in":
			return In(inner), nil
		case "out":
			return Out(inner), nil
		default:
			return InOut(inner), nil
		}
	case "bezier":
		parts := strings.Split(arg, ",")
		if len(parts) != 4 {
			return nil, fmt.Errorf("bezier needs 4 control values, got %q", arg)
		}
		var v [4]float64
		for i, p := range parts {
			f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return nil, fmt.Errorf("bezier control %q: %w", p, err)
			}
			v[i] = f
		}
		return Bezier(v[0], v[1], v[2], v[3]), nil
	}
	return nil, fmt.Errorf("unknown easing %q", s)
}
