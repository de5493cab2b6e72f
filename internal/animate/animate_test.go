package animate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterpolateFadeIn(t *testing.T) {
	domain := []float64{0, 30}
	out := []float64{0, 1}
	opts := ClampRight(Linear)

	assert.Equal(t, 0.0, Interpolate(0, domain, out, opts))
	assert.Equal(t, 0.5, Interpolate(15, domain, out, opts))
	assert.Equal(t, 1.0, Interpolate(45, domain, out, opts))
	// left edge is extended
	assert.InDelta(t, -0.5, Interpolate(-15, domain, out, opts), 1e-12)
}

func TestInterpolateClampEdges(t *testing.T) {
	domain := []float64{0, 15, 105, 120}
	out := []float64{0, 1, 1, 0}
	opts := ClampBoth(InOut(Quad))

	for _, v := range []float64{-100, -1, 0} {
		assert.Equal(t, out[0], Interpolate(v, domain, out, opts), "value %v", v)
	}
	for _, v := range []float64{120, 121, 1e6} {
		assert.Equal(t, out[len(out)-1], Interpolate(v, domain, out, opts), "value %v", v)
	}
}

func TestInterpolateBreakpointsExact(t *testing.T) {
	domain := []float64{0, 7, 19, 20, 33}
	out := []float64{0.1, 0.7, 0.3, 0.9, 0.2}

	for _, ease := range []Easing{Linear, Quad, InOut(Cubic), Back, Bezier(0.42, 0, 0.58, 1)} {
		for i := range domain {
			got := Interpolate(domain[i], domain, out, ClampBoth(ease))
			assert.Equal(t, out[i], got, "breakpoint %d", i)
		}
	}
}

func TestInterpolateExtrapolation(t *testing.T) {
	domain := []float64{10, 20}
	out := []float64{0, 100}

	assert.InDelta(t, 150, Interpolate(25, domain, out, Options{}), 1e-9)
	assert.Equal(t, 25.0, Interpolate(25, domain, out, Options{ExtrapolateRight: Identity}))
	assert.Equal(t, 3.0, Interpolate(3, domain, out, Options{ExtrapolateLeft: Identity}))
	assert.Equal(t, 0.0, Interpolate(3, domain, out, Options{ExtrapolateLeft: Clamp}))
}

func TestInterpolateEasing(t *testing.T) {
	got := Interpolate(15, []float64{0, 30}, []float64{0, 1}, ClampBoth(Quad))
	assert.InDelta(t, 0.25, got, 1e-12)

	got = Interpolate(15, []float64{0, 30}, []float64{0, 1}, ClampBoth(Out(Quad)))
	assert.InDelta(t, 0.75, got, 1e-12)

	got = Interpolate(15, []float64{0, 30}, []float64{0, 1}, ClampBoth(InOut(Quad)))
	assert.InDelta(t, 0.5, got, 1e-12)
}

func TestInterpolatePanicsOnBadCurve(t *testing.T) {
	assert.Panics(t, func() { Interpolate(0, []float64{0}, []float64{0}, Options{}) })
	assert.Panics(t, func() { Interpolate(0, []float64{0, 1}, []float64{0}, Options{}) })
	assert.Panics(t, func() { Interpolate(0, []float64{1, 1}, []float64{0, 1}, Options{}) })

	err := Curve{Domain: []float64{5, 2}, Range: []float64{0, 1}}.Validate()
	assert.ErrorIs(t, err, ErrInvalidCurve)
}

func TestCurveShift(t *testing.T) {
	c := Curve{Domain: []float64{0, 20}, Range: []float64{0, 1}, Options: ClampBoth(Linear)}
	shifted := c.Shift(30)

	assert.Equal(t, []float64{0, 20}, c.Domain)
	assert.Equal(t, 0.0, shifted.At(30))
	assert.Equal(t, 0.5, shifted.At(40))
	assert.Equal(t, 1.0, shifted.At(60))
}

func TestParseEasing(t *testing.T) {
	tests := []struct {
		in      string
		at      float64
		want    float64
		wantErr bool
	}{
		{"", 0.3, 0.3, false},
		{"linear", 0.3, 0.3, false},
		{"quad", 0.5, 0.25, false},
		{"in(quad)", 0.5, 0.25, false},
		{"out(quad)", 0.5, 0.75, false},
		{"inOut(quad)", 0.25, 0.125, false},
		{"bezier(0,0,1,1)", 0.4, 0.4, false},
		{"wobble", 0, 0, true},
		{"out(wobble)", 0, 0, true},
		{"bezier(1,2)", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			e, err := ParseEasing(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, e(tt.at), 1e-5)
		})
	}
}

func TestSpring(t *testing.T) {
	cfg := SpringConfig{Damping: 10, Stiffness: 100, Mass: 0.5}

	assert.Equal(t, 0.0, Spring(0, 30, cfg))
	assert.Equal(t, 0.0, Spring(-5, 30, cfg))

	// deterministic
	assert.Equal(t, Spring(12, 30, cfg), Spring(12, 30, cfg))

	// approaches 1
	assert.InDelta(t, 1.0, Spring(120, 30, cfg), 1e-3)

	// underdamped config overshoots somewhere
	peak := 0.0
	for f := 0; f < 60; f++ {
		peak = math.Max(peak, Spring(float64(f), 30, cfg))
	}
	assert.Greater(t, peak, 1.0)

	clamped := cfg
	clamped.OvershootClamping = true
	for f := 0; f < 60; f++ {
		assert.LessOrEqual(t, Spring(float64(f), 30, clamped), 1.0)
	}
}

func TestSpringDampingRegimes(t *testing.T) {
	for _, cfg := range []SpringConfig{
		{Damping: 20, Stiffness: 100, Mass: 1}, // critical
		{Damping: 40, Stiffness: 100, Mass: 1}, // overdamped
	} {
		prev := 0.0
		for f := 1; f < 90; f++ {
			v := Spring(float64(f), 30, cfg)
			assert.GreaterOrEqual(t, v, prev, "no overshoot without oscillation")
			assert.LessOrEqual(t, v, 1.0+1e-9)
			prev = v
		}
	}
}

func TestSettleFrame(t *testing.T) {
	cfg := SpringConfig{Damping: 10, Stiffness: 100, Mass: 0.5}
	f := SettleFrame(30, cfg, 0.01, 300)
	assert.Greater(t, f, 0)
	assert.Less(t, f, 300)
	for i := f; i < 300; i++ {
		assert.InDelta(t, 1, Spring(float64(i), 30, cfg), 0.01)
	}
}
