// Package timeline sequences slides on a global frame counter.
//
// A Plan is the ordered list of per-slide durations in frames. Every lookup is a
// pure function of the plan and the frame being rendered, so it can be called for
// any frame in any order (parallel chunked export relies on that).
package timeline

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrEmptyPlan       = errors.New("timeline: plan has no slides")
	ErrInvalidDuration = errors.New("timeline: slide duration must be positive")
	ErrInvalidFPS      = errors.New("timeline: fps must be positive")
)

// Position is the active slide and the frame offset inside it.
type Position struct {
	Slide int
	Local int
}

// Plan holds slide durations in frames. The zero value is an empty plan.
type Plan struct {
	durations []int
	offsets   []int
}

// NewPlan validates durations and precomputes cumulative offsets.
func NewPlan(durations ...int) (Plan, error) {
	if len(durations) == 0 {
		return Plan{}, ErrEmptyPlan
	}
	for i, d := range durations {
		if d <= 0 {
			return Plan{}, fmt.Errorf("%w: slide %d has %d frames", ErrInvalidDuration, i, d)
		}
	}
	ds := make([]int, len(durations))
	copy(ds, durations)
	return Plan{durations: ds, offsets: Offsets(ds)}, nil
}

// MustPlan is NewPlan for literal durations known to be valid.
func MustPlan(durations ...int) Plan {
	p, err := NewPlan(durations...)
	if err != nil {
		panic(err)
	}
	return p
}

// FromSeconds converts per-slide seconds to frames, rounding up.
func FromSeconds(fps int, seconds ...float64) (Plan, error) {
	if fps <= 0 {
		return Plan{}, ErrInvalidFPS
	}
	frames := make([]int, len(seconds))
	for i, s := range seconds {
		frames[i] = int(math.Ceil(s * float64(fps)))
	}
	return NewPlan(frames...)
}

// FitAudio sizes each slide to its narration length plus padding seconds.
func FitAudio(fps int, padding float64, audioSeconds ...float64) (Plan, error) {
	padded := make([]float64, len(audioSeconds))
	for i, a := range audioSeconds {
		padded[i] = a + padding
	}
	return FromSeconds(fps, padded...)
}

// Offsets returns prefix sums starting at 0; len(result) == len(durations)+1.
func Offsets(durations []int) []int {
	offsets := make([]int, len(durations)+1)
	for i, d := range durations {
		offsets[i+1] = offsets[i] + d
	}
	return offsets
}

// Locate finds the slide whose half-open interval contains position.
// Past the end the last slide stays active and local keeps counting.
func Locate(durations []int, position int) (slide, local int) {
	start := 0
	for i, d := range durations {
		if position >= start && position < start+d {
			return i, position - start
		}
		if position >= start {
			slide, local = i, position-start
		}
		start += d
	}
	return slide, local
}

func (p Plan) Len() int { return len(p.durations) }

// Total is the number of frames covered by the plan.
func (p Plan) Total() int {
	if len(p.offsets) == 0 {
		return 0
	}
	return p.offsets[len(p.offsets)-1]
}

func (p Plan) Duration(i int) int { return p.durations[i] }

func (p Plan) Start(i int) int { return p.offsets[i] }

func (p Plan) End(i int) int { return p.offsets[i+1] }

func (p Plan) Durations() []int {
	out := make([]int, len(p.durations))
	copy(out, p.durations)
	return out
}

func (p Plan) Offsets() []int {
	out := make([]int, len(p.offsets))
	copy(out, p.offsets)
	return out
}

// Locate returns the active slide for a global frame.
func (p Plan) Locate(position int) Position {
	s, l := Locate(p.durations, position)
	return Position{Slide: s, Local: l}
}

// Seconds reports the plan length at fps.
func (p Plan) Seconds(fps int) float64 {
	if fps <= 0 {
		return 0
	}
	return float64(p.Total()) / float64(fps)
}
