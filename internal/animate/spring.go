package animate

import "math"

// SpringConfig describes a damped spring pulling a value from 0 to 1.
type SpringConfig struct {
	Damping           float64 `yaml:"damping"`
	Stiffness         float64 `yaml:"stiffness"`
	Mass              float64 `yaml:"mass"`
	OvershootClamping bool    `yaml:"overshoot_clamping"`
}

// DefaultSpring matches the usual title entrance.
var DefaultSpring = SpringConfig{Damping: 10, Stiffness: 100, Mass: 1}

func (c SpringConfig) withDefaults() SpringConfig {
	if c.Damping <= 0 {
		c.Damping = DefaultSpring.Damping
	}
	if c.Stiffness <= 0 {
		c.Stiffness = DefaultSpring.Stiffness
	}
	if c.Mass <= 0 {
		c.Mass = DefaultSpring.Mass
	}
	return c
}

// Spring evaluates the closed-form damped oscillator at frame/fps seconds.
// Lower damping overshoots further; frames before 0 return 0.
func Spring(frame, fps float64, cfg SpringConfig) float64 {
	if frame <= 0 || fps <= 0 {
		return 0
	}
	cfg = cfg.withDefaults()

	t := frame / fps
	w0 := math.Sqrt(cfg.Stiffness / cfg.Mass)
	zeta := cfg.Damping / (2 * math.Sqrt(cfg.Stiffness*cfg.Mass))

	var x float64
	switch {
	case zeta < 1:
		wd := w0 * math.Sqrt(1-zeta*zeta)
		env := math.Exp(-zeta * w0 * t)
		x = 1 - env*(math.Cos(wd*t)+(zeta*w0/wd)*math.Sin(wd*t))
	case zeta == 1:
		x = 1 - math.Exp(-w0*t)*(1+w0*t)
	default:
		root := math.Sqrt(zeta*zeta - 1)
		r1 := -w0 * (zeta - root)
		r2 := -w0 * (zeta + root)
		x = 1 - (r2*math.Exp(r1*t)-r1*math.Exp(r2*t))/(r2-r1)
	}

	if cfg.OvershootClamping && x > 1 {
		return 1
	}
	return x
}

// SettleFrame is the first frame after which the spring stays within eps of 1.
// Useful for sizing a slide around a title entrance.
func SettleFrame(fps float64, cfg SpringConfig, eps float64, maxFrames int) int {
	settled := maxFrames
	for f := maxFrames; f >= 0; f-- {
		if math.Abs(Spring(float64(f), fps, cfg)-1) > eps {
			break
		}
		settled = f
	}
	return settled
}
