package raster

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"
	"strings"
)

type rectF struct{ x0, y0, x1, y1 float64 }

func (r rectF) w() float64 { return r.x1 - r.x0 }
func (r rectF) h() float64 { return r.y1 - r.y0 }

type stop struct {
	c   color.NRGBA
	pos float64
}

// paint is a solid color (one stop) or a CSS-style linear gradient.
type paint struct {
	stops []stop
	angle float64
}

var gradientDirections = map[string]float64{
	"to top":          0,
	"to top right":    45,
	"to right":        90,
	"to bottom right": 135,
	"to bottom":       180,
	"to bottom left":  225,
	"to left":         270,
	"to top left":     315,
}

func parsePaint(s string) (paint, error) {
	s = strings.TrimSpace(s)
	const prefix = "linear-gradient("
	if !strings.HasPrefix(strings.ToLower(s), prefix) {
		c, err := ParseColor(s)
		if err != nil {
			return paint{}, err
		}
		return paint{stops: []stop{{c: c}}}, nil
	}
	if !strings.HasSuffix(s, ")") {
		return paint{}, fmt.Errorf("%w: unterminated gradient %q", ErrColor, s)
	}

	args := splitArgs(s[len(prefix) : len(s)-1])
	p := paint{angle: 180}
	if len(args) > 0 {
		if a, ok := parseAngle(args[0]); ok {
			p.angle = a
			args = args[1:]
		}
	}
	if len(args) < 2 {
		return paint{}, fmt.Errorf("%w: gradient needs two colors: %q", ErrColor, s)
	}

	for i, arg := range args {
		colorPart, pos := arg, float64(i)/float64(len(args)-1)
		if j := strings.LastIndexByte(arg, ' '); j > 0 && strings.HasSuffix(arg, "%") {
			if v, err := strconv.ParseFloat(strings.TrimSuffix(arg[j+1:], "%"), 64); err == nil {
				colorPart, pos = strings.TrimSpace(arg[:j]), v/100
			}
		}
		c, err := ParseColor(colorPart)
		if err != nil {
			return paint{}, err
		}
		p.stops = append(p.stops, stop{c: c, pos: pos})
	}
	return p, nil
}

// splitArgs splits on commas outside parentheses.
func splitArgs(s string) []string {
	var out []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return append(out, strings.TrimSpace(s[start:]))
}

func parseAngle(s string) (float64, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if a, ok := gradientDirections[s]; ok {
		return a, true
	}
	if !strings.HasSuffix(s, "deg") {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSuffix(s, "deg"), 64)
	return v, err == nil
}

func (p paint) solid() bool { return len(p.stops) == 1 }

// at samples the paint at pixel center (x, y) of a shape bounded by r.
func (p paint) at(x, y float64, r rectF) color.NRGBA {
	if p.solid() {
		return p.stops[0].c
	}
	rad := p.angle * math.Pi / 180
	dx, dy := math.Sin(rad), -math.Cos(rad)
	length := math.Abs(r.w()*dx) + math.Abs(r.h()*dy)
	if length == 0 {
		return p.stops[0].c
	}
	cx, cy := (r.x0+r.x1)/2, (r.y0+r.y1)/2
	return p.sample(((x-cx)*dx+(y-cy)*dy)/length + 0.5)
}

func (p paint) sample(t float64) color.NRGBA {
	first, last := p.stops[0], p.stops[len(p.stops)-1]
	if t <= first.pos {
		return first.c
	}
	if t >= last.pos {
		return last.c
	}
	for i := 1; i < len(p.stops); i++ {
		a, b := p.stops[i-1], p.stops[i]
		if t > b.pos {
			continue
		}
		f := 0.0
		if span := b.pos - a.pos; span > 0 {
			f = (t - a.pos) / span
		}
		r, g, bl := toColorful(a.c).BlendRgb(toColorful(b.c), f).Clamped().RGB255()
		alpha := float64(a.c.A) + (float64(b.c.A)-float64(a.c.A))*f
		return color.NRGBA{R: r, G: g, B: bl, A: uint8(math.Round(alpha))}
	}
	return last.c
}

// sdRoundRect is the signed distance from (px, py) to a rounded rectangle.
func sdRoundRect(px, py float64, r rectF, radius float64) float64 {
	hw, hh := r.w()/2, r.h()/2
	radius = math.Max(0, math.Min(radius, math.Min(hw, hh)))
	qx := math.Abs(px-(r.x0+hw)) - (hw - radius)
	qy := math.Abs(py-(r.y0+hh)) - (hh - radius)
	outside := math.Hypot(math.Max(qx, 0), math.Max(qy, 0))
	return outside + math.Min(math.Max(qx, qy), 0) - radius
}

func clamp01(v float64) float64 { return math.Max(0, math.Min(1, v)) }

func fillRoundRect(dst *image.RGBA, r rectF, radius float64, p paint, alpha float64) {
	cover(dst, r, p, alpha, func(px, py float64) float64 {
		return clamp01(0.5 - sdRoundRect(px, py, r, radius))
	})
}

func strokeRoundRect(dst *image.RGBA, r rectF, radius, width float64, p paint, alpha float64) {
	inner := rectF{r.x0 + width, r.y0 + width, r.x1 - width, r.y1 - width}
	hollow := inner.w() > 0 && inner.h() > 0
	innerRadius := math.Max(0, radius-width)
	cover(dst, r, p, alpha, func(px, py float64) float64 {
		outer := clamp01(0.5 - sdRoundRect(px, py, r, radius))
		if !hollow {
			return outer
		}
		return outer - clamp01(0.5-sdRoundRect(px, py, inner, innerRadius))
	})
}

func cover(dst *image.RGBA, r rectF, p paint, alpha float64, coverage func(px, py float64) float64) {
	if alpha <= 0 || r.w() <= 0 || r.h() <= 0 {
		return
	}
	b := dst.Bounds()
	x0 := max(b.Min.X, int(math.Floor(r.x0)))
	y0 := max(b.Min.Y, int(math.Floor(r.y0)))
	x1 := min(b.Max.X, int(math.Ceil(r.x1)))
	y1 := min(b.Max.Y, int(math.Ceil(r.y1)))

	for y := y0; y < y1; y++ {
		py := float64(y) + 0.5
		for x := x0; x < x1; x++ {
			px := float64(x) + 0.5
			cov := coverage(px, py)
			if cov <= 0 {
				continue
			}
			blend(dst, x, y, p.at(px, py, r), cov*alpha)
		}
	}
}

// blend composites c over the premultiplied pixel at (x, y) with coverage a.
func blend(dst *image.RGBA, x, y int, c color.NRGBA, a float64) {
	a *= float64(c.A) / 255
	if a <= 0 {
		return
	}
	if a > 1 {
		a = 1
	}
	i := dst.PixOffset(x, y)
	px := dst.Pix[i : i+4 : i+4]
	px[0] = uint8(float64(c.R)*a + float64(px[0])*(1-a) + 0.5)
	px[1] = uint8(float64(c.G)*a + float64(px[1])*(1-a) + 0.5)
	px[2] = uint8(float64(c.B)*a + float64(px[2])*(1-a) + 0.5)
	px[3] = uint8(255*a + float64(px[3])*(1-a) + 0.5)
}

// fade darkens an opaque frame toward black.
func fade(img *image.RGBA, opacity float64) {
	if opacity >= 1 {
		return
	}
	k := uint32(math.Round(math.Max(0, opacity) * 256))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = uint8(uint32(img.Pix[i]) * k >> 8)
		img.Pix[i+1] = uint8(uint32(img.Pix[i+1]) * k >> 8)
		img.Pix[i+2] = uint8(uint32(img.Pix[i+2]) * k >> 8)
		img.Pix[i+3] = 0xff
	}
}
