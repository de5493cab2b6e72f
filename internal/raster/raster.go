// Package raster draws evaluated composition frames into RGBA images.
//
// Layout is a small flexbox subset: columns, rows, fixed-column grids and
// cards, with padding, gaps, cross-axis alignment and main-axis justification.
// Text uses the Go fonts; QR codes and page images are scaled once per size
// and cached.
package raster

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/skip2/go-qrcode"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/ivlev/marketreel/internal/composition"
	"github.com/ivlev/marketreel/internal/scene"
	"github.com/ivlev/marketreel/internal/source"
	"github.com/ivlev/marketreel/internal/system"
)

const (
	defaultBackground = "#000000"
	defaultColor      = "#ffffff"
)

type bgKey struct {
	paint string
	w, h  int
}

type scaledKey struct {
	src  string
	page int
	w, h int
}

// Renderer is not safe for concurrent use. Give each worker its own and
// share the Assets and ImagePool between them.
type Renderer struct {
	assets *source.Assets
	pool   *system.ImagePool

	faces       map[faceKey]font.Face
	paints      map[string]paint
	backgrounds map[bgKey]*image.RGBA
	scaled      map[scaledKey]*image.RGBA
}

// New returns a Renderer. assets may be nil when no deck uses image blocks.
func New(assets *source.Assets, pool *system.ImagePool) *Renderer {
	if pool == nil {
		pool = system.NewImagePool()
	}
	return &Renderer{
		assets:      assets,
		pool:        pool,
		faces:       make(map[faceKey]font.Face),
		paints:      make(map[string]paint),
		backgrounds: make(map[bgKey]*image.RGBA),
		scaled:      make(map[scaledKey]*image.RGBA),
	}
}

// Draw rasterizes one frame. The image comes from the pool; hand it back
// with Release once it has been written out.
func (r *Renderer) Draw(f composition.Frame) (*image.RGBA, error) {
	if f.Width <= 0 || f.Height <= 0 {
		return nil, fmt.Errorf("raster: empty frame %dx%d", f.Width, f.Height)
	}
	canvas := r.pool.Get(image.Rect(0, 0, f.Width, f.Height))

	if err := r.fillBackground(canvas, f.Background); err != nil {
		r.Release(canvas)
		return nil, fmt.Errorf("frame %d: background: %w", f.Index, err)
	}

	if f.Root != nil {
		c := f.Color
		if c == "" {
			c = defaultColor
		}
		W, H := float64(f.Width), float64(f.Height)
		root, err := r.measure(f.Root, W, true, inherited{size: defaultFontSize, color: c})
		if err != nil {
			r.Release(canvas)
			return nil, fmt.Errorf("frame %d: layout: %w", f.Index, err)
		}
		root.x = (W - root.w) / 2
		root.resize(H)

		if err := r.drawBox(canvas, root, 0, 0, identity, 1); err != nil {
			r.Release(canvas)
			return nil, fmt.Errorf("frame %d: %w", f.Index, err)
		}
	}

	fade(canvas, f.Opacity)
	return canvas, nil
}

func (r *Renderer) Release(img *image.RGBA) {
	r.pool.Put(img)
}

// Close releases cached font faces.
func (r *Renderer) Close() error {
	var first error
	for k, f := range r.faces {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
		delete(r.faces, k)
	}
	return first
}

func (r *Renderer) paint(s string) (paint, error) {
	if p, ok := r.paints[s]; ok {
		return p, nil
	}
	p, err := parsePaint(s)
	if err != nil {
		return paint{}, err
	}
	r.paints[s] = p
	return p, nil
}

func (r *Renderer) fillBackground(dst *image.RGBA, bg string) error {
	if bg == "" {
		bg = defaultBackground
	}
	key := bgKey{paint: bg, w: dst.Rect.Dx(), h: dst.Rect.Dy()}
	base, ok := r.backgrounds[key]
	if !ok {
		p, err := r.paint(bg)
		if err != nil {
			return err
		}
		base = image.NewRGBA(dst.Rect)
		for i := 3; i < len(base.Pix); i += 4 {
			base.Pix[i] = 0xff
		}
		fillRoundRect(base, rectF{0, 0, float64(key.w), float64(key.h)}, 0, p, 1)
		r.backgrounds[key] = base
	}
	copy(dst.Pix, base.Pix)
	return nil
}

// xform maps layout coordinates to pixels: p -> p*s + t.
type xform struct{ s, tx, ty float64 }

var identity = xform{s: 1}

// local composes a scale k about (cx, cy) followed by a translation.
func (x xform) local(cx, cy, k, dx, dy float64) xform {
	ltx := cx*(1-k) + dx
	lty := cy*(1-k) + dy
	return xform{s: x.s * k, tx: x.s*ltx + x.tx, ty: x.s*lty + x.ty}
}

func (x xform) rect(x0, y0, x1, y1 float64) rectF {
	ax, ay := x0*x.s+x.tx, y0*x.s+x.ty
	bx, by := x1*x.s+x.tx, y1*x.s+x.ty
	return rectF{math.Min(ax, bx), math.Min(ay, by), math.Max(ax, bx), math.Max(ay, by)}
}

func (r *Renderer) drawBox(dst *image.RGBA, b *box, ox, oy float64, xf xform, alpha float64) error {
	n := b.node
	if !n.Visible() {
		return nil
	}
	alpha *= n.Opacity

	bx, by := ox+b.x, oy+b.y
	xf = xf.local(bx+b.w/2, by+b.h/2, n.Scale, n.TranslateX, n.TranslateY)
	rect := xf.rect(bx, by, bx+b.w, by+b.h)
	s := math.Abs(xf.s)
	st := n.Style

	if st.Background != "" {
		p, err := r.paint(st.Background)
		if err != nil {
			return fmt.Errorf("%s background: %w", name(n), err)
		}
		fillRoundRect(dst, rect, st.Radius*s, p, alpha)
	}
	if st.Border != "" {
		p, err := r.paint(st.Border)
		if err != nil {
			return fmt.Errorf("%s border: %w", name(n), err)
		}
		strokeRoundRect(dst, rect, st.Radius*s, borderWidth*s, p, alpha)
	}

	switch n.Kind {
	case scene.KindText:
		if err := r.drawText(dst, b, rect, s, alpha); err != nil {
			return fmt.Errorf("%s: %w", name(n), err)
		}
	case scene.KindImage:
		key := scaledKey{src: n.Src, page: n.Page}
		err := r.drawScaled(dst, key, rect, alpha, func() (image.Image, error) { return b.img, nil })
		if err != nil {
			return fmt.Errorf("%s: %w", name(n), err)
		}
	case scene.KindQR:
		key := scaledKey{src: "qr:" + n.URL}
		err := r.drawScaled(dst, key, rect, alpha, func() (image.Image, error) {
			q, err := qrcode.New(n.URL, qrcode.Medium)
			if err != nil {
				return nil, err
			}
			return q.Image(int(math.Round(rect.w()))), nil
		})
		if err != nil {
			return fmt.Errorf("%s: %w", name(n), err)
		}
	}

	for _, c := range b.children {
		if err := r.drawBox(dst, c, bx, by, xf, alpha); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) drawText(dst *image.RGBA, b *box, rect rectF, s, alpha float64) error {
	face, err := r.face(b.text.bold, b.text.size*s)
	if err != nil {
		return err
	}
	c, err := ParseColor(b.text.color)
	if err != nil {
		return err
	}

	pad := b.node.Style.Padding * s
	lh := b.lineHeight * s
	m := face.Metrics()
	ascent, descent := float64(m.Ascent)/64, float64(m.Descent)/64
	free := rect.w() - 2*pad

	d := font.Drawer{Dst: dst, Src: image.NewUniform(withAlpha(c, alpha)), Face: face}
	for i, line := range b.lines {
		x := rect.x0 + pad + alignOffset(b.text.align, free-textWidth(face, line))
		baseline := rect.y0 + pad + float64(i)*lh + (lh-(ascent+descent))/2 + ascent
		d.Dot = fixed.Point26_6{X: fix(x), Y: fix(baseline)}
		d.DrawString(line)
	}
	return nil
}

// drawScaled draws a cached copy of the loaded image resized to rect.
func (r *Renderer) drawScaled(dst *image.RGBA, key scaledKey, rect rectF, alpha float64, load func() (image.Image, error)) error {
	w, h := int(math.Round(rect.w())), int(math.Round(rect.h()))
	if w <= 0 || h <= 0 {
		return nil
	}
	key.w, key.h = w, h

	scaled, ok := r.scaled[key]
	if !ok {
		src, err := load()
		if err != nil {
			return err
		}
		scaled = image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(scaled, scaled.Bounds(), src, src.Bounds(), draw.Src, nil)
		r.scaled[key] = scaled
	}

	at := image.Pt(int(math.Round(rect.x0)), int(math.Round(rect.y0)))
	var mask image.Image
	if alpha < 1 {
		mask = image.NewUniform(color.Alpha{A: uint8(math.Round(alpha * 255))})
	}
	draw.DrawMask(dst, image.Rectangle{Min: at, Max: at.Add(image.Pt(w, h))}, scaled, image.Point{}, mask, image.Point{}, draw.Over)
	return nil
}

func (r *Renderer) image(src string, page int) (image.Image, error) {
	if r.assets == nil {
		return nil, fmt.Errorf("image %s: no asset root configured", src)
	}
	return r.assets.Image(src, page)
}

func name(n *scene.Node) string {
	if n.Name != "" {
		return n.Name
	}
	return string(n.Kind)
}
