package raster

import (
	"fmt"
	"image"
	"math"

	"github.com/ivlev/marketreel/internal/scene"
)

const (
	defaultFontSize   = 32
	defaultLineHeight = 1.2
	defaultQRSize     = 300
	defaultColumns    = 2
	borderWidth       = 2
)

// inherited carries text attributes down the tree.
type inherited struct {
	size  float64
	bold  bool
	color string
	align scene.Align
}

func (in inherited) with(st scene.Style) inherited {
	if st.FontSize > 0 {
		in.size = st.FontSize
	}
	if st.Bold {
		in.bold = true
	}
	if st.Color != "" {
		in.color = st.Color
	}
	if st.Align != "" {
		in.align = st.Align
	}
	return in
}

// box is a laid out node. x and y are relative to the parent box.
type box struct {
	node     *scene.Node
	x, y     float64
	w, h     float64
	children []*box

	text       inherited
	lines      []string
	lineHeight float64
	img        image.Image
}

// measure lays out n within avail width. Containers fill avail when stretch
// is set or a width is given; otherwise they shrink to their content.
func (r *Renderer) measure(n *scene.Node, avail float64, stretch bool, in inherited) (*box, error) {
	st := n.Style
	in = in.with(st)
	b := &box{node: n, text: in}

	outer := avail
	if st.Width > 0 {
		outer = math.Min(st.Width, avail)
	}
	if st.MaxWidth > 0 {
		outer = math.Min(outer, st.MaxWidth)
	}
	pad := st.Padding

	switch n.Kind {
	case scene.KindText:
		face, err := r.face(in.bold, in.size)
		if err != nil {
			return nil, err
		}
		b.lines = wrap(face, n.Text, outer-2*pad)
		widest := 0.0
		for _, l := range b.lines {
			widest = math.Max(widest, textWidth(face, l))
		}
		b.w = widest + 2*pad
		if stretch || st.Width > 0 {
			b.w = outer
		}
		lh := st.LineHeight
		if lh <= 0 {
			lh = defaultLineHeight
		}
		b.lineHeight = in.size * lh
		b.h = b.lineHeight*float64(len(b.lines)) + 2*pad

	case scene.KindImage:
		img, err := r.image(n.Src, n.Page)
		if err != nil {
			return nil, err
		}
		iw, ih := float64(img.Bounds().Dx()), float64(img.Bounds().Dy())
		if iw == 0 || ih == 0 {
			return nil, fmt.Errorf("image %s: empty", n.Src)
		}
		w, h := st.Width, st.Height
		switch {
		case w > 0 && h > 0:
		case w > 0:
			h = w * ih / iw
		case h > 0:
			w = h * iw / ih
		default:
			w, h = iw, ih
		}
		if w > avail {
			w, h = avail, h*avail/w
		}
		b.img = img
		b.w, b.h = w, h
		return b, nil

	case scene.KindQR:
		size := st.Width
		if size <= 0 {
			size = st.Height
		}
		if size <= 0 {
			size = defaultQRSize
		}
		size = math.Min(size, avail)
		b.w, b.h = size, size
		return b, nil

	case scene.KindSpacer:
		b.w = st.Width
		if stretch {
			b.w = outer
		}
		b.h = st.Height
		return b, nil

	case scene.KindRow:
		if err := r.measureRow(b, outer, stretch, in); err != nil {
			return nil, err
		}

	case scene.KindGrid:
		if err := r.measureGrid(b, outer, in); err != nil {
			return nil, err
		}

	default:
		if err := r.measureColumn(b, outer, stretch, in); err != nil {
			return nil, err
		}
	}

	if st.Height > 0 {
		b.resize(st.Height)
	}
	return b, nil
}

func (r *Renderer) measureColumn(b *box, outer float64, stretch bool, in inherited) error {
	st := b.node.Style
	pad := st.Padding
	inner := math.Max(0, outer-2*pad)

	y, widest := pad, 0.0
	for i, c := range b.node.Children {
		cb, err := r.measure(c, inner, st.Align == "", in)
		if err != nil {
			return err
		}
		if i > 0 {
			y += st.Gap
		}
		cb.y = y
		y += cb.h
		widest = math.Max(widest, cb.w)
		b.children = append(b.children, cb)
	}

	b.w = widest + 2*pad
	if stretch || st.Width > 0 {
		b.w = outer
	}
	b.h = y + pad

	free := b.w - 2*pad
	for _, cb := range b.children {
		cb.x = pad + alignOffset(st.Align, free-cb.w)
	}
	return nil
}

func (r *Renderer) measureRow(b *box, outer float64, stretch bool, in inherited) error {
	st := b.node.Style
	pad := st.Padding
	inner := math.Max(0, outer-2*pad)

	x, tallest := 0.0, 0.0
	for i, c := range b.node.Children {
		cb, err := r.measure(c, inner, false, in)
		if err != nil {
			return err
		}
		if i > 0 {
			x += st.Gap
		}
		cb.x = x
		x += cb.w
		tallest = math.Max(tallest, cb.h)
		b.children = append(b.children, cb)
	}

	b.w = x + 2*pad
	if stretch || st.Width > 0 {
		b.w = outer
	}
	b.h = tallest + 2*pad

	offset := distribute(st.Justify, b.w-2*pad-x, len(b.children))
	for i, cb := range b.children {
		cb.x += pad + offset(i)
		if st.Align == "" {
			cb.resize(tallest)
			cb.y = pad
		} else {
			cb.y = pad + alignOffset(st.Align, tallest-cb.h)
		}
	}
	return nil
}

// measureGrid places children in equal-width cells; every cell in a row
// stretches to the tallest one.
func (r *Renderer) measureGrid(b *box, outer float64, in inherited) error {
	st := b.node.Style
	pad := st.Padding
	inner := math.Max(0, outer-2*pad)

	cols := b.node.Columns
	if cols <= 0 {
		cols = defaultColumns
	}
	cellW := math.Max(0, (inner-st.Gap*float64(cols-1))/float64(cols))

	children := b.node.Children
	y := pad
	for start := 0; start < len(children); start += cols {
		end := min(start+cols, len(children))
		rowH := 0.0
		row := make([]*box, 0, end-start)
		for i := start; i < end; i++ {
			cb, err := r.measure(children[i], cellW, true, in)
			if err != nil {
				return err
			}
			cb.x = pad + float64(i-start)*(cellW+st.Gap)
			cb.y = y
			rowH = math.Max(rowH, cb.h)
			row = append(row, cb)
		}
		for _, cb := range row {
			cb.resize(rowH)
		}
		b.children = append(b.children, row...)
		y += rowH
		if end < len(children) {
			y += st.Gap
		}
	}

	b.w = outer
	b.h = y + pad
	return nil
}

// resize grows a box to height h and spreads the extra space along a
// column's main axis per its justify setting.
func (b *box) resize(h float64) {
	if h <= b.h {
		return
	}
	extra := h - b.h
	b.h = h
	if b.node.Kind != scene.KindColumn && b.node.Kind != scene.KindCard {
		return
	}
	offset := distribute(b.node.Style.Justify, extra, len(b.children))
	for i, c := range b.children {
		c.y += offset(i)
	}
}

func alignOffset(a scene.Align, free float64) float64 {
	switch a {
	case scene.AlignCenter:
		return free / 2
	case scene.AlignEnd:
		return free
	}
	return 0
}

// distribute returns the main-axis shift of child i given free space.
func distribute(j scene.Align, free float64, n int) func(i int) float64 {
	if free <= 0 {
		return func(int) float64 { return 0 }
	}
	switch j {
	case scene.AlignCenter:
		return func(int) float64 { return free / 2 }
	case scene.AlignEnd:
		return func(int) float64 { return free }
	case scene.AlignBetween:
		if n > 1 {
			return func(i int) float64 { return free * float64(i) / float64(n-1) }
		}
	}
	return func(int) float64 { return 0 }
}
