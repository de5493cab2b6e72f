package raster

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/marketreel/internal/catalog"
	"github.com/ivlev/marketreel/internal/composition"
	"github.com/ivlev/marketreel/internal/scene"
	"github.com/ivlev/marketreel/internal/source"
)

func node(kind scene.Kind, style scene.Style, children ...*scene.Node) *scene.Node {
	return &scene.Node{Kind: kind, Style: style, Children: children, Opacity: 1, Scale: 1}
}

func rgbaAt(img *image.RGBA, x, y int) color.RGBA {
	return img.RGBAAt(x, y)
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.NRGBA
	}{
		{"#fff", color.NRGBA{255, 255, 255, 255}},
		{"#FFD700", color.NRGBA{255, 215, 0, 255}},
		{"#00ff8880", color.NRGBA{0, 255, 136, 128}},
		{"rgba(255,255,255,0.2)", color.NRGBA{255, 255, 255, 51}},
		{"rgba(76, 175, 80, 0.3)", color.NRGBA{76, 175, 80, 77}},
		{"rgb(1, 2, 3)", color.NRGBA{1, 2, 3, 255}},
		{" White ", color.NRGBA{255, 255, 255, 255}},
		{"transparent", color.NRGBA{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseColor(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "#12", "#gggggg", "rgba(1,2,3)", "hsl(1,2,3)", "chartreuse"} {
		_, err := ParseColor(bad)
		assert.True(t, errors.Is(err, ErrColor), bad)
	}
}

func TestParsePaint(t *testing.T) {
	p, err := parsePaint("linear-gradient(135deg, #667eea, #764ba2)")
	require.NoError(t, err)
	assert.Equal(t, 135.0, p.angle)
	require.Len(t, p.stops, 2)
	assert.Equal(t, 0.0, p.stops[0].pos)
	assert.Equal(t, 1.0, p.stops[1].pos)

	p, err = parsePaint("linear-gradient(to right, rgba(0, 0, 0, 0.5), #fff 40%, #000)")
	require.NoError(t, err)
	assert.Equal(t, 90.0, p.angle)
	require.Len(t, p.stops, 3)
	assert.Equal(t, uint8(128), p.stops[0].c.A)
	assert.InDelta(t, 0.4, p.stops[1].pos, 1e-9)

	p, err = parsePaint("linear-gradient(#000, #fff)")
	require.NoError(t, err)
	assert.Equal(t, 180.0, p.angle)

	p, err = parsePaint("#123456")
	require.NoError(t, err)
	assert.True(t, p.solid())

	for _, bad := range []string{"linear-gradient(90deg, #fff)", "linear-gradient(#fff, #000", "linear-gradient(#fff, nope)"} {
		_, err := parsePaint(bad)
		assert.Error(t, err, bad)
	}
}

func TestDrawBackgroundAndFade(t *testing.T) {
	r := New(nil, nil)
	defer r.Close()

	img, err := r.Draw(composition.Frame{Width: 20, Height: 10, Background: "#ff0000", Opacity: 1})
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{255, 0, 0, 255}, rgbaAt(img, 10, 5))
	r.Release(img)

	img, err = r.Draw(composition.Frame{Width: 20, Height: 10, Background: "#ff0000", Opacity: 0.5})
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{127, 0, 0, 255}, rgbaAt(img, 10, 5))

	img, err = r.Draw(composition.Frame{Width: 20, Height: 10, Opacity: 0})
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, rgbaAt(img, 0, 0))

	_, err = r.Draw(composition.Frame{Width: 20, Height: 10, Background: "nope", Opacity: 1})
	assert.Error(t, err)

	_, err = r.Draw(composition.Frame{})
	assert.Error(t, err)
}

func TestGradientDirection(t *testing.T) {
	r := New(nil, nil)

	img, err := r.Draw(composition.Frame{Width: 100, Height: 4, Background: "linear-gradient(90deg, #000000, #ffffff)", Opacity: 1})
	require.NoError(t, err)
	left, right := rgbaAt(img, 0, 2), rgbaAt(img, 99, 2)
	assert.Less(t, left.R, uint8(10))
	assert.Greater(t, right.R, uint8(245))
	assert.Less(t, rgbaAt(img, 30, 2).R, rgbaAt(img, 60, 2).R)

	img, err = r.Draw(composition.Frame{Width: 4, Height: 100, Background: "linear-gradient(180deg, #000000, #ffffff)", Opacity: 1})
	require.NoError(t, err)
	assert.Less(t, rgbaAt(img, 2, 0).R, rgbaAt(img, 2, 99).R)
}

func TestLayoutColumnJustifyBetween(t *testing.T) {
	r := New(nil, nil)
	text := func(s string) *scene.Node {
		n := node(scene.KindText, scene.Style{FontSize: 20})
		n.Text = s
		return n
	}
	root := node(scene.KindColumn, scene.Style{Padding: 10, Justify: scene.AlignBetween}, text("top"), text("bottom"))

	b, err := r.measure(root, 200, true, inherited{size: defaultFontSize, color: defaultColor})
	require.NoError(t, err)
	assert.InDelta(t, 68, b.h, 1e-9)

	b.resize(200)
	require.Len(t, b.children, 2)
	assert.InDelta(t, 10, b.children[0].y, 1e-9)
	assert.InDelta(t, 166, b.children[1].y, 1e-9)
	// stretched: no cross-axis alignment set
	assert.InDelta(t, 180, b.children[0].w, 1e-9)
	assert.InDelta(t, 10, b.children[0].x, 1e-9)
}

func TestLayoutCenteredShrinksChildren(t *testing.T) {
	r := New(nil, nil)
	card := node(scene.KindCard, scene.Style{Width: 40, Height: 20})
	root := node(scene.KindColumn, scene.Style{Align: scene.AlignCenter, Justify: scene.AlignCenter}, card)

	b, err := r.measure(root, 100, true, inherited{size: defaultFontSize, color: defaultColor})
	require.NoError(t, err)
	b.resize(100)

	c := b.children[0]
	assert.InDelta(t, 30, c.x, 1e-9)
	assert.InDelta(t, 40, c.y, 1e-9)
	assert.InDelta(t, 40, c.w, 1e-9)
}

func TestLayoutGrid(t *testing.T) {
	r := New(nil, nil)
	cell := func(h float64) *scene.Node { return node(scene.KindCard, scene.Style{Height: h}) }
	grid := node(scene.KindGrid, scene.Style{Gap: 10}, cell(30), cell(20), cell(25))

	b, err := r.measure(grid, 210, true, inherited{size: defaultFontSize})
	require.NoError(t, err)
	require.Len(t, b.children, 3)

	assert.InDelta(t, 100, b.children[0].w, 1e-9)
	assert.InDelta(t, 110, b.children[1].x, 1e-9)
	// cells in a row share the tallest height
	assert.InDelta(t, 30, b.children[1].h, 1e-9)
	assert.InDelta(t, 40, b.children[2].y, 1e-9)
	assert.InDelta(t, 65, b.h, 1e-9)
}

func TestLayoutRowJustify(t *testing.T) {
	r := New(nil, nil)
	spacer := func() *scene.Node { return node(scene.KindSpacer, scene.Style{Width: 50, Height: 10}) }
	row := node(scene.KindRow, scene.Style{Justify: scene.AlignBetween, Align: scene.AlignCenter}, spacer(), spacer())

	b, err := r.measure(row, 300, true, inherited{size: defaultFontSize})
	require.NoError(t, err)
	assert.InDelta(t, 0, b.children[0].x, 1e-9)
	assert.InDelta(t, 250, b.children[1].x, 1e-9)
	assert.InDelta(t, 10, b.h, 1e-9)
}

func cardFrame(card *scene.Node) composition.Frame {
	root := node(scene.KindColumn, scene.Style{Align: scene.AlignStart}, card)
	return composition.Frame{Width: 100, Height: 100, Background: "#000000", Opacity: 1, Root: root}
}

func TestDrawCardTransforms(t *testing.T) {
	green := scene.Style{Width: 40, Height: 40, Background: "#00ff00"}
	r := New(nil, nil)

	card := node(scene.KindCard, green)
	img, err := r.Draw(cardFrame(card))
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{0, 255, 0, 255}, rgbaAt(img, 20, 20))
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, rgbaAt(img, 80, 80))

	card = node(scene.KindCard, green)
	card.Opacity = 0.5
	img, err = r.Draw(cardFrame(card))
	require.NoError(t, err)
	assert.InDelta(t, 128, int(rgbaAt(img, 20, 20).G), 1)

	card = node(scene.KindCard, green)
	card.Scale = 0.5
	img, err = r.Draw(cardFrame(card))
	require.NoError(t, err)
	assert.Equal(t, uint8(0), rgbaAt(img, 5, 5).G)
	assert.Equal(t, uint8(255), rgbaAt(img, 20, 20).G)

	card = node(scene.KindCard, green)
	card.TranslateX = 50
	img, err = r.Draw(cardFrame(card))
	require.NoError(t, err)
	assert.Equal(t, uint8(0), rgbaAt(img, 20, 20).G)
	assert.Equal(t, uint8(255), rgbaAt(img, 70, 20).G)

	card = node(scene.KindCard, green)
	card.Opacity = 0
	img, err = r.Draw(cardFrame(card))
	require.NoError(t, err)
	assert.Equal(t, uint8(0), rgbaAt(img, 20, 20).G)
}

func TestDrawRoundedBorder(t *testing.T) {
	r := New(nil, nil)
	card := node(scene.KindCard, scene.Style{Width: 60, Height: 60, Radius: 20, Border: "#ffffff"})
	img, err := r.Draw(cardFrame(card))
	require.NoError(t, err)

	assert.Equal(t, uint8(255), rgbaAt(img, 30, 0).R, "top edge")
	assert.Equal(t, uint8(0), rgbaAt(img, 30, 30).R, "hollow center")
	assert.Equal(t, uint8(0), rgbaAt(img, 0, 0).R, "rounded corner")
}

func countLit(img *image.RGBA, threshold uint8) int {
	n := 0
	for i := 0; i < len(img.Pix); i += 4 {
		if img.Pix[i] > threshold {
			n++
		}
	}
	return n
}

func TestDrawText(t *testing.T) {
	r := New(nil, nil)
	defer r.Close()

	text := node(scene.KindText, scene.Style{FontSize: 40, Bold: true})
	text.Text = "HELLO"
	root := node(scene.KindColumn, scene.Style{Align: scene.AlignCenter, Justify: scene.AlignCenter}, text)

	img, err := r.Draw(composition.Frame{Width: 200, Height: 100, Opacity: 1, Root: root})
	require.NoError(t, err)
	assert.Positive(t, countLit(img, 128))

	// nothing is drawn outside the centered line box
	assert.Equal(t, uint8(0), rgbaAt(img, 2, 2).R)
	assert.Equal(t, uint8(0), rgbaAt(img, 197, 97).R)
}

func TestWrap(t *testing.T) {
	r := New(nil, nil)
	face, err := r.face(false, 20)
	require.NoError(t, err)

	lines := wrap(face, "one two three four\nfive", textWidth(face, "one two")+1)
	assert.Equal(t, []string{"one two", "three", "four", "five"}, lines)
	assert.Equal(t, []string{"supercalifragilistic"}, wrap(face, "supercalifragilistic", 5))
}

func TestDrawQR(t *testing.T) {
	r := New(nil, nil)
	qr := node(scene.KindQR, scene.Style{Width: 120})
	qr.URL = "https://investors.broadcom.com/"
	root := node(scene.KindColumn, scene.Style{Align: scene.AlignCenter}, qr)

	img, err := r.Draw(composition.Frame{Width: 200, Height: 200, Background: "#ff00ff", Opacity: 1, Root: root})
	require.NoError(t, err)

	dark := 0
	for y := 0; y < 120; y++ {
		for x := 40; x < 160; x++ {
			if c := rgbaAt(img, x, y); c.R < 50 && c.B < 50 {
				dark++
			}
		}
	}
	assert.Positive(t, dark)
	assert.Equal(t, color.RGBA{255, 0, 255, 255}, rgbaAt(img, 100, 180))
}

func TestDrawImageBlock(t *testing.T) {
	dir := t.TempDir()
	src := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for i := 0; i < len(src.Pix); i += 4 {
		src.Pix[i], src.Pix[i+3] = 255, 255
	}
	f, err := os.Create(filepath.Join(dir, "chart.png"))
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, src))
	require.NoError(t, f.Close())

	img := node(scene.KindImage, scene.Style{Width: 50})
	img.Src = "chart.png"

	r := New(source.NewAssets(dir, 0), nil)
	out, err := r.Draw(cardFrame(img))
	require.NoError(t, err)
	assert.Greater(t, rgbaAt(out, 25, 25).R, uint8(200))
	assert.Equal(t, uint8(0), rgbaAt(out, 75, 75).R)

	_, err = New(nil, nil).Draw(cardFrame(img))
	assert.Error(t, err)
}

func TestDrawBuiltinDecks(t *testing.T) {
	if testing.Short() {
		t.Skip("renders full-size frames")
	}
	reg, err := catalog.Builtin()
	require.NoError(t, err)

	r := New(nil, nil)
	defer r.Close()
	for _, c := range reg.List() {
		plan := c.Plan()
		for i := range c.Slides {
			pos := plan.Start(i) + plan.Duration(i)/2
			f := c.Frame(pos)
			img, err := r.Draw(f)
			require.NoError(t, err, "%s slide %d", c.ID, i)
			assert.Equal(t, c.Width, img.Bounds().Dx())

			f.Root = nil
			bare, err := r.Draw(f)
			require.NoError(t, err)
			assert.NotEqual(t, bare.Pix, img.Pix, "%s slide %d draws nothing", c.ID, i)

			r.Release(img)
			r.Release(bare)
		}
	}
}
