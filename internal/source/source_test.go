package source

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, path string, w, h int, c color.Color) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestImageSourceDirectory(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "b.png"), 4, 2, color.White)
	writePNG(t, filepath.Join(dir, "a.png"), 8, 6, color.Black)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("x"), 0644))

	src, err := NewImageSource(dir)
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, 2, src.PageCount())

	w, h, err := src.GetPageDimensions(0)
	require.NoError(t, err)
	assert.Equal(t, 8.0, w)
	assert.Equal(t, 6.0, h)

	img, err := src.RenderPage(1, 72)
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())

	_, err = src.RenderPage(2, 72)
	assert.True(t, errors.Is(err, ErrPageRange))
}

func TestOpenRejectsUnknownTypes(t *testing.T) {
	_, err := Open("chart.svg")
	assert.Error(t, err)
}

func TestAssetsCacheAndResolve(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "logo.png"), 10, 10, color.RGBA{R: 255, A: 255})

	assets := NewAssets(dir, 0)
	assert.Equal(t, filepath.Join(dir, "logo.png"), assets.Resolve("logo.png"))
	assert.Equal(t, "/abs/logo.png", assets.Resolve("/abs/logo.png"))

	var wg sync.WaitGroup
	results := make([]image.Image, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			img, err := assets.Image("logo.png", 0)
			assert.NoError(t, err)
			results[i] = img
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, assets.Len())
	for _, img := range results[1:] {
		assert.Same(t, results[0], img)
	}

	_, err := assets.Image("missing.png", 0)
	assert.Error(t, err)
	_, err = assets.Image("missing.png", 0)
	assert.Error(t, err)
	assert.Equal(t, 1, assets.Len())
}
