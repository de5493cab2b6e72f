package system

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAudioFilesSortedAndFiltered(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"slide-2.mp3", "slide-1.WAV", "notes.txt", "slide-3.aiff"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "old.mp3"), 0755))

	files, err := AudioFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "slide-1.WAV"),
		filepath.Join(dir, "slide-2.mp3"),
		filepath.Join(dir, "slide-3.aiff"),
	}, files)

	_, err = AudioFiles(t.TempDir())
	assert.Error(t, err)
}

func TestFindLatest(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "a.yaml")
	newer := filepath.Join(dir, "b.yaml")
	require.NoError(t, os.WriteFile(old, nil, 0644))
	require.NoError(t, os.WriteFile(newer, nil, 0644))

	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	got, err := FindLatest(dir, []string{".yaml"})
	require.NoError(t, err)
	assert.Equal(t, newer, got)

	_, err = FindLatest(dir, []string{".pdf"})
	assert.Error(t, err)
}

func TestParseDuration(t *testing.T) {
	d, err := ParseDuration("16.420000\n")
	require.NoError(t, err)
	assert.InDelta(t, 16.42, d, 1e-9)

	_, err = ParseDuration("N/A")
	assert.Error(t, err)
	_, err = ParseDuration("-1")
	assert.Error(t, err)
}

func TestPickEncoder(t *testing.T) {
	assert.Equal(t, "h264_nvenc", pickEncoder(" V....D h264_nvenc   NVIDIA NVENC H.264 encoder"))
	assert.Equal(t, "h264_videotoolbox", pickEncoder("h264_nvenc\nh264_videotoolbox"))
	assert.Equal(t, "libx264", pickEncoder(" V....D libx264"))
}

func TestAudioDurationMissingBinary(t *testing.T) {
	_, err := AudioDuration(context.Background(), filepath.Join(t.TempDir(), "no-ffprobe"), "x.mp3")
	assert.Error(t, err)
}

func TestImagePoolReuse(t *testing.T) {
	p := NewImagePool()
	rect := image.Rect(0, 0, 4, 4)

	img := p.Get(rect)
	require.Equal(t, rect, img.Rect)
	p.Put(img)

	// a size never requested is dropped silently
	p.Put(image.NewRGBA(image.Rect(0, 0, 2, 2)))
	p.Put(nil)

	again := p.Get(rect)
	assert.Equal(t, rect, again.Rect)
}

func TestHost(t *testing.T) {
	s := Host(context.Background())
	assert.Positive(t, s.LogicalCPUs)
	assert.Positive(t, s.NumGoroutine)
}
