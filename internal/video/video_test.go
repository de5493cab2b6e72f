package video

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/marketreel/internal/config"
)

func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not found in PATH")
	}
}

func TestQualityArgs(t *testing.T) {
	tests := []struct {
		encoder string
		quality int
		want    []string
	}{
		{"h264_videotoolbox", 75, []string{"-b:v", "7500k"}},
		{"h264_nvenc", 28, []string{"-cq", "28"}},
		{"libx264", 23, []string{"-crf", "23", "-preset", "medium"}},
	}
	for _, tt := range tests {
		t.Run(tt.encoder, func(t *testing.T) {
			assert.Equal(t, tt.want, qualityArgs(tt.encoder, tt.quality))
		})
	}
}

func TestEncodeArgs(t *testing.T) {
	args := encodeArgs(config.EncodeParams{Width: 1080, Height: 1920, FPS: 30, Encoder: config.EncoderAuto, Threads: 2}, "out/c.mp4")
	joined := strings.Join(args, " ")

	assert.Contains(t, joined, "-threads 2")
	assert.Contains(t, joined, "-f rawvideo -pixel_format rgba -video_size 1080x1920 -framerate 30 -i -")
	assert.Contains(t, joined, "-c:v libx264 -crf 23 -preset medium")
	assert.Equal(t, "out/c.mp4", args[len(args)-1])

	args = encodeArgs(config.EncodeParams{Width: 8, Height: 8, FPS: 25, Encoder: "h264_nvenc"}, "x.mp4")
	assert.Contains(t, strings.Join(args, " "), "-c:v h264_nvenc -cq 28")
	assert.NotContains(t, args, "-threads")
}

func TestWriteRawRGBA(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(2, 2, color.RGBA{1, 2, 3, 255})

	var buf bytes.Buffer
	require.NoError(t, writeRawRGBA(&buf, img, 4, 4))
	assert.Equal(t, 64, buf.Len())

	// a sub-image has a wider stride and an offset origin
	sub := img.SubImage(image.Rect(2, 2, 4, 4)).(*image.RGBA)
	buf.Reset()
	require.NoError(t, writeRawRGBA(&buf, sub, 2, 2))
	assert.Equal(t, []byte{1, 2, 3, 255}, buf.Bytes()[:4])
	assert.Equal(t, 16, buf.Len())

	assert.Error(t, writeRawRGBA(&buf, img, 8, 8))
}

func TestConcatArgsWithoutAudio(t *testing.T) {
	args := concatArgs("/tmp/inputs.txt", "out.mp4", Mix{})
	assert.Equal(t, []string{"-y", "-hide_banner", "-loglevel", "error",
		"-f", "concat", "-safe", "0", "-i", "/tmp/inputs.txt",
		"-c", "copy", "out.mp4"}, args)
}

func TestConcatArgsWithAudio(t *testing.T) {
	mix := Mix{
		Total: 112.333,
		Inputs: []AudioInput{
			{Path: "slide-1.mp3", Duration: 17.433, Volume: 1},
			{Path: "slide-2.mp3", Delay: 17.433, Duration: 15.733, Volume: 1},
			{Path: "bed.mp3", Duration: 112.333, Volume: 0.2, Loop: true},
		},
	}
	args := concatArgs("inputs.txt", "final.mp4", mix)
	joined := strings.Join(args, " ")

	assert.Contains(t, joined, "-i inputs.txt -i slide-1.mp3 -i slide-2.mp3 -stream_loop -1 -i bed.mp3")
	assert.Contains(t, joined, "-map 0:v -map [aout] -c:v copy -c:a aac")
	assert.Contains(t, joined, "-t 112.333")

	graph := mixGraph(mix, 1)
	assert.Contains(t, graph, "[1:a]atrim=start=0:duration=17.433,asetpts=PTS-STARTPTS,volume=1,adelay=0:all=1[a0];")
	assert.Contains(t, graph, "[2:a]atrim=start=0:duration=15.733,asetpts=PTS-STARTPTS,volume=1,adelay=17433:all=1[a1];")
	assert.Contains(t, graph, "[3:a]atrim=start=0:duration=112.333,asetpts=PTS-STARTPTS,volume='0.2*(if(lte(t,5)")
	assert.True(t, strings.HasSuffix(graph, "[a0][a1][a2]amix=inputs=3:duration=longest:dropout_transition=0:normalize=0[aout]"))
}

func TestMixGraphSingleInput(t *testing.T) {
	graph := mixGraph(Mix{Inputs: []AudioInput{{Path: "a.wav", Offset: 2.5, Duration: 4, Volume: 0.8}}}, 1)
	assert.Equal(t, "[1:a]atrim=start=2.5:duration=4,asetpts=PTS-STARTPTS,volume=0.8,adelay=0:all=1[a0];[a0]anull[aout]", graph)
}

func TestBackgroundVolumeShortBed(t *testing.T) {
	assert.Contains(t, backgroundVolume(0.5, 4), "lte(t,0.4)")
	assert.Equal(t, "volume=0.5", backgroundVolume(0.5, 0))
}

func TestWriteConcatList(t *testing.T) {
	dir := t.TempDir()
	list := filepath.Join(dir, "inputs.txt")
	require.NoError(t, writeConcatList(list, []string{filepath.Join(dir, "c0.mp4"), filepath.Join(dir, "it's.mp4")}))

	data, err := os.ReadFile(list)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "file '"+filepath.Join(dir, "c0.mp4")+"'", lines[0])
	assert.Contains(t, lines[1], `it'\''s.mp4`)
}

func TestParseProbe(t *testing.T) {
	info, err := parseProbe([]byte(`{
		"streams": [
			{"codec_type": "video", "codec_name": "h264", "width": 1080, "height": 1920, "r_frame_rate": "30/1"},
			{"codec_type": "audio", "codec_name": "aac"}
		],
		"format": {"duration": "112.333000"}
	}`))
	require.NoError(t, err)
	assert.Equal(t, &MediaInfo{Duration: 112.333, Width: 1080, Height: 1920, FPS: 30, Codec: "h264", HasAudio: true}, info)

	_, err = parseProbe([]byte("nope"))
	assert.Error(t, err)

	assert.InDelta(t, 29.97, parseFrameRate("30000/1001"), 0.01)
	assert.Equal(t, 0.0, parseFrameRate("30/0"))
	assert.Equal(t, 25.0, parseFrameRate("25"))
}

func TestEncodeAndConcatenate(t *testing.T) {
	skipIfNoFFmpeg(t)

	exe, err := New(zerolog.Nop(), config.VideoConfig{})
	require.NoError(t, err)

	dir := t.TempDir()
	params := config.EncodeParams{Width: 64, Height: 64, FPS: 30, Encoder: "libx264"}

	encode := func(name string, n int) string {
		frames := make(chan *image.RGBA, n)
		for i := 0; i < n; i++ {
			frames <- image.NewRGBA(image.Rect(0, 0, 64, 64))
		}
		close(frames)

		path := filepath.Join(dir, name)
		written, err := exe.EncodeFrames(context.Background(), frames, nil, path, params)
		require.NoError(t, err)
		assert.Equal(t, n, written)
		return path
	}

	chunks := []string{encode("c0.mp4", 15), encode("c1.mp4", 15)}
	final := filepath.Join(dir, "final.mp4")
	require.NoError(t, exe.Concatenate(context.Background(), chunks, final, dir, Mix{}))

	info, err := exe.Probe(context.Background(), final)
	require.NoError(t, err)
	assert.Equal(t, 64, info.Width)
	assert.InDelta(t, 1.0, info.Duration, 0.1)
	assert.False(t, info.HasAudio)
}

func TestEncodeFramesCancelled(t *testing.T) {
	skipIfNoFFmpeg(t)

	exe, err := New(zerolog.Nop(), config.VideoConfig{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	frames := make(chan *image.RGBA)
	close(frames)
	_, err = exe.EncodeFrames(ctx, frames, nil, filepath.Join(t.TempDir(), "x.mp4"), config.EncodeParams{Width: 8, Height: 8, FPS: 30})
	assert.Error(t, err)
}
