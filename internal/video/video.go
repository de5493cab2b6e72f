// Package video drives ffmpeg: raw RGBA frames in over stdin, H.264 chunks
// out, then a concat pass that lays the audio tracks under the picture.
package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ivlev/marketreel/internal/config"
)

// Encoder turns frame streams into chunk files and joins them.
type Encoder interface {
	EncodeFrames(ctx context.Context, frames <-chan *image.RGBA, release func(*image.RGBA), path string, params config.EncodeParams) (int, error)
	Concatenate(ctx context.Context, chunks []string, finalPath, tmpDir string, mix Mix) error
}

// AudioInput is one audio file placed on the output timeline, in seconds.
type AudioInput struct {
	Path     string
	Delay    float64 // where the clip starts on the output
	Offset   float64 // how far into the file playback begins
	Duration float64
	Volume   float64
	Loop     bool
}

// Mix describes the audio laid under the concatenated chunks.
type Mix struct {
	Inputs []AudioInput
	Total  float64
}

var _ Encoder = (*Executor)(nil)

// Executor runs ffmpeg and ffprobe binaries.
type Executor struct {
	logger      zerolog.Logger
	ffmpegPath  string
	ffprobePath string
	threads     int
}

// New resolves the ffmpeg and ffprobe binaries named in cfg.
func New(logger zerolog.Logger, cfg config.VideoConfig) (*Executor, error) {
	ffmpeg, ffprobe := cfg.FFmpegPath, cfg.FFprobePath
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	if ffprobe == "" {
		ffprobe = "ffprobe"
	}

	ffmpegPath, err := exec.LookPath(ffmpeg)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}
	ffprobePath, err := exec.LookPath(ffprobe)
	if err != nil {
		return nil, fmt.Errorf("ffprobe not found: %w", err)
	}

	return &Executor{
		logger:      logger.With().Str("component", "ffmpeg").Logger(),
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		threads:     cfg.Threads,
	}, nil
}

// EncodeFrames pipes every frame from the channel into one ffmpeg process.
// Each frame is handed to release once written. The channel must be closed
// by the producer; on error the caller is expected to cancel ctx.
func (e *Executor) EncodeFrames(
	ctx context.Context,
	frames <-chan *image.RGBA,
	release func(*image.RGBA),
	path string,
	params config.EncodeParams,
) (int, error) {
	args := encodeArgs(params, path)
	e.logger.Debug().Strs("args", args).Msg("encoding chunk")

	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return 0, fmt.Errorf("stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("ffmpeg start: %w", err)
	}

	written := 0
	var writeErr error
	for img := range frames {
		if writeErr == nil {
			writeErr = writeRawRGBA(stdin, img, params.Width, params.Height)
			if writeErr == nil {
				written++
			}
		}
		if release != nil {
			release(img)
		}
		if writeErr != nil {
			break
		}
	}
	stdin.Close()

	waitErr := cmd.Wait()
	if ctx.Err() != nil {
		return written, ctx.Err()
	}
	if writeErr != nil {
		return written, fmt.Errorf("write frame %d: %w: %s", written, writeErr, tail(out.String()))
	}
	if waitErr != nil {
		return written, fmt.Errorf("ffmpeg: %w: %s", waitErr, tail(out.String()))
	}
	return written, nil
}

func encodeArgs(params config.EncodeParams, path string) []string {
	encoder := params.Encoder
	if encoder == "" || encoder == config.EncoderAuto {
		encoder = "libx264"
	}
	quality := params.Quality
	if quality <= 0 {
		quality = config.DefaultQuality(encoder)
	}

	args := []string{"-y", "-hide_banner", "-loglevel", "error"}
	if params.Threads > 0 {
		args = append(args, "-threads", fmt.Sprintf("%d", params.Threads))
	}
	args = append(args,
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", params.Width, params.Height),
		"-framerate", fmt.Sprintf("%d", params.FPS),
		"-i", "-",
		"-an",
		"-pix_fmt", "yuv420p",
		"-c:v", encoder,
	)
	args = append(args, qualityArgs(encoder, quality)...)
	return append(args, path)
}

func qualityArgs(encoder string, quality int) []string {
	switch encoder {
	case "h264_videotoolbox":
		// no constant-quality mode; 75 -> 7500k
		return []string{"-b:v", fmt.Sprintf("%dk", quality*100)}
	case "h264_nvenc":
		return []string{"-cq", fmt.Sprintf("%d", quality)}
	default:
		return []string{"-crf", fmt.Sprintf("%d", quality), "-preset", "medium"}
	}
}

// writeRawRGBA writes tightly packed RGBA rows, copying when the image has
// padding or an offset origin.
func writeRawRGBA(w io.Writer, img *image.RGBA, width, height int) error {
	bounds := img.Bounds()
	if bounds.Dx() != width || bounds.Dy() != height {
		return fmt.Errorf("frame is %dx%d, stream is %dx%d", bounds.Dx(), bounds.Dy(), width, height)
	}
	if img.Stride != width*4 || bounds.Min != (image.Point{}) {
		packed := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.Draw(packed, packed.Bounds(), img, bounds.Min, draw.Src)
		img = packed
	}
	_, err := w.Write(img.Pix[:width*height*4])
	return err
}

// Concatenate joins chunks with the concat demuxer. With audio inputs the
// video stream is copied and the mix is encoded to AAC.
func (e *Executor) Concatenate(ctx context.Context, chunks []string, finalPath, tmpDir string, mix Mix) error {
	if len(chunks) == 0 {
		return errors.New("no chunks to concatenate")
	}

	listPath := filepath.Join(tmpDir, "inputs.txt")
	if err := writeConcatList(listPath, chunks); err != nil {
		return err
	}

	args := concatArgs(listPath, finalPath, mix)
	e.logger.Debug().Strs("args", args).Msg("concatenating")

	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("ffmpeg concat: %w: %s", err, tail(string(out)))
	}
	return nil
}

func writeConcatList(path string, chunks []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	for _, p := range chunks {
		abs, err := filepath.Abs(p)
		if err != nil {
			f.Close()
			return err
		}
		fmt.Fprintf(f, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`))
	}
	return f.Close()
}

func concatArgs(listPath, finalPath string, mix Mix) []string {
	args := []string{"-y", "-hide_banner", "-loglevel", "error",
		"-f", "concat", "-safe", "0", "-i", listPath}

	if len(mix.Inputs) == 0 {
		return append(args, "-c", "copy", finalPath)
	}

	for _, in := range mix.Inputs {
		if in.Loop {
			args = append(args, "-stream_loop", "-1")
		}
		args = append(args, "-i", in.Path)
	}

	args = append(args,
		"-filter_complex", mixGraph(mix, 1),
		"-map", "0:v", "-map", "[aout]",
		"-c:v", "copy",
		"-c:a", "aac", "-b:a", "192k",
	)
	if mix.Total > 0 {
		args = append(args, "-t", seconds(mix.Total))
	}
	return append(args, finalPath)
}

// mixGraph trims, levels and delays each input, then sums them without
// amix's per-input attenuation. first is the ffmpeg index of Inputs[0].
func mixGraph(mix Mix, first int) string {
	var graph strings.Builder
	labels := make([]string, 0, len(mix.Inputs))

	for i, in := range mix.Inputs {
		label := fmt.Sprintf("[a%d]", i)
		labels = append(labels, label)

		fmt.Fprintf(&graph, "[%d:a]atrim=start=%s:duration=%s,asetpts=PTS-STARTPTS,",
			first+i, seconds(in.Offset), seconds(in.Duration))
		if in.Loop {
			graph.WriteString(backgroundVolume(in.Volume, in.Duration))
		} else {
			fmt.Fprintf(&graph, "volume=%s", seconds(in.Volume))
		}
		ms := int64(in.Delay*1000 + 0.5)
		fmt.Fprintf(&graph, ",adelay=%d:all=1%s;", ms, label)
	}

	if len(labels) == 1 {
		fmt.Fprintf(&graph, "%sanull[aout]", labels[0])
		return graph.String()
	}
	fmt.Fprintf(&graph, "%samix=inputs=%d:duration=longest:dropout_transition=0:normalize=0[aout]",
		strings.Join(labels, ""), len(labels))
	return graph.String()
}

// backgroundVolume ramps a bed in and out so it never starts or ends abruptly.
func backgroundVolume(vol, total float64) string {
	fadeIn, fadeOut := 5.0, 5.0
	if total < fadeIn+fadeOut {
		fadeIn, fadeOut = total*0.1, total*0.1
	}
	if fadeIn <= 0 {
		return fmt.Sprintf("volume=%s", seconds(vol))
	}
	return fmt.Sprintf("volume='%s*(if(lte(t,%s),0.1+0.9*(t/%s),if(gte(t,%s),(%s-t)/%s,1.0)))':eval=frame",
		seconds(vol), seconds(fadeIn), seconds(fadeIn), seconds(total-fadeOut), seconds(total), seconds(fadeOut))
}

func seconds(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.3f", v), "0"), ".")
}

// tail keeps the last lines of ffmpeg output for error messages.
func tail(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > 5 {
		lines = lines[len(lines)-5:]
	}
	return strings.Join(lines, " | ")
}
