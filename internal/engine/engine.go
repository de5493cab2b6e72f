// Package engine renders compositions: frames are drawn and encoded in
// parallel chunks, then joined with the audio tracks into the final file.
package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/marketreel/internal/composition"
	"github.com/ivlev/marketreel/internal/config"
	"github.com/ivlev/marketreel/internal/raster"
	"github.com/ivlev/marketreel/internal/source"
	"github.com/ivlev/marketreel/internal/system"
	"github.com/ivlev/marketreel/internal/video"
)

var ErrRange = errors.New("engine: frame range out of bounds")

// frames buffered between a chunk's drawer and its encoder
const chunkQueue = 4

// Job is one render request. To <= 0 means the end of the composition.
type Job struct {
	Composition *composition.Composition
	Output      string
	From, To    int
	Mute        bool
}

func (j Job) frameRange() (int, int, error) {
	total := j.Composition.DurationInFrames()
	from, to := j.From, j.To
	if to <= 0 {
		to = total
	}
	if from < 0 || to > total || from >= to {
		return 0, 0, fmt.Errorf("%w: [%d,%d) of %d frames", ErrRange, from, to, total)
	}
	return from, to, nil
}

type Engine struct {
	cfg    *config.Config
	enc    video.Encoder
	assets *source.Assets
	pool   *system.ImagePool
	logger zerolog.Logger
}

func New(cfg *config.Config, enc video.Encoder, assets *source.Assets, logger zerolog.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		enc:    enc,
		assets: assets,
		pool:   system.NewImagePool(),
		logger: logger.With().Str("component", "engine").Logger(),
	}
}

// Render draws and encodes job's frame range and writes job.Output.
func (e *Engine) Render(ctx context.Context, job Job) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	startTime := time.Now()
	c := job.Composition

	from, to, err := job.frameRange()
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	logger := e.logger.With().Str("job", id[:8]).Str("composition", c.ID).Logger()

	tmpDir, err := os.MkdirTemp(e.cfg.TempDir, "marketreel_")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmpDir)

	chunkSize := max(1, e.cfg.ChunkFrames)
	var ranges [][2]int
	for s := from; s < to; s += chunkSize {
		ranges = append(ranges, [2]int{s, min(s+chunkSize, to)})
	}

	logger.Info().
		Str("size", fmt.Sprintf("%dx%d", c.Width, c.Height)).
		Int("fps", c.FPS).
		Int("from", from).
		Int("to", to).
		Int("chunks", len(ranges)).
		Str("encoder", e.cfg.Video.Encoder).
		Msg("rendering")

	params := config.EncodeParams{
		Width:   c.Width,
		Height:  c.Height,
		FPS:     c.FPS,
		Encoder: e.cfg.Video.Encoder,
		Quality: e.cfg.Video.Quality,
		Threads: e.cfg.Video.Threads,
	}

	chunks := make([]string, len(ranges))
	var renderNanos, done atomic.Int64

	encodeStart := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, e.cfg.Workers))
	for i, r := range ranges {
		g.Go(func() error {
			path := filepath.Join(tmpDir, fmt.Sprintf("chunk_%05d.mp4", i))
			if err := e.renderChunk(gctx, c, r[0], r[1], path, params, &renderNanos); err != nil {
				return fmt.Errorf("chunk %d [%d,%d): %w", i, r[0], r[1], err)
			}
			chunks[i] = path
			logger.Debug().Int64("ready", done.Add(1)).Int("of", len(ranges)).Msg("chunk encoded")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	encodeTime := time.Since(encodeStart)

	var mix video.Mix
	if !job.Mute {
		mix = e.mix(c, from, to, logger)
	}

	if dir := filepath.Dir(job.Output); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	concatStart := time.Now()
	if err := e.enc.Concatenate(ctx, chunks, job.Output, tmpDir, mix); err != nil {
		return nil, fmt.Errorf("assemble %s: %w", job.Output, err)
	}

	totalTime := time.Since(startTime)
	report := &Report{
		JobID:       id,
		Composition: c.ID,
		Output:      job.Output,
		Frames:      to - from,
		Chunks:      len(ranges),
		AudioTracks: len(mix.Inputs),
		Total:       totalTime,
		Render:      time.Duration(renderNanos.Load()),
		Encode:      encodeTime,
		Concat:      time.Since(concatStart),
		FPS:         float64(to-from) / totalTime.Seconds(),
		Build:       e.cfg.BuildVersion,
	}

	if e.cfg.ShowStats {
		report.Host = system.Host(ctx)
		fmt.Print(report.String())
		if err := AppendBenchmark(e.cfg.BenchmarkLog, report.LogLine(time.Now())); err != nil {
			logger.Warn().Err(err).Str("path", e.cfg.BenchmarkLog).Msg("could not write benchmark log")
		}
	}

	logger.Info().Str("output", job.Output).Dur("took", totalTime).Msg("render complete")
	return report, nil
}

// renderChunk draws frames [from, to) on one goroutine while another streams
// them into the encoder.
func (e *Engine) renderChunk(
	ctx context.Context,
	c *composition.Composition,
	from, to int,
	path string,
	params config.EncodeParams,
	renderNanos *atomic.Int64,
) error {
	r := raster.New(e.assets, e.pool)
	defer r.Close()

	frames := make(chan *image.RGBA, chunkQueue)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(frames)
		for pos := from; pos < to; pos++ {
			start := time.Now()
			img, err := r.Draw(c.Frame(pos))
			if err != nil {
				return err
			}
			renderNanos.Add(int64(time.Since(start)))

			select {
			case frames <- img:
			case <-gctx.Done():
				e.pool.Put(img)
				return gctx.Err()
			}
		}
		return nil
	})

	var written int
	g.Go(func() error {
		n, err := e.enc.EncodeFrames(gctx, frames, e.pool.Put, path, params)
		written = n
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}
	if written != to-from {
		return fmt.Errorf("encoded %d of %d frames", written, to-from)
	}
	return nil
}

// mix places every audio track that overlaps [from, to) on the output
// timeline. Missing files are skipped with a warning.
func (e *Engine) mix(c *composition.Composition, from, to int, logger zerolog.Logger) video.Mix {
	fps := float64(c.FPS)
	m := video.Mix{Total: float64(to-from) / fps}

	for _, t := range c.AudioTracks() {
		start, end := max(t.From, from), min(t.To, to)
		if start >= end {
			continue
		}
		path := e.resolve(t.Src)
		if _, err := os.Stat(path); err != nil {
			logger.Warn().Str("src", path).Msg("audio track missing, rendering without it")
			continue
		}
		m.Inputs = append(m.Inputs, video.AudioInput{
			Path:     path,
			Delay:    float64(start-from) / fps,
			Offset:   float64(start-t.From) / fps,
			Duration: float64(end-start) / fps,
			Volume:   t.Volume,
			Loop:     t.Loop,
		})
	}
	return m
}

func (e *Engine) resolve(src string) string {
	if e.assets == nil {
		return src
	}
	return e.assets.Resolve(src)
}

// RenderStill writes a single frame as PNG.
func (e *Engine) RenderStill(c *composition.Composition, position int, path string) error {
	r := raster.New(e.assets, e.pool)
	defer r.Close()

	img, err := r.Draw(c.Frame(position))
	if err != nil {
		return err
	}
	defer r.Release(img)

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
