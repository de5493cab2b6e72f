package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ivlev/marketreel/internal/system"
)

// Report is the timing summary of one render.
type Report struct {
	JobID       string
	Composition string
	Output      string
	Build       string
	Frames      int
	Chunks      int
	AudioTracks int

	Total  time.Duration
	Render time.Duration // summed over workers
	Encode time.Duration
	Concat time.Duration
	FPS    float64

	Host system.HostStats
}

func (r *Report) String() string {
	return fmt.Sprintf(
		"--- [PERFORMANCE REPORT] ---\n"+
			"Build: %s\n"+
			"Composition: %s (%d frames, %d chunks, %d audio tracks)\n"+
			"Total Time: %.2fs\n"+
			"Rendering (CPU): %.2fs\n"+
			"Encoding (wall): %.2fs\n"+
			"Concatenation: %.2fs\n"+
			"Effective FPS: %.2f\n"+
			"Host: %s, %d CPUs, %.0f%% mem used\n"+
			"----------------------------\n",
		r.Build, r.Composition, r.Frames, r.Chunks, r.AudioTracks,
		r.Total.Seconds(), r.Render.Seconds(), r.Encode.Seconds(), r.Concat.Seconds(), r.FPS,
		r.Host.CPUModel, r.Host.LogicalCPUs, r.Host.UsedMemPct,
	)
}

// LogLine is the single benchmark.log entry for this report.
func (r *Report) LogLine(now time.Time) string {
	return fmt.Sprintf("[%s] Build: %s | Composition: %s | Output: %s | Frames: %d | Total: %.2fs | Render: %.2fs | Encode: %.2fs | FPS: %.2f\n",
		now.Format("2006-01-02 15:04:05"),
		r.Build,
		r.Composition,
		filepath.Base(r.Output),
		r.Frames,
		r.Total.Seconds(),
		r.Render.Seconds(),
		r.Encode.Seconds(),
		r.FPS,
	)
}

func AppendBenchmark(path, line string) error {
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(line); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
