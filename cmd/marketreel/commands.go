package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ivlev/marketreel/internal/catalog"
	"github.com/ivlev/marketreel/internal/composition"
	"github.com/ivlev/marketreel/internal/config"
	"github.com/ivlev/marketreel/internal/engine"
	"github.com/ivlev/marketreel/internal/logging"
	"github.com/ivlev/marketreel/internal/source"
	"github.com/ivlev/marketreel/internal/system"
	"github.com/ivlev/marketreel/internal/timeline"
	"github.com/ivlev/marketreel/internal/video"
	"github.com/ivlev/marketreel/internal/watch"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8BC34A"))
	driftStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#E57373"))
)

// loadRegistry returns the built-in decks plus the ones in compositions_dir.
func loadRegistry(cfg *config.Config) (*composition.Registry, error) {
	reg, err := catalog.Builtin()
	if err != nil {
		return nil, err
	}
	if cfg.CompositionsDir != "" {
		if err := catalog.LoadDir(reg, cfg.CompositionsDir); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func lookup(cfg *config.Config, id string) (*composition.Composition, error) {
	reg, err := loadRegistry(cfg)
	if err != nil {
		return nil, err
	}
	return reg.Get(id)
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered compositions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loadRegistry(config.FromContext(cmd.Context()))
			if err != nil {
				return err
			}
			writeTable(cmd.OutOrStdout(), reg.List())
			return nil
		},
	}
}

func writeTable(w io.Writer, comps []*composition.Composition) {
	rows := [][]string{{"ID", "SIZE", "FPS", "SLIDES", "FRAMES", "SECONDS"}}
	for _, c := range comps {
		frames := strconv.Itoa(c.DurationInFrames())
		if c.CheckDeclared() != nil {
			frames = driftStyle.Render(fmt.Sprintf("%s (declared %d)", frames, c.DeclaredFrames))
		}
		rows = append(rows, []string{
			c.ID,
			fmt.Sprintf("%dx%d", c.Width, c.Height),
			strconv.Itoa(c.FPS),
			strconv.Itoa(len(c.Slides)),
			frames,
			fmt.Sprintf("%.1f", c.Seconds()),
		})
	}

	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	for r, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			style := lipgloss.NewStyle().Width(widths[i] + 2)
			if r == 0 {
				style = style.Inherit(headerStyle)
			}
			cells[i] = style.Render(cell)
		}
		fmt.Fprintln(w, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
}

func newPlanCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "plan [composition]",
		Short: "Print or export the slide timeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromContext(cmd.Context())
			c, err := lookup(cfg, args[0])
			if err != nil {
				return err
			}

			m := c.Manifest()
			if out != "" {
				if err := composition.WriteManifest(m, out); err != nil {
					return err
				}
				log.Info().Str("path", out).Msg("manifest written")
			}

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%s  %dx%d@%d  %d frames (%.2fs)",
				m.ID, m.Width, m.Height, m.FPS, m.Frames, m.Seconds)))
			for _, s := range m.Slides {
				fmt.Fprintf(w, "  %2d  %-22s [%5d,%5d)  %4d\n", s.Index, s.Name, s.Start, s.End, s.Duration)
			}
			if err := c.CheckDeclared(); err != nil {
				fmt.Fprintln(w, driftStyle.Render(err.Error()))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "write the manifest as YAML")
	return cmd
}

func newStillCmd() *cobra.Command {
	var (
		frame int
		out   string
	)

	cmd := &cobra.Command{
		Use:   "still [composition]",
		Short: "Render one frame to PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromContext(cmd.Context())
			c, err := lookup(cfg, args[0])
			if err != nil {
				return err
			}
			if out == "" {
				out = filepath.Join(cfg.OutputDir, fmt.Sprintf("%s_%05d.png", c.ID, frame))
			}

			eng := engine.New(cfg, nil, source.NewAssets(cfg.AssetsDir, cfg.DPI), log.Logger)
			if err := eng.RenderStill(c, frame, out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[+] %s\n", out)
			return nil
		},
	}

	cmd.Flags().IntVarP(&frame, "frame", "f", 0, "frame position")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output PNG (default: <output_dir>/<id>_<frame>.png)")
	return cmd
}

func newRenderCmd() *cobra.Command {
	var (
		from, to int
		workers  int
		chunk    int
		quality  int
		encoder  string
		strict   bool
		mute     bool
		stats    bool
		out      string
	)

	cmd := &cobra.Command{
		Use:   "render [composition]",
		Short: "Render a composition to MP4",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := config.FromContext(ctx)

			flags := cmd.Flags()
			if flags.Changed("workers") {
				cfg.Workers = workers
			}
			if flags.Changed("chunk") {
				cfg.ChunkFrames = chunk
			}
			if flags.Changed("quality") {
				cfg.Video.Quality = quality
			}
			if flags.Changed("encoder") {
				cfg.Video.Encoder = encoder
			}
			if flags.Changed("strict") {
				cfg.Strict = strict
			}
			if flags.Changed("stats") {
				cfg.ShowStats = stats
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			c, err := lookup(cfg, args[0])
			if err != nil {
				return err
			}
			if err := c.CheckDeclared(); err != nil {
				if cfg.Strict {
					return err
				}
				log.Warn().Err(err).Msg("declared duration ignored")
			}

			exec, err := video.New(logging.WithComponent("video"), cfg.Video)
			if err != nil {
				return err
			}
			if cfg.Video.Encoder == config.EncoderAuto || cfg.Video.Encoder == "" {
				cfg.Video.Encoder = system.BestH264Encoder(ctx, cfg.Video.FFmpegPath)
				if cfg.Video.Encoder != "libx264" {
					log.Info().Str("encoder", cfg.Video.Encoder).Msg("hardware encoder detected")
				}
			}
			if cfg.Video.Quality == 0 {
				cfg.Video.Quality = config.DefaultQuality(cfg.Video.Encoder)
			}

			if out == "" {
				stamp := time.Now().Format("2006-01-02_15-04-05")
				out = filepath.Join(cfg.OutputDir, fmt.Sprintf("%s_%s.mp4", c.ID, stamp))
			}

			eng := engine.New(cfg, exec, source.NewAssets(cfg.AssetsDir, cfg.DPI), log.Logger)
			report, err := eng.Render(ctx, engine.Job{
				Composition: c,
				Output:      out,
				From:        from,
				To:          to,
				Mute:        mute,
			})
			if err != nil {
				return err
			}

			info, err := exec.Probe(ctx, report.Output)
			if err != nil {
				log.Warn().Err(err).Msg("could not probe output")
			} else {
				log.Info().
					Str("size", fmt.Sprintf("%dx%d", info.Width, info.Height)).
					Float64("seconds", info.Duration).
					Bool("audio", info.HasAudio).
					Msg("output probed")
			}

			fmt.Fprintf(cmd.OutOrStdout(), "[+++] %s (%d frames, %.1f fps)\n", report.Output, report.Frames, report.FPS)
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVar(&from, "from", 0, "first frame")
	f.IntVar(&to, "to", 0, "end frame, exclusive (0: end of composition)")
	f.IntVarP(&workers, "workers", "w", 0, "parallel chunk encoders (default from config)")
	f.IntVar(&chunk, "chunk", 0, "frames per chunk (default from config)")
	f.IntVarP(&quality, "quality", "q", 0, "0: auto; x264/nvenc CRF, videotoolbox bitrate = Q*100k")
	f.StringVar(&encoder, "encoder", "", "h264 encoder (auto, libx264, h264_nvenc, h264_videotoolbox)")
	f.BoolVar(&strict, "strict", false, "fail when a declared duration disagrees with the slides")
	f.BoolVar(&mute, "mute", false, "skip narration and music")
	f.BoolVar(&stats, "stats", false, "print a performance report and append to the benchmark log")
	f.StringVarP(&out, "out", "o", "", "output file (default: <output_dir>/<id>_<time>.mp4)")
	return cmd
}

func newWatchCmd() *cobra.Command {
	var (
		frame    int
		out      string
		debounce time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch [composition]",
		Short: "Re-render a still whenever deck files change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := config.FromContext(ctx)
			if cfg.CompositionsDir == "" {
				return fmt.Errorf("watch needs compositions_dir in the config")
			}
			id := args[0]
			if out == "" {
				out = filepath.Join(cfg.OutputDir, id+"_preview.png")
			}

			logger := logging.WithComponent("watch")
			eng := engine.New(cfg, nil, source.NewAssets(cfg.AssetsDir, cfg.DPI), log.Logger)
			refresh := func() error {
				c, err := lookup(cfg, id)
				if err != nil {
					return err
				}
				if err := eng.RenderStill(c, frame, out); err != nil {
					return err
				}
				logger.Info().Str("path", out).Int("frame", frame).Msg("preview updated")
				return nil
			}

			if err := refresh(); err != nil {
				return err
			}

			w, err := watch.New([]string{cfg.CompositionsDir}, nil, func(_ context.Context, paths []string) {
				logger.Debug().Strs("paths", paths).Msg("reloading")
				if err := refresh(); err != nil {
					logger.Error().Err(err).Msg("reload failed")
				}
			}, logger)
			if err != nil {
				return err
			}
			w.SetDebounce(debounce)
			if err := w.Start(ctx); err != nil {
				w.Stop()
				return err
			}
			defer w.Stop()

			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().IntVarP(&frame, "frame", "f", 0, "frame position")
	cmd.Flags().StringVarP(&out, "out", "o", "", "preview PNG (default: <output_dir>/<id>_preview.png)")
	cmd.Flags().DurationVar(&debounce, "debounce", 300*time.Millisecond, "quiet period before reloading")
	return cmd
}

func newConfigCmd() *cobra.Command {
	var write string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromContext(cmd.Context())
			if write != "" {
				if err := cfg.Save(write); err != nil {
					return err
				}
				log.Info().Str("path", write).Msg("config written")
				return nil
			}

			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().StringVar(&write, "write", "", "save the configuration to this file instead")
	return cmd
}

func newProbeCmd() *cobra.Command {
	var (
		fps     int
		padding float64
		latest  bool
	)

	cmd := &cobra.Command{
		Use:   "probe [audio dir]",
		Short: "Measure narration files and print fitted slide lengths",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := config.FromContext(ctx)

			var files []string
			if latest {
				f, err := system.FindLatest(args[0], system.AudioExtensions)
				if err != nil {
					return err
				}
				files = []string{f}
			} else {
				var err error
				if files, err = system.AudioFiles(args[0]); err != nil {
					return err
				}
			}

			secs := make([]float64, len(files))
			for i, f := range files {
				var err error
				if secs[i], err = system.AudioDuration(ctx, cfg.Video.FFprobePath, f); err != nil {
					return fmt.Errorf("%s: %w", f, err)
				}
			}

			plan, err := timeline.FitAudio(fps, padding, secs...)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%-40s %9s %7s", "FILE", "SECONDS", "FRAMES")))
			for i, f := range files {
				fmt.Fprintf(w, "%-40s %9.3f %7d\n", filepath.Base(f), secs[i], plan.Duration(i))
			}
			fmt.Fprintf(w, "%-40s %9.3f %7d\n", "total", plan.Seconds(fps), plan.Total())
			return nil
		},
	}

	cmd.Flags().IntVar(&fps, "fps", 30, "frame rate")
	cmd.Flags().Float64Var(&padding, "padding", 1, "seconds of silence after each narration")
	cmd.Flags().BoolVar(&latest, "latest", false, "only the most recently modified file")
	return cmd
}
