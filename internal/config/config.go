// Package config holds render settings loaded from YAML and CLI flags.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

type contextKey string

const configKey contextKey = "config"

const EncoderAuto = "auto"

// Config holds all application configuration
type Config struct {
	OutputDir       string `yaml:"output_dir"`
	TempDir         string `yaml:"temp_dir"`
	AssetsDir       string `yaml:"assets_dir"`
	CompositionsDir string `yaml:"compositions_dir"`

	Workers     int `yaml:"workers"`
	ChunkFrames int `yaml:"chunk_frames"`
	DPI         int `yaml:"dpi"`

	// Strict turns a declared-duration mismatch into an error.
	Strict bool `yaml:"strict"`

	Video VideoConfig `yaml:"video"`

	ShowStats    bool   `yaml:"show_stats"`
	BenchmarkLog string `yaml:"benchmark_log"`
	BuildVersion string `yaml:"-"`
}

type VideoConfig struct {
	FFmpegPath  string `yaml:"ffmpeg_path"`
	FFprobePath string `yaml:"ffprobe_path"`
	Encoder     string `yaml:"encoder"`
	Quality     int    `yaml:"quality"`
	Threads     int    `yaml:"threads"`
}

// EncodeParams are the per-run settings an encoder needs.
type EncodeParams struct {
	Width, Height int
	FPS           int
	Encoder       string
	Quality       int
	Threads       int
}

// Load reads configuration from file or returns defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if path == "" {
		path = findConfigFile()
	}

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.ChunkFrames < 1 {
		return fmt.Errorf("chunk_frames must be at least 1, got %d", c.ChunkFrames)
	}
	if c.Video.Quality < 0 {
		return fmt.Errorf("quality must not be negative")
	}
	return nil
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		OutputDir:    "output",
		TempDir:      "",
		AssetsDir:    ".",
		Workers:      runtime.NumCPU(),
		ChunkFrames:  300,
		DPI:          150,
		BenchmarkLog: "benchmark.log",
		Video: VideoConfig{
			FFmpegPath:  "ffmpeg",
			FFprobePath: "ffprobe",
			Encoder:     EncoderAuto,
		},
	}
}

// DefaultQuality picks a sensible quality value for an encoder.
func DefaultQuality(encoder string) int {
	switch encoder {
	case "h264_videotoolbox":
		return 75 // -b:v 7500k
	case "h264_nvenc":
		return 28
	default:
		return 23
	}
}

func findConfigFile() string {
	candidates := []string{
		"./marketreel.yaml",
		"./config.yaml",
		filepath.Join(os.Getenv("HOME"), ".marketreel", "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// WithConfig stores config in context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from context
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey).(*Config); ok {
		return cfg
	}
	return Default()
}
