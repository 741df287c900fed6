package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the complete viewer configuration
type Config struct {
	Capture    CaptureConfig    `yaml:"capture"`
	Processing ProcessingConfig `yaml:"processing"`
	Web        WebConfig        `yaml:"web"`
	GUI        GUIConfig        `yaml:"gui"`
	Log        LogConfig        `yaml:"log"`
}

// CaptureConfig selects and sizes the frame source
type CaptureConfig struct {
	Source string  `yaml:"source"` // synthetic, gstreamer, webcam
	Device string  `yaml:"device"` // V4L2 path or camera index, empty for default
	Width  int     `yaml:"width"`
	Height int     `yaml:"height"`
	FPS    float64 `yaml:"fps"`
}

// ProcessingConfig contains pipeline settings
type ProcessingConfig struct {
	Enabled            bool   `yaml:"enabled"`              // start with edge detection on
	Acceleration       string `yaml:"acceleration"`         // auto, off, or a backend name
	Workers            int    `yaml:"workers"`              // reference Sobel goroutines, 0 = GOMAXPROCS
	LatencySampleEvery int    `yaml:"latency_sample_every"` // time one frame in N
	LatencyWindow      int    `yaml:"latency_window"`       // samples kept for the summary
}

// WebConfig contains the HTTP viewer settings
type WebConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Addr        string  `yaml:"addr"`
	StreamFPS   float64 `yaml:"stream_fps"`
	JPEGQuality int     `yaml:"jpeg_quality"`

	// StreamMaxWidth downscales websocket frames wider than this, 0 keeps
	// the native size.
	StreamMaxWidth int `yaml:"stream_max_width"`
}

// GUIConfig contains the desktop viewer settings
type GUIConfig struct {
	Enabled   bool    `yaml:"enabled"`
	RenderFPS float64 `yaml:"render_fps"`
}

// LogConfig selects log level and format
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Default returns a configuration that runs without a config file.
func Default() *Config {
	return &Config{
		Capture: CaptureConfig{
			Source: "synthetic",
			Width:  640,
			Height: 480,
			FPS:    30,
		},
		Processing: ProcessingConfig{
			Enabled:            true,
			Acceleration:       "auto",
			LatencySampleEvery: 30,
			LatencyWindow:      256,
		},
		Web: WebConfig{
			Enabled:     true,
			Addr:        ":8080",
			StreamFPS:   15,
			JPEGQuality: 80,
		},
		GUI: GUIConfig{
			Enabled:   true,
			RenderFPS: 30,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads a YAML configuration file over the defaults. Keys missing
// from the file keep their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Marshal renders cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}
