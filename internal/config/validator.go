package config

import (
	"fmt"
	"strings"
)

var (
	logLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	logFormats = map[string]bool{"text": true, "json": true}
)

// Validate checks if the configuration is valid, filling in defaults for
// zero values where one exists.
func Validate(cfg *Config) error {
	if cfg.Capture.Source == "" {
		return fmt.Errorf("capture.source is required")
	}
	if cfg.Capture.Width <= 0 || cfg.Capture.Height <= 0 {
		return fmt.Errorf("capture size must be positive, got %dx%d", cfg.Capture.Width, cfg.Capture.Height)
	}
	if cfg.Capture.FPS < 0 {
		return fmt.Errorf("capture.fps must be >= 0")
	}

	if cfg.Processing.Acceleration == "" {
		cfg.Processing.Acceleration = "auto"
	}
	if cfg.Processing.Workers < 0 {
		return fmt.Errorf("processing.workers must be >= 0")
	}
	if cfg.Processing.LatencyWindow <= 0 {
		cfg.Processing.LatencyWindow = 256
	}

	if cfg.Web.Enabled {
		if cfg.Web.Addr == "" {
			return fmt.Errorf("web.addr is required when web is enabled")
		}
		if cfg.Web.StreamFPS <= 0 {
			cfg.Web.StreamFPS = 15
		}
	}
	if cfg.Web.JPEGQuality == 0 {
		cfg.Web.JPEGQuality = 80
	}
	if cfg.Web.JPEGQuality < 1 || cfg.Web.JPEGQuality > 100 {
		return fmt.Errorf("web.jpeg_quality must be in [1, 100], got %d", cfg.Web.JPEGQuality)
	}

	if cfg.Web.StreamMaxWidth < 0 {
		return fmt.Errorf("web.stream_max_width must be >= 0")
	}

	if cfg.GUI.Enabled && cfg.GUI.RenderFPS <= 0 {
		cfg.GUI.RenderFPS = 30
	}

	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if !logLevels[cfg.Log.Level] {
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", cfg.Log.Level)
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if !logFormats[cfg.Log.Format] {
		return fmt.Errorf("log.format must be text or json, got %q", cfg.Log.Format)
	}

	return nil
}
