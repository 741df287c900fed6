// Edge Detection Viewer - live camera edge detection
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/theme"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"edge-detection-viewer/internal/accel"
	"edge-detection-viewer/internal/algorithms"
	"edge-detection-viewer/internal/capture"
	"edge-detection-viewer/internal/config"
	"edge-detection-viewer/internal/core"
	"edge-detection-viewer/internal/gui"
	"edge-detection-viewer/internal/io"
	"edge-detection-viewer/internal/metrics"
	"edge-detection-viewer/internal/web"
)

const (
	AppName    = "Edge Detection Viewer"
	AppID      = "dev.edgedetect.viewer"
	AppVersion = "1.0.0"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML configuration file")
	debugMode := flag.Bool("debug", false, "Enable debug mode with verbose logging")
	source := flag.String("source", "", "Capture source (overrides config): "+fmt.Sprint(capture.Names()))
	device := flag.String("device", "", "Capture device (overrides config)")
	noGUI := flag.Bool("no-gui", false, "Run without the desktop viewer")
	addr := flag.String("addr", "", "Web viewer listen address (overrides config)")
	printConfig := flag.Bool("print-config", false, "Print the effective configuration and exit")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	if *source != "" {
		cfg.Capture.Source = *source
	}
	if *device != "" {
		cfg.Capture.Device = *device
	}
	if *noGUI {
		cfg.GUI.Enabled = false
	}
	if *addr != "" {
		cfg.Web.Enabled = true
		cfg.Web.Addr = *addr
	}
	if *debugMode {
		cfg.Log.Level = "debug"
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	if *printConfig {
		out, err := config.Marshal(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
		os.Stdout.Write(out)
		return
	}

	logger, slogger := initLogger(cfg.Log, *debugMode)
	logger.WithFields(logrus.Fields{
		"version":    AppVersion,
		"debug_mode": *debugMode,
		"source":     cfg.Capture.Source,
	}).Info("Starting Edge Detection Viewer")

	if err := run(cfg, slogger); err != nil {
		logger.WithError(err).Error("Viewer stopped with error")
		os.Exit(1)
	}
	logger.Info("Application shutting down gracefully")
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func run(cfg *config.Config, logger *slog.Logger) error {
	accelerated, err := accel.Probe(accel.ParseMode(cfg.Processing.Acceleration), logger)
	if err != nil {
		logger.Info("Using reference processor only", "reason", err)
	} else {
		logger.Info("Accelerated processor ready", "backend", accelerated.GetName(), "version", accel.Version())
	}

	p := core.New(core.Options{
		Logger:             logger,
		Reference:          algorithms.NewReference(cfg.Processing.Workers),
		Accelerated:        accelerated,
		LatencySampleEvery: cfg.Processing.LatencySampleEvery,
		Latency:            metrics.NewLatencyRecorder(cfg.Processing.LatencyWindow),
		Debugger:           core.NewPipelineDebugger(logger, core.DefaultDebugEvents),
		ProcessingEnabled:  cfg.Processing.Enabled,
	})

	src, err := capture.New(cfg.Capture.Source, capture.Config{
		Logger: logger,
		Device: cfg.Capture.Device,
		Width:  cfg.Capture.Width,
		Height: cfg.Capture.Height,
		FPS:    cfg.Capture.FPS,
	})
	if err != nil {
		return fmt.Errorf("failed to open capture source: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.Run(gctx, src)
	})

	if cfg.Web.Enabled {
		server := web.NewServer(p, web.Options{
			Logger:         logger,
			StreamFPS:      cfg.Web.StreamFPS,
			JPEGQuality:    cfg.Web.JPEGQuality,
			StreamMaxWidth: cfg.Web.StreamMaxWidth,
			Version:        accel.Version(),
		})
		g.Go(func() error {
			return server.Listen(cfg.Web.Addr)
		})
		g.Go(func() error {
			<-gctx.Done()
			return server.Shutdown()
		})
	}

	if cfg.GUI.Enabled {
		viewer := app.NewWithID(AppID)
		viewer.Settings().SetTheme(theme.DefaultTheme())

		gui.NewApplication(viewer, p, gui.Options{
			Logger:    logger,
			RenderFPS: cfg.GUI.RenderFPS,
			Loader:    io.NewFrameLoader(logger, cfg.Web.JPEGQuality),
			Version:   accel.Version(),
		}).ShowAndRun(gctx)

		// Closing the window ends the process.
		stop()
	} else {
		<-gctx.Done()
	}

	return g.Wait()
}

// initLogger initializes the process logger and the structured logger handed
// to internal packages, both at the configured level and format.
func initLogger(cfg config.LogConfig, debugMode bool) (*logrus.Logger, *slog.Logger) {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: slogLevel(level)}
	if debugMode || cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			ForceColors:   debugMode,
		})
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	if debugMode {
		logger.Debug("Debug logging enabled")
	}

	return logger, slog.New(handler)
}

func slogLevel(level logrus.Level) slog.Level {
	switch {
	case level >= logrus.DebugLevel:
		return slog.LevelDebug
	case level == logrus.InfoLevel:
		return slog.LevelInfo
	case level == logrus.WarnLevel:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
