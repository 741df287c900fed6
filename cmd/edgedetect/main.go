// edgedetect runs a single frame through the viewer pipeline and writes the
// result as an image.
//
//	edgedetect -in frame.yuv -width 640 -height 480 -out edges.png
//	edgedetect -in photo.jpg -out edges.png -compare
package main

import (
	"errors"
	"flag"
	"fmt"
	goio "io"
	"log/slog"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"edge-detection-viewer/internal/accel"
	"edge-detection-viewer/internal/algorithms"
	"edge-detection-viewer/internal/core"
	"edge-detection-viewer/internal/frame"
	"edge-detection-viewer/internal/io"
	"edge-detection-viewer/internal/metrics"
)

type options struct {
	in, out       string
	width, height int
	raw           bool
	compare       bool
	acceleration  string
	workers       int
	jpegQuality   int
}

func main() {
	var opts options
	flag.StringVar(&opts.in, "in", "", "Input file: raw I420 (with -width/-height) or PNG/JPEG/BMP/TIFF")
	flag.StringVar(&opts.out, "out", "edges.png", "Output image (.png, .jpg, .bmp, .tif)")
	flag.IntVar(&opts.width, "width", 0, "I420 frame width")
	flag.IntVar(&opts.height, "height", 0, "I420 frame height")
	flag.BoolVar(&opts.raw, "raw", false, "Skip edge detection, write the converted frame")
	flag.BoolVar(&opts.compare, "compare", false, "Report accelerated vs reference output metrics")
	flag.StringVar(&opts.acceleration, "accel", "auto", "Acceleration: auto, off, or a backend name")
	flag.IntVar(&opts.workers, "workers", 0, "Reference Sobel goroutines, 0 = GOMAXPROCS")
	flag.IntVar(&opts.jpegQuality, "quality", io.DefaultJPEGQuality, "JPEG output quality")
	debugMode := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	level := slog.LevelWarn
	if *debugMode {
		logger.SetLevel(logrus.DebugLevel)
		level = slog.LevelDebug
	}
	slogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(opts, slogger, os.Stdout); err != nil {
		logger.WithError(err).Error("edgedetect failed")
		os.Exit(1)
	}
	logger.WithField("out", opts.out).Debug("Frame written")
}

func run(opts options, logger *slog.Logger, stdout goio.Writer) error {
	if opts.in == "" {
		return errors.New("-in is required")
	}

	loader := io.NewFrameLoader(logger, opts.jpegQuality)
	raw, err := load(loader, opts)
	if err != nil {
		return err
	}

	accelerated, err := accel.Probe(accel.ParseMode(opts.acceleration), logger)
	if err != nil {
		logger.Debug("Using reference processor only", "reason", err)
	}
	reference := algorithms.NewReference(opts.workers)

	p := core.New(core.Options{
		Logger:             logger,
		Reference:          reference,
		Accelerated:        accelerated,
		LatencySampleEvery: 1,
		ProcessingEnabled:  !opts.raw,
	})
	p.Start()
	defer p.Stop()

	if err := p.OnFrame(raw); err != nil {
		return fmt.Errorf("failed to process %s: %w", opts.in, err)
	}
	out, _, ok := p.Handoff().Sample()
	if !ok {
		return errors.New("pipeline published no frame")
	}
	if err := loader.SaveFrame(out, opts.out); err != nil {
		return err
	}

	st := p.Stats()
	fmt.Fprintf(stdout, "%s: %dx%d %s via %s in %s\n",
		opts.out, out.Width, out.Height, st.Mode, st.Backend, st.Latency.Last)

	if opts.compare {
		return compare(stdout, raw, reference, accelerated, opts.raw)
	}
	return nil
}

// load treats the input as raw I420 when a size is given or the extension
// says so, and as an encoded image otherwise.
func load(loader *io.FrameLoader, opts options) (frame.RawFrame, error) {
	lower := strings.ToLower(opts.in)
	isRaw := strings.HasSuffix(lower, ".yuv") || strings.HasSuffix(lower, ".i420")
	if opts.width > 0 || opts.height > 0 || isRaw {
		if opts.width <= 0 || opts.height <= 0 {
			return frame.RawFrame{}, errors.New("-width and -height are required for I420 input")
		}
		return loader.LoadI420(opts.in, opts.width, opts.height)
	}
	return loader.LoadImage(opts.in)
}

// compare runs both processors on the same frame and prints how far the
// accelerated output is from the reference.
func compare(w goio.Writer, raw frame.RawFrame, reference, accelerated algorithms.Processor, rawOnly bool) error {
	if accelerated == nil {
		fmt.Fprintln(w, "compare: no accelerated backend available")
		return nil
	}

	refOut, err := runProcessor(reference, raw, rawOnly)
	if err != nil {
		return fmt.Errorf("reference: %w", err)
	}
	accOut, err := runProcessor(accelerated, raw, rawOnly)
	if err != nil {
		return fmt.Errorf("%s: %w", accelerated.GetName(), err)
	}

	evaluator := metrics.NewEvaluator()
	results := evaluator.CalculateAll(refOut, accOut)

	fmt.Fprintf(w, "compare %s vs %s:\n", accelerated.GetName(), reference.GetName())
	for _, name := range evaluator.GetNames() {
		v, ok := results[name]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "  %-10s %.4f\n", name, v)
	}
	return nil
}

func runProcessor(p algorithms.Processor, raw frame.RawFrame, rawOnly bool) (frame.DisplayFrame, error) {
	var img frame.DisplayFrame
	if raw.Format == frame.FormatRGBA {
		img = frame.DisplayFrame{Width: raw.Width, Height: raw.Height, Pix: raw.Data}
	} else {
		var err error
		if img, err = p.Convert(raw); err != nil {
			return frame.DisplayFrame{}, err
		}
	}
	if rawOnly {
		return img, nil
	}
	return p.Detect(img)
}
