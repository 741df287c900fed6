//go:build opencv

package capture

import (
	"context"
	"fmt"
	"image"
	"strconv"
	"time"

	"gocv.io/x/gocv"

	"edge-detection-viewer/internal/frame"
)

// WebcamName is the registry key of the OpenCV camera source.
const WebcamName = "webcam"

func init() {
	Register(WebcamName, NewWebcam)
}

// Webcam reads BGR frames through OpenCV and delivers them already packed
// as RGBA, so Raw mode passes them straight through.
type Webcam struct {
	cfg     Config
	stamper stamper
}

func NewWebcam(cfg Config) (Source, error) {
	return &Webcam{cfg: cfg}, nil
}

func (w *Webcam) Name() string {
	return WebcamName
}

func (w *Webcam) Size() image.Point {
	return image.Pt(w.cfg.Width, w.cfg.Height)
}

func (w *Webcam) open() (*gocv.VideoCapture, error) {
	if w.cfg.Device == "" {
		return gocv.VideoCaptureDevice(0)
	}
	if id, err := strconv.Atoi(w.cfg.Device); err == nil {
		return gocv.VideoCaptureDevice(id)
	}
	return gocv.OpenVideoCapture(w.cfg.Device)
}

func (w *Webcam) Run(ctx context.Context, deliver func(frame.RawFrame)) error {
	logger := w.cfg.logger()

	cam, err := w.open()
	if err != nil {
		return fmt.Errorf("capture %s: failed to open device %q: %w", WebcamName, w.cfg.Device, err)
	}
	defer cam.Close()

	cam.Set(gocv.VideoCaptureFrameWidth, float64(w.cfg.Width))
	cam.Set(gocv.VideoCaptureFrameHeight, float64(w.cfg.Height))
	if w.cfg.FPS > 0 {
		cam.Set(gocv.VideoCaptureFPS, w.cfg.FPS)
	}

	bgr := gocv.NewMat()
	defer bgr.Close()
	rgba := gocv.NewMat()
	defer rgba.Close()

	logger.Info("CAPTURE: Webcam source started", "device", w.cfg.Device)

	misses := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !cam.Read(&bgr) || bgr.Empty() {
			misses++
			if misses > 50 {
				return ErrEndOfStream
			}
			time.Sleep(10 * time.Millisecond)
			continue
		}
		misses = 0

		if err := gocv.CvtColor(bgr, &rgba, gocv.ColorBGRToRGBA); err != nil {
			logger.Warn("CAPTURE: Color conversion failed, skipping frame", "error", err)
			continue
		}

		raw := frame.RawFrame{
			Width:  rgba.Cols(),
			Height: rgba.Rows(),
			Format: frame.FormatRGBA,
			Data:   rgba.ToBytes(),
		}
		w.stamper.stamp(&raw)
		deliver(raw)

		if w.cfg.MaxFrames > 0 && raw.Seq >= w.cfg.MaxFrames {
			return nil
		}
	}
}
