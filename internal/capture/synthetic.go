package capture

import (
	"context"
	"image"
	"time"

	"edge-detection-viewer/internal/frame"
)

// SyntheticName is the registry key of the test-pattern source.
const SyntheticName = "synthetic"

func init() {
	Register(SyntheticName, NewSynthetic)
}

// Synthetic generates an I420 test pattern: a horizontal luma ramp, a
// bright bar that moves one step per frame, and a colored quadrant. It
// needs no hardware and always compiles.
type Synthetic struct {
	cfg     Config
	stamper stamper
	buf     []byte
}

func NewSynthetic(cfg Config) (Source, error) {
	return &Synthetic{
		cfg: cfg,
		buf: make([]byte, frame.ExpectedLength(frame.FormatI420, cfg.Width, cfg.Height)),
	}, nil
}

func (s *Synthetic) Name() string {
	return SyntheticName
}

func (s *Synthetic) Size() image.Point {
	return image.Pt(s.cfg.Width, s.cfg.Height)
}

func (s *Synthetic) Run(ctx context.Context, deliver func(frame.RawFrame)) error {
	logger := s.cfg.logger()
	logger.Info("CAPTURE: Synthetic source started",
		"width", s.cfg.Width, "height", s.cfg.Height, "fps", s.cfg.FPS)

	var tick <-chan time.Time
	if iv := s.cfg.interval(); iv > 0 {
		ticker := time.NewTicker(iv)
		defer ticker.Stop()
		tick = ticker.C
	}

	for n := uint64(0); s.cfg.MaxFrames == 0 || n < s.cfg.MaxFrames; n++ {
		if tick != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tick:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		raw := s.Pattern(int(n))
		s.stamper.stamp(&raw)
		deliver(raw)
	}

	logger.Info("CAPTURE: Synthetic source finished", "frames", s.stamper.count())
	return nil
}

// Pattern renders frame n into the source's buffer and returns it. The
// buffer is overwritten by the next call.
func (s *Synthetic) Pattern(n int) frame.RawFrame {
	w, h := s.cfg.Width, s.cfg.Height
	raw := frame.RawFrame{Width: w, Height: h, Format: frame.FormatI420, Data: s.buf}
	y, u, v := raw.Planes()

	barWidth := max(w/16, 2)
	barX := (n * 4) % max(w, 1)
	for j := 0; j < h; j++ {
		row := y[j*w : (j+1)*w]
		for i := range row {
			row[i] = byte(16 + (219*i)/max(w-1, 1))
			if i >= barX && i < barX+barWidth {
				row[i] = 235
			}
		}
	}

	cw, ch := frame.ChromaSize(w, h)
	for j := 0; j < ch; j++ {
		for i := 0; i < cw; i++ {
			u[j*cw+i], v[j*cw+i] = 128, 128
			if i < cw/2 && j < ch/2 {
				u[j*cw+i], v[j*cw+i] = 90, 240
			}
		}
	}
	return raw
}
