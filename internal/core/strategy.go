package core

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"edge-detection-viewer/internal/accel"
	"edge-detection-viewer/internal/algorithms"
	"edge-detection-viewer/internal/frame"
)

// strategy dispatches each transform to the accelerated processor when one
// was found at startup, and re-runs the step on the reference processor when
// the accelerated call fails. Availability is never re-probed.
type strategy struct {
	reference   algorithms.Processor
	accelerated algorithms.Processor // nil when unavailable for this run
	logger      *slog.Logger
	debugger    *PipelineDebugger

	attempts atomic.Uint64
	failures atomic.Uint64
	warned   atomic.Bool
}

func (s *strategy) backend() string {
	if s.accelerated != nil {
		return s.accelerated.GetName()
	}
	return s.reference.GetName()
}

func (s *strategy) convert(raw frame.RawFrame) (frame.DisplayFrame, error) {
	if s.accelerated != nil {
		out, err := s.attempt("convert", raw.Width, raw.Height, func() (frame.DisplayFrame, error) {
			return s.accelerated.Convert(raw)
		})
		if err == nil {
			return out, nil
		}
	}
	return s.reference.Convert(raw)
}

func (s *strategy) detect(img frame.DisplayFrame) (frame.DisplayFrame, error) {
	if s.accelerated != nil {
		out, err := s.attempt("detect", img.Width, img.Height, func() (frame.DisplayFrame, error) {
			return s.accelerated.Detect(img)
		})
		if err == nil {
			return out, nil
		}
	}
	return s.reference.Detect(img)
}

// attempt runs one accelerated call. Errors, panics and results that are
// empty or the wrong size all count as ErrAccelerationFailure.
func (s *strategy) attempt(step string, width, height int, call func() (frame.DisplayFrame, error)) (out frame.DisplayFrame, err error) {
	s.attempts.Add(1)

	defer func() {
		if r := recover(); r != nil {
			out = frame.DisplayFrame{}
			err = fmt.Errorf("%w: %s panicked: %v", accel.ErrAccelerationFailure, step, r)
		}
		if err != nil {
			s.recordFailure(step, err)
		}
	}()

	out, err = call()
	if err != nil {
		return frame.DisplayFrame{}, fmt.Errorf("%w: %s: %w", accel.ErrAccelerationFailure, step, err)
	}
	if out.Width != width || out.Height != height || out.Validate() != nil {
		return frame.DisplayFrame{}, fmt.Errorf("%w: %s returned no usable frame (%dx%d, %d bytes)",
			accel.ErrAccelerationFailure, step, out.Width, out.Height, len(out.Pix))
	}
	return out, nil
}

func (s *strategy) recordFailure(step string, err error) {
	n := s.failures.Add(1)
	if s.warned.CompareAndSwap(false, true) {
		s.logger.Warn("PIPELINE: Accelerated call failed, using reference for this frame",
			"backend", s.accelerated.GetName(), "step", step, "error", err)
	} else {
		s.logger.Debug("PIPELINE: Accelerated call failed", "step", step, "failures", n, "error", err)
	}
	s.debugger.LogEvent("accel_failure", step, map[string]interface{}{
		"backend": s.accelerated.GetName(),
		"error":   err.Error(),
	})
}

func (s *strategy) resetCounters() {
	s.attempts.Store(0)
	s.failures.Store(0)
	s.warned.Store(false)
}
