// Package accel discovers the optional accelerated implementation of the
// frame transforms.
//
// Availability is decided once, at startup, by Probe. Backends register
// themselves with the algorithms registry from build-tagged files; a binary
// built without any backend tag simply has nothing to probe and the pipeline
// runs on the reference implementation for the whole run.
package accel

import (
	"errors"
	"fmt"
	"log/slog"

	"edge-detection-viewer/internal/algorithms"
	"edge-detection-viewer/internal/frame"
)

var (
	// ErrAccelerationUnavailable means no accelerated backend can be used
	// for this run.
	ErrAccelerationUnavailable = errors.New("acceleration unavailable")

	// ErrAccelerationFailure marks a single failed accelerated call.
	ErrAccelerationFailure = errors.New("acceleration failure")
)

// OpenCVName is the registry key of the gocv backend.
const OpenCVName = "opencv"

// Mode selects how Probe looks for a backend.
type Mode string

const (
	// ModeAuto uses the first registered backend that passes its self-test.
	ModeAuto Mode = "auto"
	// ModeOff never probes.
	ModeOff Mode = "off"
)

// ParseMode accepts "auto", "off", or a backend name.
func ParseMode(s string) Mode {
	if s == "" {
		return ModeAuto
	}
	return Mode(s)
}

// candidates lists registered non-reference processors in probe order.
func candidates(mode Mode) []string {
	if mode != ModeAuto {
		return []string{string(mode)}
	}
	var names []string
	for _, name := range algorithms.Names() {
		if name != algorithms.ReferenceName {
			names = append(names, name)
		}
	}
	return names
}

// Probe selects the accelerated processor for this run. It returns
// ErrAccelerationUnavailable (wrapped) when mode is off, nothing is
// registered, or every candidate fails its self-test.
func Probe(mode Mode, logger *slog.Logger) (algorithms.Processor, error) {
	if mode == ModeOff {
		return nil, fmt.Errorf("%w: disabled by configuration", ErrAccelerationUnavailable)
	}

	names := candidates(mode)
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no backend compiled in", ErrAccelerationUnavailable)
	}

	var lastErr error
	for _, name := range names {
		p, ok := algorithms.Get(name)
		if !ok || name == algorithms.ReferenceName {
			lastErr = fmt.Errorf("unknown backend %q", name)
			continue
		}
		if err := SelfTest(p); err != nil {
			logger.Warn("ACCEL: Backend failed self-test", "backend", name, "error", err)
			lastErr = err
			continue
		}
		logger.Info("ACCEL: Backend available", "backend", name, "description", p.GetDescription())
		return p, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrAccelerationUnavailable, lastErr)
}

// SelfTest runs both transforms on a tiny frame and checks the output
// shape. Panics inside the backend are reported as errors.
func SelfTest(p algorithms.Processor) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic during self-test: %v", ErrAccelerationFailure, r)
		}
	}()

	const w, h = 4, 4
	raw := frame.RawFrame{
		Width:  w,
		Height: h,
		Format: frame.FormatI420,
		Data:   make([]byte, frame.ExpectedLength(frame.FormatI420, w, h)),
	}
	for i := range raw.Data {
		raw.Data[i] = 128
	}

	rgba, err := p.Convert(raw)
	if err != nil {
		return fmt.Errorf("convert: %w", err)
	}
	if rgba.Width != w || rgba.Height != h || rgba.Validate() != nil {
		return fmt.Errorf("%w: convert returned %dx%d (%d bytes)", ErrAccelerationFailure, rgba.Width, rgba.Height, len(rgba.Pix))
	}

	edges, err := p.Detect(rgba)
	if err != nil {
		return fmt.Errorf("detect: %w", err)
	}
	if edges.Width != w || edges.Height != h || edges.Validate() != nil {
		return fmt.Errorf("%w: detect returned %dx%d (%d bytes)", ErrAccelerationFailure, edges.Width, edges.Height, len(edges.Pix))
	}
	return nil
}
