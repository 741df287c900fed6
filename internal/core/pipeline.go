// Real-time frame processing pipeline
package core

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"edge-detection-viewer/internal/algorithms"
	"edge-detection-viewer/internal/frame"
	"edge-detection-viewer/internal/metrics"
)

// ErrPipelineStopped is returned by OnFrame outside a Start/Stop run.
var ErrPipelineStopped = errors.New("pipeline stopped")

// DefaultLatencySampleEvery times one frame in this many.
const DefaultLatencySampleEvery = 30

// FrameSource delivers raw frames until ctx is cancelled. deliver is called
// synchronously; the source must not reuse the frame buffer until it returns.
type FrameSource interface {
	Run(ctx context.Context, deliver func(frame.RawFrame)) error
}

// Options configures a Pipeline. Zero values pick defaults.
type Options struct {
	Logger *slog.Logger

	// Reference is the in-process processor. Defaults to the registered
	// reference implementation.
	Reference algorithms.Processor

	// Accelerated is the processor found by the startup probe, or nil.
	Accelerated algorithms.Processor

	// Clock supplies arrival times for frames without a capture timestamp.
	Clock func() time.Time

	// LatencySampleEvery records processing latency for every Nth published
	// frame. Negative disables sampling.
	LatencySampleEvery int

	Latency  *metrics.LatencyRecorder
	Debugger *PipelineDebugger

	// ProcessingEnabled starts the pipeline in ModeProcessed.
	ProcessingEnabled bool
}

// Snapshot is a point-in-time copy of the pipeline statistics.
type Snapshot struct {
	RunID       string
	Running     bool
	FPS         float64
	Width       int
	Height      int
	Mode        ProcessingMode
	Backend     string
	Accelerated bool

	FramesReceived  uint64
	FramesPublished uint64
	FramesDropped   uint64
	AccelAttempts   uint64
	AccelFailures   uint64

	Handoff HandoffStats
	Latency metrics.LatencySummary
}

// Pipeline turns raw frames into display frames and hands the newest one to
// renderers. OnFrame is the producer side and runs each frame to
// completion; Handoff().Sample is the consumer side.
type Pipeline struct {
	logger      *slog.Logger
	strategy    *strategy
	handoff     *Handoff
	stats       frameStats
	mode        modeSwitch
	clock       func() time.Time
	sampleEvery uint64
	latency     *metrics.LatencyRecorder
	debugger    *PipelineDebugger

	lifecycleMu sync.Mutex
	running     atomic.Bool
	runID       atomic.Pointer[string]

	received  atomic.Uint64
	published atomic.Uint64
	dropped   atomic.Uint64
}

func New(opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ref := opts.Reference
	if ref == nil {
		ref = algorithms.MustGet(algorithms.ReferenceName)
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	sampleEvery := opts.LatencySampleEvery
	if sampleEvery == 0 {
		sampleEvery = DefaultLatencySampleEvery
	}
	if sampleEvery < 0 {
		sampleEvery = 0
	}
	latency := opts.Latency
	if latency == nil {
		latency = metrics.NewLatencyRecorder(0)
	}

	p := &Pipeline{
		logger: logger,
		strategy: &strategy{
			reference:   ref,
			accelerated: opts.Accelerated,
			logger:      logger,
			debugger:    opts.Debugger,
		},
		handoff:     NewHandoff(),
		clock:       clock,
		sampleEvery: uint64(sampleEvery),
		latency:     latency,
		debugger:    opts.Debugger,
	}
	if opts.ProcessingEnabled {
		p.mode.Store(ModeProcessed)
	}
	return p
}

// Start begins a run under a fresh run ID. Stats, counters and the handoff
// slot start empty. Calling Start on a running pipeline returns the current
// run ID.
func (p *Pipeline) Start() string {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if p.running.Load() {
		return p.RunID()
	}

	id := uuid.NewString()
	p.stats.reset()
	p.handoff.Reset()
	p.strategy.resetCounters()
	p.latency.Reset()
	p.received.Store(0)
	p.published.Store(0)
	p.dropped.Store(0)
	p.runID.Store(&id)
	p.running.Store(true)

	p.logger.Info("PIPELINE: Started",
		"run_id", id,
		"backend", p.strategy.backend(),
		"mode", p.mode.Load().String())
	p.debugger.LogEvent("start", p.mode.Load().String(), map[string]interface{}{
		"run_id":  id,
		"backend": p.strategy.backend(),
	})
	return id
}

// Stop ends the run and clears the handoff slot. Frames delivered after
// Stop are rejected with ErrPipelineStopped.
func (p *Pipeline) Stop() {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if !p.running.Swap(false) {
		return
	}
	p.handoff.Reset()

	snap := p.Stats()
	p.logger.Info("PIPELINE: Stopped",
		"run_id", snap.RunID,
		"received", snap.FramesReceived,
		"published", snap.FramesPublished,
		"dropped", snap.FramesDropped,
		"accel_failures", snap.AccelFailures)
	p.debugger.LogEvent("stop", snap.Mode.String(), map[string]interface{}{
		"run_id":    snap.RunID,
		"published": snap.FramesPublished,
	})
}

func (p *Pipeline) Running() bool {
	return p.running.Load()
}

func (p *Pipeline) RunID() string {
	if id := p.runID.Load(); id != nil {
		return *id
	}
	return ""
}

// OnFrame processes one captured frame and publishes the result. Malformed
// frames are dropped without publishing and return an error wrapping
// frame.ErrMalformedInput. Accelerated failures never surface here.
func (p *Pipeline) OnFrame(raw frame.RawFrame) error {
	if !p.running.Load() {
		p.dropped.Add(1)
		return ErrPipelineStopped
	}
	p.received.Add(1)

	if err := raw.Validate(); err != nil {
		p.dropped.Add(1)
		p.logger.Debug("PIPELINE: Dropping malformed frame", "trace_id", raw.TraceID, "error", err)
		p.debugger.LogEvent("malformed", p.mode.Load().String(), map[string]interface{}{
			"trace_id": raw.TraceID,
			"error":    err.Error(),
		})
		return err
	}

	ts := raw.Timestamp
	if ts.IsZero() {
		ts = p.clock()
	}
	if _, anomaly := p.stats.observe(ts, raw.Width, raw.Height); anomaly {
		p.logger.Debug("PIPELINE: Non-positive frame interval, FPS not updated", "trace_id", raw.TraceID)
		p.debugger.LogEvent("clock_anomaly", p.mode.Load().String(), map[string]interface{}{
			"trace_id": raw.TraceID,
		})
	}

	mode := p.mode.Load()
	start := time.Now()

	out, err := p.process(raw, mode)
	if err != nil {
		p.dropped.Add(1)
		p.logger.Error("PIPELINE: Reference processing failed", "trace_id", raw.TraceID, "mode", mode.String(), "error", err)
		return err
	}

	seq := p.handoff.Publish(out)
	n := p.published.Add(1)

	if p.sampleEvery > 0 && n%p.sampleEvery == 0 {
		elapsed := time.Since(start)
		p.latency.Record(elapsed)
		p.logger.Debug("PIPELINE: Frame latency",
			"trace_id", raw.TraceID,
			"seq", seq,
			"mode", mode.String(),
			"duration_ms", float64(elapsed.Microseconds())/1000)
	}
	return nil
}

func (p *Pipeline) process(raw frame.RawFrame, mode ProcessingMode) (frame.DisplayFrame, error) {
	var img frame.DisplayFrame
	if raw.Format == frame.FormatRGBA {
		// The capture source may reuse its buffer once delivery returns.
		img = frame.DisplayFrame{
			Width:  raw.Width,
			Height: raw.Height,
			Pix:    append([]byte(nil), raw.Data...),
		}
	} else {
		var err error
		if img, err = p.strategy.convert(raw); err != nil {
			return frame.DisplayFrame{}, err
		}
	}

	if mode == ModeRaw {
		return img, nil
	}
	return p.strategy.detect(img)
}

// Run starts the pipeline, feeds it from src until ctx is cancelled or the
// source fails, then stops it.
func (p *Pipeline) Run(ctx context.Context, src FrameSource) error {
	runID := p.Start()
	defer p.Stop()

	p.logger.Info("PIPELINE: Consuming frames", "run_id", runID)
	err := src.Run(ctx, func(raw frame.RawFrame) {
		if err := p.OnFrame(raw); err != nil && !errors.Is(err, frame.ErrMalformedInput) {
			p.logger.Debug("PIPELINE: Frame not processed", "trace_id", raw.TraceID, "error", err)
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Error("PIPELINE: Source failed", "run_id", runID, "error", err)
		return err
	}
	return nil
}

// Handoff returns the consumer side of the pipeline.
func (p *Pipeline) Handoff() *Handoff {
	return p.handoff
}

func (p *Pipeline) Mode() ProcessingMode {
	return p.mode.Load()
}

// SetProcessing enables or disables edge detection from the next frame.
func (p *Pipeline) SetProcessing(enabled bool) ProcessingMode {
	mode := ModeRaw
	if enabled {
		mode = ModeProcessed
	}
	old := p.mode.Swap(mode)
	if old != mode {
		p.logModeChange(old, mode)
	}
	return mode
}

// ToggleProcessing flips the mode and returns the new one.
func (p *Pipeline) ToggleProcessing() ProcessingMode {
	mode := p.mode.Toggle()
	old := ModeRaw
	if mode == ModeRaw {
		old = ModeProcessed
	}
	p.logModeChange(old, mode)
	return mode
}

func (p *Pipeline) logModeChange(old, mode ProcessingMode) {
	p.logger.Info("PIPELINE: Processing mode changed", "old_mode", old.String(), "new_mode", mode.String())
	p.debugger.LogEvent("mode_change", mode.String(), map[string]interface{}{
		"old_mode": old.String(),
	})
}

// Accelerated reports whether an accelerated processor was found at startup.
func (p *Pipeline) Accelerated() bool {
	return p.strategy.accelerated != nil
}

func (p *Pipeline) Debugger() *PipelineDebugger {
	return p.debugger
}

func (p *Pipeline) Stats() Snapshot {
	fps, w, h := p.stats.snapshot()
	return Snapshot{
		RunID:           p.RunID(),
		Running:         p.running.Load(),
		FPS:             fps,
		Width:           w,
		Height:          h,
		Mode:            p.mode.Load(),
		Backend:         p.strategy.backend(),
		Accelerated:     p.Accelerated(),
		FramesReceived:  p.received.Load(),
		FramesPublished: p.published.Load(),
		FramesDropped:   p.dropped.Load(),
		AccelAttempts:   p.strategy.attempts.Load(),
		AccelFailures:   p.strategy.failures.Load(),
		Handoff:         p.handoff.Stats(),
		Latency:         p.latency.Summary(),
	}
}
