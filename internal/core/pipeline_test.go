package core

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edge-detection-viewer/internal/accel"
	"edge-detection-viewer/internal/algorithms"
	"edge-detection-viewer/internal/frame"
	"edge-detection-viewer/internal/metrics"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// failingProcessor simulates the ways an accelerated call can go wrong.
type failingProcessor struct {
	kind string // "error", "panic", "empty", "wrong-size"
}

func (f failingProcessor) fail() (frame.DisplayFrame, error) {
	switch f.kind {
	case "panic":
		panic("segfault in native code")
	case "empty":
		return frame.DisplayFrame{}, nil
	case "wrong-size":
		return frame.NewDisplayFrame(1, 1), nil
	default:
		return frame.DisplayFrame{}, errors.New("device lost")
	}
}

func (f failingProcessor) Convert(frame.RawFrame) (frame.DisplayFrame, error)    { return f.fail() }
func (f failingProcessor) Detect(frame.DisplayFrame) (frame.DisplayFrame, error) { return f.fail() }
func (f failingProcessor) GetName() string                                       { return "failing-" + f.kind }
func (f failingProcessor) GetDescription() string                                { return "test double" }

// markerProcessor succeeds with frames filled with a fixed byte.
type markerProcessor struct {
	mu    sync.Mutex
	calls int
}

func (m *markerProcessor) fill(w, h int) frame.DisplayFrame {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return marked(w, h, 7)
}

func (m *markerProcessor) Convert(raw frame.RawFrame) (frame.DisplayFrame, error) {
	return m.fill(raw.Width, raw.Height), nil
}

func (m *markerProcessor) Detect(img frame.DisplayFrame) (frame.DisplayFrame, error) {
	return m.fill(img.Width, img.Height), nil
}

func (m *markerProcessor) GetName() string        { return "marker" }
func (m *markerProcessor) GetDescription() string { return "test double" }

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func noiseI420(w, h int, seed uint32) frame.RawFrame {
	data := make([]byte, frame.ExpectedLength(frame.FormatI420, w, h))
	for i := range data {
		seed = seed*1664525 + 1013904223
		data[i] = byte(seed >> 24)
	}
	return frame.RawFrame{Width: w, Height: h, Format: frame.FormatI420, Data: data}
}

func newTestPipeline(t *testing.T, opts Options) *Pipeline {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = testLogger()
	}
	p := New(opts)
	p.Start()
	t.Cleanup(p.Stop)
	return p
}

func sample(t *testing.T, p *Pipeline) frame.DisplayFrame {
	t.Helper()
	f, _, ok := p.Handoff().Sample()
	require.True(t, ok, "nothing published")
	return f
}

func TestPipelineRejectsFramesWhenStopped(t *testing.T) {
	t.Parallel()

	p := New(Options{Logger: testLogger()})
	assert.ErrorIs(t, p.OnFrame(noiseI420(4, 4, 1)), ErrPipelineStopped)
	assert.False(t, p.Running())
	assert.Empty(t, p.RunID())
}

func TestPipelineRawModeConverts(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(t, Options{})
	raw := noiseI420(16, 8, 3)
	require.NoError(t, p.OnFrame(raw))

	want, err := algorithms.ConvertI420(raw)
	require.NoError(t, err)
	assert.Equal(t, want, sample(t, p))
}

func TestPipelineProcessedModeDetects(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(t, Options{ProcessingEnabled: true})
	raw := noiseI420(32, 24, 5)
	require.NoError(t, p.OnFrame(raw))

	rgba, err := algorithms.ConvertI420(raw)
	require.NoError(t, err)
	want, err := algorithms.DetectEdges(rgba)
	require.NoError(t, err)
	assert.Equal(t, want, sample(t, p))
}

func TestPipelineRawPassthroughCopiesRGBA(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(t, Options{})
	src := marked(4, 3, 200)
	raw := src.AsRaw()
	require.NoError(t, p.OnFrame(raw))

	// The source may reuse its buffer after delivery.
	for i := range raw.Data {
		raw.Data[i] = 0
	}
	assert.Equal(t, marked(4, 3, 200), sample(t, p))
}

func TestPipelineDropsMalformedFrames(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	p := newTestPipeline(t, Options{Clock: clock.Now})

	require.NoError(t, p.OnFrame(noiseI420(4, 4, 1)))
	_, seqBefore, _ := p.Handoff().Sample()

	clock.Advance(50 * time.Millisecond)
	bad := noiseI420(4, 4, 1)
	bad.Data = bad.Data[:5]
	assert.ErrorIs(t, p.OnFrame(bad), frame.ErrMalformedInput)
	assert.ErrorIs(t, p.OnFrame(frame.RawFrame{Format: frame.FormatI420}), frame.ErrMalformedInput)

	_, seqAfter, _ := p.Handoff().Sample()
	assert.Equal(t, seqBefore, seqAfter, "malformed frames are not published")

	// The interval is measured from the last valid frame.
	clock.Advance(50 * time.Millisecond)
	require.NoError(t, p.OnFrame(noiseI420(4, 4, 2)))

	st := p.Stats()
	assert.InDelta(t, 10.0, st.FPS, 1e-9)
	assert.Equal(t, uint64(4), st.FramesReceived)
	assert.Equal(t, uint64(2), st.FramesPublished)
	assert.Equal(t, uint64(2), st.FramesDropped)
}

func TestPipelineFPS(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	p := newTestPipeline(t, Options{Clock: clock.Now})

	require.NoError(t, p.OnFrame(noiseI420(4, 4, 1)))
	assert.Zero(t, p.Stats().FPS, "first frame")

	clock.Advance(100 * time.Millisecond)
	require.NoError(t, p.OnFrame(noiseI420(4, 4, 1)))
	assert.InDelta(t, 10.0, p.Stats().FPS, 1e-9)

	// Same instant: clock anomaly, frame still processed.
	require.NoError(t, p.OnFrame(noiseI420(4, 4, 1)))
	assert.InDelta(t, 10.0, p.Stats().FPS, 1e-9)
	assert.Equal(t, uint64(3), p.Stats().FramesPublished)

	// Capture timestamps take precedence over the pipeline clock.
	raw := noiseI420(4, 4, 1)
	raw.Timestamp = clock.Now().Add(20 * time.Millisecond)
	require.NoError(t, p.OnFrame(raw))
	assert.InDelta(t, 50.0, p.Stats().FPS, 1e-9)
}

func TestPipelineFallbackMatchesReference(t *testing.T) {
	t.Parallel()

	raw := noiseI420(40, 30, 9)

	for _, mode := range []bool{false, true} {
		ref := newTestPipeline(t, Options{ProcessingEnabled: mode})
		require.NoError(t, ref.OnFrame(raw))
		want := sample(t, ref)

		for _, kind := range []string{"error", "panic", "empty", "wrong-size"} {
			t.Run(kind, func(t *testing.T) {
				p := newTestPipeline(t, Options{
					Accelerated:       failingProcessor{kind: kind},
					ProcessingEnabled: mode,
				})
				require.NoError(t, p.OnFrame(raw))
				require.NoError(t, p.OnFrame(raw))
				assert.Equal(t, want, sample(t, p))

				st := p.Stats()
				steps := uint64(1)
				if mode {
					steps = 2
				}
				assert.Equal(t, 2*steps, st.AccelAttempts, "acceleration is retried on every frame")
				assert.Equal(t, 2*steps, st.AccelFailures)
				assert.True(t, st.Accelerated)
				assert.Equal(t, "failing-"+kind, st.Backend)
			})
		}
	}
}

func TestPipelineUsesAcceleratedWhenItWorks(t *testing.T) {
	t.Parallel()

	m := &markerProcessor{}
	p := newTestPipeline(t, Options{Accelerated: m, ProcessingEnabled: true})
	require.NoError(t, p.OnFrame(noiseI420(6, 4, 1)))

	assert.Equal(t, marked(6, 4, 7), sample(t, p))
	assert.Equal(t, 2, m.calls)
	assert.Zero(t, p.Stats().AccelFailures)
}

func TestPipelineToggle(t *testing.T) {
	t.Parallel()

	debugger := NewPipelineDebugger(testLogger(), 8)
	p := newTestPipeline(t, Options{Debugger: debugger})
	raw := noiseI420(12, 12, 4)

	require.NoError(t, p.OnFrame(raw))
	rgba := sample(t, p)

	assert.Equal(t, ModeProcessed, p.ToggleProcessing())
	require.NoError(t, p.OnFrame(raw))
	edges, err := algorithms.DetectEdges(rgba)
	require.NoError(t, err)
	assert.Equal(t, edges, sample(t, p))

	assert.Equal(t, ModeRaw, p.SetProcessing(false))
	assert.Equal(t, ModeRaw, p.SetProcessing(false))
	require.NoError(t, p.OnFrame(raw))
	assert.Equal(t, rgba, sample(t, p))

	var changes int
	for _, e := range debugger.Events() {
		if e.Event == "mode_change" {
			changes++
		}
	}
	assert.Equal(t, 2, changes, "no event when the mode does not change")
}

func TestPipelineLatencySampling(t *testing.T) {
	t.Parallel()

	rec := metrics.NewLatencyRecorder(8)
	p := newTestPipeline(t, Options{LatencySampleEvery: 3, Latency: rec})
	for i := 0; i < 7; i++ {
		require.NoError(t, p.OnFrame(noiseI420(8, 8, uint32(i))))
	}
	assert.Equal(t, uint64(2), p.Stats().Latency.Count)

	off := newTestPipeline(t, Options{LatencySampleEvery: -1})
	for i := 0; i < 40; i++ {
		require.NoError(t, off.OnFrame(noiseI420(2, 2, 1)))
	}
	assert.Zero(t, off.Stats().Latency.Count)
}

func TestPipelineLifecycle(t *testing.T) {
	t.Parallel()

	p := New(Options{Logger: testLogger()})
	id := p.Start()
	require.NotEmpty(t, id)
	assert.Equal(t, id, p.Start(), "Start is idempotent while running")

	require.NoError(t, p.OnFrame(noiseI420(4, 4, 1)))
	p.Stop()
	p.Stop()

	_, _, ok := p.Handoff().Sample()
	assert.False(t, ok, "slot is cleared on stop")

	next := p.Start()
	defer p.Stop()
	assert.NotEqual(t, id, next)

	want := Snapshot{
		RunID:   next,
		Running: true,
		Mode:    ModeRaw,
		Backend: algorithms.ReferenceName,
		Handoff: HandoffStats{Seq: 1},
	}
	assert.Empty(t, cmp.Diff(want, p.Stats()))
}

type scriptedSource struct {
	frames []frame.RawFrame
	err    error
}

func (s scriptedSource) Run(ctx context.Context, deliver func(frame.RawFrame)) error {
	for _, f := range s.frames {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		deliver(f)
	}
	return s.err
}

func TestPipelineRun(t *testing.T) {
	t.Parallel()

	debugger := NewPipelineDebugger(testLogger(), 0)
	clock := newFakeClock()
	tick := func() time.Time {
		clock.Advance(time.Millisecond)
		return clock.Now()
	}
	p := New(Options{Logger: testLogger(), Debugger: debugger, Clock: tick})

	src := scriptedSource{
		frames: []frame.RawFrame{noiseI420(4, 4, 1), {Width: 4}, noiseI420(4, 4, 2)},
	}
	require.NoError(t, p.Run(context.Background(), src))
	assert.False(t, p.Running())

	st := p.Stats()
	assert.Equal(t, uint64(3), st.FramesReceived)
	assert.Equal(t, uint64(2), st.FramesPublished)
	assert.Equal(t, uint64(1), st.FramesDropped)

	var names []string
	for _, e := range debugger.Events() {
		names = append(names, e.Event)
	}
	assert.Equal(t, []string{"start", "malformed", "stop"}, names)

	sourceErr := errors.New("camera unplugged")
	err := p.Run(context.Background(), scriptedSource{err: sourceErr})
	assert.ErrorIs(t, err, sourceErr)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, p.Run(ctx, scriptedSource{err: context.Canceled}))
}

func TestStrategyFailureIsAccelerationFailure(t *testing.T) {
	t.Parallel()

	s := &strategy{
		reference:   algorithms.NewReference(1),
		accelerated: failingProcessor{kind: "panic"},
		logger:      testLogger(),
	}
	_, err := s.attempt("detect", 2, 2, func() (frame.DisplayFrame, error) {
		return s.accelerated.Detect(marked(2, 2, 0))
	})
	assert.ErrorIs(t, err, accel.ErrAccelerationFailure)
	assert.Equal(t, uint64(1), s.failures.Load())
}

func TestPipelineDebuggerRing(t *testing.T) {
	t.Parallel()

	d := NewPipelineDebugger(testLogger(), 3)
	for _, e := range []string{"a", "b", "c", "d", "e"} {
		d.LogEvent(e, "raw", nil)
	}
	var names []string
	for _, e := range d.Events() {
		names = append(names, e.Event)
	}
	assert.Equal(t, []string{"c", "d", "e"}, names)
	assert.Equal(t, uint64(5), d.GetStats()["total_events"])

	var nilDebugger *PipelineDebugger
	nilDebugger.LogEvent("x", "raw", nil)
	assert.Nil(t, nilDebugger.Events())
}
