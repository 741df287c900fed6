// Package capture provides frame sources for the pipeline.
//
// A Source owns its device lifecycle and calls deliver synchronously for
// each frame; the frame buffer may be reused once deliver returns. Sources
// backed by native libraries register themselves from build-tagged files,
// so the set returned by Names depends on how the binary was built.
package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"edge-detection-viewer/internal/frame"
)

var (
	// ErrUnknownSource means no source with the requested name is compiled in.
	ErrUnknownSource = errors.New("unknown capture source")
	// ErrEndOfStream is returned by Run when the device stops producing frames.
	ErrEndOfStream = errors.New("end of stream")
)

// Source defines a stream of raw frames, such as a camera.
type Source interface {
	// Run delivers frames until ctx is cancelled, the source runs out of
	// frames, or the device fails. Cancellation returns ctx.Err().
	Run(ctx context.Context, deliver func(frame.RawFrame)) error

	// Size returns the size of the frames the source produces.
	Size() image.Point

	Name() string
}

// Config is shared by all source constructors.
type Config struct {
	Logger *slog.Logger

	// Device selects the input: a V4L2 path, a camera index, or empty for
	// the source's default.
	Device string
	Width  int
	Height int
	FPS    float64

	// MaxFrames stops the source after this many frames. Zero is unlimited.
	MaxFrames uint64
}

func (c Config) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

func (c Config) interval() time.Duration {
	if c.FPS <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / c.FPS)
}

// Constructor builds a source from a config.
type Constructor func(cfg Config) (Source, error)

var (
	registryMu sync.RWMutex
	sources    = make(map[string]Constructor)
)

// Register makes a source constructor available by name.
func Register(name string, ctor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	sources[name] = ctor
}

// New builds the named source.
func New(name string, cfg Config) (Source, error) {
	registryMu.RLock()
	ctor, ok := sources[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownSource, name, Names())
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("capture %s: invalid size %dx%d", name, cfg.Width, cfg.Height)
	}
	return ctor(cfg)
}

// Names lists registered sources in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// stamper assigns capture metadata.
type stamper struct {
	seq atomic.Uint64
}

func (s *stamper) stamp(f *frame.RawFrame) {
	f.Seq = s.seq.Add(1)
	f.Timestamp = time.Now()
	f.TraceID = uuid.NewString()
}

func (s *stamper) count() uint64 {
	return s.seq.Load()
}
