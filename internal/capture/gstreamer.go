//go:build gstreamer

package capture

import (
	"context"
	"fmt"
	"image"
	"strings"
	"sync/atomic"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"edge-detection-viewer/internal/frame"
)

// GStreamerName is the registry key of the GStreamer source.
const GStreamerName = "gstreamer"

func init() {
	Register(GStreamerName, NewGStreamer)
}

// GStreamer captures I420 frames through a GStreamer pipeline:
//
//	v4l2src|videotestsrc → videoconvert → videoscale → videorate →
//	capsfilter(I420) → appsink
//
// An empty device uses videotestsrc, anything else is a V4L2 device path.
type GStreamer struct {
	cfg     Config
	stamper stamper
	dropped atomic.Uint64
}

func NewGStreamer(cfg Config) (Source, error) {
	return &GStreamer{cfg: cfg}, nil
}

func (g *GStreamer) Name() string {
	return GStreamerName
}

func (g *GStreamer) Size() image.Point {
	return image.Pt(g.cfg.Width, g.cfg.Height)
}

type gstElements struct {
	pipeline *gst.Pipeline
	sink     *app.Sink
}

func (g *GStreamer) build() (*gstElements, error) {
	gst.Init(nil)

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	var src *gst.Element
	if g.cfg.Device == "" {
		if src, err = gst.NewElement("videotestsrc"); err != nil {
			return nil, fmt.Errorf("failed to create videotestsrc: %w", err)
		}
		src.SetProperty("is-live", true)
	} else {
		if src, err = gst.NewElement("v4l2src"); err != nil {
			return nil, fmt.Errorf("failed to create v4l2src: %w", err)
		}
		src.SetProperty("device", g.cfg.Device)
	}

	converter, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, fmt.Errorf("failed to create videoconvert: %w", err)
	}
	scaler, err := gst.NewElement("videoscale")
	if err != nil {
		return nil, fmt.Errorf("failed to create videoscale: %w", err)
	}
	videorate, err := gst.NewElement("videorate")
	if err != nil {
		return nil, fmt.Errorf("failed to create videorate: %w", err)
	}
	videorate.SetProperty("drop-only", true)

	capsfilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return nil, fmt.Errorf("failed to create capsfilter: %w", err)
	}
	capsfilter.SetProperty("caps", gst.NewCapsFromString(g.caps()))

	sink, err := app.NewAppSink()
	if err != nil {
		return nil, fmt.Errorf("failed to create appsink: %w", err)
	}
	sink.SetProperty("sync", false)    // real-time, no clock sync
	sink.SetProperty("max-buffers", 1) // keep only the latest frame
	sink.SetProperty("drop", true)

	if err := pipeline.AddMany(src, converter, scaler, videorate, capsfilter, sink.Element); err != nil {
		return nil, fmt.Errorf("failed to add elements: %w", err)
	}
	if err := gst.ElementLinkMany(src, converter, scaler, videorate, capsfilter, sink.Element); err != nil {
		return nil, fmt.Errorf("failed to link elements: %w", err)
	}
	return &gstElements{pipeline: pipeline, sink: sink}, nil
}

func (g *GStreamer) caps() string {
	var b strings.Builder
	fmt.Fprintf(&b, "video/x-raw,format=I420,width=%d,height=%d", g.cfg.Width, g.cfg.Height)
	if g.cfg.FPS > 0 {
		// Whole frames per second keep caps negotiation simple.
		fmt.Fprintf(&b, ",framerate=%d/1", max(int(g.cfg.FPS), 1))
	}
	return b.String()
}

func (g *GStreamer) Run(ctx context.Context, deliver func(frame.RawFrame)) error {
	logger := g.cfg.logger()

	elems, err := g.build()
	if err != nil {
		return fmt.Errorf("capture %s: %w", GStreamerName, err)
	}
	defer elems.pipeline.SetState(gst.StateNull)

	// Samples arrive on a GStreamer thread; hand them to this goroutine
	// through a one-slot channel, dropping the older frame when full.
	frames := make(chan frame.RawFrame, 1)
	want := frame.ExpectedLength(frame.FormatI420, g.cfg.Width, g.cfg.Height)

	elems.sink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: func(sink *app.Sink) gst.FlowReturn {
			sample := sink.PullSample()
			if sample == nil {
				logger.Warn("CAPTURE: Failed to pull sample, skipping frame")
				return gst.FlowOK
			}
			buffer := sample.GetBuffer()
			if buffer == nil {
				return gst.FlowOK
			}

			mapInfo := buffer.Map(gst.MapRead)
			data := mapInfo.Bytes()
			if len(data) < want {
				buffer.Unmap()
				logger.Warn("CAPTURE: Short buffer", "bytes", len(data), "want", want)
				return gst.FlowOK
			}
			// GStreamer reuses the buffer after Unmap.
			pix := make([]byte, want)
			copy(pix, data[:want])
			buffer.Unmap()

			raw := frame.RawFrame{Width: g.cfg.Width, Height: g.cfg.Height, Format: frame.FormatI420, Data: pix}
			g.stamper.stamp(&raw)

			select {
			case frames <- raw:
			default:
				select {
				case <-frames:
					g.dropped.Add(1)
				default:
				}
				select {
				case frames <- raw:
				default:
					g.dropped.Add(1)
				}
			}
			return gst.FlowOK
		},
	})

	if err := elems.pipeline.SetState(gst.StatePlaying); err != nil {
		return fmt.Errorf("capture %s: failed to start pipeline: %w", GStreamerName, err)
	}
	logger.Info("CAPTURE: GStreamer source started", "caps", g.caps(), "device", g.cfg.Device)

	bus := elems.pipeline.GetPipelineBus()
	for {
		select {
		case <-ctx.Done():
			logger.Info("CAPTURE: GStreamer source stopped",
				"frames", g.stamper.count(), "dropped", g.dropped.Load())
			return ctx.Err()
		case raw := <-frames:
			deliver(raw)
			if g.cfg.MaxFrames > 0 && raw.Seq >= g.cfg.MaxFrames {
				return nil
			}
			continue
		default:
		}

		msg := bus.TimedPop(20 * time.Millisecond)
		if msg == nil {
			continue
		}
		switch msg.Type() {
		case gst.MessageEOS:
			return ErrEndOfStream
		case gst.MessageError:
			gerr := msg.ParseError()
			logger.Error("CAPTURE: Pipeline error", "error", gerr.Error(), "debug", gerr.DebugString())
			return fmt.Errorf("capture %s: %s", GStreamerName, gerr.Error())
		}
	}
}
