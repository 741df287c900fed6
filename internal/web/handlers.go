package web

import (
	"fmt"
	"time"

	"github.com/cespare/xxhash"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"edge-detection-viewer/internal/core"
	imgio "edge-detection-viewer/internal/io"
)

// StatusResponse is the body of GET /api/status
type StatusResponse struct {
	RunID            string  `json:"run_id"`
	Running          bool    `json:"running"`
	FPS              float64 `json:"fps"`
	Width            int     `json:"width"`
	Height           int     `json:"height"`
	ProcessingTimeMS float64 `json:"processing_time_ms"`
	Mode             string  `json:"mode"`
	Backend          string  `json:"backend"`
	Accelerated      bool    `json:"accelerated"`
	AccelVersion     string  `json:"accel_version,omitempty"`

	FramesReceived  uint64 `json:"frames_received"`
	FramesPublished uint64 `json:"frames_published"`
	FramesDropped   uint64 `json:"frames_dropped"`
	FramesUnseen    uint64 `json:"frames_unseen"`
	AccelAttempts   uint64 `json:"accel_attempts"`
	AccelFailures   uint64 `json:"accel_failures"`
	StreamClients   int64  `json:"stream_clients"`

	Latency LatencyResponse `json:"latency"`
}

// LatencyResponse mirrors metrics.LatencySummary in milliseconds
type LatencyResponse struct {
	Count    uint64  `json:"count"`
	MeanMS   float64 `json:"mean_ms"`
	StdDevMS float64 `json:"stddev_ms"`
	P50MS    float64 `json:"p50_ms"`
	P95MS    float64 `json:"p95_ms"`
	MaxMS    float64 `json:"max_ms"`
}

// ProcessingRequest is the body of POST /api/processing
type ProcessingRequest struct {
	Enabled *bool `json:"enabled"`
}

// ModeResponse is returned by the processing endpoints
type ModeResponse struct {
	Mode      string `json:"mode"`
	Processed bool   `json:"processed"`
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// handleStatus returns the current pipeline statistics
func (s *Server) handleStatus(c *fiber.Ctx) error {
	st := s.pipeline.Stats()
	return c.JSON(StatusResponse{
		RunID:            st.RunID,
		Running:          st.Running,
		FPS:              st.FPS,
		Width:            st.Width,
		Height:           st.Height,
		ProcessingTimeMS: ms(st.Latency.Last),
		Mode:             st.Mode.String(),
		Backend:          st.Backend,
		Accelerated:      st.Accelerated,
		AccelVersion:     s.version,
		FramesReceived:   st.FramesReceived,
		FramesPublished:  st.FramesPublished,
		FramesDropped:    st.FramesDropped,
		FramesUnseen:     st.Handoff.Overwritten,
		AccelAttempts:    st.AccelAttempts,
		AccelFailures:    st.AccelFailures,
		StreamClients:    s.clients.Load(),
		Latency: LatencyResponse{
			Count:    st.Latency.Count,
			MeanMS:   ms(st.Latency.Mean),
			StdDevMS: ms(st.Latency.StdDev),
			P50MS:    ms(st.Latency.P50),
			P95MS:    ms(st.Latency.P95),
			MaxMS:    ms(st.Latency.Max),
		},
	})
}

// handleFrame encodes the latest display frame. The ETag is the hash of the
// packed pixels, so an unchanged picture costs no encode.
func (s *Server) handleFrame(format imgio.Format) fiber.Handler {
	return func(c *fiber.Ctx) error {
		f, _, ok := s.pipeline.Handoff().Sample()
		if !ok {
			return c.SendStatus(fiber.StatusNoContent)
		}

		etag := fmt.Sprintf(`"%016x"`, xxhash.Sum64(f.Pix))
		c.Set(fiber.HeaderETag, etag)
		c.Set(fiber.HeaderCacheControl, "no-cache")
		if c.Get(fiber.HeaderIfNoneMatch) == etag {
			return c.SendStatus(fiber.StatusNotModified)
		}

		data, err := s.encoder.EncodeBytes(f, format)
		if err != nil {
			s.logger.Error("WEB: Frame encode failed", "format", string(format), "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		c.Set(fiber.HeaderContentType, format.ContentType())
		return c.Send(data)
	}
}

// handleSetProcessing enables or disables edge detection
func (s *Server) handleSetProcessing(c *fiber.Ctx) error {
	var req ProcessingRequest
	if err := c.BodyParser(&req); err != nil || req.Enabled == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": `body must be {"enabled": true|false}`,
		})
	}
	return c.JSON(modeResponse(s.pipeline.SetProcessing(*req.Enabled)))
}

// handleToggleProcessing flips edge detection
func (s *Server) handleToggleProcessing(c *fiber.Ctx) error {
	return c.JSON(modeResponse(s.pipeline.ToggleProcessing()))
}

// handleEvents returns the recent pipeline events
func (s *Server) handleEvents(c *fiber.Ctx) error {
	d := s.pipeline.Debugger()
	return c.JSON(fiber.Map{
		"events": d.Events(),
		"stats":  d.GetStats(),
	})
}

func modeResponse(mode core.ProcessingMode) ModeResponse {
	return ModeResponse{Mode: mode.String(), Processed: mode == core.ModeProcessed}
}

// handleFramesWS streams JPEG frames at the configured rate, skipping ticks
// where nothing new was published.
func (s *Server) handleFramesWS(c *websocket.Conn) {
	s.clients.Add(1)
	defer s.clients.Add(-1)

	remote := c.RemoteAddr().String()
	s.logger.Info("WEB: Stream client connected", "remote", remote)
	defer s.logger.Info("WEB: Stream client disconnected", "remote", remote)

	// Reader detects the client going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.streamInterval)
	defer ticker.Stop()

	var last uint64
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
		}

		f, seq, ok := s.pipeline.Handoff().Sample()
		if !ok || seq == last {
			continue
		}
		last = seq

		data, err := s.encoder.EncodeBytes(imgio.Scale(f, s.maxWidth), imgio.FormatJPEG)
		if err != nil {
			s.logger.Debug("WEB: Stream encode failed", "seq", seq, "error", err)
			continue
		}
		if err := c.WriteMessage(websocket.BinaryMessage, data); err != nil {
			return
		}
	}
}
