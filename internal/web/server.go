// HTTP and WebSocket viewer for the pipeline output
package web

import (
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"edge-detection-viewer/internal/core"
	imgio "edge-detection-viewer/internal/io"
)

// DefaultStreamFPS is the websocket frame rate when none is configured.
const DefaultStreamFPS = 15

// Options configures a Server. Zero values pick defaults.
type Options struct {
	Logger         *slog.Logger
	StreamFPS      float64
	JPEGQuality    int
	StreamMaxWidth int

	// Version is reported in /api/status as the accelerated backend
	// library version, empty when none is linked.
	Version string
}

// Server is the web viewer. It only reads from the pipeline through its
// handoff and stats, plus the processing toggle.
type Server struct {
	app      *fiber.App
	pipeline *core.Pipeline
	logger   *slog.Logger
	encoder  imgio.Encoder

	streamInterval time.Duration
	maxWidth       int
	version        string

	clients atomic.Int64
}

// NewServer creates the viewer for p
func NewServer(p *core.Pipeline, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	fps := opts.StreamFPS
	if fps <= 0 {
		fps = DefaultStreamFPS
	}

	s := &Server{
		pipeline:       p,
		logger:         logger,
		encoder:        imgio.Encoder{JPEGQuality: opts.JPEGQuality},
		streamInterval: time.Duration(float64(time.Second) / fps),
		maxWidth:       opts.StreamMaxWidth,
		version:        opts.Version,
	}

	app := fiber.New(fiber.Config{
		AppName:               "Edge Detection Viewer",
		DisableStartupMessage: true,
	})

	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/frame.png", s.handleFrame(imgio.FormatPNG))
	api.Get("/frame.jpg", s.handleFrame(imgio.FormatJPEG))
	api.Post("/processing", s.handleSetProcessing)
	api.Post("/processing/toggle", s.handleToggleProcessing)
	api.Get("/events", s.handleEvents)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/frames", websocket.New(s.handleFramesWS))

	s.app = app
	return s
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	s.logger.Info("WEB: Viewer listening", "addr", addr)
	return s.app.Listen(addr)
}

// Serve serves on an existing listener until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("WEB: Viewer listening", "addr", ln.Addr().String())
	return s.app.Listener(ln)
}

// Shutdown stops accepting connections and waits for active requests.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// StreamClients is the number of connected websocket viewers.
func (s *Server) StreamClients() int64 {
	return s.clients.Load()
}
