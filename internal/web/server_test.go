package web

import (
	"bytes"
	"encoding/json"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edge-detection-viewer/internal/core"
	"edge-detection-viewer/internal/frame"
)

func grayI420(w, h int, y byte) frame.RawFrame {
	data := make([]byte, frame.ExpectedLength(frame.FormatI420, w, h))
	for i := range data {
		data[i] = 128
	}
	for i := 0; i < w*h; i++ {
		data[i] = y
	}
	return frame.RawFrame{Width: w, Height: h, Format: frame.FormatI420, Data: data}
}

func newTestServer(t *testing.T, opts Options) (*Server, *core.Pipeline) {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	p := core.New(core.Options{
		Logger:   logger,
		Debugger: core.NewPipelineDebugger(logger, 16),
	})
	p.Start()
	t.Cleanup(p.Stop)

	opts.Logger = logger
	return NewServer(p, opts), p
}

func doRequest(t *testing.T, s *Server, req *http.Request) (*http.Response, []byte) {
	t.Helper()

	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	return resp, body
}

func TestStatus(t *testing.T) {
	t.Parallel()

	s, p := newTestServer(t, Options{Version: "4.11.0"})
	require.NoError(t, p.OnFrame(grayI420(8, 6, 100)))

	resp, body := doRequest(t, s, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var st StatusResponse
	require.NoError(t, json.Unmarshal(body, &st))
	assert.Equal(t, p.RunID(), st.RunID)
	assert.True(t, st.Running)
	assert.Equal(t, 8, st.Width)
	assert.Equal(t, 6, st.Height)
	assert.Equal(t, "raw", st.Mode)
	assert.Equal(t, "reference", st.Backend)
	assert.False(t, st.Accelerated)
	assert.Equal(t, "4.11.0", st.AccelVersion)
	assert.Equal(t, uint64(1), st.FramesReceived)
	assert.Equal(t, uint64(1), st.FramesPublished)
	assert.Zero(t, st.StreamClients)
}

func TestFrameNoContentBeforeFirstPublish(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, Options{})
	resp, body := doRequest(t, s, httptest.NewRequest(http.MethodGet, "/api/frame.png", nil))
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, body)
}

func TestFramePNGAndETag(t *testing.T) {
	t.Parallel()

	s, p := newTestServer(t, Options{})
	require.NoError(t, p.OnFrame(grayI420(10, 4, 16)))

	resp, body := doRequest(t, s, httptest.NewRequest(http.MethodGet, "/api/frame.png", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	img, err := png.Decode(bytes.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, 10, img.Bounds().Dx())
	assert.Equal(t, 4, img.Bounds().Dy())

	etag := resp.Header.Get("ETag")
	require.NotEmpty(t, etag)

	req := httptest.NewRequest(http.MethodGet, "/api/frame.png", nil)
	req.Header.Set("If-None-Match", etag)
	resp, _ = doRequest(t, s, req)
	assert.Equal(t, http.StatusNotModified, resp.StatusCode)

	// New pixels, new tag.
	require.NoError(t, p.OnFrame(grayI420(10, 4, 200)))
	resp, _ = doRequest(t, s, req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEqual(t, etag, resp.Header.Get("ETag"))
}

func TestFrameJPEG(t *testing.T) {
	t.Parallel()

	s, p := newTestServer(t, Options{JPEGQuality: 50})
	require.NoError(t, p.OnFrame(grayI420(16, 8, 120)))

	resp, body := doRequest(t, s, httptest.NewRequest(http.MethodGet, "/api/frame.jpg", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))

	img, err := jpeg.Decode(bytes.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, 16, img.Bounds().Dx())
}

func TestProcessingEndpoints(t *testing.T) {
	t.Parallel()

	s, p := newTestServer(t, Options{})

	post := func(path, body string) (*http.Response, ModeResponse) {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, raw := doRequest(t, s, req)
		var m ModeResponse
		if resp.StatusCode == http.StatusOK {
			require.NoError(t, json.Unmarshal(raw, &m))
		}
		return resp, m
	}

	resp, m := post("/api/processing", `{"enabled": true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, ModeResponse{Mode: "processed", Processed: true}, m)
	assert.Equal(t, core.ModeProcessed, p.Mode())

	resp, m = post("/api/processing/toggle", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "raw", m.Mode)
	assert.Equal(t, core.ModeRaw, p.Mode())

	resp, _ = post("/api/processing", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = post("/api/processing", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, core.ModeRaw, p.Mode())
}

func TestEvents(t *testing.T) {
	t.Parallel()

	s, p := newTestServer(t, Options{})
	p.ToggleProcessing()

	resp, body := doRequest(t, s, httptest.NewRequest(http.MethodGet, "/api/events", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Events []core.ProcessingEvent `json:"events"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	require.NotEmpty(t, out.Events)
	assert.Equal(t, "mode_change", out.Events[len(out.Events)-1].Event)
}

func TestWebSocketRequiresUpgrade(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, Options{})
	resp, _ := doRequest(t, s, httptest.NewRequest(http.MethodGet, "/ws/frames", nil))
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}

func TestWebSocketStreamsNewFrames(t *testing.T) {
	t.Parallel()

	s, p := newTestServer(t, Options{StreamFPS: 100, StreamMaxWidth: 16})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = s.Serve(ln) }()
	t.Cleanup(func() { _ = s.Shutdown() })

	ws, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws/frames", nil)
	require.NoError(t, err)
	defer ws.Close()

	require.Eventually(t, func() bool { return s.StreamClients() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, p.OnFrame(grayI420(64, 32, 90)))

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	typ, data, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, typ)

	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 16, img.Bounds().Dx(), "scaled to stream width")
	assert.Equal(t, 8, img.Bounds().Dy())

	// Nothing new published: no message within several ticks.
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err = ws.ReadMessage()
	require.Error(t, err)
}
