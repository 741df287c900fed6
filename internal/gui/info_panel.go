// Frame statistics panel
package gui

import (
	"fmt"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"edge-detection-viewer/internal/core"
)

// InfoPanel shows FPS, resolution, backend and latency
type InfoPanel struct {
	container *fyne.Container

	fpsLabel        *widget.Label
	resolutionLabel *widget.Label
	backendLabel    *widget.Label
	latencyLabel    *widget.Label
	countersLabel   *widget.Label
}

func NewInfoPanel() *InfoPanel {
	ip := &InfoPanel{
		fpsLabel:        widget.NewLabel(fpsText(0)),
		resolutionLabel: widget.NewLabel("Resolution: -"),
		backendLabel:    widget.NewLabel("Backend: -"),
		latencyLabel:    widget.NewLabel("Latency: -"),
		countersLabel:   widget.NewLabel(""),
	}
	ip.fpsLabel.TextStyle = fyne.TextStyle{Monospace: true}

	ip.container = container.NewVBox(
		ip.fpsLabel,
		ip.resolutionLabel,
		widget.NewSeparator(),
		ip.backendLabel,
		ip.latencyLabel,
		ip.countersLabel,
	)
	return ip
}

func (ip *InfoPanel) GetContainer() fyne.CanvasObject {
	return widget.NewCard("Stats", "", ip.container)
}

// Update refreshes every label from st. Must run on the UI goroutine.
func (ip *InfoPanel) Update(st core.Snapshot) {
	ip.fpsLabel.SetText(fpsText(st.FPS))
	if st.Width > 0 {
		ip.resolutionLabel.SetText(fmt.Sprintf("Resolution: %dx%d", st.Width, st.Height))
	} else {
		ip.resolutionLabel.SetText("Resolution: -")
	}
	ip.backendLabel.SetText(backendText(st))
	ip.latencyLabel.SetText(latencyText(st))
	ip.countersLabel.SetText(countersText(st))
}

func fpsText(fps float64) string {
	return fmt.Sprintf("FPS: %.1f", fps)
}

func backendText(st core.Snapshot) string {
	if st.AccelFailures > 0 {
		return fmt.Sprintf("Backend: %s (%d fallbacks)", st.Backend, st.AccelFailures)
	}
	return "Backend: " + st.Backend
}

func latencyText(st core.Snapshot) string {
	if st.Latency.Count == 0 {
		return "Latency: -"
	}
	return fmt.Sprintf("Latency: %s (p95 %s)",
		st.Latency.Last.Round(time.Microsecond), st.Latency.P95.Round(time.Microsecond))
}

func countersText(st core.Snapshot) string {
	return fmt.Sprintf("Frames: %d received, %d published, %d unseen, %d dropped",
		st.FramesReceived, st.FramesPublished, st.Handoff.Overwritten, st.FramesDropped)
}
