// Processing toggle and status line
package gui

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"edge-detection-viewer/internal/core"
)

// ControlPanel holds the edge detection toggle and the status text.
type ControlPanel struct {
	container *fyne.Container

	toggleButton *widget.Button
	statusLabel  *widget.Label

	mode     core.ProcessingMode
	onToggle func() core.ProcessingMode
}

func NewControlPanel(mode core.ProcessingMode) *ControlPanel {
	cp := &ControlPanel{}
	cp.toggleButton = widget.NewButtonWithIcon("", theme.MediaPlayIcon(), cp.handleToggle)
	cp.toggleButton.Importance = widget.HighImportance
	cp.statusLabel = widget.NewLabel("")
	cp.statusLabel.TextStyle = fyne.TextStyle{Bold: true}

	cp.container = container.NewVBox(cp.toggleButton, cp.statusLabel)
	cp.SetMode(mode)
	return cp
}

func (cp *ControlPanel) GetContainer() fyne.CanvasObject {
	return cp.container
}

// SetCallbacks sets the toggle handler. It returns the mode now in effect.
func (cp *ControlPanel) SetCallbacks(onToggle func() core.ProcessingMode) {
	cp.onToggle = onToggle
}

func (cp *ControlPanel) handleToggle() {
	if cp.onToggle == nil {
		return
	}
	cp.SetMode(cp.onToggle())
}

// SetMode updates the button and status text. Must run on the UI goroutine.
func (cp *ControlPanel) SetMode(mode core.ProcessingMode) {
	if mode == cp.mode && cp.toggleButton.Text != "" {
		return
	}
	cp.mode = mode
	cp.toggleButton.SetText(toggleText(mode))
	if mode == core.ModeProcessed {
		cp.toggleButton.SetIcon(theme.MediaPauseIcon())
	} else {
		cp.toggleButton.SetIcon(theme.MediaPlayIcon())
	}
	cp.statusLabel.SetText(statusText(mode))
}

func toggleText(mode core.ProcessingMode) string {
	if mode == core.ModeProcessed {
		return "Disable Edge Detection"
	}
	return "Enable Edge Detection"
}

func statusText(mode core.ProcessingMode) string {
	if mode == core.ModeProcessed {
		return "Edge Detection Enabled"
	}
	return "Showing Raw Camera Feed"
}
