// Menu handler for application actions
package gui

import (
	"fmt"
	"log/slog"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"

	"edge-detection-viewer/internal/core"
	"edge-detection-viewer/internal/io"
)

// MenuHandler handles menu actions
type MenuHandler struct {
	window   fyne.Window
	pipeline *core.Pipeline
	loader   *io.FrameLoader
	logger   *slog.Logger
	version  string

	onToggle     func()
	onFrameSaved func(string)
}

func NewMenuHandler(window fyne.Window, pipeline *core.Pipeline, loader *io.FrameLoader, logger *slog.Logger, version string) *MenuHandler {
	return &MenuHandler{
		window:   window,
		pipeline: pipeline,
		loader:   loader,
		logger:   logger,
		version:  version,
	}
}

func (mh *MenuHandler) GetMainMenu() *fyne.MainMenu {
	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("Save Frame...", mh.saveFrame),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Exit", func() {
			mh.window.Close()
		}),
	)

	viewMenu := fyne.NewMenu("View",
		fyne.NewMenuItem("Toggle Edge Detection", func() {
			if mh.onToggle != nil {
				mh.onToggle()
			}
		}),
	)

	helpMenu := fyne.NewMenu("Help",
		fyne.NewMenuItem("About", mh.showAbout),
	)

	return fyne.NewMainMenu(fileMenu, viewMenu, helpMenu)
}

// saveFrame writes the frame currently in the handoff. The frame is taken
// when the menu item is chosen, not when the dialog closes.
func (mh *MenuHandler) saveFrame() {
	f, seq, ok := mh.pipeline.Handoff().Sample()
	if !ok {
		mh.showError("No Frame", fmt.Errorf("no frame has been published yet"))
		return
	}

	fileDialog := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil {
			mh.showError("File Dialog Error", err)
			return
		}
		if writer == nil {
			return
		}
		path := writer.URI().Path()
		writer.Close()

		mh.logger.Info("Saving frame", "filepath", path, "seq", seq)
		if err := mh.loader.SaveFrame(f, path); err != nil {
			mh.showError("Failed to Save Frame", err)
			return
		}
		if mh.onFrameSaved != nil {
			mh.onFrameSaved(path)
		}
	}, mh.window)

	fileDialog.SetFileName(fmt.Sprintf("frame_%06d.png", seq))
	fileDialog.SetFilter(storage.NewExtensionFileFilter([]string{".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff"}))
	fileDialog.Show()
}

func (mh *MenuHandler) showAbout() {
	backend := "reference"
	if mh.version != "" {
		backend = "OpenCV " + mh.version
	}
	content := container.NewVBox(
		widget.NewLabel("Edge Detection Viewer"),
		widget.NewSeparator(),
		widget.NewLabel("Real-time Sobel edge detection on camera frames."),
		widget.NewLabel("Accelerated backend: "+backend),
		widget.NewSeparator(),
		widget.NewLabel("Built with Go and Fyne v2.6"),
	)

	aboutDialog := dialog.NewCustom("About", "Close", content, mh.window)
	aboutDialog.Resize(fyne.NewSize(400, 240))
	aboutDialog.Show()
}

func (mh *MenuHandler) showError(title string, err error) {
	mh.logger.Error(title, "error", err)
	dialog.ShowError(err, mh.window)
}

func (mh *MenuHandler) SetCallbacks(onToggle func(), onFrameSaved func(string)) {
	mh.onToggle = onToggle
	mh.onFrameSaved = onFrameSaved
}
