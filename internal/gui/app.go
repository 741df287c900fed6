// Desktop viewer window
package gui

import (
	"context"
	"log/slog"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"

	"edge-detection-viewer/internal/core"
	"edge-detection-viewer/internal/frame"
	"edge-detection-viewer/internal/io"
)

// DefaultRenderFPS is the refresh rate when none is configured.
const DefaultRenderFPS = 30

// Options configures the desktop viewer.
type Options struct {
	Logger    *slog.Logger
	RenderFPS float64
	Loader    *io.FrameLoader

	// Version of the accelerated backend library, empty when none.
	Version string
}

// Application is the desktop viewer. It renders whatever the pipeline
// last published and never blocks the producer.
type Application struct {
	app      fyne.App
	window   fyne.Window
	logger   *slog.Logger
	pipeline *core.Pipeline

	renderInterval time.Duration

	view        *FrameView
	controls    *ControlPanel
	info        *InfoPanel
	menuHandler *MenuHandler
}

func NewApplication(app fyne.App, p *core.Pipeline, opts Options) *Application {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	fps := opts.RenderFPS
	if fps <= 0 {
		fps = DefaultRenderFPS
	}
	loader := opts.Loader
	if loader == nil {
		loader = io.NewFrameLoader(logger, 0)
	}

	window := app.NewWindow("Edge Detection Viewer")
	window.Resize(fyne.NewSize(1024, 640))
	window.CenterOnScreen()

	a := &Application{
		app:            app,
		window:         window,
		logger:         logger,
		pipeline:       p,
		renderInterval: time.Duration(float64(time.Second) / fps),
		view:           NewFrameView(),
		controls:       NewControlPanel(p.Mode()),
		info:           NewInfoPanel(),
	}
	a.menuHandler = NewMenuHandler(window, p, loader, logger, opts.Version)

	a.setupLayout()
	a.setupCallbacks()
	return a
}

func (a *Application) setupLayout() {
	side := container.NewVBox(
		a.controls.GetContainer(),
		a.info.GetContainer(),
	)

	content := container.NewHSplit(
		container.NewPadded(a.view.GetContainer()),
		side,
	)
	content.SetOffset(0.75)

	a.window.SetMainMenu(a.menuHandler.GetMainMenu())
	a.window.SetContent(content)
}

func (a *Application) setupCallbacks() {
	a.controls.SetCallbacks(a.pipeline.ToggleProcessing)

	a.menuHandler.SetCallbacks(
		// onToggle
		func() {
			a.controls.SetMode(a.pipeline.ToggleProcessing())
		},
		// onFrameSaved
		func(path string) {
			a.logger.Info("Frame saved", "filepath", path)
		},
	)
}

// ShowAndRun shows the window and blocks until it is closed or ctx is
// cancelled. Must be called from the main goroutine.
func (a *Application) ShowAndRun(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.window.SetCloseIntercept(func() {
		cancel()
		a.app.Quit()
	})

	go a.renderLoop(ctx)
	go func() {
		<-ctx.Done()
		fyne.Do(a.app.Quit)
	}()

	a.logger.Info("GUI: Showing viewer window", "render_interval", a.renderInterval)
	a.window.ShowAndRun()
}

// renderLoop samples the handoff on a fixed tick and pushes changes to the
// UI goroutine.
func (a *Application) renderLoop(ctx context.Context) {
	ticker := time.NewTicker(a.renderInterval)
	defer ticker.Stop()

	var last uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		f, seq, ok := a.pipeline.Handoff().Sample()
		fresh := ok && seq != last
		if fresh {
			last = seq
		}
		st := a.pipeline.Stats()
		fyne.Do(func() {
			a.render(f, fresh, st)
		})
	}
}

func (a *Application) render(f frame.DisplayFrame, fresh bool, st core.Snapshot) {
	if fresh {
		a.view.Update(f)
	}
	a.info.Update(st)
	a.controls.SetMode(st.Mode)
}
