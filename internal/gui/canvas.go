// Live frame view
package gui

import (
	"image"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"

	"edge-detection-viewer/internal/frame"
)

// FrameView shows the most recent display frame, scaled to fit.
type FrameView struct {
	image *canvas.Image
	card  *widget.Card

	width, height int
}

func NewFrameView() *FrameView {
	placeholder := image.NewRGBA(image.Rect(0, 0, 320, 240))
	for i := 0; i < len(placeholder.Pix); i += 4 {
		placeholder.Pix[i], placeholder.Pix[i+1], placeholder.Pix[i+2], placeholder.Pix[i+3] = 32, 32, 32, 255
	}

	img := canvas.NewImageFromImage(placeholder)
	img.FillMode = canvas.ImageFillContain
	img.ScaleMode = canvas.ImageScaleFastest
	img.SetMinSize(fyne.NewSize(320, 240))

	return &FrameView{
		image: img,
		card:  widget.NewCard("Camera", "", img),
	}
}

func (fv *FrameView) GetContainer() fyne.CanvasObject {
	return fv.card
}

// Update displays f. Published frames are immutable, so the view shares
// the pixel buffer. Must run on the UI goroutine.
func (fv *FrameView) Update(f frame.DisplayFrame) {
	if f.Empty() {
		return
	}
	fv.image.Image = f.Image()
	fv.width, fv.height = f.Width, f.Height
	fv.image.Refresh()
}

// Size is the size of the frame currently shown, zero before the first one.
func (fv *FrameView) Size() (int, int) {
	return fv.width, fv.height
}
