//go:build opencv

package accel

import (
	"fmt"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"edge-detection-viewer/internal/algorithms"
	"edge-detection-viewer/internal/frame"
)

// colorYUVToRGBAI420 is OpenCV's COLOR_YUV2RGBA_I420.
const colorYUVToRGBAI420 = gocv.ColorConversionCode(104)

func init() {
	algorithms.Register(OpenCVName, &OpenCV{})
}

// Version reports the linked OpenCV version.
func Version() string {
	return gocv.OpenCVVersion()
}

// OpenCV runs both transforms through gocv. Color conversion uses OpenCV's
// fixed-point BT.601 tables, which can differ from the reference by one
// level per channel. Edge detection takes the Sobel derivatives from OpenCV
// and applies the same rounding and threshold as the reference, so edge
// maps match exactly.
type OpenCV struct{}

func (o *OpenCV) Convert(raw frame.RawFrame) (frame.DisplayFrame, error) {
	if err := raw.Validate(); err != nil {
		return frame.DisplayFrame{}, err
	}
	if raw.Format != frame.FormatI420 {
		return frame.DisplayFrame{}, fmt.Errorf("%w: convert expects %s, got %s",
			frame.ErrMalformedInput, frame.FormatI420, raw.Format)
	}
	// cv::cvtColor only accepts even I420 geometry.
	if raw.Width%2 != 0 || raw.Height%2 != 0 {
		return frame.DisplayFrame{}, errors.Errorf("opencv: odd frame size %dx%d", raw.Width, raw.Height)
	}

	src, err := gocv.NewMatFromBytes(raw.Height*3/2, raw.Width, gocv.MatTypeCV8UC1, raw.Data)
	if err != nil {
		return frame.DisplayFrame{}, errors.Wrap(err, "opencv: wrap I420 buffer")
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	if err := gocv.CvtColor(src, &dst, colorYUVToRGBAI420); err != nil {
		return frame.DisplayFrame{}, errors.Wrap(err, "opencv: cvtColor I420 to RGBA")
	}
	if dst.Empty() || dst.Rows() != raw.Height || dst.Cols() != raw.Width {
		return frame.DisplayFrame{}, errors.Errorf("opencv: cvtColor returned %dx%d", dst.Cols(), dst.Rows())
	}

	// ToBytes copies out of the Mat, so the result outlives dst.
	out := frame.DisplayFrame{Width: raw.Width, Height: raw.Height, Pix: dst.ToBytes()}
	if err := out.Validate(); err != nil {
		return frame.DisplayFrame{}, errors.Wrap(err, "opencv: converted frame")
	}
	return out, nil
}

func (o *OpenCV) Detect(img frame.DisplayFrame) (frame.DisplayFrame, error) {
	if err := img.Validate(); err != nil {
		return frame.DisplayFrame{}, err
	}

	w, h := img.Width, img.Height
	out := frame.NewDisplayFrame(w, h)
	for i := 3; i < len(out.Pix); i += frame.BytesPerPixel {
		out.Pix[i] = frame.OpaqueAlpha
	}
	if w < 3 || h < 3 {
		return out, nil
	}

	// Truncated luma always fits in a byte.
	luma := algorithms.Luma(img)
	gray := make([]byte, len(luma))
	for i, v := range luma {
		gray[i] = byte(v)
	}

	src, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC1, gray)
	if err != nil {
		return frame.DisplayFrame{}, errors.Wrap(err, "opencv: wrap luma plane")
	}
	defer src.Close()

	gx, err := sobel(src, 1, 0)
	if err != nil {
		return frame.DisplayFrame{}, err
	}
	gy, err := sobel(src, 0, 1)
	if err != nil {
		return frame.DisplayFrame{}, err
	}

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			v := byte(0)
			if algorithms.GradientMagnitude(int32(gx[i]), int32(gy[i])) > algorithms.EdgeThreshold {
				v = 0xFF
			}
			o := i * frame.BytesPerPixel
			out.Pix[o], out.Pix[o+1], out.Pix[o+2] = v, v, v
		}
	}
	return out, nil
}

// sobel returns the 3x3 derivative of src as a row-major copy. Integer
// derivatives of 8-bit input are exact in float32.
func sobel(src gocv.Mat, dx, dy int) ([]float32, error) {
	dst := gocv.NewMat()
	defer dst.Close()

	gocv.Sobel(src, &dst, gocv.MatTypeCV32F, dx, dy, 3, 1, 0, gocv.BorderDefault)
	if dst.Empty() {
		return nil, errors.Errorf("opencv: sobel dx=%d dy=%d produced no output", dx, dy)
	}

	data, err := dst.DataPtrFloat32()
	if err != nil {
		return nil, errors.Wrapf(err, "opencv: sobel dx=%d dy=%d", dx, dy)
	}
	if len(data) != src.Rows()*src.Cols() {
		return nil, errors.Errorf("opencv: sobel returned %d values for %dx%d", len(data), src.Cols(), src.Rows())
	}
	return append([]float32(nil), data...), nil
}

func (o *OpenCV) GetName() string {
	return OpenCVName
}

func (o *OpenCV) GetDescription() string {
	return "OpenCV " + gocv.OpenCVVersion() + " cvtColor and Sobel"
}
