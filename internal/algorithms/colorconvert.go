// BT.601 video-range YUV to RGBA conversion
package algorithms

import (
	"fmt"
	"math"

	"edge-detection-viewer/internal/frame"
)

// Conversion coefficients (BT.601, video range).
const (
	lumaScale = 1.164
	crToR     = 1.596
	crToG     = 0.813
	cbToG     = 0.391
	cbToB     = 2.018

	lumaBlack  = 16
	chromaZero = 128
)

// ConvertI420 converts a planar I420 frame to packed RGBA. Each output pixel
// samples luma at (x, y) and the chroma pair at (x/2, y/2). Luma below 16 is
// treated as 16. Alpha is always opaque.
//
// Pure function: allocates the output, touches no shared state.
func ConvertI420(raw frame.RawFrame) (frame.DisplayFrame, error) {
	if err := raw.Validate(); err != nil {
		return frame.DisplayFrame{}, err
	}
	if raw.Format != frame.FormatI420 {
		return frame.DisplayFrame{}, fmt.Errorf("%w: convert expects %s, got %s",
			frame.ErrMalformedInput, frame.FormatI420, raw.Format)
	}

	w, h := raw.Width, raw.Height
	cw, _ := frame.ChromaSize(w, h)
	yPlane, uPlane, vPlane := raw.Planes()
	out := frame.NewDisplayFrame(w, h)
	pix := out.Pix

	for j := 0; j < h; j++ {
		yRow := yPlane[j*w : j*w+w]
		cRow := (j >> 1) * cw
		o := j * w * frame.BytesPerPixel
		for i := 0; i < w; i++ {
			r, g, b := YUVToRGB(yRow[i], uPlane[cRow+(i>>1)], vPlane[cRow+(i>>1)])
			pix[o] = r
			pix[o+1] = g
			pix[o+2] = b
			pix[o+3] = frame.OpaqueAlpha
			o += frame.BytesPerPixel
		}
	}
	return out, nil
}

// YUVToRGB converts a single sample triple.
func YUVToRGB(y, u, v byte) (r, g, b byte) {
	yy := int(y)
	if yy < lumaBlack {
		yy = lumaBlack
	}
	c := float64(lumaScale * float64(yy-lumaBlack))
	d := float64(u) - chromaZero
	e := float64(v) - chromaZero

	r = clampRound(c + float64(crToR*e))
	g = clampRound(c - float64(crToG*e) - float64(cbToG*d))
	b = clampRound(c + float64(cbToB*d))
	return r, g, b
}

// clampRound rounds to the nearest integer and saturates to [0, 255].
func clampRound(v float64) byte {
	r := math.Round(v)
	switch {
	case r <= 0:
		return 0
	case r >= 255:
		return 255
	default:
		return byte(r)
	}
}
