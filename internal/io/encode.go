package io

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	goio "io"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"

	"edge-detection-viewer/internal/frame"
)

// Format names an encoded image container.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatBMP  Format = "bmp"
	FormatTIFF Format = "tiff"
)

// DefaultJPEGQuality is used when an encoder has no quality set.
const DefaultJPEGQuality = 80

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatBMP:
		return "image/bmp"
	case FormatTIFF:
		return "image/tiff"
	default:
		return "image/png"
	}
}

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(getFileExtension(path)) {
	case ".png":
		return FormatPNG, nil
	case ".jpg", ".jpeg":
		return FormatJPEG, nil
	case ".bmp":
		return FormatBMP, nil
	case ".tif", ".tiff":
		return FormatTIFF, nil
	default:
		return "", fmt.Errorf("unsupported image format: %s", path)
	}
}

// Encoder writes display frames in a container format.
type Encoder struct {
	JPEGQuality int
}

// Encode writes f to w. The frame's pixels are read in place.
func (e Encoder) Encode(w goio.Writer, f frame.DisplayFrame, format Format) error {
	if err := f.Validate(); err != nil {
		return err
	}
	img := f.Image()

	switch format {
	case FormatPNG:
		enc := png.Encoder{CompressionLevel: png.BestSpeed}
		return enc.Encode(w, img)
	case FormatJPEG:
		q := e.JPEGQuality
		if q <= 0 {
			q = DefaultJPEGQuality
		}
		return jpeg.Encode(w, img, &jpeg.Options{Quality: q})
	case FormatBMP:
		return bmp.Encode(w, img)
	case FormatTIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return fmt.Errorf("unsupported image format: %s", format)
	}
}

// EncodeBytes is Encode into a fresh buffer.
func (e Encoder) EncodeBytes(f frame.DisplayFrame, format Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.Encode(&buf, f, format); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Scale returns f resized to at most maxWidth pixels wide, keeping the
// aspect ratio. Frames already narrow enough are returned unchanged.
func Scale(f frame.DisplayFrame, maxWidth int) frame.DisplayFrame {
	if maxWidth <= 0 || f.Width <= maxWidth || f.Empty() {
		return f
	}
	h := max(f.Height*maxWidth/f.Width, 1)
	out := frame.NewDisplayFrame(maxWidth, h)
	draw.ApproxBiLinear.Scale(out.Image(), out.Image().Bounds(), f.Image(), f.Image().Bounds(), draw.Src, nil)
	return out
}

// FromImage packs any decoded image into a display frame with opaque alpha.
func FromImage(img image.Image) frame.DisplayFrame {
	b := img.Bounds()
	out := frame.NewDisplayFrame(b.Dx(), b.Dy())
	dst := out.Image()
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	for i := 3; i < len(out.Pix); i += frame.BytesPerPixel {
		out.Pix[i] = frame.OpaqueAlpha
	}
	return out
}
