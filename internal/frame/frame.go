// Frame value types shared by capture, processing and rendering
package frame

import (
	"errors"
	"fmt"
	"image"
	"time"
)

// ErrMalformedInput marks a frame whose buffer does not match its declared
// dimensions and format. Callers drop the frame and skip the cycle.
var ErrMalformedInput = errors.New("malformed input frame")

// BytesPerPixel is the packed display format stride (R, G, B, A).
const BytesPerPixel = 4

// OpaqueAlpha is written to every alpha byte of a DisplayFrame.
const OpaqueAlpha = 0xFF

// PixelFormat tags the layout of a RawFrame buffer.
type PixelFormat int

const (
	// FormatI420 is planar 4:2:0: full Y plane, then U plane, then V plane,
	// each chroma plane ceil(w/2) x ceil(h/2).
	FormatI420 PixelFormat = iota
	// FormatRGBA is the packed display format, already ready to render.
	FormatRGBA
)

func (f PixelFormat) String() string {
	switch f {
	case FormatI420:
		return "I420"
	case FormatRGBA:
		return "RGBA"
	default:
		return fmt.Sprintf("PixelFormat(%d)", int(f))
	}
}

// ChromaSize returns the width and height of one I420 chroma plane.
func ChromaSize(width, height int) (int, int) {
	return (width + 1) / 2, (height + 1) / 2
}

// ExpectedLength returns the buffer length a frame of the given format and
// size must have. For even I420 sizes this is width*height*1.5.
func ExpectedLength(format PixelFormat, width, height int) int {
	switch format {
	case FormatI420:
		cw, ch := ChromaSize(width, height)
		return width*height + 2*cw*ch
	case FormatRGBA:
		return width * height * BytesPerPixel
	default:
		return -1
	}
}

// RawFrame is one sensor exposure as delivered by a capture source.
//
// IMMUTABILITY CONTRACT: Data is owned by the pipeline for the duration of a
// single processing call and is never written to.
type RawFrame struct {
	Width  int
	Height int
	Format PixelFormat
	Data   []byte

	// Seq is the capture sequence number (source-assigned, informational).
	Seq uint64
	// Timestamp is the capture time. Zero means "use the pipeline clock".
	Timestamp time.Time
	// TraceID correlates log lines for a single frame.
	TraceID string
}

// Validate reports ErrMalformedInput when the dimensions are non-positive,
// the format is unknown, or the buffer length does not match.
func (r RawFrame) Validate() error {
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("%w: invalid dimensions %dx%d", ErrMalformedInput, r.Width, r.Height)
	}
	want := ExpectedLength(r.Format, r.Width, r.Height)
	if want < 0 {
		return fmt.Errorf("%w: unsupported format %s", ErrMalformedInput, r.Format)
	}
	if len(r.Data) != want {
		return fmt.Errorf("%w: %s %dx%d needs %d bytes, got %d",
			ErrMalformedInput, r.Format, r.Width, r.Height, want, len(r.Data))
	}
	return nil
}

// Planes splits an I420 buffer into its Y, U and V planes without copying.
// The frame must have passed Validate.
func (r RawFrame) Planes() (y, u, v []byte) {
	cw, ch := ChromaSize(r.Width, r.Height)
	ySize := r.Width * r.Height
	cSize := cw * ch
	return r.Data[:ySize], r.Data[ySize : ySize+cSize], r.Data[ySize+cSize : ySize+2*cSize]
}

// DisplayFrame is a packed RGBA image, 4 bytes per pixel, alpha always opaque.
//
// IMMUTABILITY CONTRACT: once a DisplayFrame leaves the function that built
// it, Pix is shared by reference (handoff, renderers, encoders) and MUST NOT
// be modified. Every DisplayFrame owns a fresh allocation.
type DisplayFrame struct {
	Width  int
	Height int
	Pix    []byte
}

// NewDisplayFrame allocates a zeroed frame of the given size.
func NewDisplayFrame(width, height int) DisplayFrame {
	return DisplayFrame{
		Width:  width,
		Height: height,
		Pix:    make([]byte, width*height*BytesPerPixel),
	}
}

// Validate reports ErrMalformedInput when the buffer is inconsistent with
// the declared dimensions.
func (d DisplayFrame) Validate() error {
	if d.Width <= 0 || d.Height <= 0 {
		return fmt.Errorf("%w: invalid dimensions %dx%d", ErrMalformedInput, d.Width, d.Height)
	}
	if want := d.Width * d.Height * BytesPerPixel; len(d.Pix) != want {
		return fmt.Errorf("%w: RGBA %dx%d needs %d bytes, got %d",
			ErrMalformedInput, d.Width, d.Height, want, len(d.Pix))
	}
	return nil
}

// Empty reports whether the frame holds no pixels.
func (d DisplayFrame) Empty() bool {
	return len(d.Pix) == 0
}

// Image wraps the frame as an *image.RGBA sharing the same buffer.
// The returned image is read-only under the immutability contract.
func (d DisplayFrame) Image() *image.RGBA {
	return &image.RGBA{
		Pix:    d.Pix,
		Stride: d.Width * BytesPerPixel,
		Rect:   image.Rect(0, 0, d.Width, d.Height),
	}
}

// AsRaw re-tags a display frame as an RGBA RawFrame, for sources that
// deliver already-packed pixels.
func (d DisplayFrame) AsRaw() RawFrame {
	return RawFrame{
		Width:  d.Width,
		Height: d.Height,
		Format: FormatRGBA,
		Data:   d.Pix,
	}
}
