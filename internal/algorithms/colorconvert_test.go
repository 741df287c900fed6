package algorithms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edge-detection-viewer/internal/frame"
)

// uniformI420 builds an I420 frame where every sample has the same Y, U, V.
func uniformI420(w, h int, y, u, v byte) frame.RawFrame {
	cw, ch := frame.ChromaSize(w, h)
	data := make([]byte, frame.ExpectedLength(frame.FormatI420, w, h))
	ySize := w * h
	for i := 0; i < ySize; i++ {
		data[i] = y
	}
	for i := 0; i < cw*ch; i++ {
		data[ySize+i] = u
		data[ySize+cw*ch+i] = v
	}
	return frame.RawFrame{Width: w, Height: h, Format: frame.FormatI420, Data: data}
}

func TestConvertI420RegressionVectors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		y, u, v byte
		want    [3]byte
	}{
		{"video black", 16, 128, 128, [3]byte{0, 0, 0}},
		{"sub-black floors to black", 0, 128, 128, [3]byte{0, 0, 0}},
		{"video white saturates", 235, 128, 128, [3]byte{255, 255, 255}},
		{"mid gray", 128, 128, 128, [3]byte{130, 130, 130}},
		{"red", 81, 90, 240, [3]byte{254, 0, 0}},
		{"mixed", 100, 200, 50, [3]byte{0, 133, 243}},
		{"full scale", 255, 255, 255, [3]byte{255, 125, 255}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := ConvertI420(uniformI420(4, 4, tt.y, tt.u, tt.v))
			require.NoError(t, err)
			for i := 0; i < len(out.Pix); i += 4 {
				require.Equal(t, tt.want[:], out.Pix[i:i+3], "pixel %d", i/4)
			}
		})
	}
}

func TestConvertI420LengthAndAlpha(t *testing.T) {
	t.Parallel()

	for _, size := range [][2]int{{1, 1}, {2, 2}, {3, 5}, {16, 9}, {64, 48}} {
		w, h := size[0], size[1]
		raw := uniformI420(w, h, 90, 60, 200)
		for i := range raw.Data {
			raw.Data[i] = byte(i * 31)
		}

		out, err := ConvertI420(raw)
		require.NoError(t, err)
		assert.Equal(t, w, out.Width)
		assert.Equal(t, h, out.Height)
		require.Len(t, out.Pix, w*h*4)
		for i := 3; i < len(out.Pix); i += 4 {
			require.Equal(t, byte(255), out.Pix[i], "alpha at pixel %d (%dx%d)", i/4, w, h)
		}
	}
}

func TestConvertI420ChromaAddressing(t *testing.T) {
	t.Parallel()

	// 4x2 frame, two chroma columns: left half neutral, right half blue-ish.
	raw := uniformI420(4, 2, 128, 128, 128)
	_, u, _ := raw.Planes()
	u[1] = 255

	out, err := ConvertI420(raw)
	require.NoError(t, err)

	px := func(x, y int) []byte {
		o := (y*4 + x) * 4
		return out.Pix[o : o+3]
	}
	assert.Equal(t, px(0, 0), px(1, 1), "same chroma block")
	assert.Equal(t, px(2, 0), px(3, 1), "same chroma block")
	assert.NotEqual(t, px(1, 0), px(2, 0), "different chroma block")
	assert.Equal(t, byte(255), px(2, 0)[2], "blue saturates")
}

func TestConvertI420RejectsMalformed(t *testing.T) {
	t.Parallel()

	t.Run("short buffer", func(t *testing.T) {
		raw := uniformI420(4, 4, 0, 0, 0)
		raw.Data = raw.Data[:len(raw.Data)-1]
		_, err := ConvertI420(raw)
		assert.ErrorIs(t, err, frame.ErrMalformedInput)
	})

	t.Run("wrong format", func(t *testing.T) {
		d := frame.NewDisplayFrame(2, 2)
		_, err := ConvertI420(d.AsRaw())
		assert.ErrorIs(t, err, frame.ErrMalformedInput)
	})

	t.Run("zero size", func(t *testing.T) {
		_, err := ConvertI420(frame.RawFrame{Format: frame.FormatI420})
		assert.ErrorIs(t, err, frame.ErrMalformedInput)
	})
}

func TestConvertI420DoesNotAlias(t *testing.T) {
	t.Parallel()

	raw := uniformI420(4, 4, 128, 128, 128)
	a, err := ConvertI420(raw)
	require.NoError(t, err)
	b, err := ConvertI420(raw)
	require.NoError(t, err)

	a.Pix[0] = 7
	assert.NotEqual(t, a.Pix[0], b.Pix[0])
}

func TestClampRound(t *testing.T) {
	t.Parallel()

	assert.Equal(t, byte(0), clampRound(-12.7))
	assert.Equal(t, byte(0), clampRound(-0.4))
	assert.Equal(t, byte(1), clampRound(0.5))
	assert.Equal(t, byte(254), clampRound(254.4))
	assert.Equal(t, byte(255), clampRound(254.5))
	assert.Equal(t, byte(255), clampRound(300))
}
