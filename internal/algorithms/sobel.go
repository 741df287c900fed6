// Sobel edge detection over packed RGBA frames
package algorithms

import (
	"math"

	"golang.org/x/sync/errgroup"

	"edge-detection-viewer/internal/frame"
)

// EdgeThreshold classifies a pixel as an edge when its rounded gradient
// magnitude is strictly greater than this value.
const EdgeThreshold = 100

const (
	edgeOn  = 0xFF
	edgeOff = 0x00
)

// minRowsPerWorker keeps tiny frames on a single goroutine.
const minRowsPerWorker = 16

// Luma returns the per-pixel luma plane of a packed frame using
// 0.299R + 0.587G + 0.114B, truncated.
func Luma(img frame.DisplayFrame) []int32 {
	n := img.Width * img.Height
	luma := make([]int32, n)
	pix := img.Pix
	for i, o := 0, 0; i < n; i, o = i+1, o+frame.BytesPerPixel {
		r := float64(pix[o])
		g := float64(pix[o+1])
		b := float64(pix[o+2])
		luma[i] = int32(float64(0.299*r) + float64(0.587*g) + float64(0.114*b))
	}
	return luma
}

// DetectEdges runs the single-threaded edge detector.
func DetectEdges(img frame.DisplayFrame) (frame.DisplayFrame, error) {
	return DetectEdgesParallel(img, 1)
}

// DetectEdgesParallel computes a black/white Sobel edge map. The luma plane is
// fully materialized before any gradient is computed; the gradient pass is
// then split into row bands across up to workers goroutines. Border rows and
// columns stay at the background value (0) with opaque alpha. Output is
// identical for any worker count.
func DetectEdgesParallel(img frame.DisplayFrame, workers int) (frame.DisplayFrame, error) {
	if err := img.Validate(); err != nil {
		return frame.DisplayFrame{}, err
	}

	w, h := img.Width, img.Height
	out := frame.NewDisplayFrame(w, h)
	fillOpaqueBorder(out)

	// Nothing interior to compute.
	if w < 3 || h < 3 {
		return out, nil
	}

	luma := Luma(img)

	first, last := 1, h-1 // interior rows [first, last)
	rows := last - first
	if workers < 1 {
		workers = 1
	}
	if maxWorkers := rows / minRowsPerWorker; workers > maxWorkers {
		workers = max(maxWorkers, 1)
	}

	if workers == 1 {
		sobelRows(luma, out, first, last)
		return out, nil
	}

	var g errgroup.Group
	band := (rows + workers - 1) / workers
	for start := first; start < last; start += band {
		end := min(start+band, last)
		g.Go(func() error {
			sobelRows(luma, out, start, end)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return frame.DisplayFrame{}, err
	}
	return out, nil
}

// sobelRows writes interior pixels of rows [start, end). Each call writes a
// disjoint region of out.Pix.
func sobelRows(luma []int32, out frame.DisplayFrame, start, end int) {
	w := out.Width
	pix := out.Pix
	for y := start; y < end; y++ {
		above := luma[(y-1)*w : y*w]
		row := luma[y*w : (y+1)*w]
		below := luma[(y+1)*w : (y+2)*w]
		o := (y*w + 1) * frame.BytesPerPixel
		for x := 1; x < w-1; x++ {
			gx := -above[x-1] + above[x+1] -
				2*row[x-1] + 2*row[x+1] -
				below[x-1] + below[x+1]
			gy := -above[x-1] - 2*above[x] - above[x+1] +
				below[x-1] + 2*below[x] + below[x+1]

			v := byte(edgeOff)
			if GradientMagnitude(gx, gy) > EdgeThreshold {
				v = edgeOn
			}
			pix[o] = v
			pix[o+1] = v
			pix[o+2] = v
			pix[o+3] = frame.OpaqueAlpha
			o += frame.BytesPerPixel
		}
	}
}

// GradientMagnitude returns round(sqrt(gx^2 + gy^2)).
func GradientMagnitude(gx, gy int32) int32 {
	sq := int64(gx)*int64(gx) + int64(gy)*int64(gy)
	return int32(math.Round(math.Sqrt(float64(sq))))
}

// fillOpaqueBorder sets alpha on the border pixels, leaving color at 0.
func fillOpaqueBorder(out frame.DisplayFrame) {
	w, h := out.Width, out.Height
	pix := out.Pix
	set := func(x, y int) {
		pix[(y*w+x)*frame.BytesPerPixel+3] = frame.OpaqueAlpha
	}
	for x := 0; x < w; x++ {
		set(x, 0)
		set(x, h-1)
	}
	for y := 0; y < h; y++ {
		set(0, y)
		set(w-1, y)
	}
}
