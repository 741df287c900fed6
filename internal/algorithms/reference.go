package algorithms

import (
	"fmt"
	"runtime"

	"edge-detection-viewer/internal/frame"
)

// Reference is the in-process implementation used directly when no
// accelerated backend exists and as the fallback when one fails.
type Reference struct {
	workers int
}

// NewReference creates a reference processor. workers <= 0 uses GOMAXPROCS;
// 1 runs the gradient pass on the calling goroutine.
func NewReference(workers int) *Reference {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Reference{workers: workers}
}

func (r *Reference) Convert(raw frame.RawFrame) (frame.DisplayFrame, error) {
	return ConvertI420(raw)
}

func (r *Reference) Detect(img frame.DisplayFrame) (frame.DisplayFrame, error) {
	return DetectEdgesParallel(img, r.workers)
}

func (r *Reference) Workers() int {
	return r.workers
}

func (r *Reference) GetName() string {
	return ReferenceName
}

func (r *Reference) GetDescription() string {
	return fmt.Sprintf("Pure Go BT.601 conversion and Sobel edge detection (%d workers)", r.workers)
}
