// Concrete implementations of frame comparison metrics
package metrics

import (
	"math"

	"edge-detection-viewer/internal/frame"
)

// MSE is the mean squared error over the color channels. Alpha is ignored.
type MSE struct{}

func NewMSE() *MSE {
	return &MSE{}
}

func (m *MSE) Calculate(reference, candidate frame.DisplayFrame) (float64, error) {
	if err := checkComparable(reference, candidate); err != nil {
		return 0, err
	}
	return meanSquaredError(reference.Pix, candidate.Pix), nil
}

func meanSquaredError(a, b []byte) float64 {
	var sum float64
	var n int
	for i := 0; i < len(a); i += frame.BytesPerPixel {
		for c := 0; c < 3; c++ {
			d := float64(a[i+c]) - float64(b[i+c])
			sum += d * d
		}
		n += 3
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func (m *MSE) GetName() string {
	return "MSE"
}

func (m *MSE) GetDescription() string {
	return "Mean Squared Error - average squared per-channel difference"
}

func (m *MSE) GetRange() (float64, float64) {
	return 0, 255 * 255
}

func (m *MSE) IsHigherBetter() bool {
	return false
}

// PSNR implements Peak Signal-to-Noise Ratio metric
type PSNR struct{}

func NewPSNR() *PSNR {
	return &PSNR{}
}

func (p *PSNR) Calculate(reference, candidate frame.DisplayFrame) (float64, error) {
	if err := checkComparable(reference, candidate); err != nil {
		return 0, err
	}
	mse := meanSquaredError(reference.Pix, candidate.Pix)
	if mse == 0 {
		return math.Inf(1), nil // Perfect match
	}
	return 20 * math.Log10(255.0/math.Sqrt(mse)), nil
}

func (p *PSNR) GetName() string {
	return "PSNR"
}

func (p *PSNR) GetDescription() string {
	return "Peak Signal-to-Noise Ratio - measures reconstruction quality"
}

func (p *PSNR) GetRange() (float64, float64) {
	return 0, math.Inf(1)
}

func (p *PSNR) IsHigherBetter() bool {
	return true
}

// FMeasure scores agreement between two edge maps. A pixel is an edge when
// its red channel is non-zero; the reference map is the ground truth.
type FMeasure struct{}

func NewFMeasure() *FMeasure {
	return &FMeasure{}
}

func (f *FMeasure) Calculate(reference, candidate frame.DisplayFrame) (float64, error) {
	if err := checkComparable(reference, candidate); err != nil {
		return 0, err
	}

	tp, fp, fn := f.calculateConfusionMatrix(reference, candidate)
	if tp+fp+fn == 0 {
		return 1, nil // both maps empty
	}

	precision := 0.0
	if tp+fp > 0 {
		precision = tp / (tp + fp)
	}
	recall := 0.0
	if tp+fn > 0 {
		recall = tp / (tp + fn)
	}
	if precision+recall == 0 {
		return 0, nil
	}
	return 2 * (precision * recall) / (precision + recall), nil
}

func (f *FMeasure) calculateConfusionMatrix(reference, candidate frame.DisplayFrame) (float64, float64, float64) {
	var tp, fp, fn float64
	for i := 0; i < len(reference.Pix); i += frame.BytesPerPixel {
		want := reference.Pix[i] != 0
		got := candidate.Pix[i] != 0
		switch {
		case want && got:
			tp++
		case got:
			fp++
		case want:
			fn++
		}
	}
	return tp, fp, fn
}

func (f *FMeasure) GetName() string {
	return "F-measure"
}

func (f *FMeasure) GetDescription() string {
	return "Harmonic mean of edge precision and recall"
}

func (f *FMeasure) GetRange() (float64, float64) {
	return 0, 1
}

func (f *FMeasure) IsHigherBetter() bool {
	return true
}
