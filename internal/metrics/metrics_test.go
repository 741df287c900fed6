package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edge-detection-viewer/internal/frame"
)

func filled(w, h int, v byte) frame.DisplayFrame {
	d := frame.NewDisplayFrame(w, h)
	for i := 0; i < len(d.Pix); i += 4 {
		d.Pix[i], d.Pix[i+1], d.Pix[i+2], d.Pix[i+3] = v, v, v, 255
	}
	return d
}

func TestEvaluatorDefaults(t *testing.T) {
	t.Parallel()

	e := NewEvaluator()
	assert.Equal(t, []string{"f_measure", "mse", "psnr"}, e.GetNames())

	_, err := e.Calculate("ssim", filled(2, 2, 0), filled(2, 2, 0))
	assert.Error(t, err)

	m, ok := e.GetMetric("psnr")
	require.True(t, ok)
	assert.True(t, m.IsHigherBetter())
}

func TestMSEAndPSNR(t *testing.T) {
	t.Parallel()

	a := filled(4, 4, 100)
	b := filled(4, 4, 110)

	mse, err := NewMSE().Calculate(a, b)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, mse, 1e-9)

	psnr, err := NewPSNR().Calculate(a, b)
	require.NoError(t, err)
	assert.InDelta(t, 20*math.Log10(25.5), psnr, 1e-9)

	same, err := NewPSNR().Calculate(a, a)
	require.NoError(t, err)
	assert.True(t, math.IsInf(same, 1))
}

func TestMetricsRejectMismatchedFrames(t *testing.T) {
	t.Parallel()

	e := NewEvaluator()
	results := e.CalculateAll(filled(4, 4, 0), filled(4, 2, 0))
	assert.Empty(t, results)

	_, err := NewMSE().Calculate(frame.DisplayFrame{}, filled(1, 1, 0))
	assert.ErrorIs(t, err, frame.ErrMalformedInput)
}

func TestFMeasure(t *testing.T) {
	t.Parallel()

	ref := filled(4, 1, 0)
	cand := filled(4, 1, 0)

	score, err := NewFMeasure().Calculate(ref, cand)
	require.NoError(t, err)
	assert.Equal(t, 1.0, score, "two empty maps agree")

	// ref edges at 0,1; candidate edges at 1,2: tp=1 fp=1 fn=1
	ref.Pix[0], ref.Pix[4] = 255, 255
	cand.Pix[4], cand.Pix[8] = 255, 255
	score, err = NewFMeasure().Calculate(ref, cand)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, score, 1e-9)
}
