// Frame comparison metrics and processing latency statistics
package metrics

import (
	"fmt"
	"sort"

	"edge-detection-viewer/internal/frame"
)

// Metric compares a candidate frame against a reference frame of the same
// size.
type Metric interface {
	// Calculate computes the metric value
	Calculate(reference, candidate frame.DisplayFrame) (float64, error)

	GetName() string

	GetDescription() string

	// GetRange returns the value range (min, max)
	GetRange() (float64, float64)

	// IsHigherBetter returns true if higher values indicate closer agreement
	IsHigherBetter() bool
}

// Evaluator manages and calculates multiple metrics
type Evaluator struct {
	metrics map[string]Metric
}

// NewEvaluator creates an evaluator with the default metrics registered.
func NewEvaluator() *Evaluator {
	e := &Evaluator{
		metrics: make(map[string]Metric),
	}
	e.RegisterDefaultMetrics()
	return e
}

func (e *Evaluator) RegisterDefaultMetrics() {
	e.Register("mse", NewMSE())
	e.Register("psnr", NewPSNR())
	e.Register("f_measure", NewFMeasure())
}

func (e *Evaluator) Register(name string, metric Metric) {
	e.metrics[name] = metric
}

// Calculate calculates a specific metric
func (e *Evaluator) Calculate(name string, reference, candidate frame.DisplayFrame) (float64, error) {
	metric, exists := e.metrics[name]
	if !exists {
		return 0, fmt.Errorf("metric not found: %s", name)
	}
	return metric.Calculate(reference, candidate)
}

// CalculateAll calculates all registered metrics, skipping any that fail.
func (e *Evaluator) CalculateAll(reference, candidate frame.DisplayFrame) map[string]float64 {
	results := make(map[string]float64)
	for name, metric := range e.metrics {
		if value, err := metric.Calculate(reference, candidate); err == nil {
			results[name] = value
		}
	}
	return results
}

// GetNames returns registered metric names in sorted order.
func (e *Evaluator) GetNames() []string {
	names := make([]string, 0, len(e.metrics))
	for name := range e.metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (e *Evaluator) GetMetric(name string) (Metric, bool) {
	m, ok := e.metrics[name]
	return m, ok
}

func checkComparable(reference, candidate frame.DisplayFrame) error {
	if err := reference.Validate(); err != nil {
		return fmt.Errorf("reference: %w", err)
	}
	if err := candidate.Validate(); err != nil {
		return fmt.Errorf("candidate: %w", err)
	}
	if reference.Width != candidate.Width || reference.Height != candidate.Height {
		return fmt.Errorf("frame dimensions mismatch: %dx%d vs %dx%d",
			reference.Width, reference.Height, candidate.Width, candidate.Height)
	}
	return nil
}
