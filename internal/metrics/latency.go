package metrics

import (
	"math"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// DefaultLatencyWindow is the number of samples kept when none is configured.
const DefaultLatencyWindow = 256

// LatencySummary describes the samples currently in the window. Count is the
// total number of samples ever recorded.
type LatencySummary struct {
	Count  uint64
	Last   time.Duration
	Mean   time.Duration
	StdDev time.Duration
	P50    time.Duration
	P95    time.Duration
	Max    time.Duration
}

// LatencyRecorder keeps a fixed-size window of processing latencies.
// Safe for concurrent use.
type LatencyRecorder struct {
	mu      sync.Mutex
	samples []float64 // nanoseconds, ring buffer
	next    int
	filled  bool
	count   uint64
	last    time.Duration
}

// NewLatencyRecorder creates a recorder holding up to window samples.
func NewLatencyRecorder(window int) *LatencyRecorder {
	if window <= 0 {
		window = DefaultLatencyWindow
	}
	return &LatencyRecorder{samples: make([]float64, window)}
}

func (r *LatencyRecorder) Record(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.samples[r.next] = float64(d)
	r.next++
	if r.next == len(r.samples) {
		r.next = 0
		r.filled = true
	}
	r.count++
	r.last = d
}

// Reset drops all samples.
func (r *LatencyRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next = 0
	r.filled = false
	r.count = 0
	r.last = 0
}

func (r *LatencyRecorder) window() []float64 {
	n := r.next
	if r.filled {
		n = len(r.samples)
	}
	out := make([]float64, n)
	copy(out, r.samples[:n])
	return out
}

// Summary computes statistics over the current window.
func (r *LatencyRecorder) Summary() LatencySummary {
	r.mu.Lock()
	data := r.window()
	s := LatencySummary{Count: r.count, Last: r.last}
	r.mu.Unlock()

	if len(data) == 0 {
		return s
	}
	sort.Float64s(data)

	s.Mean = toDuration(stat.Mean(data, nil))
	if len(data) > 1 {
		s.StdDev = toDuration(stat.StdDev(data, nil))
	}
	s.P50 = toDuration(stat.Quantile(0.5, stat.Empirical, data, nil))
	s.P95 = toDuration(stat.Quantile(0.95, stat.Empirical, data, nil))
	s.Max = toDuration(data[len(data)-1])
	return s
}

func toDuration(ns float64) time.Duration {
	return time.Duration(math.Round(ns))
}
