package core

import (
	"sync"
	"time"
)

// frameStats holds the single-sample FPS estimate. Only the last arrival
// time is kept.
type frameStats struct {
	mu     sync.Mutex
	fps    float64
	width  int
	height int
	last   time.Time
}

// observe records a frame arrival. It reports false when the FPS estimate
// was not updated: on the first frame after a reset, or when the elapsed
// time since the previous frame is not positive.
func (s *frameStats) observe(ts time.Time, width, height int) (updated bool, anomaly bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.width, s.height = width, height
	prev := s.last
	s.last = ts
	if prev.IsZero() {
		return false, false
	}

	elapsed := ts.Sub(prev)
	if elapsed <= 0 {
		return false, true
	}
	s.fps = float64(time.Second) / float64(elapsed)
	return true, false
}

func (s *frameStats) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fps = 0
	s.width, s.height = 0, 0
	s.last = time.Time{}
}

func (s *frameStats) snapshot() (fps float64, width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fps, s.width, s.height
}
