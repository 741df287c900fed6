package core

import "sync/atomic"

// ProcessingMode selects what the pipeline does with each frame.
type ProcessingMode int32

const (
	// ModeRaw converts to the display format only.
	ModeRaw ProcessingMode = iota
	// ModeProcessed converts and then runs edge detection.
	ModeProcessed
)

func (m ProcessingMode) String() string {
	if m == ModeProcessed {
		return "processed"
	}
	return "raw"
}

// modeSwitch is the control-surface toggle. Changes apply from the next
// frame; a frame already in flight finishes in the mode it started with.
type modeSwitch struct {
	v atomic.Int32
}

func (s *modeSwitch) Load() ProcessingMode {
	return ProcessingMode(s.v.Load())
}

func (s *modeSwitch) Store(m ProcessingMode) {
	s.v.Store(int32(m))
}

// Toggle flips the mode and returns the new value.
func (s *modeSwitch) Toggle() ProcessingMode {
	for {
		old := s.v.Load()
		next := int32(ModeProcessed)
		if ProcessingMode(old) == ModeProcessed {
			next = int32(ModeRaw)
		}
		if s.v.CompareAndSwap(old, next) {
			return ProcessingMode(next)
		}
	}
}

// Swap stores m and returns the previous mode.
func (s *modeSwitch) Swap(m ProcessingMode) ProcessingMode {
	return ProcessingMode(s.v.Swap(int32(m)))
}
