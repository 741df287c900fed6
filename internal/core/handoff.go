package core

import (
	"sync/atomic"

	"edge-detection-viewer/internal/frame"
)

// published is the single-owner handle swapped into the slot. Fields other
// than sampled are never written after construction.
type published struct {
	frame   frame.DisplayFrame
	seq     uint64
	sampled atomic.Bool
}

// HandoffStats is a point-in-time view of the handoff counters.
type HandoffStats struct {
	Published   uint64
	Overwritten uint64 // replaced before any consumer sampled them
	Seq         uint64
}

// Handoff passes display frames from the producer to any number of
// consumers with latest-frame-wins semantics. Publish never blocks and
// replaces the slot contents; Sample returns the newest frame without
// removing it. There is no queue: frames a consumer did not get to in time
// are dropped.
//
// Frames are immutable once published, so the slot holds a pointer that is
// swapped atomically and readers never see a partially written frame.
type Handoff struct {
	slot        atomic.Pointer[published]
	seq         atomic.Uint64
	published   atomic.Uint64
	overwritten atomic.Uint64
}

func NewHandoff() *Handoff {
	return &Handoff{}
}

// Publish makes f the current frame and returns its publish sequence
// number. f must not be modified afterwards.
func (h *Handoff) Publish(f frame.DisplayFrame) uint64 {
	p := &published{frame: f, seq: h.seq.Add(1)}
	old := h.slot.Swap(p)
	h.published.Add(1)
	if old != nil && !old.sampled.Load() {
		h.overwritten.Add(1)
	}
	return p.seq
}

// Sample returns the latest frame and its publish sequence number. ok is
// false when nothing has been published since construction or Reset.
// Repeated calls without an intervening Publish return the same frame.
func (h *Handoff) Sample() (f frame.DisplayFrame, seq uint64, ok bool) {
	p := h.slot.Load()
	if p == nil {
		return frame.DisplayFrame{}, 0, false
	}
	p.sampled.Store(true)
	return p.frame, p.seq, true
}

// Reset empties the slot and clears the counters. The sequence keeps
// increasing across resets so consumers never mistake a new frame for one
// they already rendered.
func (h *Handoff) Reset() {
	h.slot.Store(nil)
	h.published.Store(0)
	h.overwritten.Store(0)
}

func (h *Handoff) Stats() HandoffStats {
	return HandoffStats{
		Published:   h.published.Load(),
		Overwritten: h.overwritten.Load(),
		Seq:         h.seq.Load(),
	}
}
