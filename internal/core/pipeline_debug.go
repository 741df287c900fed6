// Pipeline event log for debugging
package core

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultDebugEvents is the event log capacity used when none is given.
const DefaultDebugEvents = 128

// ProcessingEvent tracks processing flow events
type ProcessingEvent struct {
	Timestamp time.Time              `json:"timestamp"`
	Event     string                 `json:"event"` // "start", "stop", "mode_change", "accel_failure", "malformed", "clock_anomaly"
	Mode      string                 `json:"mode"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// PipelineDebugger keeps the most recent pipeline events and a count per
// event type. A nil *PipelineDebugger discards everything.
type PipelineDebugger struct {
	mu     sync.Mutex
	logger *slog.Logger

	events []ProcessingEvent // ring buffer
	next   int
	filled bool
	counts map[string]uint64
}

func NewPipelineDebugger(logger *slog.Logger, capacity int) *PipelineDebugger {
	if capacity <= 0 {
		capacity = DefaultDebugEvents
	}
	return &PipelineDebugger{
		logger: logger,
		events: make([]ProcessingEvent, capacity),
		counts: make(map[string]uint64),
	}
}

// Event logging
func (pd *PipelineDebugger) LogEvent(event, mode string, details map[string]interface{}) {
	if pd == nil {
		return
	}

	evt := ProcessingEvent{
		Timestamp: time.Now(),
		Event:     event,
		Mode:      mode,
		Details:   details,
	}

	pd.mu.Lock()
	pd.events[pd.next] = evt
	pd.next++
	if pd.next == len(pd.events) {
		pd.next = 0
		pd.filled = true
	}
	pd.counts[event]++
	pd.mu.Unlock()

	pd.logger.Debug("PIPELINE Event",
		"event", event,
		"mode", mode,
		"details", details)
}

// Events returns the retained events, oldest first.
func (pd *PipelineDebugger) Events() []ProcessingEvent {
	if pd == nil {
		return nil
	}
	pd.mu.Lock()
	defer pd.mu.Unlock()

	if !pd.filled {
		return append([]ProcessingEvent(nil), pd.events[:pd.next]...)
	}
	out := make([]ProcessingEvent, 0, len(pd.events))
	out = append(out, pd.events[pd.next:]...)
	return append(out, pd.events[:pd.next]...)
}

func (pd *PipelineDebugger) GetStats() map[string]interface{} {
	if pd == nil {
		return nil
	}
	pd.mu.Lock()
	defer pd.mu.Unlock()

	counts := make(map[string]uint64, len(pd.counts))
	total := uint64(0)
	for k, v := range pd.counts {
		counts[k] = v
		total += v
	}
	return map[string]interface{}{
		"total_events": total,
		"by_event":     counts,
	}
}
