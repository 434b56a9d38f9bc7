// Package window maintains time-bounded rolling buffers of cleaned RR
// samples. Eviction is strictly by age relative to the newest sample, never
// by count, so a window drains naturally across a sensor gap and refills
// without any reset logic.
package window

import "github.com/rtheil/hrvstream/internal/event"

// Rolling holds RR samples whose timestamp is within lengthS seconds of the
// most recent sample. Samples arrive in timestamp order; the zero count state
// before the first push is valid.
type Rolling struct {
	lengthS float64
	samples []event.RRSample
}

// NewRolling creates a window spanning lengthS seconds.
func NewRolling(lengthS float64) *Rolling {
	return &Rolling{lengthS: lengthS}
}

// Push appends s and evicts everything older than the window bound relative
// to the newest retained timestamp.
func (w *Rolling) Push(s event.RRSample) {
	w.samples = append(w.samples, s)
	cutoff := w.samples[len(w.samples)-1].TS - w.lengthS
	i := 0
	for i < len(w.samples) && w.samples[i].TS < cutoff {
		i++
	}
	if i > 0 {
		w.samples = append(w.samples[:0], w.samples[i:]...)
	}
}

// Contents returns the retained RR values in arrival order.
func (w *Rolling) Contents() []float64 {
	out := make([]float64, len(w.samples))
	for i, s := range w.samples {
		out[i] = s.RR
	}
	return out
}

// Count returns how many samples are currently retained.
func (w *Rolling) Count() int {
	return len(w.samples)
}

// Span returns the window length in seconds.
func (w *Rolling) Span() float64 {
	return w.lengthS
}
