// Package filter implements the online RR artifact filter: a range gate, a
// relative-threshold gate against the last accepted value, and a Hampel
// (trailing median/MAD) outlier stage. Gates drop; Hampel interpolates,
// because windowing still wants a plausible value for continuity.
package filter

import (
	"math"
	"sort"
)

// madToSigma converts a median-absolute-deviation into a robust estimate of
// the standard deviation (the usual 1/Φ⁻¹(3/4) constant).
const madToSigma = 1.4826

// madFloorMS keeps the Hampel threshold from collapsing to zero on a
// perfectly steady rhythm, where MAD is 0 and every beat of natural
// variation would otherwise be flagged.
const madFloorMS = 5.0

// Outcome classifies what the filter did with a sample.
type Outcome int

const (
	// Accepted samples enter the window unchanged.
	Accepted Outcome = iota
	// Interpolated samples were replaced by the trailing median and enter
	// the window with the replacement value.
	Interpolated
	// Dropped samples never reach the window and leave the baseline intact.
	Dropped
)

// Config holds the filter thresholds. All values must be validated upstream;
// see config.Validate.
type Config struct {
	MinRRMS       float64 // range gate lower bound
	MaxRRMS       float64 // range gate upper bound
	RelThreshold  float64 // fractional deviation from the previous accepted value
	HampelWindow  int     // trailing median window, odd
	HampelSigma   float64 // MAD multiplier
	DisableHampel bool    // threshold-only mode
}

// Filter is the per-stream cleaning state. Not safe for concurrent use; the
// engine owns exactly one per stream.
type Filter struct {
	cfg Config

	// Trailing ring of values that entered the window, capacity HampelWindow.
	ring  []float64
	head  int
	count int

	prev    float64 // last value that entered the window
	hasPrev bool

	dropped      uint64
	interpolated uint64
}

// New creates a Filter from cfg.
func New(cfg Config) *Filter {
	if cfg.HampelWindow < 1 {
		cfg.HampelWindow = 1
	}
	return &Filter{cfg: cfg, ring: make([]float64, cfg.HampelWindow)}
}

// Process runs one raw RR value (ms) through the gates. The returned value is
// meaningful for Accepted and Interpolated outcomes only.
func (f *Filter) Process(rrMS float64) (float64, Outcome) {
	if math.IsNaN(rrMS) || rrMS < f.cfg.MinRRMS || rrMS > f.cfg.MaxRRMS {
		f.dropped++
		return 0, Dropped
	}

	// First sample: nothing to compare against.
	if !f.hasPrev {
		f.admit(rrMS)
		return rrMS, Accepted
	}

	if math.Abs(rrMS-f.prev)/f.prev > f.cfg.RelThreshold {
		// Drops do not move the baseline, so a run of rejects is still
		// judged against the last value that actually entered the window.
		f.dropped++
		return 0, Dropped
	}

	if !f.cfg.DisableHampel && f.count >= f.cfg.HampelWindow {
		med, mad := f.medianMAD()
		madScaled := madToSigma * mad
		if madScaled < madFloorMS {
			madScaled = madFloorMS
		}
		if math.Abs(rrMS-med) > f.cfg.HampelSigma*madScaled {
			f.admit(med)
			f.interpolated++
			return med, Interpolated
		}
	}

	f.admit(rrMS)
	return rrMS, Accepted
}

// Stats returns the cumulative drop and interpolation counts.
func (f *Filter) Stats() (dropped, interpolated uint64) {
	return f.dropped, f.interpolated
}

// admit records v as the newest window-bound value: it becomes the baseline
// for the relative gate and joins the Hampel ring. Interpolated replacements
// go through here too, so the baseline follows the cleaned series.
func (f *Filter) admit(v float64) {
	f.ring[f.head] = v
	f.head = (f.head + 1) % len(f.ring)
	if f.count < len(f.ring) {
		f.count++
	}
	f.prev = v
	f.hasPrev = true
}

// medianMAD computes the median and median-absolute-deviation of the ring.
func (f *Filter) medianMAD() (med, mad float64) {
	vals := make([]float64, f.count)
	copy(vals, f.ring[:f.count])
	med = median(vals)
	for i, v := range vals {
		vals[i] = math.Abs(v - med)
	}
	mad = median(vals)
	return med, mad
}

// median sorts vals in place and returns the middle element (mean of the two
// middle elements for even lengths).
func median(vals []float64) float64 {
	sort.Float64s(vals)
	n := len(vals)
	if n%2 == 1 {
		return vals[n/2]
	}
	return (vals[n/2-1] + vals[n/2]) / 2
}
