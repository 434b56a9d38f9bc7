// Package hrv holds the pure HRV math: RMSSD, the logarithmic 1-100 score
// map, spike capping, dual-window blending and trailing score smoothing.
package hrv

import "math"

// lnRMSSDMax calibrates the score map: ln(RMSSD) runs roughly 0..6.5 across
// the physiological range (Elite HRV convention), mapped linearly onto 1-100.
const lnRMSSDMax = 6.5

// RMSSD computes the root-mean-square of successive differences over rr.
// Returns false when fewer than 2 intervals are available.
func RMSSD(rr []float64) (float64, bool) {
	if len(rr) < 2 {
		return 0, false
	}
	var sumSq float64
	for i := 1; i < len(rr); i++ {
		d := rr[i] - rr[i-1]
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(rr)-1)), true
}

// Score maps an RMSSD value (ms) to a display score in [1, 100].
// RMSSD <= 0 has no defined score (ln is invalid there); returning false
// rather than a clamped boundary keeps "no variability measured" from
// masquerading as a real reading.
func Score(rmssdMS float64) (int, bool) {
	if rmssdMS <= 0 {
		return 0, false
	}
	raw := 100.0 * math.Log(rmssdMS) / lnRMSSDMax
	s := int(math.Round(raw))
	if s < 1 {
		s = 1
	}
	if s > 100 {
		s = 100
	}
	return s, true
}

// Blend combines the short- and long-window scores as
// round(ratio*short + (1-ratio)*long). A side that is undefined falls back to
// the other; both undefined yields false.
func Blend(short int, shortOK bool, long int, longOK bool, ratio float64) (int, bool) {
	switch {
	case shortOK && longOK:
		return int(math.Round(ratio*float64(short) + (1.0-ratio)*float64(long))), true
	case shortOK:
		return short, true
	case longOK:
		return long, true
	default:
		return 0, false
	}
}

// CapSpikes limits per-sample change to ±maxChange ms relative to the
// previous (already capped) value, preserving length. maxChange <= 0 returns
// a copy untouched. Applied after artifact cleaning so rejection decisions
// always see true values.
func CapSpikes(rr []float64, maxChange float64) []float64 {
	out := make([]float64, len(rr))
	copy(out, rr)
	if maxChange <= 0 || len(rr) < 2 {
		return out
	}
	for i := 1; i < len(out); i++ {
		d := out[i] - out[i-1]
		if d > maxChange {
			out[i] = out[i-1] + maxChange
		} else if d < -maxChange {
			out[i] = out[i-1] - maxChange
		}
	}
	return out
}

// Smoother is a trailing average over the last N defined scores, implemented
// as a fixed-capacity ring. N = 0 disables smoothing (pass-through).
// Undefined scores bypass the ring entirely so a transient data gap does not
// reset accumulated state.
type Smoother struct {
	buf  []float64
	head int
	n    int
}

// NewSmoother creates a Smoother over the last n scores.
func NewSmoother(n int) *Smoother {
	if n <= 0 {
		return &Smoother{}
	}
	return &Smoother{buf: make([]float64, n)}
}

// Push records score and returns the current trailing mean.
func (s *Smoother) Push(score int) int {
	if len(s.buf) == 0 {
		return score
	}
	s.buf[s.head] = float64(score)
	s.head = (s.head + 1) % len(s.buf)
	if s.n < len(s.buf) {
		s.n++
	}
	var sum float64
	for i := 0; i < s.n; i++ {
		sum += s.buf[i]
	}
	return int(math.Round(sum / float64(s.n)))
}
