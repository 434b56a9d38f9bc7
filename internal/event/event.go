package event

// HeartbeatEvent is the canonical input model: one record per sensor
// notification. RR and HR are pointers because the strap can report a beat
// with no usable interval; nil means "no value this tick", never zero.
type HeartbeatEvent struct {
	HR *int     `json:"hr"`
	RR *float64 `json:"rr_ms"`
	TS float64  `json:"ts"` // seconds since epoch
}

// RRSample is a single cleaned RR interval tagged with its arrival time.
// Samples are owned by the rolling window that holds them.
type RRSample struct {
	RR float64
	TS float64
}

// ScoreRecord is the engine's output, one per emission. Nil fields mean
// "insufficient data yet" and are serialized as JSON null so downstream can
// distinguish warm-up from silence. The artifact counters are carried only
// when cleaning is enabled.
type ScoreRecord struct {
	HR           *int     `json:"hr"`
	RMSSD        *float64 `json:"rmssd_ms"`
	Score        *int     `json:"hrv_score"`
	TS           float64  `json:"ts"`
	Dropped      *uint64  `json:"rr_dropped,omitempty"`
	Interpolated *uint64  `json:"rr_interpolated,omitempty"`
}

// Float64Ptr returns a pointer to v. Convenience for building records.
func Float64Ptr(v float64) *float64 { return &v }

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }
