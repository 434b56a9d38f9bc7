package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hrv_events_ingested_total",
		Help: "Total number of heartbeat events read from the source.",
	})

	EventsMalformed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hrv_events_malformed_total",
		Help: "Total number of unparseable input lines skipped.",
	})

	SamplesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hrv_rr_dropped_total",
		Help: "Total number of RR samples rejected by the artifact filter gates.",
	})

	SamplesInterpolated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hrv_rr_interpolated_total",
		Help: "Total number of RR samples replaced by the Hampel trailing median.",
	})

	RecordsEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hrv_records_emitted_total",
		Help: "Total number of score records handed to the sink.",
	})

	CurrentScore = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hrv_score",
		Help: "Most recent defined HRV score (1-100).",
	})

	CurrentRMSSD = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hrv_rmssd_ms",
		Help: "Most recent defined RMSSD in milliseconds.",
	})

	WindowSamples = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "hrv_window_samples",
		Help: "Samples currently retained, labelled by window.",
	}, []string{"window"})

	ProcessDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hrv_event_processing_duration_us",
		Help:    "Per-event pipeline latency in microseconds.",
		Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 5000},
	})
)
