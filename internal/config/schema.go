package config

// Config is the top-level YAML structure for the engine.
type Config struct {
	Engine  EngineConf  `yaml:"engine"`
	Clean   CleanConf   `yaml:"clean"`
	Source  SourceConf  `yaml:"source"`
	Sink    SinkConf    `yaml:"sink"`
	Metrics MetricsConf `yaml:"metrics"`
}

// EngineConf holds the windowing, scoring and emission settings.
type EngineConf struct {
	WindowS        float64 `yaml:"window_s"`         // long rolling window (seconds)
	WindowShortS   float64 `yaml:"window_short_s"`   // 0 = dual-window blend off
	BlendRatio     float64 `yaml:"blend_ratio"`      // weight of the short window in [0,1]
	MinIntervals   int     `yaml:"min_intervals"`    // accepted samples before first defined output
	MinBeats       int     `yaml:"min_beats"`        // per-window minimum for a reportable RMSSD
	SmoothOutput   int     `yaml:"smooth_output"`    // trailing average of last N scores, 0 = off
	SpikeFilterMS  float64 `yaml:"spike_filter_ms"`  // legacy per-sample delta cap, 0 = off
	EmitIntervalS  float64 `yaml:"emit_interval_s"`  // 0 = emit per beat
	StatsIntervalS float64 `yaml:"stats_interval_s"` // clean-stats log cadence (cleaning on)
}

// CleanConf holds the artifact filter settings.
type CleanConf struct {
	Enabled       bool    `yaml:"enabled"`
	Thresh        float64 `yaml:"thresh"`        // relative deviation from previous accepted value
	HampelWindow  int     `yaml:"hampel"`        // trailing median window in beats, odd
	HampelSigma   float64 `yaml:"hampel_sigma"`  // MAD multiplier
	DisableHampel bool    `yaml:"disable_hampel"`
	MinRRMS       float64 `yaml:"min_rr"`
	MaxRRMS       float64 `yaml:"max_rr"`
}

// SourceConf selects and configures the event source.
type SourceConf struct {
	Type string   `yaml:"type"` // "stdin" or "mqtt"
	MQTT MQTTConf `yaml:"mqtt"`
}

// MQTTConf configures the MQTT event source.
type MQTTConf struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Format   string `yaml:"format"` // "json" (NDJSON events) or "hrm" (raw 0x2A37 payloads)
}

// SinkConf configures optional output fan-out beside stdout.
type SinkConf struct {
	Redis RedisConf `yaml:"redis"`
}

// RedisConf configures the Redis Streams score sink.
type RedisConf struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Stream   string `yaml:"stream"`
	MaxLen   int64  `yaml:"max_len"`
}

// MetricsConf configures the optional Prometheus listener.
type MetricsConf struct {
	Addr string `yaml:"addr"` // empty = no listener
}

// Tuning is the hot-reloadable display subset of EngineConf. The engine
// swaps it atomically on config change; everything else requires a restart.
type Tuning struct {
	BlendRatio    float64
	SmoothOutput  int
	SpikeFilterMS float64
}

// Tuning extracts the hot-reloadable subset.
func (c *Config) Tuning() Tuning {
	return Tuning{
		BlendRatio:    c.Engine.BlendRatio,
		SmoothOutput:  c.Engine.SmoothOutput,
		SpikeFilterMS: c.Engine.SpikeFilterMS,
	}
}

// Default returns a Config carrying all documented defaults.
func Default() *Config {
	return &Config{
		Engine: EngineConf{
			WindowS:        60,
			MinIntervals:   30,
			MinBeats:       15,
			StatsIntervalS: 60,
		},
		Clean: CleanConf{
			Thresh:       0.35,
			HampelWindow: 11,
			HampelSigma:  4.0,
			MinRRMS:      300,
			MaxRRMS:      2000,
		},
		Source: SourceConf{
			Type: "stdin",
			MQTT: MQTTConf{
				Topic:    "hrv/events",
				ClientID: "hrv-engine",
				Format:   "json",
			},
		},
		Sink: SinkConf{
			Redis: RedisConf{
				Addr:   "localhost:6379",
				Stream: "hrv:scores",
				MaxLen: 10000,
			},
		},
	}
}
