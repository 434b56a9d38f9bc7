package config

import (
	"fmt"
	"strings"
)

// Validate checks option values before the processing loop starts. Invalid
// configuration is the engine's only fatal startup path, so every problem is
// reported at once rather than one at a time.
func Validate(cfg *Config) error {
	var errs []string

	e := cfg.Engine
	if e.WindowS <= 0 {
		errs = append(errs, "engine.window_s must be > 0")
	}
	if e.WindowShortS < 0 {
		errs = append(errs, "engine.window_short_s must be >= 0")
	}
	if e.WindowShortS > 0 && e.WindowShortS >= e.WindowS {
		errs = append(errs, "engine.window_short_s must be shorter than engine.window_s")
	}
	if e.BlendRatio < 0 || e.BlendRatio > 1 {
		errs = append(errs, "engine.blend_ratio must be in [0,1]")
	}
	if e.MinIntervals < 2 {
		errs = append(errs, "engine.min_intervals must be >= 2")
	}
	if e.MinBeats < 2 {
		errs = append(errs, "engine.min_beats must be >= 2")
	}
	if e.SmoothOutput < 0 {
		errs = append(errs, "engine.smooth_output must be >= 0")
	}
	if e.SpikeFilterMS < 0 {
		errs = append(errs, "engine.spike_filter_ms must be >= 0")
	}
	if e.EmitIntervalS < 0 {
		errs = append(errs, "engine.emit_interval_s must be >= 0")
	}
	if e.StatsIntervalS < 0 {
		errs = append(errs, "engine.stats_interval_s must be >= 0")
	}

	c := cfg.Clean
	if c.Thresh <= 0 {
		errs = append(errs, "clean.thresh must be > 0")
	}
	if c.HampelWindow < 3 || c.HampelWindow%2 == 0 {
		errs = append(errs, fmt.Sprintf("clean.hampel must be odd and >= 3, got %d", c.HampelWindow))
	}
	if c.HampelSigma <= 0 {
		errs = append(errs, "clean.hampel_sigma must be > 0")
	}
	if c.MinRRMS <= 0 || c.MaxRRMS <= c.MinRRMS {
		errs = append(errs, fmt.Sprintf("clean.min_rr/max_rr must satisfy 0 < min < max, got %v/%v", c.MinRRMS, c.MaxRRMS))
	}

	switch cfg.Source.Type {
	case "stdin":
	case "mqtt":
		if cfg.Source.MQTT.Broker == "" {
			errs = append(errs, "source.mqtt.broker is required for the mqtt source")
		}
		if cfg.Source.MQTT.Topic == "" {
			errs = append(errs, "source.mqtt.topic is required for the mqtt source")
		}
		switch cfg.Source.MQTT.Format {
		case "json", "hrm":
		default:
			errs = append(errs, fmt.Sprintf("source.mqtt.format must be json or hrm, got %q", cfg.Source.MQTT.Format))
		}
	default:
		errs = append(errs, fmt.Sprintf("source.type must be stdin or mqtt, got %q", cfg.Source.Type))
	}

	if cfg.Sink.Redis.Enabled {
		if cfg.Sink.Redis.Addr == "" {
			errs = append(errs, "sink.redis.addr is required when the redis sink is enabled")
		}
		if cfg.Sink.Redis.Stream == "" {
			errs = append(errs, "sink.redis.stream is required when the redis sink is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
