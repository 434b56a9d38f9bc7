package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rtheil/hrvstream/internal/config"
	"github.com/rtheil/hrvstream/internal/engine"
	"github.com/rtheil/hrvstream/internal/sink"
	"github.com/rtheil/hrvstream/internal/source"
)

func main() {
	_ = godotenv.Load()

	var (
		cfgPath = flag.String("config", "", "Path to YAML config (optional; flags override)")
		verbose = flag.Bool("v", false, "Debug logging")

		window       = flag.Float64("window", 60, "Rolling window in seconds")
		windowShort  = flag.Float64("window-short", 0, "Short window in seconds (with -blend: dual-window mode)")
		blend        = flag.Float64("blend", 0, "Short-window weight in [0,1] for dual-window mode")
		minIntervals = flag.Int("min-intervals", 30, "Accepted RR intervals before first defined output")
		minBeats     = flag.Int("min-beats", 15, "Per-window minimum for a reportable RMSSD")
		spikeFilter  = flag.Float64("spike-filter", 0, "Cap per-sample RR change to ±MS ms (0 = off)")
		smoothOutput = flag.Int("smooth-output", 0, "Sliding average of last N scores (0 = off)")
		emitInterval = flag.Float64("emit-interval", 0, "Wall-clock emission cadence in seconds (0 = per beat)")

		rrClean       = flag.Bool("rr-clean", false, "Enable RR artifact cleaning (threshold + Hampel)")
		cleanThresh   = flag.Float64("rr-clean-thresh", 0.35, "Max fractional deviation from previous accepted RR")
		hampelWindow  = flag.Int("rr-clean-hampel", 11, "Hampel window in beats (odd)")
		hampelSigma   = flag.Float64("rr-clean-hampel-sigma", 4.0, "Hampel MAD multiplier")
		disableHampel = flag.Bool("disable-hampel", false, "Threshold-only cleaning")
		minRR         = flag.Float64("rr-clean-min-rr", 300, "Min valid RR ms")
		maxRR         = flag.Float64("rr-clean-max-rr", 2000, "Max valid RR ms")
		statsInterval = flag.Float64("stats-interval", 60, "Clean-stats log cadence in seconds")

		srcType     = flag.String("source", "stdin", "Event source: stdin or mqtt")
		mqttBroker  = flag.String("mqtt-broker", "", "MQTT broker URL (mqtt source)")
		mqttTopic   = flag.String("mqtt-topic", "hrv/events", "MQTT topic (mqtt source)")
		mqttFormat  = flag.String("mqtt-format", "json", "MQTT payload format: json or hrm")
		redisSink   = flag.Bool("redis-sink", false, "Also publish records to a Redis stream")
		redisAddr   = flag.String("redis-addr", "localhost:6379", "Redis address (redis sink)")
		redisStream = flag.String("redis-stream", "hrv:scores", "Redis stream key (redis sink)")
		metricsAddr = flag.String("metrics-addr", "", "Prometheus listener address (empty = off)")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	// stdout carries the record stream; everything else goes to stderr.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// ── Load config ──────────────────────────────────────────────────────────
	cfg := config.Default()
	var loader *config.Loader
	if *cfgPath != "" {
		var err error
		loader, err = config.NewLoader(*cfgPath)
		if err != nil {
			slog.Error("failed to load config", "err", err)
			os.Exit(1)
		}
		cfg = loader.Config()
	}

	// Explicit flags win over the file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "window":
			cfg.Engine.WindowS = *window
		case "window-short":
			cfg.Engine.WindowShortS = *windowShort
		case "blend":
			cfg.Engine.BlendRatio = *blend
		case "min-intervals":
			cfg.Engine.MinIntervals = *minIntervals
		case "min-beats":
			cfg.Engine.MinBeats = *minBeats
		case "spike-filter":
			cfg.Engine.SpikeFilterMS = *spikeFilter
		case "smooth-output":
			cfg.Engine.SmoothOutput = *smoothOutput
		case "emit-interval":
			cfg.Engine.EmitIntervalS = *emitInterval
		case "stats-interval":
			cfg.Engine.StatsIntervalS = *statsInterval
		case "rr-clean":
			cfg.Clean.Enabled = *rrClean
		case "rr-clean-thresh":
			cfg.Clean.Thresh = *cleanThresh
		case "rr-clean-hampel":
			cfg.Clean.HampelWindow = *hampelWindow
		case "rr-clean-hampel-sigma":
			cfg.Clean.HampelSigma = *hampelSigma
		case "disable-hampel":
			cfg.Clean.DisableHampel = *disableHampel
		case "rr-clean-min-rr":
			cfg.Clean.MinRRMS = *minRR
		case "rr-clean-max-rr":
			cfg.Clean.MaxRRMS = *maxRR
		case "source":
			cfg.Source.Type = *srcType
		case "mqtt-broker":
			cfg.Source.MQTT.Broker = *mqttBroker
		case "mqtt-topic":
			cfg.Source.MQTT.Topic = *mqttTopic
		case "mqtt-format":
			cfg.Source.MQTT.Format = *mqttFormat
		case "redis-sink":
			cfg.Sink.Redis.Enabled = *redisSink
		case "redis-addr":
			cfg.Sink.Redis.Addr = *redisAddr
		case "redis-stream":
			cfg.Sink.Redis.Stream = *redisStream
		case "metrics-addr":
			cfg.Metrics.Addr = *metricsAddr
		}
	})

	if err := config.Validate(cfg); err != nil {
		slog.Error("config validation failed", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Source ───────────────────────────────────────────────────────────────
	var src source.Source
	switch cfg.Source.Type {
	case "mqtt":
		m, err := source.NewMQTT(cfg.Source.MQTT)
		if err != nil {
			slog.Error("mqtt source unavailable", "err", err)
			os.Exit(1)
		}
		src = m
	default:
		src = source.NewReader(os.Stdin)
	}

	// ── Sinks ────────────────────────────────────────────────────────────────
	sinks := []sink.Sink{sink.NewWriter(os.Stdout)}
	if cfg.Sink.Redis.Enabled {
		rs, err := sink.NewRedisStream(ctx, cfg.Sink.Redis)
		if err != nil {
			slog.Error("redis sink unavailable", "err", err)
			os.Exit(1)
		}
		defer rs.Close()
		sinks = append(sinks, rs)
	}

	// ── Engine ───────────────────────────────────────────────────────────────
	eng := engine.New(cfg, src, sinks...)

	// ── Hot-reload watcher (display tuning only) ─────────────────────────────
	if loader != nil {
		loader.OnChange(func(newCfg *config.Config) {
			if err := config.Validate(newCfg); err != nil {
				slog.Warn("hot-reload skipped: config invalid", "err", err)
				return
			}
			eng.SwapTuning(newCfg.Tuning())
			slog.Info("tuning hot-reloaded",
				"blend_ratio", newCfg.Engine.BlendRatio,
				"smooth_output", newCfg.Engine.SmoothOutput,
				"spike_filter_ms", newCfg.Engine.SpikeFilterMS)
		})
		stopWatch, err := loader.Watch()
		if err != nil {
			slog.Warn("config watcher unavailable (hot-reload disabled)", "err", err)
		} else {
			defer stopWatch()
		}
	}

	// ── Metrics listener ─────────────────────────────────────────────────────
	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", promhttp.Handler())
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			slog.Info("metrics listener starting", "addr", cfg.Metrics.Addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Warn("metrics listener error", "err", err)
			}
		}()
		defer func() {
			shutCtx, shutCancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer shutCancel()
			_ = srv.Shutdown(shutCtx)
		}()
	}

	// ── Run until EOF or signal ──────────────────────────────────────────────
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		slog.Info("shutting down…")
		cancel()
	}()

	if err := eng.Run(ctx); err != nil {
		slog.Error("engine error", "err", err)
		os.Exit(1)
	}
}
