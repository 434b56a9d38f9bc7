package main

import (
	"encoding/json"
	"flag"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/rtheil/hrvstream/internal/event"
)

// hrv-sim emits synthetic heartbeat events as NDJSON for development and
// demos: a base rhythm with respiratory-style sway and gaussian jitter, plus
// optional injected artifacts to exercise the cleaning stages.
func main() {
	_ = godotenv.Load()

	var (
		baseHR        = flag.Float64("hr", 65, "Base heart rate in bpm")
		jitterMS      = flag.Float64("jitter", 20, "Gaussian RR jitter stddev in ms")
		swayMS        = flag.Float64("sway", 30, "Respiratory sway amplitude in ms")
		artifactEvery = flag.Int("artifact-every", 0, "Inject a spike every N beats (0 = off)")
		count         = flag.Int("count", 0, "Stop after N beats (0 = run until interrupted)")
		fast          = flag.Bool("fast", false, "Emit as fast as possible instead of real time")
		seed          = flag.Int64("seed", 0, "Random seed (0 = time-based)")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(*seed))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	enc := json.NewEncoder(os.Stdout)
	baseRR := 60000.0 / *baseHR
	ts := float64(time.Now().UnixNano()) / 1e9
	phase := 0.0

	slog.Info("simulating heartbeats", "base_rr_ms", baseRR, "seed", *seed)
	for beat := 0; *count == 0 || beat < *count; beat++ {
		select {
		case <-quit:
			slog.Info("stopped")
			return
		default:
		}

		// Respiratory sinus arrhythmia at ~0.25 Hz plus white jitter.
		phase += 0.25 * (baseRR / 1000.0) * 2 * math.Pi
		sway := (*swayMS) * math.Sin(phase)
		rr := baseRR + sway + rng.NormFloat64()*(*jitterMS)
		if *artifactEvery > 0 && beat > 0 && beat%(*artifactEvery) == 0 {
			rr *= 2.5 // motion spike
		}

		hr := int(math.Round(60000.0 / rr))
		ts += rr / 1000.0
		if err := enc.Encode(event.HeartbeatEvent{HR: &hr, RR: &rr, TS: ts}); err != nil {
			slog.Error("write failed", "err", err)
			return
		}

		if !*fast {
			time.Sleep(time.Duration(rr * float64(time.Millisecond)))
		}
	}
}
