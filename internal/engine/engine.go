// Package engine drives the streaming HRV pipeline: events from a source are
// cleaned, windowed, estimated, mapped, blended, smoothed, and emitted as
// score records. The whole chain runs on a single goroutine; windows and
// cleaning state are owned by the loop and never shared.
package engine

import (
	"context"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/rtheil/hrvstream/internal/config"
	"github.com/rtheil/hrvstream/internal/event"
	"github.com/rtheil/hrvstream/internal/filter"
	"github.com/rtheil/hrvstream/internal/hrv"
	"github.com/rtheil/hrvstream/internal/metrics"
	"github.com/rtheil/hrvstream/internal/sink"
	"github.com/rtheil/hrvstream/internal/source"
	"github.com/rtheil/hrvstream/internal/window"
)

// Engine consumes heartbeat events and emits score records. Construct with
// New, run with Run; not reusable across runs.
type Engine struct {
	cfg    config.EngineConf
	clean  config.CleanConf
	tuning atomic.Pointer[config.Tuning]

	src   source.Source
	sinks []sink.Sink

	filt  *filter.Filter // nil when cleaning is off
	long  *window.Rolling
	short *window.Rolling // nil when dual-window mode is off

	smoother  *hrv.Smoother
	smootherN int

	total        int // accepted samples since start
	lastHR       *int
	latestTS     float64
	firstDefined bool
}

// New builds an Engine from a validated config.
func New(cfg *config.Config, src source.Source, sinks ...sink.Sink) *Engine {
	e := &Engine{
		cfg:   cfg.Engine,
		clean: cfg.Clean,
		src:   src,
		sinks: sinks,
		long:  window.NewRolling(cfg.Engine.WindowS),
	}
	if cfg.Clean.Enabled {
		e.filt = filter.New(filter.Config{
			MinRRMS:       cfg.Clean.MinRRMS,
			MaxRRMS:       cfg.Clean.MaxRRMS,
			RelThreshold:  cfg.Clean.Thresh,
			HampelWindow:  cfg.Clean.HampelWindow,
			HampelSigma:   cfg.Clean.HampelSigma,
			DisableHampel: cfg.Clean.DisableHampel,
		})
	}
	if cfg.Engine.WindowShortS > 0 {
		e.short = window.NewRolling(cfg.Engine.WindowShortS)
	}
	t := cfg.Tuning()
	e.tuning.Store(&t)
	e.smootherN = t.SmoothOutput
	e.smoother = hrv.NewSmoother(t.SmoothOutput)
	return e
}

// SwapTuning atomically replaces the hot-reloadable display settings.
func (e *Engine) SwapTuning(t config.Tuning) {
	e.tuning.Store(&t)
}

// Run processes events until the source closes or ctx is cancelled. Either
// way the loop simply stops; there is no pending state to flush.
func (e *Engine) Run(ctx context.Context) error {
	events, err := e.src.Events(ctx)
	if err != nil {
		return err
	}

	perBeat := e.cfg.EmitIntervalS <= 0
	var emitC <-chan time.Time
	if !perBeat {
		t := time.NewTicker(time.Duration(e.cfg.EmitIntervalS * float64(time.Second)))
		defer t.Stop()
		emitC = t.C
	}

	var statsC <-chan time.Time
	if e.filt != nil && e.cfg.StatsIntervalS > 0 {
		t := time.NewTicker(time.Duration(e.cfg.StatsIntervalS * float64(time.Second)))
		defer t.Stop()
		statsC = t.C
	}

	for {
		select {
		case it, ok := <-events:
			if !ok {
				slog.Info("input stream closed, shutting down")
				return nil
			}
			e.handle(ctx, it, perBeat)
		case <-emitC:
			e.emit(ctx, e.snapshot(float64(time.Now().UnixNano())/1e9))
		case <-statsC:
			dropped, interpolated := e.filt.Stats()
			slog.Info("rr clean stats", "dropped", dropped, "interpolated", interpolated)
		case <-ctx.Done():
			slog.Info("cancelled, shutting down")
			return nil
		}
	}
}

func (e *Engine) handle(ctx context.Context, it source.Item, perBeat bool) {
	if it.Comment != "" {
		for _, s := range e.sinks {
			if cw, ok := s.(sink.CommentWriter); ok {
				if err := cw.WriteComment(it.Comment); err != nil {
					slog.Warn("comment pass-through failed", "err", err)
				}
			}
		}
		return
	}

	start := time.Now()
	ev := it.Event
	if ev.HR != nil {
		e.lastHR = ev.HR
	}
	if ev.TS > e.latestTS {
		e.latestTS = ev.TS
	}

	if ev.RR == nil {
		// No interval this tick. The null propagates through the whole
		// record so the display can show HR immediately with HRV still
		// warming up.
		if perBeat {
			rec := &event.ScoreRecord{HR: e.lastHR, TS: ev.TS}
			if e.filt != nil {
				dropped, interpolated := e.filt.Stats()
				rec.Dropped = &dropped
				rec.Interpolated = &interpolated
			}
			e.emit(ctx, rec)
		}
		return
	}

	rr := *ev.RR
	if e.filt != nil {
		v, outcome := e.filt.Process(rr)
		switch outcome {
		case filter.Dropped:
			metrics.SamplesDropped.Inc()
			return
		case filter.Interpolated:
			metrics.SamplesInterpolated.Inc()
		}
		rr = v
	}

	s := event.RRSample{RR: rr, TS: e.latestTS}
	e.long.Push(s)
	if e.short != nil {
		e.short.Push(s)
	}
	e.total++
	metrics.WindowSamples.WithLabelValues("long").Set(float64(e.long.Count()))
	if e.short != nil {
		metrics.WindowSamples.WithLabelValues("short").Set(float64(e.short.Count()))
	}

	if perBeat {
		e.emit(ctx, e.snapshot(ev.TS))
	}
	metrics.ProcessDuration.Observe(float64(time.Since(start).Microseconds()))
}

// snapshot computes the current record from window state: long-window RMSSD
// for observability, blended and smoothed score for display.
func (e *Engine) snapshot(ts float64) *event.ScoreRecord {
	tun := e.tuning.Load()
	rec := &event.ScoreRecord{HR: e.lastHR, TS: ts}
	if e.filt != nil {
		dropped, interpolated := e.filt.Stats()
		rec.Dropped = &dropped
		rec.Interpolated = &interpolated
	}

	rmssd, rmssdOK := e.windowRMSSD(e.long, tun.SpikeFilterMS)
	if rmssdOK {
		rec.RMSSD = event.Float64Ptr(math.Round(rmssd*100) / 100)
	}

	longScore, longOK := 0, false
	if rmssdOK {
		longScore, longOK = hrv.Score(rmssd)
	}

	score, scoreOK := longScore, longOK
	if e.short != nil {
		shortScore, shortOK := 0, false
		if shortRMSSD, ok := e.windowRMSSD(e.short, tun.SpikeFilterMS); ok {
			shortScore, shortOK = hrv.Score(shortRMSSD)
		}
		score, scoreOK = hrv.Blend(shortScore, shortOK, longScore, longOK, tun.BlendRatio)
	}

	if scoreOK {
		score = e.smooth(score, tun.SmoothOutput)
		rec.Score = event.IntPtr(score)
		metrics.CurrentScore.Set(float64(score))
		if !e.firstDefined {
			slog.Info("first HRV score emitted", "score", score)
			e.firstDefined = true
		}
	}
	if rmssdOK {
		metrics.CurrentRMSSD.Set(rmssd)
	}
	return rec
}

// windowRMSSD estimates RMSSD over one window, applying the legacy spike cap
// after cleaning. Undefined until the window holds MinBeats samples and the
// stream has produced MinIntervals accepted samples overall.
func (e *Engine) windowRMSSD(w *window.Rolling, spikeCapMS float64) (float64, bool) {
	if w.Count() < e.cfg.MinBeats || e.total < e.cfg.MinIntervals {
		return 0, false
	}
	rr := hrv.CapSpikes(w.Contents(), spikeCapMS)
	return hrv.RMSSD(rr)
}

// smooth runs a defined score through the trailing average, rebuilding the
// ring if the configured length changed under hot reload. Undefined scores
// never reach here, so a data gap leaves the ring intact.
func (e *Engine) smooth(score, n int) int {
	if n != e.smootherN {
		e.smootherN = n
		e.smoother = hrv.NewSmoother(n)
	}
	return e.smoother.Push(score)
}

func (e *Engine) emit(ctx context.Context, rec *event.ScoreRecord) {
	for _, s := range e.sinks {
		if err := s.Write(ctx, rec); err != nil {
			slog.Warn("sink write failed", "err", err)
		}
	}
	metrics.RecordsEmitted.Inc()
}
