package engine

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rtheil/hrvstream/internal/config"
	"github.com/rtheil/hrvstream/internal/event"
	"github.com/rtheil/hrvstream/internal/source"
)

// sliceSource replays a fixed list of items and closes, like a finished
// upstream pipeline stage.
type sliceSource struct {
	items []source.Item
}

func (s *sliceSource) Events(ctx context.Context) (<-chan source.Item, error) {
	ch := make(chan source.Item)
	go func() {
		defer close(ch)
		for _, it := range s.items {
			select {
			case ch <- it:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// captureSink records everything the engine emits.
type captureSink struct {
	recs     []*event.ScoreRecord
	comments []string
}

func (c *captureSink) Write(_ context.Context, rec *event.ScoreRecord) error {
	c.recs = append(c.recs, rec)
	return nil
}

func (c *captureSink) WriteComment(line string) error {
	c.comments = append(c.comments, line)
	return nil
}

func beat(rr float64, hr int, ts float64) source.Item {
	return source.Item{Event: &event.HeartbeatEvent{HR: &hr, RR: &rr, TS: ts}}
}

func nullBeat(hr int, ts float64) source.Item {
	return source.Item{Event: &event.HeartbeatEvent{HR: &hr, TS: ts}}
}

func run(t *testing.T, cfg *config.Config, items []source.Item) *captureSink {
	t.Helper()
	if err := config.Validate(cfg); err != nil {
		t.Fatalf("config invalid: %v", err)
	}
	out := &captureSink{}
	e := New(cfg, &sliceSource{items: items}, out)
	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return out
}

// 40 identical intervals: warm-up nulls for 29 emissions, then RMSSD 0 with
// an undefined score (ln(0) has no value), never a clamped boundary.
func TestConstantSequenceWarmupAndZeroRMSSD(t *testing.T) {
	cfg := config.Default()
	var items []source.Item
	for i := 0; i < 40; i++ {
		items = append(items, beat(800, 75, float64(i)))
	}
	out := run(t, cfg, items)

	if len(out.recs) != 40 {
		t.Fatalf("emissions = %d, want one per beat (40)", len(out.recs))
	}
	for i, rec := range out.recs[:29] {
		if rec.RMSSD != nil || rec.Score != nil {
			t.Fatalf("emission %d = (%v, %v), want nulls during warm-up", i, rec.RMSSD, rec.Score)
		}
		if rec.HR == nil || *rec.HR != 75 {
			t.Fatalf("emission %d should carry HR during warm-up", i)
		}
	}
	for i, rec := range out.recs[29:] {
		if rec.RMSSD == nil || *rec.RMSSD != 0.0 {
			t.Fatalf("emission %d RMSSD = %v, want 0.0", i+29, rec.RMSSD)
		}
		if rec.Score != nil {
			t.Fatalf("emission %d score = %d, want null for zero RMSSD", i+29, *rec.Score)
		}
	}
}

// Alternating 800/850 has RMSSD exactly 50 ms; the score settles and stays
// put under further identical input.
func TestSteadyAlternatingReachesStableScore(t *testing.T) {
	cfg := config.Default()
	var items []source.Item
	for i := 0; i < 50; i++ {
		rr := 800.0
		if i%2 == 1 {
			rr = 850.0
		}
		items = append(items, beat(rr, 72, float64(i)))
	}
	out := run(t, cfg, items)

	last := out.recs[len(out.recs)-1]
	if last.RMSSD == nil || math.Abs(*last.RMSSD-50.0) > 0.01 {
		t.Fatalf("final RMSSD = %v, want 50.0", last.RMSSD)
	}
	if last.Score == nil {
		t.Fatal("final score undefined, want stable nonzero integer")
	}
	for _, rec := range out.recs[35:] {
		if rec.Score == nil || *rec.Score != *last.Score {
			t.Fatalf("score not idempotent at steady state: %v vs %d", rec.Score, *last.Score)
		}
	}
}

// A null RR still produces an emission with null metric fields, so the
// display can tell "no data yet" from silence.
func TestNullRRPropagatesThroughRecord(t *testing.T) {
	cfg := config.Default()
	items := []source.Item{
		beat(800, 70, 0),
		nullBeat(71, 1),
		beat(810, 72, 2),
	}
	out := run(t, cfg, items)

	if len(out.recs) != 3 {
		t.Fatalf("emissions = %d, want 3", len(out.recs))
	}
	rec := out.recs[1]
	if rec.RMSSD != nil || rec.Score != nil {
		t.Fatalf("null-RR record = (%v, %v), want nulls", rec.RMSSD, rec.Score)
	}
	if rec.HR == nil || *rec.HR != 71 {
		t.Fatalf("null-RR record HR = %v, want 71", rec.HR)
	}
}

// With cleaning on, a 5000 ms artifact is range-gated: no emission for that
// beat, and the cumulative counters ride along on later records.
func TestCleaningDropsExtremeAndCarriesCounters(t *testing.T) {
	cfg := config.Default()
	cfg.Clean.Enabled = true
	var items []source.Item
	for i := 0; i < 20; i++ {
		items = append(items, beat(800, 70, float64(i)))
	}
	items = append(items, beat(5000, 70, 20))
	items = append(items, beat(805, 70, 21))
	out := run(t, cfg, items)

	// 22 beats, one dropped without emission.
	if len(out.recs) != 21 {
		t.Fatalf("emissions = %d, want 21", len(out.recs))
	}
	last := out.recs[len(out.recs)-1]
	if last.Dropped == nil || *last.Dropped != 1 {
		t.Fatalf("rr_dropped = %v, want 1", last.Dropped)
	}
	if last.Interpolated == nil || *last.Interpolated != 0 {
		t.Fatalf("rr_interpolated = %v, want 0", last.Interpolated)
	}
}

// With cleaning off and no spike cap, the same artifact passes straight
// through and lands in the window.
func TestCleaningOffPassesExtremeThrough(t *testing.T) {
	cfg := config.Default()
	var items []source.Item
	for i := 0; i < 35; i++ {
		items = append(items, beat(800, 70, float64(i)))
	}
	items = append(items, beat(5000, 70, 35))
	out := run(t, cfg, items)

	last := out.recs[len(out.recs)-1]
	if last.Dropped != nil {
		t.Fatal("counters should be absent with cleaning off")
	}
	// One 4200 ms jump in 36 beats: RMSSD far above the clean baseline of 0.
	if last.RMSSD == nil || *last.RMSSD < 500 {
		t.Fatalf("RMSSD = %v, want the artifact reflected (> 500)", last.RMSSD)
	}
}

// The legacy spike cap bounds the artifact's influence instead of dropping it.
func TestSpikeCapLimitsArtifact(t *testing.T) {
	cfg := config.Default()
	cfg.Engine.SpikeFilterMS = 200
	var items []source.Item
	for i := 0; i < 35; i++ {
		items = append(items, beat(800, 70, float64(i)))
	}
	items = append(items, beat(5000, 70, 35))
	out := run(t, cfg, items)

	last := out.recs[len(out.recs)-1]
	if last.RMSSD == nil {
		t.Fatal("RMSSD undefined")
	}
	// Capped delta is at most 200 ms, so RMSSD stays modest.
	if *last.RMSSD > 200 {
		t.Fatalf("RMSSD = %v, want capped below 200", *last.RMSSD)
	}
}

// Dual-window mode: a calm short window pulls the display below the long
// window's mixed history when the blend favors recent state.
func TestDualWindowBlendTracksRecent(t *testing.T) {
	mkItems := func() []source.Item {
		var items []source.Item
		ts := 0.0
		for i := 0; i < 40; i++ { // high variability: ±50 alternation
			rr := 800.0
			if i%2 == 1 {
				rr = 900.0
			}
			items = append(items, beat(rr, 70, ts))
			ts++
		}
		for i := 0; i < 30; i++ { // calm tail: ±4 alternation
			rr := 800.0
			if i%2 == 1 {
				rr = 804.0
			}
			items = append(items, beat(rr, 70, ts))
			ts++
		}
		return items
	}

	plain := config.Default()
	outPlain := run(t, plain, mkItems())

	blended := config.Default()
	blended.Engine.WindowShortS = 20
	blended.Engine.BlendRatio = 0.6
	outBlended := run(t, blended, mkItems())

	lastPlain := outPlain.recs[len(outPlain.recs)-1]
	lastBlended := outBlended.recs[len(outBlended.recs)-1]
	if lastPlain.Score == nil || lastBlended.Score == nil {
		t.Fatal("scores undefined at end of feed")
	}
	if *lastBlended.Score >= *lastPlain.Score {
		t.Fatalf("blended score %d should sit below long-only score %d when recent data is calm",
			*lastBlended.Score, *lastPlain.Score)
	}
}

// Before the short window has MinBeats samples the blend falls back to the
// long window alone rather than going undefined.
func TestBlendFallsBackToLongWindow(t *testing.T) {
	cfg := config.Default()
	cfg.Engine.WindowShortS = 5 // 1 Hz feed: short window holds ~6 beats < MinBeats
	cfg.Engine.BlendRatio = 0.6
	var items []source.Item
	for i := 0; i < 40; i++ {
		rr := 800.0
		if i%2 == 1 {
			rr = 850.0
		}
		items = append(items, beat(rr, 70, float64(i)))
	}
	out := run(t, cfg, items)

	last := out.recs[len(out.recs)-1]
	if last.Score == nil {
		t.Fatal("score undefined; blend should fall back to the defined long window")
	}
}

// A transient data gap passes nulls through without flushing the smoothing
// ring: the score picks up where it left off.
func TestSmoothingSurvivesDataGap(t *testing.T) {
	cfg := config.Default()
	cfg.Engine.SmoothOutput = 4
	var items []source.Item
	i := 0
	for ; i < 44; i++ {
		rr := 800.0
		if i%2 == 1 {
			rr = 850.0
		}
		items = append(items, beat(rr, 70, float64(i)))
	}
	items = append(items, nullBeat(70, float64(i)))
	i++
	rr := 800.0
	if i%2 == 1 {
		rr = 850.0
	}
	items = append(items, beat(rr, 70, float64(i)))
	out := run(t, cfg, items)

	n := len(out.recs)
	gap := out.recs[n-2]
	if gap.Score != nil {
		t.Fatalf("gap record score = %v, want null", gap.Score)
	}
	before, after := out.recs[n-3], out.recs[n-1]
	if before.Score == nil || after.Score == nil {
		t.Fatal("scores around the gap undefined")
	}
	if *after.Score != *before.Score {
		t.Fatalf("score after gap = %d, want %d (ring preserved)", *after.Score, *before.Score)
	}
}

// "#"-prefixed status lines from the source reach comment-capable sinks
// verbatim and do not count as emissions.
func TestCommentPassThrough(t *testing.T) {
	cfg := config.Default()
	items := []source.Item{
		{Comment: "# connected 12:00:00"},
		beat(800, 70, 0),
	}
	out := run(t, cfg, items)

	if len(out.comments) != 1 || out.comments[0] != "# connected 12:00:00" {
		t.Fatalf("comments = %v, want the status line verbatim", out.comments)
	}
	if len(out.recs) != 1 {
		t.Fatalf("emissions = %d, want 1", len(out.recs))
	}
}

// timedSource replays items and then keeps the stream open for hold, so
// wall-clock ticks can fire before end of input.
type timedSource struct {
	items []source.Item
	hold  time.Duration
}

func (s *timedSource) Events(ctx context.Context) (<-chan source.Item, error) {
	ch := make(chan source.Item)
	go func() {
		defer close(ch)
		for _, it := range s.items {
			select {
			case ch <- it:
			case <-ctx.Done():
				return
			}
		}
		select {
		case <-time.After(s.hold):
		case <-ctx.Done():
		}
	}()
	return ch, nil
}

// Fixed-cadence mode: records arrive on the wall-clock ticker rather than per
// beat, stamped with emission time.
func TestTickerModeEmitsOnCadence(t *testing.T) {
	cfg := config.Default()
	cfg.Engine.EmitIntervalS = 0.05
	var items []source.Item
	for i := 0; i < 40; i++ {
		rr := 800.0
		if i%2 == 1 {
			rr = 850.0
		}
		items = append(items, beat(rr, 72, float64(i)))
	}

	out := &captureSink{}
	e := New(cfg, &timedSource{items: items, hold: 300 * time.Millisecond}, out)
	start := float64(time.Now().UnixNano()) / 1e9
	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(out.recs) < 2 {
		t.Fatalf("emissions = %d, want ticks during the hold window", len(out.recs))
	}
	if len(out.recs) >= len(items) {
		t.Fatalf("emissions = %d, want far fewer than the %d beats", len(out.recs), len(items))
	}
	last := out.recs[len(out.recs)-1]
	if last.RMSSD == nil || math.Abs(*last.RMSSD-50.0) > 0.01 {
		t.Fatalf("final RMSSD = %v, want 50.0", last.RMSSD)
	}
	if last.Score == nil {
		t.Fatal("final score undefined")
	}
	if last.TS < start {
		t.Fatalf("record ts = %v, want wall-clock emission time >= %v", last.TS, start)
	}
}

// Fixed-cadence mode with only null-RR beats: the ticker still reports, HR
// rides along, every metric field stays null.
func TestTickerModeNullFields(t *testing.T) {
	cfg := config.Default()
	cfg.Engine.EmitIntervalS = 0.05
	items := []source.Item{nullBeat(68, 0), nullBeat(68, 1)}

	out := &captureSink{}
	e := New(cfg, &timedSource{items: items, hold: 200 * time.Millisecond}, out)
	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(out.recs) == 0 {
		t.Fatal("no ticker emissions")
	}
	for i, rec := range out.recs {
		if rec.RMSSD != nil || rec.Score != nil {
			t.Fatalf("emission %d = (%v, %v), want nulls", i, rec.RMSSD, rec.Score)
		}
		if rec.HR == nil || *rec.HR != 68 {
			t.Fatalf("emission %d HR = %v, want 68", i, rec.HR)
		}
	}
}

// Cancellation stops the loop cleanly with nothing to flush.
func TestRunStopsOnCancel(t *testing.T) {
	cfg := config.Default()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := New(cfg, &sliceSource{items: []source.Item{beat(800, 70, 0)}}, &captureSink{})
	if err := e.Run(ctx); err != nil {
		t.Fatalf("Run after cancel: %v", err)
	}
}

// Hot-reloaded tuning takes effect mid-stream.
func TestSwapTuningChangesBlend(t *testing.T) {
	cfg := config.Default()
	cfg.Engine.WindowShortS = 20
	cfg.Engine.BlendRatio = 0.0 // start long-only

	out := &captureSink{}
	var items []source.Item
	for i := 0; i < 70; i++ {
		rr := 800.0
		if i%2 == 1 {
			rr = 900.0
		}
		items = append(items, beat(rr, 70, float64(i)))
	}
	e := New(cfg, &sliceSource{items: items}, out)
	e.SwapTuning(config.Tuning{BlendRatio: 1.0})
	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	last := out.recs[len(out.recs)-1]
	if last.Score == nil {
		t.Fatal("score undefined")
	}
}
