package telemetry

import (
	"log/slog"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Phase names for one rendered frame.
const (
	PhaseInput      = "input"
	PhaseBackground = "background"
	PhaseLayer      = "layer"
	PhaseUI         = "ui"
	PhasePresent    = "present"
)

// Phases lists the frame phases in execution order.
var Phases = []string{PhaseInput, PhaseBackground, PhaseLayer, PhaseUI, PhasePresent}

const numPhases = 5

func phaseIndex(name string) int {
	for i, p := range Phases {
		if p == name {
			return i
		}
	}
	return -1
}

// frameSample is the time spent inside one frame, split by phase.
type frameSample struct {
	total  time.Duration
	phases [numPhases]time.Duration
	seen   [numPhases]bool
}

// PerfCollector keeps the last N frame samples in a ring.
type PerfCollector struct {
	ring        []frameSample
	next        int
	sampleCount int

	cur        frameSample
	frameStart time.Time
	phaseStart time.Time
	phase      int // -1 outside a phase

	// Wall-clock spacing of StartFrame calls, vsync waits included.
	prevStart     time.Time
	frameInterval time.Duration
}

// NewPerfCollector returns a collector averaging over window frames
// (60 when window < 1).
func NewPerfCollector(window int) *PerfCollector {
	if window < 1 {
		window = 60
	}
	return &PerfCollector{ring: make([]frameSample, window), phase: -1}
}

// StartFrame resets the per-frame accumulators.
func (p *PerfCollector) StartFrame() {
	now := time.Now()
	if !p.prevStart.IsZero() {
		p.frameInterval = now.Sub(p.prevStart)
	}
	p.prevStart = now
	p.frameStart = now
	p.cur = frameSample{}
	p.phase = -1
}

func (p *PerfCollector) closePhase(now time.Time) {
	if p.phase < 0 {
		return
	}
	p.cur.phases[p.phase] += now.Sub(p.phaseStart)
	p.cur.seen[p.phase] = true
}

// StartPhase ends the running phase and starts timing name. Unknown names
// are timed as part of the frame only.
func (p *PerfCollector) StartPhase(name string) {
	now := time.Now()
	p.closePhase(now)
	p.phase = phaseIndex(name)
	p.phaseStart = now
}

// EndFrame closes the running phase and stores the frame.
func (p *PerfCollector) EndFrame() {
	now := time.Now()
	p.closePhase(now)
	p.phase = -1
	p.cur.total = now.Sub(p.frameStart)

	p.ring[p.next] = p.cur
	p.next = (p.next + 1) % len(p.ring)
	p.sampleCount = min(p.sampleCount+1, len(p.ring))
}

// PerfStats summarises the collector window.
type PerfStats struct {
	// Time inside the frame, excluding waits between frames.
	AvgFrameDuration time.Duration
	MinFrameDuration time.Duration
	MaxFrameDuration time.Duration
	P95FrameDuration time.Duration

	PhaseAvg map[string]time.Duration
	PhasePct map[string]float64 // share of AvgFrameDuration

	FrameInterval time.Duration
	FPS           float64
}

// Stats aggregates the samples currently in the window.
func (p *PerfCollector) Stats() PerfStats {
	s := PerfStats{
		PhaseAvg:      make(map[string]time.Duration, numPhases),
		PhasePct:      make(map[string]float64, numPhases),
		FrameInterval: p.frameInterval,
	}
	if p.frameInterval > 0 {
		s.FPS = float64(time.Second) / float64(p.frameInterval)
	}
	n := p.sampleCount
	if n == 0 {
		return s
	}

	totals := make([]float64, n)
	var sums [numPhases]time.Duration
	var seen [numPhases]bool
	for i, f := range p.ring[:n] {
		totals[i] = float64(f.total)
		for j := range numPhases {
			sums[j] += f.phases[j]
			seen[j] = seen[j] || f.seen[j]
		}
	}

	mean := stat.Mean(totals, nil)
	lo, hi := minMax(totals)
	s.AvgFrameDuration = time.Duration(mean)
	s.MinFrameDuration = time.Duration(lo)
	s.MaxFrameDuration = time.Duration(hi)
	s.P95FrameDuration = time.Duration(Percentile(sortedCopy(totals), 0.95))

	for j, name := range Phases {
		if !seen[j] {
			continue
		}
		avg := sums[j] / time.Duration(n)
		s.PhaseAvg[name] = avg
		if mean > 0 {
			s.PhasePct[name] = float64(avg) / mean * 100
		}
	}
	return s
}

// LogStats writes a one-line "perf" record with the phases above 0.1%.
func (s PerfStats) LogStats() {
	args := []any{
		"avg_frame_us", s.AvgFrameDuration.Microseconds(),
		"p95_frame_us", s.P95FrameDuration.Microseconds(),
		"max_frame_us", s.MaxFrameDuration.Microseconds(),
	}
	if s.FPS > 0 {
		args = append(args, "fps", int(s.FPS))
	}
	for _, name := range Phases {
		if pct := s.PhasePct[name]; pct > 0.1 {
			args = append(args, name+"_pct", float64(int(pct*10))/10)
		}
	}
	slog.Info("perf", args...)
}

// LogValue implements slog.LogValuer.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int64("avg_frame_us", s.AvgFrameDuration.Microseconds()),
		slog.Int64("min_frame_us", s.MinFrameDuration.Microseconds()),
		slog.Int64("max_frame_us", s.MaxFrameDuration.Microseconds()),
		slog.Int64("p95_frame_us", s.P95FrameDuration.Microseconds()),
	}
	if s.FPS > 0 {
		attrs = append(attrs, slog.Float64("fps", s.FPS))
	}
	for _, name := range Phases {
		if pct, ok := s.PhasePct[name]; ok {
			attrs = append(attrs, slog.Float64(name+"_pct", pct))
		}
	}
	return slog.GroupValue(attrs...)
}

// PerfStatsCSV is one row of perf.csv.
type PerfStatsCSV struct {
	WindowEnd     float64 `csv:"window_end_sec"`
	AvgFrameUS    int64   `csv:"avg_frame_us"`
	MinFrameUS    int64   `csv:"min_frame_us"`
	MaxFrameUS    int64   `csv:"max_frame_us"`
	P95FrameUS    int64   `csv:"p95_frame_us"`
	FPS           float64 `csv:"fps"`
	InputPct      float64 `csv:"input_pct"`
	BackgroundPct float64 `csv:"background_pct"`
	LayerPct      float64 `csv:"layer_pct"`
	UIPct         float64 `csv:"ui_pct"`
	PresentPct    float64 `csv:"present_pct"`
}

// ToCSV flattens s for a window ending at windowEnd.
func (s PerfStats) ToCSV(windowEnd time.Duration) PerfStatsCSV {
	return PerfStatsCSV{
		WindowEnd:     windowEnd.Seconds(),
		AvgFrameUS:    s.AvgFrameDuration.Microseconds(),
		MinFrameUS:    s.MinFrameDuration.Microseconds(),
		MaxFrameUS:    s.MaxFrameDuration.Microseconds(),
		P95FrameUS:    s.P95FrameDuration.Microseconds(),
		FPS:           s.FPS,
		InputPct:      s.PhasePct[PhaseInput],
		BackgroundPct: s.PhasePct[PhaseBackground],
		LayerPct:      s.PhasePct[PhaseLayer],
		UIPct:         s.PhasePct[PhaseUI],
		PresentPct:    s.PhasePct[PhasePresent],
	}
}
