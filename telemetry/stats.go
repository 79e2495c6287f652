package telemetry

import (
	"log/slog"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/streamflow/streamline"
)

// WindowStats summarises the visualiser's adaptive sub-stepping over a window.
type WindowStats struct {
	WindowEnd float64 `csv:"window_end_sec"`
	Frames    int     `csv:"frames"`

	// Sub-steps per advancing frame
	SubstepsMean float64 `csv:"substeps_mean"`
	SubstepsP50  float64 `csv:"substeps_p50"`
	SubstepsP95  float64 `csv:"substeps_p95"`
	SubstepsMax  float64 `csv:"substeps_max"`
	CappedFrames int     `csv:"capped_frames"` // frames that hit MaxSubsteps

	// Fraction of sub-steps whose fade was dithered, and of those that faded
	DitheredFrac float64 `csv:"dithered_frac"`
	FadedFrac    float64 `csv:"faded_frac"`

	DtMin float64 `csv:"dt_min"`
}

// FrameWindow accumulates streamline.FrameStats between flushes.
type FrameWindow struct {
	substeps []float64
	dithered int
	faded    int
	capped   int
	dtMin    float64
}

// Add records one frame. Frames that did not advance are ignored.
func (w *FrameWindow) Add(s streamline.FrameStats) {
	if s.Substeps == 0 {
		return
	}
	w.substeps = append(w.substeps, float64(s.Substeps))
	w.dithered += s.DitheredFade
	w.faded += s.AppliedFade
	if s.Substeps >= streamline.MaxSubsteps {
		w.capped++
	}
	w.dtMin = s.DtMin
}

// Len returns the number of recorded frames.
func (w *FrameWindow) Len() int { return len(w.substeps) }

// Flush computes the window statistics and resets the window.
func (w *FrameWindow) Flush(windowEnd time.Duration) WindowStats {
	ws := WindowStats{
		WindowEnd:    windowEnd.Seconds(),
		Frames:       len(w.substeps),
		CappedFrames: w.capped,
		DtMin:        w.dtMin,
	}
	if len(w.substeps) > 0 {
		sorted := sortedCopy(w.substeps)
		total := floats.Sum(sorted)
		ws.SubstepsMean = stat.Mean(sorted, nil)
		ws.SubstepsP50 = Percentile(sorted, 0.5)
		ws.SubstepsP95 = Percentile(sorted, 0.95)
		ws.SubstepsMax = sorted[len(sorted)-1]
		ws.DitheredFrac = float64(w.dithered) / total
		ws.FadedFrac = float64(w.faded) / total
	}
	*w = FrameWindow{substeps: w.substeps[:0]}
	return ws
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("frames", s.Frames),
		slog.Float64("substeps_mean", s.SubstepsMean),
		slog.Float64("substeps_p95", s.SubstepsP95),
		slog.Int("capped_frames", s.CappedFrames),
		slog.Float64("dithered_frac", s.DitheredFrac),
		slog.Float64("dt_min", s.DtMin),
	)
}

// Percentile returns the p-th empirical quantile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}
	return stat.Quantile(p, stat.Empirical, sorted, nil)
}

func sortedCopy(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	sort.Float64s(out)
	return out
}

func minMax(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	return floats.Min(values), floats.Max(values)
}
