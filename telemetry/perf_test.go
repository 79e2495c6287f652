package telemetry

import (
	"testing"
	"time"
)

func TestPerfCollector_BasicTiming(t *testing.T) {
	pc := NewPerfCollector(10)

	for i := 0; i < 5; i++ {
		pc.StartFrame()
		pc.StartPhase(PhaseBackground)
		time.Sleep(100 * time.Microsecond)
		pc.StartPhase(PhaseLayer)
		time.Sleep(200 * time.Microsecond)
		pc.EndFrame()
	}

	stats := pc.Stats()

	if stats.AvgFrameDuration <= 0 {
		t.Error("expected positive average frame duration")
	}
	if stats.P95FrameDuration < stats.MinFrameDuration || stats.P95FrameDuration > stats.MaxFrameDuration {
		t.Errorf("expected p95 within [min, max], got %v", stats.P95FrameDuration)
	}
	if _, ok := stats.PhaseAvg[PhaseBackground]; !ok {
		t.Error("expected background phase to be tracked")
	}
	if _, ok := stats.PhaseAvg[PhaseLayer]; !ok {
		t.Error("expected layer phase to be tracked")
	}
}

func TestPerfCollector_RollingWindow(t *testing.T) {
	pc := NewPerfCollector(5)

	for i := 0; i < 10; i++ {
		pc.StartFrame()
		pc.StartPhase(PhaseLayer)
		time.Sleep(10 * time.Microsecond)
		pc.EndFrame()
	}

	if pc.sampleCount != 5 {
		t.Errorf("expected window of 5 samples, got %d", pc.sampleCount)
	}
	if pc.Stats().AvgFrameDuration <= 0 {
		t.Error("expected positive average frame duration after window filled")
	}
}

func TestPerfCollector_PhasePercentages(t *testing.T) {
	pc := NewPerfCollector(10)

	for i := 0; i < 5; i++ {
		pc.StartFrame()
		pc.StartPhase(PhaseUI)
		time.Sleep(10 * time.Microsecond)
		pc.StartPhase(PhaseLayer)
		time.Sleep(1 * time.Millisecond)
		pc.EndFrame()
	}

	stats := pc.Stats()
	if stats.PhasePct[PhaseLayer] <= stats.PhasePct[PhaseUI] {
		t.Errorf("expected layer phase (%v%%) > ui phase (%v%%)", stats.PhasePct[PhaseLayer], stats.PhasePct[PhaseUI])
	}

	rec := stats.ToCSV(3 * time.Second)
	if rec.WindowEnd != 3 || rec.LayerPct != stats.PhasePct[PhaseLayer] {
		t.Errorf("unexpected csv record %+v", rec)
	}
}

func TestPerfCollector_EmptyStats(t *testing.T) {
	stats := NewPerfCollector(10).Stats()

	if stats.AvgFrameDuration != 0 {
		t.Error("expected zero avg frame duration for empty collector")
	}
	if stats.PhaseAvg == nil || stats.PhasePct == nil {
		t.Error("expected non-nil phase maps")
	}
}

func TestPerfCollector_FrameInterval(t *testing.T) {
	pc := NewPerfCollector(10)

	pc.StartFrame()
	pc.EndFrame()
	time.Sleep(16 * time.Millisecond)
	pc.StartFrame()
	pc.EndFrame()

	stats := pc.Stats()
	if stats.FrameInterval < 15*time.Millisecond {
		t.Errorf("expected frame interval >= 15ms, got %v", stats.FrameInterval)
	}
	if stats.FPS <= 0 || stats.FPS > 70 {
		t.Errorf("expected FPS in (0, 70] with 16ms frames, got %v", stats.FPS)
	}
}
