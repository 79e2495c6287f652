package software

import (
	"image/color"
	"math"
	"math/rand"
	"testing"

	"github.com/pthm-cable/streamflow/colormap"
	"github.com/pthm-cable/streamflow/streamline"
	"github.com/pthm-cable/streamflow/velocity"
)

func swirl(x, y float64) (float64, float64) {
	return 2 * math.Sin(2*math.Pi*y), math.Cos(2 * math.Pi * x)
}

func snapshot(p *Propagator) []float64 {
	return append([]float64(nil), p.Positions().([]float64)...)
}

func TestSubstepDisplacementBound(t *testing.T) {
	params := velocity.Params{UOffset: -2, UScale: 4.0 / 255, VOffset: -1, VScale: 2.0 / 255}
	img, err := velocity.Generate(32, 32, params, swirl)
	if err != nil {
		t.Fatal(err)
	}

	const w, h = 320, 200
	const maxDisp = 1.0
	const sf = 0.5
	maxU, maxV := img.MaxVelocity()
	dtMin := streamline.DtMin(maxDisp, w, h, maxU, maxV, sf)
	n, step := streamline.Substeps(0.1, dtMin)
	if n < 2 {
		t.Fatalf("expected several sub-steps, got %d", n)
	}

	p := NewPropagator(rand.New(rand.NewSource(1)), 500, w, h)
	p.SetSpeedFactor(sf)
	p.SetVelocityImage(img)
	p.Initialise()

	for k := 0; k < n; k++ {
		before := snapshot(p)
		p.Update(step)
		after := snapshot(p)
		for i := 0; i < len(before); i += 2 {
			px, py := streamline.DisplacementPixels(
				streamline.ClipDelta(before[i], after[i]),
				streamline.ClipDelta(before[i+1], after[i+1]), w, h)
			if math.Abs(px) > maxDisp+1e-9 || math.Abs(py) > maxDisp+1e-9 {
				t.Fatalf("particle %d moved (%v, %v) px in one sub-step", i/2, px, py)
			}
		}
	}
}

func TestZeroEliminationIsPureAdvection(t *testing.T) {
	img := velocity.Uniform(4, 4, 255, 0, velocity.Params{UScale: 1.0 / 255})
	p := NewPropagator(rand.New(rand.NewSource(2)), 100, 100, 100)
	p.SetVelocityImage(img)
	p.Initialise()

	before := snapshot(p)
	p.Update(0.01)
	after := snapshot(p)

	if r := p.LastRespawn(); r.Count != 0 {
		t.Fatalf("expected no respawns, got %d", r.Count)
	}
	for i := 0; i < len(before); i += 2 {
		wantX := streamline.WrapClip(before[i] + 0.01)
		if math.Abs(after[i]-wantX) > 1e-12 {
			t.Errorf("particle %d: expected x %v, got %v", i/2, wantX, after[i])
		}
		if after[i+1] != before[i+1] {
			t.Errorf("particle %d: expected y unchanged, got %v -> %v", i/2, before[i+1], after[i+1])
		}
	}
}

func TestRespawnRange(t *testing.T) {
	img := velocity.Uniform(4, 4, 0, 0, velocity.Params{})
	p := NewPropagator(rand.New(rand.NewSource(3)), 100, 100, 100)
	p.SetVelocityImage(img)
	p.SetNumEliminatePerSecond(100)
	p.Initialise()

	before := snapshot(p)
	p.Update(0.1)
	after := snapshot(p)

	r := p.LastRespawn()
	if r.Count != 10 {
		t.Fatalf("expected 10 respawns, got %d", r.Count)
	}
	for i := 0; i < 100; i++ {
		if r.Contains(i) {
			continue
		}
		if after[i*2] != before[i*2] || after[i*2+1] != before[i*2+1] {
			t.Errorf("particle %d moved in a zero field", i)
		}
	}
}

func TestUpdateBeforeInitialisePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	p := NewPropagator(rand.New(rand.NewSource(1)), 10, 10, 10)
	p.SetVelocityImage(velocity.Uniform(1, 1, 0, 0, velocity.Params{}))
	p.Update(0.1)
}

func TestSquareAllocation(t *testing.T) {
	p := NewPropagator(rand.New(rand.NewSource(1)), 101, 10, 10)
	p.Initialise()
	if got := len(p.buffers.Write()); got != 121*2 {
		t.Errorf("expected 121 allocated particles, got %d", got/2)
	}
	if got := len(p.Positions().([]float64)); got != 101*2 {
		t.Errorf("expected 101 live particles, got %d", got/2)
	}

	p.SetNumParticles(10000)
	if got := len(p.buffers.Write()); got != 10000*2 {
		t.Errorf("expected 10000 allocated particles, got %d", got/2)
	}
}

func TestFadeAlpha(t *testing.T) {
	tests := []struct {
		a    uint8
		fade float64
		want uint8
	}{
		{255, 0, 255},
		{255, 1.0 / 255, 254},
		{100, 1.0 / 255, 99},
		{1, 1.0 / 255, 0},
		{200, 1, 0},
		{200, 0.5, 100},
	}
	for _, tt := range tests {
		if got := fadeAlpha(tt.a, 1-tt.fade); got != tt.want {
			t.Errorf("fadeAlpha(%d, fade %v) = %d, want %d", tt.a, tt.fade, got, tt.want)
		}
	}
}

func TestParticleRender(t *testing.T) {
	r := NewParticleRenderer(1, 10, 10)
	r.SetParticleSize(3)
	r.SetParticleColor(color.NRGBA{R: 255, G: 255, B: 255, A: 255})

	trail := NewTrail(10, 10)
	r.Render([]float64{0, 0}, trail)

	c := trail.NRGBAAt(4, 4)
	if c.A < 200 || c.R != 255 {
		t.Errorf("expected bright sprite centre, got %v", c)
	}
	if c := trail.NRGBAAt(0, 0); c.A != 0 {
		t.Errorf("expected untouched corner, got %v", c)
	}

	// Saturating additive blend.
	r.Render([]float64{0, 0}, trail)
	if c := trail.NRGBAAt(4, 4); c.A != 255 {
		t.Errorf("expected saturated alpha, got %d", c.A)
	}
}

func TestFinalComposite(t *testing.T) {
	cm, err := colormap.New([]float64{0, 4}, []color.NRGBA{{A: 255}, {R: 255, A: 255}})
	if err != nil {
		t.Fatal(err)
	}
	img := velocity.Uniform(4, 4, 255, 0, velocity.Params{UScale: 1.0 / 255})

	b := NewBackend(rand.New(rand.NewSource(1)))
	f := b.NewFinalRenderer(cm, 8, 8)
	f.SetVelocityImage(img)
	f.SetStyle(streamline.LightParticlesOnMagnitude)

	trail := NewTrail(8, 8)
	f.Render(trail, streamline.IdentityScaling)

	want := cm.At(img.Magnitude(0.5, 0.5))
	if got := b.Frame().NRGBAAt(3, 3); got != want {
		t.Errorf("expected magnitude colour %v, got %v", want, got)
	}

	trail.SetNRGBA(3, 3, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	f.Render(trail, streamline.IdentityScaling)
	if got := b.Frame().NRGBAAt(3, 3); got != (color.NRGBA{R: 255, G: 255, B: 255, A: 255}) {
		t.Errorf("expected opaque trail on top, got %v", got)
	}

	f.SetStyle(streamline.MagnitudeColoredParticles)
	f.Render(trail, streamline.IdentityScaling)
	if got := b.Frame().NRGBAAt(3, 3); got != (color.NRGBA{R: want.R, G: want.G, B: want.B, A: 255}) {
		t.Errorf("expected magnitude-coloured particle, got %v", got)
	}
	if got := b.Frame().NRGBAAt(0, 0); got.A != 0 {
		t.Errorf("expected transparent background, got %v", got)
	}

	// Zoomed out: the frame corners lie outside the fetched raster.
	f.SetStyle(streamline.LightParticlesOnMagnitude)
	f.Render(trail, streamline.Scaling{ScaleX: 3, ScaleY: 3})
	if got := b.Frame().NRGBAAt(0, 0); got.A != 0 {
		t.Errorf("expected transparent outside raster, got %v", got)
	}
}

func TestLightAndDarkStylesDiffer(t *testing.T) {
	cm, err := colormap.New([]float64{0, 4}, []color.NRGBA{{A: 255}, {R: 255, A: 255}})
	if err != nil {
		t.Fatal(err)
	}
	img := velocity.Uniform(4, 4, 255, 0, velocity.Params{UScale: 1.0 / 255})
	b := NewBackend(rand.New(rand.NewSource(1)))
	f := b.NewFinalRenderer(cm, 8, 8)
	f.SetVelocityImage(img)

	trail := NewTrail(8, 8)
	trail.SetNRGBA(3, 3, color.NRGBA{R: 200, G: 120, B: 40, A: 160})

	render := func(s streamline.Style) color.NRGBA {
		f.SetStyle(s)
		f.Render(trail, streamline.IdentityScaling)
		return b.Frame().NRGBAAt(3, 3)
	}
	light := render(streamline.LightParticlesOnMagnitude)
	dark := render(streamline.DarkParticlesOnMagnitude)
	if light == dark {
		t.Fatalf("expected light and dark composites to differ, both %v", light)
	}
	if !(light.G > dark.G && light.B > dark.B) {
		t.Errorf("expected light composite brighter than dark, got light=%v dark=%v", light, dark)
	}

	// Away from the trail both styles show the bare magnitude.
	f.SetStyle(streamline.LightParticlesOnMagnitude)
	f.Render(trail, streamline.IdentityScaling)
	bg := b.Frame().NRGBAAt(0, 0)
	f.SetStyle(streamline.DarkParticlesOnMagnitude)
	f.Render(trail, streamline.IdentityScaling)
	if got := b.Frame().NRGBAAt(0, 0); got != bg {
		t.Errorf("expected identical background, got %v and %v", bg, got)
	}
}

func TestVisualiserEndToEnd(t *testing.T) {
	cm, err := colormap.New([]float64{0, 3}, []color.NRGBA{{B: 255, A: 255}, {R: 255, A: 255}})
	if err != nil {
		t.Fatal(err)
	}
	params := velocity.Params{UOffset: -2, UScale: 4.0 / 255, VOffset: -1, VScale: 2.0 / 255}
	img, err := velocity.Generate(16, 16, params, swirl)
	if err != nil {
		t.Fatal(err)
	}

	b := NewBackend(rand.New(rand.NewSource(5)))
	v, err := streamline.New(b, 64, 48, 200, streamline.DefaultOptions(), rand.New(rand.NewSource(6)))
	if err != nil {
		t.Fatal(err)
	}
	v.Initialise(cm)
	v.SetVelocityImage(img, true)
	v.Start()
	for i := 0; i < 10; i++ {
		v.RenderFrame(1.0/30, streamline.IdentityScaling)
	}

	white := 0
	frame := b.Frame()
	for i := 0; i < len(frame.Pix); i += 4 {
		if frame.Pix[i] > 250 && frame.Pix[i+1] > 250 && frame.Pix[i+2] > 250 {
			white++
		}
	}
	if white == 0 {
		t.Error("expected light particles in the composited frame")
	}
	if frame.Pix[3] != 255 {
		t.Errorf("expected opaque magnitude background, got alpha %d", frame.Pix[3])
	}
	if frac, mean := b.LastTrail().Coverage(1); frac <= 0 || frac > 1 || mean <= 0 || mean > 1 {
		t.Errorf("expected some trail coverage, got frac=%v mean=%v", frac, mean)
	}
	v.Destruct()
}

func TestTrailCoverage(t *testing.T) {
	tr := NewTrail(2, 2)
	if frac, mean := tr.Coverage(0); frac != 0 || mean != 0 {
		t.Errorf("expected empty coverage, got %v/%v", frac, mean)
	}
	tr.SetNRGBA(0, 0, color.NRGBA{A: 255})
	tr.SetNRGBA(1, 0, color.NRGBA{A: 51})
	frac, mean := tr.Coverage(0)
	if frac != 0.5 || math.Abs(mean-0.6) > 1e-12 {
		t.Errorf("expected 0.5 coverage at mean 0.6, got %v/%v", frac, mean)
	}
	if frac, _ := tr.Coverage(100); frac != 0.25 {
		t.Errorf("expected threshold to exclude faint pixels, got %v", frac)
	}
}
