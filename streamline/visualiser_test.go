package streamline

import (
	"fmt"
	"image/color"
	"math"
	"math/rand"
	"testing"

	"github.com/pthm-cable/streamflow/colormap"
	"github.com/pthm-cable/streamflow/velocity"
)

// recorder is a backend that logs every call so pass ordering can be checked.
type recorder struct {
	log     []string
	trails  int
	unloads int
}

func (r *recorder) add(format string, args ...any) {
	r.log = append(r.log, fmt.Sprintf(format, args...))
}

type fakeTrail struct {
	r    *recorder
	name string
}

func (t *fakeTrail) Clear()  {}
func (t *fakeTrail) Unload() { t.r.unloads++ }

type fakePropagator struct {
	r     *recorder
	n     int
	speed float64
}

func (p *fakePropagator) Initialise()                        { p.r.add("seed") }
func (p *fakePropagator) SetVelocityImage(*velocity.Image)   {}
func (p *fakePropagator) SetDimensions(w, h int)             { p.r.add("propagator size %dx%d", w, h) }
func (p *fakePropagator) SetNumParticles(n int)              { p.n = n }
func (p *fakePropagator) SetSpeedFactor(f float64)           { p.speed = f }
func (p *fakePropagator) SetNumEliminatePerSecond(n float64) {}
func (p *fakePropagator) Update(dt float64)                  { p.r.add("update") }
func (p *fakePropagator) Positions() Positions               { return "positions" }
func (p *fakePropagator) NumParticles() int                  { return p.n }
func (p *fakePropagator) Unload()                            { p.r.unloads++ }

type fakeParticles struct {
	r     *recorder
	color color.NRGBA
}

func (p *fakeParticles) SetDimensions(int, int)         {}
func (p *fakeParticles) SetNumParticles(int)            {}
func (p *fakeParticles) SetParticleSize(float64)        {}
func (p *fakeParticles) SetParticleColor(c color.NRGBA) { p.color = c }
func (p *fakeParticles) Render(pos Positions, dst Trail) {
	p.r.add("sprites %s", dst.(*fakeTrail).name)
}
func (p *fakeParticles) Unload() { p.r.unloads++ }

type fakeTextures struct{ r *recorder }

func (f *fakeTextures) Render(src Trail, fade float64, dst Trail) {
	f.r.add("fade %s->%s", src.(*fakeTrail).name, dst.(*fakeTrail).name)
}
func (f *fakeTextures) Unload() { f.r.unloads++ }

type fakeFinal struct {
	r     *recorder
	style Style
}

func (f *fakeFinal) SetDimensions(int, int)             {}
func (f *fakeFinal) SetVelocityImage(*velocity.Image)   {}
func (f *fakeFinal) SetColormap(*colormap.Colormap)     {}
func (f *fakeFinal) SetStyle(s Style)                   { f.style = s }
func (f *fakeFinal) Unload()                            { f.r.unloads++ }
func (f *fakeFinal) Render(trail Trail, scaling Scaling) {
	f.r.add("final %s", trail.(*fakeTrail).name)
}

type fakeBackend struct {
	r         *recorder
	prop      *fakePropagator
	particles *fakeParticles
	final     *fakeFinal
}

func newFakeBackend() *fakeBackend { return &fakeBackend{r: &recorder{}} }

func (b *fakeBackend) NewPropagator(n, w, h int) Propagator {
	b.prop = &fakePropagator{r: b.r, n: n}
	return b.prop
}

func (b *fakeBackend) NewParticleRenderer(n, w, h int) ParticleRenderer {
	b.particles = &fakeParticles{r: b.r}
	return b.particles
}

func (b *fakeBackend) NewTextureRenderer(w, h int) TextureRenderer {
	return &fakeTextures{r: b.r}
}

func (b *fakeBackend) NewFinalRenderer(cm *colormap.Colormap, w, h int) FinalRenderer {
	b.final = &fakeFinal{r: b.r}
	return b.final
}

func (b *fakeBackend) NewTrail(w, h int) Trail {
	t := &fakeTrail{r: b.r, name: fmt.Sprintf("t%d", b.r.trails)}
	b.r.trails++
	return t
}

func testColormap(t *testing.T) *colormap.Colormap {
	t.Helper()
	cm, err := colormap.New([]float64{0, 1}, []color.NRGBA{{A: 255}, {R: 255, A: 255}})
	if err != nil {
		t.Fatal(err)
	}
	return cm
}

// testField has maxV = 1 and no u component.
func testField() *velocity.Image {
	return velocity.Uniform(4, 4, 0, 128, velocity.Params{VScale: 1.0 / 255})
}

func newTestVisualiser(t *testing.T) (*Visualiser, *fakeBackend) {
	t.Helper()
	b := newFakeBackend()
	opts := DefaultOptions()
	opts.SpeedFactor = 1
	v, err := New(b, 100, 100, 100, opts, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatal(err)
	}
	v.Initialise(testColormap(t))
	return v, b
}

func TestRenderFramePassOrder(t *testing.T) {
	v, b := newTestVisualiser(t)
	v.SetVelocityImage(testField(), false)
	v.Start()

	// dispY = 2/100 clip units, velY = 1, so dtMin = 0.02.
	if math.Abs(v.DtMin()-0.02) > 1e-12 {
		t.Fatalf("expected dtMin 0.02, got %v", v.DtMin())
	}

	b.r.log = nil
	v.RenderFrame(0.03, IdentityScaling)

	want := []string{
		"fade t1->t0", "update", "sprites t0",
		"fade t0->t1", "update", "sprites t1",
		"final t1",
	}
	if len(b.r.log) != len(want) {
		t.Fatalf("expected %v, got %v", want, b.r.log)
	}
	for i := range want {
		if b.r.log[i] != want[i] {
			t.Errorf("call %d: expected %q, got %q", i, want[i], b.r.log[i])
		}
	}
	if s := v.Stats(); s.Substeps != 2 || math.Abs(s.Step-0.015) > 1e-12 {
		t.Errorf("unexpected stats %+v", s)
	}

	// The next frame fades from the trail composited last.
	b.r.log = nil
	v.RenderFrame(0.01, IdentityScaling)
	if b.r.log[0] != "fade t1->t0" || b.r.log[len(b.r.log)-1] != "final t0" {
		t.Errorf("unexpected single-step frame %v", b.r.log)
	}
}

func TestRenderFrameNoOps(t *testing.T) {
	b := newFakeBackend()
	v, err := New(b, 100, 100, 10, DefaultOptions(), nil)
	if err != nil {
		t.Fatal(err)
	}

	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected panic before Initialise")
			}
		}()
		v.RenderFrame(0.016, IdentityScaling)
	}()

	v.Initialise(testColormap(t))
	b.r.log = nil

	v.Start()
	v.RenderFrame(0.016, IdentityScaling)
	if len(b.r.log) != 0 {
		t.Errorf("expected no work without velocity, got %v", b.r.log)
	}

	v.SetVelocityImage(testField(), false)
	v.Stop()
	v.Stop()
	v.RenderFrame(0.016, IdentityScaling)
	if len(b.r.log) != 0 {
		t.Errorf("expected no work while stopped, got %v", b.r.log)
	}

	v.Present(IdentityScaling)
	if len(b.r.log) != 1 || b.r.log[0] != "final t1" {
		t.Errorf("expected a single composite, got %v", b.r.log)
	}
}

func TestSubstepCap(t *testing.T) {
	v, b := newTestVisualiser(t)
	v.SetVelocityImage(testField(), false)
	v.Start()
	b.r.log = nil

	v.RenderFrame(5, IdentityScaling)
	updates := 0
	for _, l := range b.r.log {
		if l == "update" {
			updates++
		}
	}
	if updates != MaxSubsteps {
		t.Errorf("expected %d updates, got %d", MaxSubsteps, updates)
	}
}

func TestUpdateOptions(t *testing.T) {
	v, b := newTestVisualiser(t)
	v.SetVelocityImage(testField(), false)
	before := v.DtMin()

	if err := v.UpdateOptions(OptionsPatch{SpeedFactor: Float(2)}); err != nil {
		t.Fatal(err)
	}
	if got := v.DtMin(); math.Abs(got-before/2) > 1e-12 {
		t.Errorf("expected dtMin to halve, got %v from %v", got, before)
	}
	if b.prop.speed != 2 {
		t.Errorf("expected speed factor forwarded, got %v", b.prop.speed)
	}

	if err := v.UpdateOptions(OptionsPatch{Style: StylePtr(DarkParticlesOnMagnitude)}); err != nil {
		t.Fatal(err)
	}
	if b.final.style != DarkParticlesOnMagnitude {
		t.Errorf("expected style forwarded, got %v", b.final.style)
	}
	if b.particles.color != (color.NRGBA{A: 255}) {
		t.Errorf("expected black default particle colour, got %v", b.particles.color)
	}

	red := color.NRGBA{R: 255, A: 255}
	if err := v.UpdateOptions(OptionsPatch{ParticleColor: &red}); err != nil {
		t.Fatal(err)
	}
	if b.particles.color != red {
		t.Errorf("expected explicit particle colour, got %v", b.particles.color)
	}

	if err := v.UpdateOptions(OptionsPatch{ParticleSize: Float(-1)}); err == nil {
		t.Error("expected error for negative particle size")
	}
	if v.Options().ParticleSize != DefaultOptions().ParticleSize {
		t.Errorf("expected rejected patch to leave options unchanged, got %v", v.Options().ParticleSize)
	}
}

func TestSetDimensionsRecreatesTrails(t *testing.T) {
	v, b := newTestVisualiser(t)
	v.SetDimensions(100, 100)
	if b.r.trails != 2 {
		t.Fatalf("expected no reallocation for unchanged size, got %d trails", b.r.trails)
	}

	v.SetDimensions(200, 50)
	if b.r.trails != 4 {
		t.Errorf("expected two new trails, got %d", b.r.trails)
	}
	// Two old trails and the texture renderer.
	if b.r.unloads != 3 {
		t.Errorf("expected 3 unloads, got %d", b.r.unloads)
	}
}

func TestDestruct(t *testing.T) {
	v, b := newTestVisualiser(t)
	v.Start()
	v.Destruct()

	// Propagator, particles, textures, final and two trails.
	if b.r.unloads != 6 {
		t.Errorf("expected 6 unloads, got %d", b.r.unloads)
	}
	if v.IsInitialised() || v.IsRunning() {
		t.Error("expected visualiser to be reset")
	}
	v.Destruct()
	if b.r.unloads != 6 {
		t.Errorf("expected second Destruct to be a no-op, got %d unloads", b.r.unloads)
	}
}

func TestSetVelocityImageReset(t *testing.T) {
	v, b := newTestVisualiser(t)
	b.r.log = nil

	v.SetVelocityImage(testField(), false)
	if len(b.r.log) != 0 {
		t.Errorf("expected no reseed, got %v", b.r.log)
	}
	v.SetVelocityImage(testField(), true)
	if len(b.r.log) != 1 || b.r.log[0] != "seed" {
		t.Errorf("expected a reseed, got %v", b.r.log)
	}
}
