package layer

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pthm-cable/streamflow/colormap"
	"github.com/pthm-cable/streamflow/software"
	"github.com/pthm-cable/streamflow/streamline"
	"github.com/pthm-cable/streamflow/velocity"
	"github.com/pthm-cable/streamflow/wms"
)

var testTimes = []string{"2024-01-01T00:00:00Z", "2024-01-01T01:00:00Z", "2024-01-01T02:00:00Z"}

type fakeHost struct {
	bounds streamline.BoundingBox
	w, h   int
}

func (h *fakeHost) Bounds() streamline.BoundingBox { return h.bounds }
func (h *fakeHost) Size() (int, int)               { return h.w, h.h }

type fakeService struct {
	mu          sync.Mutex
	rasterErr   error
	gates       map[string]chan struct{}
	rasterCalls []wms.RasterRequest
	legendCalls []*wms.ValueRange
	capsCalls   int
}

func (s *fakeService) Legend(ctx context.Context, quantity string, vr *wms.ValueRange) ([]colormap.LegendEntry, error) {
	s.mu.Lock()
	s.legendCalls = append(s.legendCalls, vr)
	s.mu.Unlock()
	return []colormap.LegendEntry{{Value: 0, Color: "#000000"}, {Value: 1, Color: "#ffffff"}}, nil
}

func (s *fakeService) Capabilities(ctx context.Context, quantity string) (wms.Capabilities, error) {
	s.mu.Lock()
	s.capsCalls++
	s.mu.Unlock()
	return wms.Capabilities{Times: testTimes, Elevation: &wms.ElevationRange{Min: -20, Max: 0}}, nil
}

// Raster ignores ctx so that stale completions reach the layer.
func (s *fakeService) Raster(ctx context.Context, req wms.RasterRequest) (*velocity.Image, error) {
	s.mu.Lock()
	s.rasterCalls = append(s.rasterCalls, req)
	gate := s.gates[req.Time]
	err := s.rasterErr
	s.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	p := velocity.Params{UOffset: -1, VOffset: -1, UScale: 2.0 / 255, VScale: 2.0 / 255}
	return velocity.Uniform(req.Width, req.Height, 200, 128, p), nil
}

func (s *fakeService) numRasterCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rasterCalls)
}

type testClock struct{ t time.Time }

func (c *testClock) now() time.Time { return c.t }

func newTestLayer(t *testing.T) (*Layer, *fakeService, *testClock) {
	t.Helper()
	return newTestLayerOn(t, software.NewBackend(rand.New(rand.NewSource(1))))
}

func newTestLayerOn(t *testing.T, backend streamline.Backend) (*Layer, *fakeService, *testClock) {
	t.Helper()
	host := &fakeHost{
		bounds: streamline.GeoBoundingBox{West: -10, South: -10, East: 10, North: 10}.Mercator(),
		w:      32,
		h:      16,
	}
	svc := &fakeService{gates: make(map[string]chan struct{})}
	l := New(host, svc, Config{
		Quantity:     "current",
		NumParticles: 64,
		Options:      streamline.DefaultOptions(),
		Debounce:     250 * time.Millisecond,
		Seed:         1,
	})
	clock := &testClock{t: time.Unix(0, 0)}
	l.now = clock.now

	if err := l.OnAdd(backend); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(l.OnRemove)
	return l, svc, clock
}

// settle waits for outstanding fetches and applies their results.
func settle(l *Layer) {
	l.wg.Wait()
	l.Render(1.0 / 60)
}

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestInitialFetchStartsVisualiser(t *testing.T) {
	l, svc, _ := newTestLayer(t)
	if !l.Fetching() {
		t.Error("expected fetches in flight after OnAdd")
	}
	settle(l)
	if l.Fetching() {
		t.Error("expected no fetch in flight once results are applied")
	}

	vis := l.Visualiser()
	if !vis.IsInitialised() || !vis.IsRunning() {
		t.Fatalf("expected running visualiser, initialised=%v running=%v", vis.IsInitialised(), vis.IsRunning())
	}
	if got := l.Applied().Time; got != testTimes[0] {
		t.Errorf("expected first time step, got %q", got)
	}
	if l.FetchBounds() != l.host.Bounds() {
		t.Errorf("expected fetch bounds to match viewport, got %+v", l.FetchBounds())
	}
	if l.Capabilities() == nil || svc.capsCalls != 1 {
		t.Errorf("expected one capabilities fetch, got %d", svc.capsCalls)
	}

	l.Render(1.0 / 60)
	if vis.Stats().Substeps == 0 {
		t.Error("expected the frame to advance")
	}
}

func TestSetTimeIndex(t *testing.T) {
	l, _, _ := newTestLayer(t)
	if err := l.SetTimeIndex(1); !errors.Is(err, ErrInvalidTimeIndex) {
		t.Errorf("expected ErrInvalidTimeIndex before capabilities, got %v", err)
	}
	settle(l)

	for _, i := range []int{-1, 3} {
		if err := l.SetTimeIndex(i); !errors.Is(err, ErrInvalidTimeIndex) {
			t.Errorf("index %d: expected ErrInvalidTimeIndex, got %v", i, err)
		}
	}
	if err := l.SetTimeIndex(2); err != nil {
		t.Fatal(err)
	}
	settle(l)
	if got := l.Applied().Time; got != testTimes[2] {
		t.Errorf("expected %q, got %q", testTimes[2], got)
	}
}

func TestSetElevation(t *testing.T) {
	l, svc, _ := newTestLayer(t)
	settle(l)

	if err := l.SetElevation(10); !errors.Is(err, ErrInvalidElevation) {
		t.Errorf("expected ErrInvalidElevation, got %v", err)
	}
	if err := l.SetElevation(-5); err != nil {
		t.Fatal(err)
	}
	settle(l)

	last := svc.rasterCalls[len(svc.rasterCalls)-1]
	if last.Elevation == nil || *last.Elevation != -5 {
		t.Errorf("expected elevation -5 in request, got %v", last.Elevation)
	}
}

func TestStaleCompletionDiscarded(t *testing.T) {
	l, svc, _ := newTestLayer(t)
	settle(l)

	gate := make(chan struct{})
	svc.mu.Lock()
	svc.gates[testTimes[1]] = gate
	svc.mu.Unlock()

	if err := l.SetTimeIndex(1); err != nil {
		t.Fatal(err)
	}
	if err := l.SetTimeIndex(2); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for l.Applied().Time != testTimes[2] {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for the newest raster")
		}
		time.Sleep(time.Millisecond)
		l.Render(0)
	}

	close(gate)
	settle(l)
	if got := l.Applied().Time; got != testTimes[2] {
		t.Errorf("expected stale raster to be dropped, got %q", got)
	}
}

func TestFetchFailure(t *testing.T) {
	l, svc, clock := newTestLayer(t)
	settle(l)
	logs := captureLogs(t)

	svc.mu.Lock()
	svc.rasterErr = errors.New("service unavailable")
	svc.mu.Unlock()
	l.OnMove()
	clock.t = clock.t.Add(time.Second)
	l.Render(0)
	settle(l)

	if l.Visualiser().IsRunning() {
		t.Error("expected visualiser to stop after a failed fetch")
	}
	if !l.FetchBounds().IsEmpty() {
		t.Errorf("expected fetch bounds cleared, got %+v", l.FetchBounds())
	}
	if !strings.Contains(logs.String(), "fetch failed") {
		t.Errorf("expected failure to be logged, got %q", logs.String())
	}

	logs.Reset()
	svc.mu.Lock()
	svc.rasterErr = context.Canceled
	svc.mu.Unlock()
	l.OnMove()
	clock.t = clock.t.Add(time.Second)
	l.Render(0)
	settle(l)
	if logs.Len() != 0 {
		t.Errorf("expected cancellation not to be logged, got %q", logs.String())
	}

	svc.mu.Lock()
	svc.rasterErr = nil
	svc.mu.Unlock()
	l.OnMove()
	clock.t = clock.t.Add(time.Second)
	l.Render(0)
	settle(l)
	if !l.Visualiser().IsRunning() {
		t.Error("expected the next successful fetch to restart the visualiser")
	}
}

// visiblePixels counts frame pixels with any coverage.
func visiblePixels(b *software.Backend) int {
	n := 0
	f := b.Frame()
	for i := 3; i < len(f.Pix); i += 4 {
		if f.Pix[i] > 0 {
			n++
		}
	}
	return n
}

func TestFailedRefreshKeepsRasterGeometry(t *testing.T) {
	backend := software.NewBackend(rand.New(rand.NewSource(1)))
	l, svc, clock := newTestLayerOn(t, backend)
	host := l.host.(*fakeHost)
	home := host.bounds
	settle(l)
	for i := 0; i < 10; i++ {
		l.Render(1.0 / 60)
	}
	if visiblePixels(backend) == 0 {
		t.Fatal("expected the field to be visible over the fetched viewport")
	}

	// Pan somewhere the raster does not cover.
	host.bounds = streamline.GeoBoundingBox{West: 100, South: -10, East: 120, North: 10}.Mercator()
	l.OnMove()
	l.Render(1.0 / 60)
	if n := visiblePixels(backend); n != 0 {
		t.Errorf("expected nothing drawn outside the raster, got %d pixels", n)
	}

	svc.mu.Lock()
	svc.rasterErr = errors.New("service unavailable")
	svc.mu.Unlock()
	clock.t = clock.t.Add(time.Second)
	l.Render(0)
	settle(l)
	if l.Visualiser().IsRunning() || !l.FetchBounds().IsEmpty() {
		t.Fatalf("expected stopped visualiser with cleared fetch bounds, running=%v bounds=%+v",
			l.Visualiser().IsRunning(), l.FetchBounds())
	}
	if n := visiblePixels(backend); n != 0 {
		t.Errorf("expected the stale field to stay off the new viewport, got %d of %d pixels", n, host.w*host.h)
	}

	// Back over the old raster the frozen trail is shown in place.
	host.bounds = home
	l.Render(1.0 / 60)
	if n := visiblePixels(backend); n != host.w*host.h {
		t.Errorf("expected frozen field over the whole viewport, got %d of %d pixels", n, host.w*host.h)
	}
}

func TestMoveDebounce(t *testing.T) {
	l, svc, clock := newTestLayer(t)
	settle(l)
	before := svc.numRasterCalls()

	l.OnMove()
	clock.t = clock.t.Add(100 * time.Millisecond)
	l.OnMove()
	clock.t = clock.t.Add(200 * time.Millisecond)
	settle(l)
	if got := svc.numRasterCalls(); got != before {
		t.Errorf("expected no fetch inside the debounce window, got %d new", got-before)
	}

	clock.t = clock.t.Add(100 * time.Millisecond)
	l.Render(0)
	settle(l)
	if got := svc.numRasterCalls(); got != before+1 {
		t.Errorf("expected exactly one debounced fetch, got %d new", got-before)
	}
}

func TestValueRange(t *testing.T) {
	l, svc, _ := newTestLayer(t)
	settle(l)

	if err := l.SetValueRange(&wms.ValueRange{Min: 2, Max: 1}); err == nil {
		t.Error("expected error for inverted range")
	}
	if err := l.SetValueRange(&wms.ValueRange{Min: 0, Max: 2}); err != nil {
		t.Fatal(err)
	}
	settle(l)

	last := svc.legendCalls[len(svc.legendCalls)-1]
	if last == nil || last.Max != 2 {
		t.Errorf("expected value range forwarded, got %v", last)
	}
}

func TestOptionsAndRemove(t *testing.T) {
	l, _, _ := newTestLayer(t)
	settle(l)

	if err := l.SetStyle(streamline.MagnitudeColoredParticles); err != nil {
		t.Fatal(err)
	}
	if got := l.Visualiser().Options().Style; got != streamline.MagnitudeColoredParticles {
		t.Errorf("expected style applied, got %v", got)
	}
	if err := l.SetNumParticles(0); err == nil {
		t.Error("expected error for zero particles")
	}
	if err := l.SetNumParticles(100); err != nil {
		t.Fatal(err)
	}

	l.OnRemove()
	if l.Visualiser() != nil {
		t.Error("expected visualiser released")
	}
	l.Render(1.0 / 60)
}
