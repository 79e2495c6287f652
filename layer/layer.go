// Package layer binds a streamline visualiser to a host viewport and a data
// service. Fetches run asynchronously; their results are applied on the
// render goroutine inside Render.
package layer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/pthm-cable/streamflow/colormap"
	"github.com/pthm-cable/streamflow/streamline"
	"github.com/pthm-cable/streamflow/velocity"
	"github.com/pthm-cable/streamflow/wms"
)

var (
	// ErrInvalidTimeIndex is returned for a time index outside the fetched
	// capabilities.
	ErrInvalidTimeIndex = errors.New("layer: invalid time index")
	// ErrInvalidElevation is returned for an elevation outside the fetched
	// capabilities.
	ErrInvalidElevation = errors.New("layer: invalid elevation")
)

// Host is the map viewport the layer draws into.
type Host interface {
	// Bounds returns the visible area in Web Mercator metres.
	Bounds() streamline.BoundingBox
	// Size returns the drawable size in pixels.
	Size() (width, height int)
}

// DataService supplies legends, capabilities and velocity rasters.
type DataService interface {
	Legend(ctx context.Context, quantity string, vr *wms.ValueRange) ([]colormap.LegendEntry, error)
	Capabilities(ctx context.Context, quantity string) (wms.Capabilities, error)
	Raster(ctx context.Context, req wms.RasterRequest) (*velocity.Image, error)
}

// Config is the initial layer state.
type Config struct {
	Quantity     string
	RasterStyle  string
	NumParticles int
	Options      streamline.Options
	TimeIndex    int
	Elevation    *float64
	ValueRange   *wms.ValueRange
	Debounce     time.Duration
	Seed         int64 // 0 seeds from the clock
}

type fetchKind int

const (
	fetchLegend fetchKind = iota
	fetchRaster
)

func (k fetchKind) String() string {
	if k == fetchLegend {
		return "legend"
	}
	return "raster"
}

// slot tracks the newest request of one kind. Completions carrying an older
// generation are stale.
type slot struct {
	gen     uint64
	cancel  context.CancelFunc
	pending bool
}

func (s *slot) next(parent context.Context) (context.Context, uint64) {
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	s.gen++
	s.cancel = cancel
	s.pending = true
	return ctx, s.gen
}

func (s *slot) stop() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
	s.pending = false
}

type result struct {
	kind fetchKind
	gen  uint64

	colormap *colormap.Colormap
	caps     *wms.Capabilities
	image    *velocity.Image
	request  wms.RasterRequest
	reset    bool
	err      error
}

// Layer orchestrates data refresh and per-frame rendering. Apart from the
// fetch goroutines it starts, every method must be called from the render
// goroutine.
type Layer struct {
	host    Host
	service DataService
	cfg     Config
	now     func() time.Time

	vis *streamline.Visualiser

	ctx     context.Context
	cancel  context.CancelFunc
	results chan result
	legend  slot
	raster  slot
	wg      sync.WaitGroup

	caps        *wms.Capabilities
	timeIndex   int
	elevation   *float64
	valueRange  *wms.ValueRange
	fetchBounds streamline.BoundingBox
	applied     wms.RasterRequest

	movePending bool
	moveAt      time.Time
}

// New creates a detached layer. Call OnAdd to attach it to a backend.
func New(host Host, service DataService, cfg Config) *Layer {
	return &Layer{
		host:       host,
		service:    service,
		cfg:        cfg,
		now:        time.Now,
		timeIndex:  cfg.TimeIndex,
		elevation:  cfg.Elevation,
		valueRange: cfg.ValueRange,
	}
}

// OnAdd creates the visualiser on backend and starts the initial fetches.
func (l *Layer) OnAdd(backend streamline.Backend) error {
	if l.vis != nil {
		return errors.New("layer: already added")
	}
	w, h := l.host.Size()
	seed := l.cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	vis, err := streamline.New(backend, w, h, l.cfg.NumParticles, l.cfg.Options, rand.New(rand.NewSource(seed)))
	if err != nil {
		return fmt.Errorf("creating visualiser: %w", err)
	}
	l.vis = vis
	l.ctx, l.cancel = context.WithCancel(context.Background())
	l.results = make(chan result, 8)

	l.fetchLegend()
	l.fetchRaster(true)
	return nil
}

// OnRemove cancels outstanding fetches and releases the visualiser.
func (l *Layer) OnRemove() {
	if l.vis == nil {
		return
	}
	l.cancel()
	l.legend.stop()
	l.raster.stop()
	l.wg.Wait()
	l.vis.Destruct()
	l.vis = nil
}

// OnResize propagates the host size and refetches the raster.
func (l *Layer) OnResize() {
	if l.vis == nil {
		return
	}
	w, h := l.host.Size()
	if w <= 0 || h <= 0 {
		return
	}
	l.vis.SetDimensions(w, h)
	l.fetchRaster(false)
}

// OnMove schedules a refetch once the viewport has been still for the
// debounce interval.
func (l *Layer) OnMove() {
	l.movePending = true
	l.moveAt = l.now().Add(l.cfg.Debounce)
}

// Render applies completed fetches and draws one frame.
func (l *Layer) Render(dt float64) {
	if l.vis == nil {
		return
	}
	l.drain()

	if l.movePending && !l.now().Before(l.moveAt) {
		l.movePending = false
		l.fetchRaster(false)
	}

	if !l.vis.IsInitialised() || !l.vis.HasVelocity() {
		return
	}
	current := l.host.Bounds()
	if current.IsEmpty() {
		return
	}
	bounds := l.fetchBounds
	if bounds.IsEmpty() {
		// The last refresh failed. The frozen trail still belongs to the
		// last applied raster, so it is placed at that raster's bounds.
		bounds = l.applied.BBox
		if bounds.IsEmpty() {
			return
		}
	}
	scaling := streamline.ComputeScaling(bounds, current)
	if l.vis.IsRunning() {
		l.vis.RenderFrame(dt, scaling)
	} else {
		l.vis.Present(scaling)
	}
}

func (l *Layer) drain() {
	for {
		select {
		case r := <-l.results:
			l.apply(r)
		default:
			return
		}
	}
}

func (l *Layer) apply(r result) {
	s := &l.raster
	if r.kind == fetchLegend {
		s = &l.legend
	}
	if r.gen != s.gen {
		return
	}
	s.pending = false

	if r.err != nil {
		if !errors.Is(r.err, context.Canceled) {
			slog.Error("fetch failed", "kind", r.kind.String(), "quantity", l.cfg.Quantity, "error", r.err)
		}
		if r.kind == fetchRaster {
			l.vis.Stop()
			l.fetchBounds = streamline.BoundingBox{}
		}
		return
	}

	switch r.kind {
	case fetchLegend:
		if l.vis.IsInitialised() {
			l.vis.SetColormap(r.colormap)
		} else {
			l.vis.Initialise(r.colormap)
			if l.vis.HasVelocity() && !l.fetchBounds.IsEmpty() {
				l.vis.Start()
			}
		}
		slog.Info("legend applied", "quantity", l.cfg.Quantity, "range", r.colormap.Range())
	case fetchRaster:
		if r.caps != nil {
			l.caps = r.caps
		}
		l.vis.SetVelocityImage(r.image, r.reset)
		l.fetchBounds = r.request.BBox
		l.applied = r.request
		if l.vis.IsInitialised() {
			l.vis.Start()
		}
		slog.Info("raster applied",
			"time", r.request.Time,
			"width", r.image.Width(),
			"height", r.image.Height(),
			"dt_min", l.vis.DtMin(),
		)
	}
}

func (l *Layer) send(ctx context.Context, r result) {
	select {
	case l.results <- r:
	case <-ctx.Done():
	}
}

func (l *Layer) fetchLegend() {
	if l.vis == nil {
		return
	}
	ctx, gen := l.legend.next(l.ctx)
	quantity := l.cfg.Quantity
	var vr *wms.ValueRange
	if l.valueRange != nil {
		v := *l.valueRange
		vr = &v
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		r := result{kind: fetchLegend, gen: gen}
		entries, err := l.service.Legend(ctx, quantity, vr)
		if err == nil {
			r.colormap, err = colormap.FromLegend(entries)
		}
		r.err = err
		l.send(ctx, r)
	}()
}

// fetchRaster requests a raster for the current viewport. Capabilities are
// fetched first when none are known yet.
func (l *Layer) fetchRaster(reset bool) {
	if l.vis == nil {
		return
	}
	w, h := l.host.Size()
	bounds := l.host.Bounds()
	if w <= 0 || h <= 0 || bounds.IsEmpty() {
		return
	}
	ctx, gen := l.raster.next(l.ctx)

	caps := l.caps
	timeIndex := l.timeIndex
	req := wms.RasterRequest{
		Quantity: l.cfg.Quantity,
		Style:    l.cfg.RasterStyle,
		BBox:     bounds,
		Width:    w,
		Height:   h,
	}
	if l.elevation != nil {
		e := *l.elevation
		req.Elevation = &e
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		r := result{kind: fetchRaster, gen: gen, reset: reset}
		if caps == nil {
			c, err := l.service.Capabilities(ctx, req.Quantity)
			if err != nil {
				r.err = fmt.Errorf("fetching capabilities: %w", err)
				l.send(ctx, r)
				return
			}
			caps = &c
			r.caps = caps
		}
		if len(caps.Times) > 0 {
			if timeIndex < 0 || timeIndex >= len(caps.Times) {
				r.err = fmt.Errorf("%w: %d of %d", ErrInvalidTimeIndex, timeIndex, len(caps.Times))
				l.send(ctx, r)
				return
			}
			req.Time = caps.Times[timeIndex]
		}
		r.request = req
		r.image, r.err = l.service.Raster(ctx, req)
		l.send(ctx, r)
	}()
}

// SetTimeIndex selects a time step and refetches with a particle reset.
func (l *Layer) SetTimeIndex(i int) error {
	if l.caps == nil || i < 0 || i >= len(l.caps.Times) {
		n := 0
		if l.caps != nil {
			n = len(l.caps.Times)
		}
		return fmt.Errorf("%w: %d of %d", ErrInvalidTimeIndex, i, n)
	}
	if i == l.timeIndex {
		return nil
	}
	l.timeIndex = i
	l.fetchRaster(true)
	return nil
}

// SetElevation selects an elevation and refetches with a particle reset.
func (l *Layer) SetElevation(e float64) error {
	if l.caps == nil || l.caps.Elevation == nil || !l.caps.Elevation.Contains(e) {
		return fmt.Errorf("%w: %g", ErrInvalidElevation, e)
	}
	l.elevation = &e
	l.fetchRaster(true)
	return nil
}

// SetValueRange overrides the colormap value range; nil restores the
// service default.
func (l *Layer) SetValueRange(vr *wms.ValueRange) error {
	if vr != nil && !(vr.Max > vr.Min) {
		return fmt.Errorf("layer: invalid value range [%g, %g]", vr.Min, vr.Max)
	}
	l.valueRange = vr
	l.fetchLegend()
	return nil
}

// SetNumParticles changes the particle count.
func (l *Layer) SetNumParticles(n int) error {
	if n <= 0 {
		return fmt.Errorf("layer: invalid particle count %d", n)
	}
	l.cfg.NumParticles = n
	if l.vis != nil {
		l.vis.SetNumParticles(n)
	}
	return nil
}

// SetStyle changes the render style.
func (l *Layer) SetStyle(s streamline.Style) error {
	return l.UpdateOptions(streamline.OptionsPatch{Style: streamline.StylePtr(s)})
}

// UpdateOptions merges a partial options update.
func (l *Layer) UpdateOptions(p streamline.OptionsPatch) error {
	if l.vis == nil {
		next, _ := l.cfg.Options.Apply(p)
		if err := next.Validate(); err != nil {
			return err
		}
		l.cfg.Options = next
		return nil
	}
	if err := l.vis.UpdateOptions(p); err != nil {
		return err
	}
	l.cfg.Options = l.vis.Options()
	return nil
}

// Visualiser returns the underlying visualiser, nil before OnAdd.
func (l *Layer) Visualiser() *streamline.Visualiser { return l.vis }

// Capabilities returns the last fetched capabilities, nil before the first
// successful raster fetch.
func (l *Layer) Capabilities() *wms.Capabilities { return l.caps }

// TimeIndex returns the selected time index.
func (l *Layer) TimeIndex() int { return l.timeIndex }

// Elevation returns the selected elevation, nil for the service default.
func (l *Layer) Elevation() *float64 { return l.elevation }

// ValueRange returns the colormap value range override.
func (l *Layer) ValueRange() *wms.ValueRange { return l.valueRange }

// Applied returns the request behind the velocity field on screen.
func (l *Layer) Applied() wms.RasterRequest { return l.applied }

// Fetching reports whether a legend or raster request is outstanding.
func (l *Layer) Fetching() bool { return l.legend.pending || l.raster.pending }

// FetchBounds returns the bounds of the raster on screen; empty after a
// failed fetch.
func (l *Layer) FetchBounds() streamline.BoundingBox { return l.fetchBounds }
