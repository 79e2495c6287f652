package wms

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/streamflow/colormap"
	"github.com/pthm-cable/streamflow/streamline"
	"github.com/pthm-cable/streamflow/velocity"
)

// Directory file names.
const (
	LegendFile       = "legend.csv"
	CapabilitiesFile = "capabilities.yaml"
)

// DirectoryCapabilities is the content of capabilities.yaml.
type DirectoryCapabilities struct {
	Times     []string                  `yaml:"times"`
	Elevation *ElevationRange           `yaml:"elevation,omitempty"`
	Bounds    streamline.GeoBoundingBox `yaml:"bounds"`
}

// Directory serves quantities from a local directory laid out as
//
//	<root>/<quantity>/legend.csv
//	<root>/<quantity>/capabilities.yaml
//	<root>/<quantity>/<time>.png            (or <time>_<elevation>.png)
//
// Rasters carry embedded decode parameters and cover the capabilities bounds;
// requests are answered by reprojecting them onto the requested box.
type Directory struct {
	root string

	mu      sync.Mutex
	rasters map[string]*velocity.Image
}

// NewDirectory creates a directory service rooted at root.
func NewDirectory(root string) (*Directory, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("opening data directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("data directory %q is not a directory", root)
	}
	return &Directory{root: root, rasters: make(map[string]*velocity.Image)}, nil
}

func (d *Directory) path(quantity string, name string) string {
	return filepath.Join(d.root, quantity, name)
}

// Legend reads legend.csv, rescaled onto vr when given.
func (d *Directory) Legend(ctx context.Context, quantity string, vr *ValueRange) ([]colormap.LegendEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(d.path(quantity, LegendFile))
	if err != nil {
		return nil, d.openError(quantity, err)
	}
	defer f.Close()

	entries, err := colormap.ReadLegendCSV(f)
	if err != nil {
		return nil, err
	}
	if vr != nil {
		entries = colormap.RescaleLegend(entries, vr.Min, vr.Max)
	}
	return entries, nil
}

// Capabilities reads capabilities.yaml.
func (d *Directory) Capabilities(ctx context.Context, quantity string) (Capabilities, error) {
	dc, err := d.readCapabilities(ctx, quantity)
	if err != nil {
		return Capabilities{}, err
	}
	return Capabilities{Times: dc.Times, Elevation: dc.Elevation}, nil
}

func (d *Directory) readCapabilities(ctx context.Context, quantity string) (DirectoryCapabilities, error) {
	if err := ctx.Err(); err != nil {
		return DirectoryCapabilities{}, err
	}
	data, err := os.ReadFile(d.path(quantity, CapabilitiesFile))
	if err != nil {
		return DirectoryCapabilities{}, d.openError(quantity, err)
	}
	var dc DirectoryCapabilities
	if err := yaml.Unmarshal(data, &dc); err != nil {
		return DirectoryCapabilities{}, fmt.Errorf("parsing %s: %w", CapabilitiesFile, err)
	}
	if dc.Bounds.Mercator().IsEmpty() {
		return DirectoryCapabilities{}, fmt.Errorf("%s: empty bounds", CapabilitiesFile)
	}
	return dc, nil
}

// Raster reprojects the stored raster for req.Time onto req.BBox.
func (d *Directory) Raster(ctx context.Context, req RasterRequest) (*velocity.Image, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	dc, err := d.readCapabilities(ctx, req.Quantity)
	if err != nil {
		return nil, err
	}
	src, err := d.load(req)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	from := dc.Bounds.Mercator()
	to := req.BBox
	return src.Resample(req.Width, req.Height, func(x, y float64) (float64, float64, bool) {
		mx := to.MinX + x*to.Width()
		my := to.MaxY - y*to.Height()
		sx := (mx - from.MinX) / from.Width()
		sy := (from.MaxY - my) / from.Height()
		return sx, sy, true
	})
}

func (d *Directory) load(req RasterRequest) (*velocity.Image, error) {
	names := []string{RasterName(req.Time, nil)}
	if req.Elevation != nil {
		names = append([]string{RasterName(req.Time, req.Elevation)}, names...)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	var lastErr error
	for _, name := range names {
		p := d.path(req.Quantity, name)
		if img, ok := d.rasters[p]; ok {
			return img, nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			lastErr = err
			continue
		}
		img, err := velocity.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", name, err)
		}
		d.rasters[p] = img
		return img, nil
	}
	return nil, fmt.Errorf("no raster for time %q: %w", req.Time, lastErr)
}

func (d *Directory) openError(quantity string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		if _, statErr := os.Stat(filepath.Join(d.root, quantity)); statErr != nil {
			return fmt.Errorf("%w: %q", ErrUnknownQuantity, quantity)
		}
	}
	return err
}

// RasterName returns the file name holding the raster for a time step and
// optional elevation.
func RasterName(t string, elevation *float64) string {
	name := strings.NewReplacer(":", "-", "/", "-").Replace(t)
	if elevation != nil {
		name += "_" + formatFloat(*elevation)
	}
	return name + ".png"
}
