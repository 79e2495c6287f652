// Package wms provides the data services that feed the streamline layer: an
// HTTP client for a WMS-style map server and a file-backed directory service.
package wms

import (
	"errors"
	"fmt"

	"github.com/pthm-cable/streamflow/streamline"
)

// ErrUnknownQuantity is returned when the service does not offer a quantity.
var ErrUnknownQuantity = errors.New("wms: unknown quantity")

// ValueRange overrides the value range of a legend.
type ValueRange struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// ElevationRange is the span of elevations offered for a quantity.
type ElevationRange struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Contains reports whether e lies in the closed range.
func (r ElevationRange) Contains(e float64) bool {
	return e >= r.Min && e <= r.Max
}

// Capabilities lists what the service offers for one quantity.
type Capabilities struct {
	Times     []string
	Elevation *ElevationRange
}

// RasterRequest describes one velocity raster fetch. BBox is in Web Mercator
// metres.
type RasterRequest struct {
	Quantity  string
	Time      string
	Elevation *float64
	Style     string
	BBox      streamline.BoundingBox
	Width     int
	Height    int
}

// Validate checks the request is complete.
func (r RasterRequest) Validate() error {
	if r.Quantity == "" {
		return errors.New("wms: raster request without quantity")
	}
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("wms: invalid raster size %dx%d", r.Width, r.Height)
	}
	if r.BBox.IsEmpty() {
		return errors.New("wms: empty raster bounding box")
	}
	return nil
}
