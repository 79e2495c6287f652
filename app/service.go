package app

import (
	"fmt"
	"time"

	"github.com/pthm-cable/streamflow/config"
	"github.com/pthm-cable/streamflow/layer"
	"github.com/pthm-cable/streamflow/wms"
)

// NewService creates the data service selected by the configuration.
func NewService(cfg config.ServiceConfig) (layer.DataService, error) {
	switch cfg.Kind {
	case "http":
		timeout := time.Duration(cfg.TimeoutSeconds * float64(time.Second))
		c, err := wms.NewClient(cfg.URL, timeout)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "directory":
		d, err := wms.NewDirectory(cfg.Directory)
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unknown service kind %q", cfg.Kind)
	}
}

// LayerConfig builds the initial layer state. A non-zero seed overrides the
// configured one.
func LayerConfig(cfg *config.Config, seed int64) layer.Config {
	lc := layer.Config{
		Quantity:     cfg.Service.Quantity,
		RasterStyle:  cfg.Service.RasterStyle,
		NumParticles: cfg.Layer.NumParticles,
		Options:      cfg.Options(),
		TimeIndex:    cfg.Layer.TimeIndex,
		Elevation:    cfg.Layer.Elevation,
		Debounce:     time.Duration(cfg.Layer.DebounceSeconds * float64(time.Second)),
		Seed:         cfg.Visualiser.Seed,
	}
	if cfg.Layer.ValueMin != nil && cfg.Layer.ValueMax != nil {
		lc.ValueRange = &wms.ValueRange{Min: *cfg.Layer.ValueMin, Max: *cfg.Layer.ValueMax}
	}
	if seed != 0 {
		lc.Seed = seed
	}
	return lc
}
