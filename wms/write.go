package wms

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/streamflow/colormap"
	"github.com/pthm-cable/streamflow/velocity"
)

// WriteQuantity lays out one quantity in the Directory format. rasters is
// keyed by RasterName.
func WriteQuantity(root, quantity string, legend []colormap.LegendEntry, caps DirectoryCapabilities, rasters map[string]*velocity.Image) error {
	dir := filepath.Join(root, quantity)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating quantity directory: %w", err)
	}

	legendCSV, err := gocsv.MarshalBytes(legend)
	if err != nil {
		return fmt.Errorf("encoding legend: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, LegendFile), legendCSV, 0644); err != nil {
		return fmt.Errorf("writing legend: %w", err)
	}

	capsYAML, err := yaml.Marshal(caps)
	if err != nil {
		return fmt.Errorf("encoding capabilities: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, CapabilitiesFile), capsYAML, 0644); err != nil {
		return fmt.Errorf("writing capabilities: %w", err)
	}

	for name, img := range rasters {
		if err := writeRaster(filepath.Join(dir, name), img); err != nil {
			return err
		}
	}
	return nil
}

func writeRaster(path string, img *velocity.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating raster: %w", err)
	}
	if err := velocity.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encoding raster %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}
