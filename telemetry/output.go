package telemetry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/streamflow/config"
)

// csvSink appends gocsv rows to a file, writing the header once.
type csvSink struct {
	f      *os.File
	header bool
}

func openSink(dir, name string) (*csvSink, error) {
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", name, err)
	}
	return &csvSink{f: f}, nil
}

func (s *csvSink) write(rows any) error {
	if s.header {
		return gocsv.MarshalWithoutHeaders(rows, s.f)
	}
	if err := gocsv.Marshal(rows, s.f); err != nil {
		return err
	}
	s.header = true
	return nil
}

// OutputManager writes perf.csv, frames.csv and a config snapshot into a
// directory. A nil *OutputManager discards everything.
type OutputManager struct {
	dir    string
	perf   *csvSink
	frames *csvSink
}

// NewOutputManager creates dir and its CSV files. An empty dir disables
// output and returns nil.
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	perf, err := openSink(dir, "perf.csv")
	if err != nil {
		return nil, err
	}
	frames, err := openSink(dir, "frames.csv")
	if err != nil {
		perf.f.Close()
		return nil, err
	}
	return &OutputManager{dir: dir, perf: perf, frames: frames}, nil
}

// WriteConfig snapshots cfg as config.yaml.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

func (om *OutputManager) WritePerf(rec PerfStatsCSV) error {
	if om == nil {
		return nil
	}
	if err := om.perf.write([]PerfStatsCSV{rec}); err != nil {
		return fmt.Errorf("writing perf: %w", err)
	}
	return nil
}

func (om *OutputManager) WriteFrames(stats WindowStats) error {
	if om == nil {
		return nil
	}
	if err := om.frames.write([]WindowStats{stats}); err != nil {
		return fmt.Errorf("writing frames: %w", err)
	}
	return nil
}

func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close closes both CSV files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}
	return errors.Join(om.perf.f.Close(), om.frames.f.Close())
}
