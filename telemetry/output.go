package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	"github.com/oyin-bo/octograv/config"
)

// OutputManager handles structured run output with CSV logging.
type OutputManager struct {
	dir              string
	windowsFile      *os.File
	conservationFile *os.File
	perfFile         *os.File

	// Track if headers have been written
	windowsHeaderWritten      bool
	conservationHeaderWritten bool
	perfHeaderWritten         bool
}

// NewOutputManager creates a new output manager and initializes the output directory.
// Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	// Create output directory
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir}

	// Open windows.csv
	windowsPath := filepath.Join(dir, "windows.csv")
	f, err := os.Create(windowsPath)
	if err != nil {
		return nil, fmt.Errorf("creating windows.csv: %w", err)
	}
	om.windowsFile = f

	// Open conservation.csv
	conservationPath := filepath.Join(dir, "conservation.csv")
	f, err = os.Create(conservationPath)
	if err != nil {
		om.windowsFile.Close()
		return nil, fmt.Errorf("creating conservation.csv: %w", err)
	}
	om.conservationFile = f

	// Open perf.csv
	perfPath := filepath.Join(dir, "perf.csv")
	f, err = os.Create(perfPath)
	if err != nil {
		om.windowsFile.Close()
		om.conservationFile.Close()
		return nil, fmt.Errorf("creating perf.csv: %w", err)
	}
	om.perfFile = f

	return om, nil
}

// WriteConfig saves the current configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	configPath := filepath.Join(om.dir, "config.yaml")
	return cfg.WriteYAML(configPath)
}

// WriteWindow writes one window stats record to windows.csv.
func (om *OutputManager) WriteWindow(stats WindowStats) error {
	if om == nil {
		return nil
	}

	records := []WindowStats{stats}

	if !om.windowsHeaderWritten {
		if err := gocsv.Marshal(records, om.windowsFile); err != nil {
			return fmt.Errorf("writing window stats: %w", err)
		}
		om.windowsHeaderWritten = true
	} else {
		if err := gocsv.MarshalWithoutHeaders(records, om.windowsFile); err != nil {
			return fmt.Errorf("writing window stats: %w", err)
		}
	}

	return nil
}

// WriteConservation writes one conservation record to conservation.csv.
func (om *OutputManager) WriteConservation(row ConservationRow) error {
	if om == nil {
		return nil
	}

	records := []ConservationRow{row}

	if !om.conservationHeaderWritten {
		// First write includes headers
		if err := gocsv.Marshal(records, om.conservationFile); err != nil {
			return fmt.Errorf("writing conservation: %w", err)
		}
		om.conservationHeaderWritten = true
	} else {
		// Subsequent writes skip headers
		if err := gocsv.MarshalWithoutHeaders(records, om.conservationFile); err != nil {
			return fmt.Errorf("writing conservation: %w", err)
		}
	}

	return nil
}

// WritePerf writes a performance stats record to perf.csv.
func (om *OutputManager) WritePerf(stats PerfStats, windowEnd int64) error {
	if om == nil {
		return nil
	}

	csvRecord := stats.ToCSV(windowEnd)
	records := []PerfStatsCSV{csvRecord}

	if !om.perfHeaderWritten {
		if err := gocsv.Marshal(records, om.perfFile); err != nil {
			return fmt.Errorf("writing perf: %w", err)
		}
		om.perfHeaderWritten = true
	} else {
		if err := gocsv.MarshalWithoutHeaders(records, om.perfFile); err != nil {
			return fmt.Errorf("writing perf: %w", err)
		}
	}

	return nil
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close flushes and closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}

	var firstErr error

	if om.windowsFile != nil {
		if err := om.windowsFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if om.conservationFile != nil {
		if err := om.conservationFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if om.perfFile != nil {
		if err := om.perfFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
