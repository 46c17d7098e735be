package repository

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"reflect"

	"github.com/abelzeko/kenai-ingest/internal/entities"
	"github.com/dustin/go-humanize"
	"github.com/gocarina/gocsv"
)

// Dataset names used in raw data file names
const (
	DatasetFish     = "fish"
	DatasetWater    = "water_temp"
	DatasetSeaLevel = "sea_level"
)

// RawDataWriter serialises record tables to delimited files, one per dataset
type RawDataWriter struct {
	OutputDir string
}

// NewRawDataWriter creates a writer, creating the output directory if needed
func NewRawDataWriter(outputDir string) (*RawDataWriter, error) {
	if outputDir == "" {
		outputDir = filepath.Join("data", "raw_data")
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &RawDataWriter{OutputDir: outputDir}, nil
}

// Path returns the file for a dataset, e.g. "2015-2024_fish_data_raw.csv"
func (w *RawDataWriter) Path(rng entities.DateRange, dataset string) string {
	return filepath.Join(w.OutputDir, fmt.Sprintf("%s_%s_data_raw.csv", rng, dataset))
}

// Write stores records, a slice of CSV-tagged structs, replacing any previous
// file for the same range and dataset. No index column is written.
func (w *RawDataWriter) Write(rng entities.DateRange, dataset string, records interface{}) (string, error) {
	v := reflect.ValueOf(records)
	if v.Kind() != reflect.Slice {
		return "", fmt.Errorf("records for %s must be a slice, got %T", dataset, records)
	}

	path := w.Path(rng, dataset)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := gocsv.Marshal(records, f); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", path, err)
	}

	log.Printf("Wrote %s %s rows to %s", humanize.Comma(int64(v.Len())), dataset, path)
	return path, nil
}

// Read loads a file written by Write into out, a pointer to a slice
func (w *RawDataWriter) Read(path string, out interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	if err := gocsv.Unmarshal(f, out); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return nil
}
